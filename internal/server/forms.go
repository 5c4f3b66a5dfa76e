package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"

	"causeconnect/internal/storage"
	"causeconnect/pkg/types"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

const (
	maxJSONBytes      = 1 << 20
	maxMultipartBytes = 4 * storage.MaxUploadBytes
)

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func isURLEncoded(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
}

// decodeRequest fills dst from a JSON body or from form fields, then runs
// the struct's validate tags.
func (s *Service) decodeRequest(w http.ResponseWriter, r *http.Request, dst any) error {
	switch {
	case isMultipart(r):
		r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBytes)
		if err := r.ParseMultipartForm(storage.MaxUploadBytes); err != nil {
			return types.ValidationError("invalid multipart form")
		}
		if err := decoder.Decode(dst, r.Form); err != nil {
			return types.ValidationError("invalid form fields")
		}
	case isURLEncoded(r):
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
		if err := r.ParseForm(); err != nil {
			return types.ValidationError("invalid form payload")
		}
		if err := decoder.Decode(dst, r.Form); err != nil {
			return types.ValidationError("invalid form fields")
		}
	default:
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			return types.ValidationError("invalid JSON body")
		}
	}

	return validateRequest(dst)
}

func validateRequest(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.ValidationError("invalid request")
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return types.ValidationError("%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	name := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "email":
		return fmt.Sprintf("%s must be a valid email", name)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", name, fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", name)
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// uploadFormFile stores the named multipart file under folder and returns
// its URL. No file yields an empty URL.
func (s *Service) uploadFormFile(ctx context.Context, r *http.Request, field, folder string) (string, error) {
	if r.MultipartForm == nil {
		return "", nil
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return "", nil
	}
	return s.storeFile(ctx, headers[0], folder)
}

func (s *Service) uploadFormFiles(ctx context.Context, r *http.Request, field, folder string) ([]string, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	urls := make([]string, 0, len(r.MultipartForm.File[field]))
	for _, fh := range r.MultipartForm.File[field] {
		url, err := s.storeFile(ctx, fh, folder)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (s *Service) storeFile(ctx context.Context, fh *multipart.FileHeader, folder string) (string, error) {
	if fh.Size > storage.MaxUploadBytes {
		return "", types.ValidationError("file %s exceeds %d MB", fh.Filename, storage.MaxUploadBytes>>20)
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer f.Close()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		sniff := make([]byte, 512)
		n, _ := io.ReadFull(f, sniff)
		contentType = http.DetectContentType(sniff[:n])
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return "", fmt.Errorf("failed to rewind uploaded file: %w", err)
		}
	}
	contentType, _, _ = strings.Cut(contentType, ";")

	if _, err := storage.ObjectKey(folder, fh.Filename, contentType); err != nil {
		return "", err
	}

	url, err := s.uploads.UploadFile(ctx, folder, fh.Filename, contentType, f)
	if types.IsKind(err, types.KindValidation) {
		return "", err
	}
	if err != nil {
		return "", types.UpstreamError(err, "failed to store upload")
	}

	return url, nil
}
