package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"causeconnect/internal/utils"
	"causeconnect/pkg/types"
)

// ErrForeignURL is returned by Open for URLs this store did not issue.
var ErrForeignURL = errors.New("url does not belong to this store")

// MaxUploadBytes bounds a single uploaded file.
const MaxUploadBytes = 10 << 20

// Store persists uploaded files and hands back a URL clients can fetch.
type Store interface {
	UploadFile(ctx context.Context, folder, filename, contentType string, body io.Reader) (string, error)
	Open(ctx context.Context, url string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, url string) error
}

var allowedTypes = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/svg+xml":   ".svg",
	"image/bmp":       ".bmp",
	"image/tiff":      ".tiff",
	"application/pdf": ".pdf",
}

// ObjectKey builds a collision free key under folder, keeping a sane
// extension for the content type.
func ObjectKey(folder, filename, contentType string) (string, error) {
	ext, ok := allowedTypes[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", types.ValidationError("unsupported content type %q", contentType)
	}

	if e := strings.ToLower(path.Ext(filename)); e != "" && e != ext && !(ext == ".jpg" && e == ".jpeg") {
		return "", types.ValidationError("file extension %s does not match content type %s", e, contentType)
	}

	folder = strings.Trim(path.Clean("/"+folder), "/")
	if folder == "" {
		folder = "misc"
	}

	return fmt.Sprintf("%s/%s%s", folder, utils.NanoIDSize(24), ext), nil
}
