package server

import (
	"net/http"
	"strings"

	"causeconnect/internal/service"
	"causeconnect/internal/storage"
	"causeconnect/pkg/types"
)

var uploadFolders = map[string]bool{
	"causes":      true,
	"logos":       true,
	"screenshots": true,
	"proofs":      true,
	"misc":        true,
}

func (s *Service) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	var req service.EmailRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.Notifications.Send(r.Context(), req); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Email sent", nil)
}

func (s *Service) handleClaimerCauses(w http.ResponseWriter, r *http.Request) {
	causes, err := s.Claimers.Causes(r.Context(), r.PathValue("userId"), currentUser(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", causes)
}

func (s *Service) handleClaimerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Claimers.Stats(r.Context(), r.PathValue("userId"), currentUser(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", stats)
}

// handleUpload stores one "file" under an allowed folder and returns its URL.
func (s *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !isMultipart(r) {
		s.respondError(w, r, types.ValidationError("multipart form with a file is required"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBytes)
	if err := r.ParseMultipartForm(storage.MaxUploadBytes); err != nil {
		s.respondError(w, r, types.ValidationError("invalid multipart form"))
		return
	}

	folder := strings.ToLower(strings.TrimSpace(r.FormValue("folder")))
	if folder == "" {
		folder = "misc"
	}
	if !uploadFolders[folder] {
		s.respondError(w, r, types.ValidationError("invalid upload folder %q", folder))
		return
	}

	url, err := s.uploadFormFile(r.Context(), r, "file", folder)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if url == "" {
		s.respondError(w, r, types.ValidationError("file is required"))
		return
	}

	s.respond(w, http.StatusCreated, "File uploaded", map[string]string{"url": url})
}
