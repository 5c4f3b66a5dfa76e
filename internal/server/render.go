package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"causeconnect/pkg/types"

	"github.com/sirupsen/logrus"
)

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type paged[T any] struct {
	Items      []T              `json:"items"`
	Pagination types.Pagination `json:"pagination"`
}

var kindStatus = map[types.ErrorKind]int{
	types.KindValidation:   http.StatusBadRequest,
	types.KindState:        http.StatusBadRequest,
	types.KindUnauthorized: http.StatusUnauthorized,
	types.KindForbidden:    http.StatusForbidden,
	types.KindNotFound:     http.StatusNotFound,
	types.KindConflict:     http.StatusConflict,
	types.KindRateLimited:  http.StatusTooManyRequests,
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("failed to encode response")
	}
}

func (s *Service) respond(w http.ResponseWriter, status int, message string, data any) {
	s.writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

// respondError renders domain errors with their own status and message.
// Anything else is logged and answered with a generic 500; the detail is
// only echoed outside production.
func (s *Service) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var derr *types.Error
	if errors.As(err, &derr) {
		if status, ok := kindStatus[derr.Kind]; ok {
			s.writeJSON(w, status, envelope{Message: derr.Message, Error: derr.Kind.String()})
			return
		}
	}

	s.logger.WithError(err).WithFields(logrus.Fields{
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": requestID(r.Context()),
	}).Error("request failed")
	s.metrics.Error("http")

	body := envelope{Message: "Internal server error"}
	if s.config.Environment != "production" {
		body.Error = err.Error()
	}
	s.writeJSON(w, http.StatusInternalServerError, body)
}
