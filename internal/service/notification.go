package service

import (
	"context"
	"strings"

	"causeconnect/pkg/types"

	"github.com/sirupsen/logrus"
)

type EmailRequest struct {
	To       string         `json:"to" validate:"required,email"`
	Subject  string         `json:"subject" validate:"required"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

type Notifications struct {
	Common
	mail Notifier
}

func NewNotifications(c Common, mail Notifier) *Notifications {
	return &Notifications{Common: c, mail: mail}
}

// Send delivers an admin composed email. Unknown templates fall back to
// the default layout.
func (s *Notifications) Send(ctx context.Context, req EmailRequest) error {
	req.To = strings.TrimSpace(req.To)
	if err := validate.Struct(req); err != nil {
		return types.ValidationError("to, subject and a valid email address are required")
	}
	if req.Template == "" {
		req.Template = "default"
	}

	if err := s.mail.Send(ctx, req.To, req.Subject, req.Template, req.Data); err != nil {
		return err
	}

	s.Logger.WithFields(logrus.Fields{
		"to":       req.To,
		"template": req.Template,
	}).Info("notification sent")

	return nil
}
