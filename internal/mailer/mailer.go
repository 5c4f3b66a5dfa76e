package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
	"time"

	"causeconnect/internal/metrics"
	"causeconnect/pkg/types"

	"github.com/sirupsen/logrus"
	"gopkg.in/mail.v2"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	TemplateOTP               = "otp"
	TemplateMagicLink         = "magic_link"
	TemplateClaimConfirmation = "claim_confirmation"
	TemplateShipment          = "shipment"
	TemplatePaymentReceipt    = "payment_receipt"
	TemplateDefault           = "default"
)

// transport is satisfied by *mail.Dialer.
type transport interface {
	DialAndSend(m ...*mail.Message) error
}

type Mailer struct {
	transport transport
	from      string
	timeout   time.Duration
	templates map[string]*template.Template
	logger    *logrus.Logger
	metrics   *metrics.Metrics
}

// New builds a Mailer over SMTP. With no SMTP host configured, messages are
// logged instead of sent.
func New(config *types.Config, logger *logrus.Logger, m *metrics.Metrics) (*Mailer, error) {
	timeout := time.Duration(config.SMTPTimeoutSec) * time.Second

	var t transport
	if config.SMTPHost == "" {
		t = &logTransport{logger: logger}
	} else {
		d := mail.NewDialer(config.SMTPHost, config.SMTPPort, config.SMTPUsername, config.SMTPPassword)
		d.Timeout = timeout
		d.SSL = config.SMTPPort == 465
		t = d
	}

	return newMailer(t, config.EmailFrom, timeout, logger, m)
}

func newMailer(t transport, from string, timeout time.Duration, logger *logrus.Logger, m *metrics.Metrics) (*Mailer, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &Mailer{
		transport: t,
		from:      from,
		timeout:   timeout,
		templates: templates,
		logger:    logger,
		metrics:   m,
	}, nil
}

func parseTemplates() (map[string]*template.Template, error) {
	entries, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list email templates: %w", err)
	}

	out := make(map[string]*template.Template)
	for _, entry := range entries {
		name := strings.TrimSuffix(strings.TrimPrefix(entry, "templates/"), ".html")
		if name == "layout" {
			continue
		}

		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", entry)
		if err != nil {
			return nil, fmt.Errorf("failed to parse email template %s: %w", name, err)
		}

		out[name] = tmpl
	}

	return out, nil
}

type view struct {
	Title string
	Data  map[string]any
}

// Render executes the named template, falling back to the default one for
// unknown names.
func (m *Mailer) Render(name, subject string, data map[string]any) (string, error) {
	tmpl, ok := m.templates[name]
	if !ok {
		tmpl = m.templates[TemplateDefault]
	}

	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["message"]; !ok {
		data["message"] = "Thank you for using CauseConnect!"
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", view{Title: subject, Data: data}); err != nil {
		return "", fmt.Errorf("failed to render email template %s: %w", name, err)
	}

	return buf.String(), nil
}

// Send renders and delivers one message, giving up after the configured
// timeout or when ctx is done.
func (m *Mailer) Send(ctx context.Context, to, subject, name string, data map[string]any) error {
	body, err := m.Render(name, subject, data)
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.transport.DialAndSend(msg)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	if m.metrics != nil {
		m.metrics.Emails.WithLabelValues(name, outcome).Inc()
	}

	if err != nil {
		return types.UpstreamError(err, "failed to send %s email", name)
	}

	m.logger.WithFields(logrus.Fields{
		"to":       to,
		"template": name,
	}).Info("email sent")

	return nil
}

func (m *Mailer) SendOTP(ctx context.Context, to, code string) error {
	return m.Send(ctx, to, "Your Verification Code", TemplateOTP, map[string]any{
		"Code":             code,
		"ExpiresInMinutes": int(types.OTPTTL.Minutes()),
	})
}

func (m *Mailer) SendMagicLink(ctx context.Context, entry *types.WaitlistEntry, causeTitle, link string) error {
	return m.Send(ctx, entry.Email, "Your Cause is Now Available!", TemplateMagicLink, map[string]any{
		"Name":       entry.FullName,
		"CauseTitle": causeTitle,
		"Link":       link,
		"ExpiresAt":  entry.MagicLinkExpiresAt.UTC().Format("Jan 2, 2006 15:04 MST"),
	})
}

func (m *Mailer) SendClaimConfirmation(ctx context.Context, claim *types.Claim) error {
	return m.Send(ctx, claim.Email, "Your Tote Claim Confirmation", TemplateClaimConfirmation, map[string]any{
		"Name":       claim.FullName,
		"CauseTitle": claim.CauseTitle,
		"ClaimID":    claim.ID,
	})
}

func (m *Mailer) SendShipment(ctx context.Context, claim *types.Claim) error {
	trackingURL := ""
	if claim.TrackingURL != nil {
		trackingURL = *claim.TrackingURL
	}
	trackingNumber := ""
	if claim.TrackingNumber != nil {
		trackingNumber = *claim.TrackingNumber
	}

	return m.Send(ctx, claim.Email, "Your Tote Has Shipped", TemplateShipment, map[string]any{
		"Name":           claim.FullName,
		"CauseTitle":     claim.CauseTitle,
		"TrackingNumber": trackingNumber,
		"TrackingURL":    trackingURL,
	})
}

func (m *Mailer) SendPaymentReceipt(ctx context.Context, to string, order *types.Order, causeTitle string) error {
	paymentID := ""
	if order.PaymentID != nil {
		paymentID = *order.PaymentID
	}

	return m.Send(ctx, to, "Your Sponsorship Payment Receipt", TemplatePaymentReceipt, map[string]any{
		"Amount":     fmt.Sprintf("%d.%02d", order.Amount/100, order.Amount%100),
		"Currency":   strings.ToUpper(order.Currency),
		"CauseTitle": causeTitle,
		"OrderID":    order.GatewayOrderID,
		"PaymentID":  paymentID,
	})
}

type logTransport struct {
	logger *logrus.Logger
}

func (t *logTransport) DialAndSend(msgs ...*mail.Message) error {
	for _, msg := range msgs {
		t.logger.WithFields(logrus.Fields{
			"to":      msg.GetHeader("To"),
			"subject": msg.GetHeader("Subject"),
		}).Warn("smtp not configured, email not delivered")
	}
	return nil
}
