package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"causeconnect/internal/metrics"
	"causeconnect/pkg/types"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

type paymentIntents interface {
	Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
}

// Stripe creates PaymentIntents as orders and reads their webhook events.
type Stripe struct {
	intents       paymentIntents
	webhookSecret string
	metrics       *metrics.Metrics
}

func NewStripe(secretKey, webhookSecret string, m *metrics.Metrics) *Stripe {
	sc := stripe.NewClient(secretKey)
	return &Stripe{
		intents:       sc.V1PaymentIntents,
		webhookSecret: webhookSecret,
		metrics:       m,
	}
}

func (s *Stripe) Name() string {
	return "stripe"
}

func (s *Stripe) CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error) {
	if req.Amount <= 0 {
		return nil, types.ValidationError("amount must be greater than zero")
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Receipt != "" {
		params.AddMetadata("receipt", req.Receipt)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := s.intents.Create(ctx, params)
	s.observe("create_order", err)
	if err != nil {
		return nil, types.UpstreamError(err, "failed to create payment order")
	}

	return &GatewayOrder{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

func (s *Stripe) ParseWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	s.observe("webhook", err)
	if err != nil {
		return nil, types.ValidationError("invalid webhook signature")
	}

	out := &WebhookEvent{ID: event.ID, Kind: EventIgnored}

	switch event.Type {
	case "payment_intent.succeeded":
		out.Kind = EventPaymentSucceeded
	case "payment_intent.payment_failed":
		out.Kind = EventPaymentFailed
	default:
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("failed to decode payment intent: %w", err)
	}

	out.OrderID = pi.ID
	if pi.LatestCharge != nil {
		out.PaymentID = pi.LatestCharge.ID
	}
	if out.PaymentID == "" {
		out.PaymentID = pi.ID
	}

	return out, nil
}

func (s *Stripe) observe(operation string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.GatewayRequests.WithLabelValues(operation, outcome).Inc()
}
