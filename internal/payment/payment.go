package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"causeconnect/pkg/types"
)

// OrderRequest asks the gateway for a new order. Amount is in minor units.
type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Metadata map[string]string
}

type GatewayOrder struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
}

type EventKind string

const (
	EventPaymentSucceeded EventKind = "payment.succeeded"
	EventPaymentFailed    EventKind = "payment.failed"
	EventIgnored          EventKind = "ignored"
)

// WebhookEvent is a gateway notification reduced to what the order book needs.
type WebhookEvent struct {
	ID        string
	Kind      EventKind
	OrderID   string
	PaymentID string
}

// Gateway creates orders and authenticates gateway callbacks.
type Gateway interface {
	Name() string
	CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error)
	ParseWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error)
}

// Signer produces and checks the checkout signature, a hex HMAC-SHA256 of
// "orderId|paymentId" under a shared secret.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Signer) Verify(orderID, paymentID, signature string) error {
	if len(s.secret) == 0 {
		return types.UpstreamError(nil, "payment signing secret is not configured")
	}
	if orderID == "" || paymentID == "" || signature == "" {
		return types.ValidationError("orderId, paymentId and signature are required")
	}
	want, err := hex.DecodeString(s.Sign(orderID, paymentID))
	if err != nil {
		return err
	}
	got, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil || !hmac.Equal(want, got) {
		return types.ValidationError("invalid payment signature")
	}
	return nil
}
