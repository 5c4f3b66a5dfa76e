package payment

import (
	"context"
	"strings"
	"testing"
	"time"

	"causeconnect/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

func TestSignerVerify(t *testing.T) {
	s := NewSigner("shh")
	sig := s.Sign("order_1", "pay_1")

	assert.Len(t, sig, 64)
	assert.NoError(t, s.Verify("order_1", "pay_1", sig))
	assert.NoError(t, s.Verify("order_1", "pay_1", strings.ToUpper(sig)))

	err := s.Verify("order_1", "pay_2", sig)
	assert.True(t, types.IsKind(err, types.KindValidation))

	err = s.Verify("order_1", "pay_1", "zz")
	assert.True(t, types.IsKind(err, types.KindValidation))

	err = s.Verify("", "pay_1", sig)
	assert.True(t, types.IsKind(err, types.KindValidation))
}

func TestSignerWithoutSecret(t *testing.T) {
	err := NewSigner("").Verify("o", "p", "00")
	assert.True(t, types.IsKind(err, types.KindUpstream))
}

type fakeIntents struct {
	params *stripe.PaymentIntentCreateParams
}

func (f *fakeIntents) Create(_ context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error) {
	f.params = params
	return &stripe.PaymentIntent{
		ID:           "pi_123",
		ClientSecret: "pi_123_secret",
		Amount:       *params.Amount,
		Currency:     stripe.Currency(*params.Currency),
	}, nil
}

func TestStripeCreateOrder(t *testing.T) {
	fake := &fakeIntents{}
	s := &Stripe{intents: fake}

	order, err := s.CreateOrder(context.Background(), OrderRequest{
		Amount:   2500,
		Currency: "USD",
		Receipt:  "rcpt_1",
		Metadata: map[string]string{"causeId": "c1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "pi_123", order.ID)
	assert.Equal(t, "pi_123_secret", order.ClientSecret)
	assert.Equal(t, int64(2500), order.Amount)
	assert.Equal(t, "usd", order.Currency)
	assert.Equal(t, "c1", fake.params.Metadata["causeId"])
	assert.Equal(t, "rcpt_1", fake.params.Metadata["receipt"])

	_, err = s.CreateOrder(context.Background(), OrderRequest{Amount: 0, Currency: "usd"})
	assert.True(t, types.IsKind(err, types.KindValidation))
}

func TestStripeParseWebhook(t *testing.T) {
	s := &Stripe{webhookSecret: "whsec_test"}

	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_9", "object": "payment_intent", "latest_charge": "ch_9"}}
	}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	event, err := s.ParseWebhook(payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, EventPaymentSucceeded, event.Kind)
	assert.Equal(t, "pi_9", event.OrderID)
	assert.Equal(t, "ch_9", event.PaymentID)

	_, err = s.ParseWebhook(payload, "t=1,v1=deadbeef")
	assert.True(t, types.IsKind(err, types.KindValidation))
}

func TestOfflineGateway(t *testing.T) {
	order, err := Offline{}.CreateOrder(context.Background(), OrderRequest{Amount: 1000, Currency: "USD"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(order.ID, "order_"))
	assert.Equal(t, "usd", order.Currency)

	_, err = Offline{}.ParseWebhook(nil, "")
	assert.Error(t, err)
}
