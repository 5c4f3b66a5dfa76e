package payment

import (
	"context"
	"strings"

	"causeconnect/internal/utils"
	"causeconnect/pkg/types"
)

// Offline stands in for a gateway in development. Orders are minted locally
// and payments are confirmed through the signed verify call only.
type Offline struct{}

func (Offline) Name() string {
	return "offline"
}

func (Offline) CreateOrder(_ context.Context, req OrderRequest) (*GatewayOrder, error) {
	if req.Amount <= 0 {
		return nil, types.ValidationError("amount must be greater than zero")
	}
	return &GatewayOrder{
		ID:       "order_" + utils.NanoIDSize(14),
		Amount:   req.Amount,
		Currency: strings.ToLower(req.Currency),
	}, nil
}

func (Offline) ParseWebhook([]byte, string) (*WebhookEvent, error) {
	return nil, types.ValidationError("webhooks are not enabled")
}
