package service

import (
	"context"
	"errors"
	"strings"

	"causeconnect/internal/payment"
	"causeconnect/internal/utils"
	"causeconnect/pkg/types"

	"github.com/sirupsen/logrus"
)

// Payments keeps the local order book in step with the payment gateway
// and turns paid orders into sponsorships.
type Payments struct {
	Common
	orders       OrderStore
	causes       CauseStore
	sponsorships *Sponsorships
	gateway      payment.Gateway
	signer       *payment.Signer
	mail         Notifier
	currency     string
	unitPrice    int64
}

type PaymentsConfig struct {
	Currency  string
	UnitPrice int64
}

func NewPayments(c Common, orders OrderStore, causes CauseStore, sponsorships *Sponsorships, gateway payment.Gateway, signer *payment.Signer, mail Notifier, cfg PaymentsConfig) *Payments {
	if cfg.Currency == "" {
		cfg.Currency = "inr"
	}
	if cfg.UnitPrice <= 0 {
		cfg.UnitPrice = 10
	}
	return &Payments{
		Common:       c,
		orders:       orders,
		causes:       causes,
		sponsorships: sponsorships,
		gateway:      gateway,
		signer:       signer,
		mail:         mail,
		currency:     strings.ToLower(cfg.Currency),
		unitPrice:    cfg.UnitPrice,
	}
}

// UnitPrice is the sponsorship price of a single tote in currency units.
func (s *Payments) UnitPrice() int64 {
	return s.unitPrice
}

type CreateOrderInput struct {
	CauseID     string                    `json:"causeId"`
	Amount      int64                     `json:"amount" validate:"gt=0"`
	Currency    string                    `json:"currency"`
	Sponsorship *types.SponsorshipDetails `json:"sponsorshipDetails,omitempty"`
}

// CreateOrder opens a gateway order for in.Amount currency units and
// records it locally. A referenced cause must still take sponsorships.
func (s *Payments) CreateOrder(ctx context.Context, in CreateOrderInput, user *types.User) (*types.Order, error) {
	if err := validate.Struct(in); err != nil {
		return nil, types.ValidationError("amount must be greater than zero")
	}

	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.currency
	}

	var title string
	if in.CauseID != "" {
		cause, err := s.causes.Cause(ctx, in.CauseID)
		if err != nil {
			return nil, err
		}
		if cause.Status != types.CauseStatusOpen && cause.Status != types.CauseStatusWaitlist {
			return nil, types.StateError("cause is not accepting sponsorships (status %s)", cause.Status)
		}
		title = cause.Title
	}

	metadata := map[string]string{}
	if in.CauseID != "" {
		metadata["cause_id"] = in.CauseID
	}
	if user != nil {
		metadata["user_id"] = user.ID
	}

	gw, err := s.gateway.CreateOrder(ctx, payment.OrderRequest{
		Amount:   in.Amount * 100,
		Currency: currency,
		Receipt:  "rcpt_" + utils.NanoIDSize(16),
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := &types.Order{
		ID:                 utils.NanoID(),
		GatewayOrderID:     gw.ID,
		ClientSecret:       utils.NonEmptyPtr(gw.ClientSecret),
		Amount:             gw.Amount,
		Currency:           gw.Currency,
		Status:             types.OrderStatusCreated,
		CauseID:            utils.NonEmptyPtr(in.CauseID),
		SponsorshipDetails: in.Sponsorship,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if user != nil {
		order.UserID = &user.ID
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.transition("order", string(order.Status))
	s.Logger.WithFields(logrus.Fields{
		"order_id": order.GatewayOrderID,
		"gateway":  s.gateway.Name(),
		"amount":   order.Amount,
		"cause":    title,
	}).Info("payment order created")

	return order, nil
}

type VerifyPaymentInput struct {
	OrderID   string                    `json:"orderId"`
	PaymentID string                    `json:"paymentId"`
	Signature string                    `json:"signature"`
	Details   *types.SponsorshipDetails `json:"sponsorshipDetails,omitempty"`
}

// Verify checks the checkout signature and marks the order paid.
func (s *Payments) Verify(ctx context.Context, in VerifyPaymentInput) (*types.Order, error) {
	if err := s.signer.Verify(in.OrderID, in.PaymentID, in.Signature); err != nil {
		return nil, err
	}

	order, err := s.markPaid(ctx, in.OrderID, in.PaymentID, in.Details)
	if err != nil {
		return nil, err
	}

	s.receipt(ctx, order)

	return order, nil
}

func (s *Payments) markPaid(ctx context.Context, orderID, paymentID string, details *types.SponsorshipDetails) (*types.Order, error) {
	order, err := s.orders.MutateOrder(ctx, orderID, func(o *types.Order) error {
		return o.MarkPaid(paymentID, details, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.transition("order", string(order.Status))
	s.Logger.WithFields(logrus.Fields{
		"order_id":   order.GatewayOrderID,
		"payment_id": paymentID,
	}).Info("payment captured")

	return order, nil
}

func (s *Payments) receipt(ctx context.Context, order *types.Order) {
	if order.SponsorshipDetails == nil || order.SponsorshipDetails.Email == "" {
		return
	}

	var title string
	if order.CauseID != nil {
		if cause, err := s.causes.Cause(ctx, *order.CauseID); err == nil {
			title = cause.Title
		}
	}

	if err := s.mail.SendPaymentReceipt(ctx, order.SponsorshipDetails.Email, order, title); err != nil {
		s.Logger.WithError(err).WithField("order_id", order.GatewayOrderID).Warn("failed to send payment receipt")
	}
}

// HandleWebhook applies a gateway event to the order book. Events for
// orders this service never created are acknowledged and dropped.
func (s *Payments) HandleWebhook(ctx context.Context, payload []byte, signature string) (*payment.WebhookEvent, error) {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return nil, err
	}

	entry := s.Logger.WithFields(logrus.Fields{
		"event_id": event.ID,
		"kind":     event.Kind,
		"order_id": event.OrderID,
	})

	var order *types.Order
	switch event.Kind {
	case payment.EventPaymentSucceeded:
		order, err = s.markPaid(ctx, event.OrderID, event.PaymentID, nil)
	case payment.EventPaymentFailed:
		order, err = s.orders.MutateOrder(ctx, event.OrderID, func(o *types.Order) error {
			return o.MarkFailed(s.now())
		})
		if err == nil {
			s.transition("order", string(order.Status))
		}
	default:
		entry.Debug("ignoring webhook event")
		return event, nil
	}

	if errors.Is(err, types.ErrOrderNotFound) {
		entry.Warn("webhook for unknown order")
		return event, nil
	}
	if err != nil {
		return nil, err
	}

	if event.Kind == payment.EventPaymentSucceeded {
		s.receipt(ctx, order)
	}

	entry.WithField("status", order.Status).Info("webhook applied")

	return event, nil
}

func (s *Payments) Order(ctx context.Context, gatewayOrderID string, viewer *types.User) (*types.Order, error) {
	order, err := s.orders.OrderByGatewayID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != nil {
		if err := requireSelfOrAdmin(viewer, *order.UserID); err != nil {
			return nil, err
		}
	} else if !isAdmin(viewer) {
		return nil, types.ErrInsufficientRole
	}
	return order, nil
}

// SponsorFromOrder records the sponsorship a paid order was bought for. The
// sponsor amount is quantity times the unit price and must be covered by
// what the order captured. Only the buyer or an admin may spend an order,
// and the order is reserved for the new sponsor id before the cause is
// touched so it can fund at most one sponsorship.
func (s *Payments) SponsorFromOrder(ctx context.Context, causeID, gatewayOrderID string, in types.SponsorInput, user *types.User) (*types.Cause, *types.Sponsor, error) {
	order, err := s.orders.OrderByGatewayID(ctx, gatewayOrderID)
	if err != nil {
		return nil, nil, err
	}
	if err := canSpend(order, user); err != nil {
		return nil, nil, err
	}

	if in.Quantity <= 0 {
		in.Quantity = 1
	}
	in.Amount = int64(in.Quantity) * s.unitPrice
	if user != nil {
		in.UserID = &user.ID
		if in.Email == "" {
			in.Email = user.Email
		}
	}

	sponsorID := utils.NanoID()
	order, err = s.orders.MutateOrder(ctx, gatewayOrderID, func(o *types.Order) error {
		if o.Status != types.OrderStatusPaid {
			return types.StateError("order %s has not been paid", gatewayOrderID)
		}
		if o.CauseID != nil && *o.CauseID != causeID {
			return types.ValidationError("order %s was not placed for this cause", gatewayOrderID)
		}
		if o.SponsorID != nil {
			return types.ConflictError("order %s already funded a sponsorship", gatewayOrderID)
		}
		if o.Amount < in.Amount*100 {
			return types.ValidationError("order amount does not cover %d totes", in.Quantity)
		}
		return o.LinkSponsor(sponsorID, s.now())
	})
	if err != nil {
		return nil, nil, err
	}

	cause, sponsor, err := s.sponsorships.recordPaid(ctx, sponsorID, causeID, in, types.PaymentRef{
		OrderID:   order.GatewayOrderID,
		PaymentID: utils.PtrString(order.PaymentID),
	})
	if err != nil {
		s.release(ctx, gatewayOrderID, sponsorID)
		return nil, nil, err
	}

	return cause, sponsor, nil
}

// canSpend allows the buyer of an order, or an admin, to turn it into a
// sponsorship. Orders placed without an account need an admin.
func canSpend(order *types.Order, user *types.User) error {
	if order.UserID == nil {
		if isAdmin(user) {
			return nil
		}
		if user == nil {
			return types.ErrInvalidToken
		}
		return types.ErrInsufficientRole
	}
	return requireSelfOrAdmin(user, *order.UserID)
}

func (s *Payments) release(ctx context.Context, gatewayOrderID, sponsorID string) {
	_, err := s.orders.MutateOrder(ctx, gatewayOrderID, func(o *types.Order) error {
		o.UnlinkSponsor(sponsorID, s.now())
		return nil
	})
	if err != nil {
		s.Logger.WithError(err).WithFields(logrus.Fields{
			"order_id":   gatewayOrderID,
			"sponsor_id": sponsorID,
		}).Error("failed to release order reservation")
	}
}
