package server

import (
	"io"
	"net/http"

	"causeconnect/internal/service"
	"causeconnect/pkg/types"
)

const maxWebhookBytes = 64 << 10

type createOrderRequest struct {
	CauseID     string                    `json:"causeId"`
	Amount      int64                     `json:"amount" validate:"gt=0"`
	Currency    string                    `json:"currency"`
	Sponsorship *types.SponsorshipDetails `json:"sponsorshipDetails"`
}

type verifyPaymentRequest struct {
	OrderID   string                    `json:"orderId" validate:"required"`
	PaymentID string                    `json:"paymentId" validate:"required"`
	Signature string                    `json:"signature" validate:"required"`
	Details   *types.SponsorshipDetails `json:"sponsorshipDetails"`
}

func (s *Service) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	order, err := s.Payments.CreateOrder(r.Context(), service.CreateOrderInput{
		CauseID:     req.CauseID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Sponsorship: req.Sponsorship,
	}, currentUser(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusCreated, "Order created", order)
}

func (s *Service) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	order, err := s.Payments.Verify(r.Context(), service.VerifyPaymentInput{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		Details:   req.Details,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Payment verified", order)
}

func (s *Service) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.Payments.Order(r.Context(), r.PathValue("orderId"), currentUser(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", order)
}

// handlePaymentWebhook needs the raw body for signature verification.
func (s *Service) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		s.respondError(w, r, types.ValidationError("webhook payload too large"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		signature = r.Header.Get("X-Webhook-Signature")
	}

	event, err := s.Payments.HandleWebhook(r.Context(), payload, signature)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Webhook received", map[string]any{
		"id":   event.ID,
		"kind": event.Kind,
	})
}
