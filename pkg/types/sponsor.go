package types

import "time"

type SponsorStatus string

const (
	SponsorStatusPending  SponsorStatus = "pending"
	SponsorStatusApproved SponsorStatus = "approved"
	SponsorStatusRejected SponsorStatus = "rejected"
)

const DefaultSponsorRejectionReason = "Sponsorship rejected by admin"

var SponsorTransitions = Transitions[SponsorStatus]{
	SponsorStatusPending:  {SponsorStatusApproved, SponsorStatusRejected},
	SponsorStatusApproved: {SponsorStatusRejected},
	SponsorStatusRejected: {SponsorStatusApproved},
}

// Sponsor is a funding commitment stored inside its cause.
type Sponsor struct {
	ID              string           `json:"id"`
	UserID          *string          `json:"userId,omitempty"`
	Name            string           `json:"name"`
	Email           string           `json:"email,omitempty"`
	Logo            string           `json:"logo,omitempty"`
	Amount          int64            `json:"amount"`
	Quantity        int              `json:"quantity,omitempty"`
	Status          SponsorStatus    `json:"status"`
	RejectionReason string           `json:"rejectionReason,omitempty"`
	LogoReviewID    string           `json:"logoReviewId,omitempty"`
	LogoStatus      LogoReviewStatus `json:"logoStatus,omitempty"`
	TotePreview     *TotePreview     `json:"totePreview,omitempty"`
	OrderID         string           `json:"orderId,omitempty"`
	PaymentID       string           `json:"paymentId,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

type SponsorInput struct {
	UserID   *string
	Name     string
	Email    string
	Logo     string
	Amount   int64
	Quantity int
}

func (in SponsorInput) Validate() error {
	if in.Name == "" {
		return ValidationError("sponsor name is required")
	}
	if in.Amount < 0 {
		return ValidationError("sponsor amount must not be negative")
	}
	return nil
}

// PaymentRef links a sponsorship to the order that paid for it.
type PaymentRef struct {
	OrderID   string
	PaymentID string
}

// PendingSponsorship is one row of the admin approval queue.
type PendingSponsorship struct {
	ID        string        `json:"id"`
	Sponsor   string        `json:"sponsor"`
	SponsorID string        `json:"sponsorId"`
	Cause     string        `json:"cause"`
	CauseID   string        `json:"causeId"`
	Amount    int64         `json:"amount"`
	Logo      string        `json:"logo,omitempty"`
	Date      time.Time     `json:"date"`
	Status    SponsorStatus `json:"status"`
}
