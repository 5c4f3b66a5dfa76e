package types

import "time"

type OrderStatus string

const (
	OrderStatusCreated OrderStatus = "created"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
)

var OrderTransitions = Transitions[OrderStatus]{
	OrderStatusCreated: {OrderStatusPaid, OrderStatusFailed},
	OrderStatusFailed:  {OrderStatusPaid},
}

type SponsorshipDetails struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Logo     string `json:"logo,omitempty"`
	Quantity int    `json:"quantity,omitempty"`
}

// Order mirrors a payment gateway order. Amount is in minor units.
type Order struct {
	ID                 string              `db:"id" json:"id"`
	GatewayOrderID     string              `db:"gateway_order_id" json:"orderId"`
	ClientSecret       *string             `db:"client_secret" json:"clientSecret,omitempty"`
	Amount             int64               `db:"amount" json:"amount"`
	Currency           string              `db:"currency" json:"currency"`
	Status             OrderStatus         `db:"status" json:"status"`
	CauseID            *string             `db:"cause_id" json:"causeId,omitempty"`
	UserID             *string             `db:"user_id" json:"userId,omitempty"`
	PaymentID          *string             `db:"payment_id" json:"paymentId,omitempty"`
	SponsorID          *string             `db:"sponsor_id" json:"sponsorId,omitempty"`
	SponsorshipDetails *SponsorshipDetails `db:"sponsorship_details" json:"sponsorshipDetails,omitempty"`
	PaidAt             *time.Time          `db:"paid_at" json:"paidAt,omitempty"`
	CreatedAt          time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time           `db:"updated_at" json:"updatedAt"`
}

// MarkPaid is idempotent for the same payment id; linkage fields stay
// writable after payment but the amount and status do not.
func (o *Order) MarkPaid(paymentID string, details *SponsorshipDetails, now time.Time) error {
	if o.Status == OrderStatusPaid {
		if o.PaymentID != nil && *o.PaymentID != paymentID {
			return ConflictError("order %s was already paid by another payment", o.GatewayOrderID)
		}
		return nil
	}
	if err := OrderTransitions.Check("order", o.Status, OrderStatusPaid); err != nil {
		return err
	}
	o.Status = OrderStatusPaid
	o.PaymentID = &paymentID
	o.PaidAt = &now
	if details != nil {
		o.SponsorshipDetails = details
	}
	o.UpdatedAt = now
	return nil
}

func (o *Order) MarkFailed(now time.Time) error {
	if o.Status == OrderStatusFailed {
		return nil
	}
	if err := OrderTransitions.Check("order", o.Status, OrderStatusFailed); err != nil {
		return err
	}
	o.Status = OrderStatusFailed
	o.UpdatedAt = now
	return nil
}

// LinkSponsor records the sponsorship an order paid for. An order funds at
// most one sponsorship.
func (o *Order) LinkSponsor(sponsorID string, now time.Time) error {
	if o.Status != OrderStatusPaid {
		return StateError("order %s has not been paid", o.GatewayOrderID)
	}
	if o.SponsorID != nil && *o.SponsorID != sponsorID {
		return ConflictError("order %s already funded a sponsorship", o.GatewayOrderID)
	}
	o.SponsorID = &sponsorID
	o.UpdatedAt = now
	return nil
}

// UnlinkSponsor drops a reservation made by LinkSponsor whose sponsorship
// was never recorded.
func (o *Order) UnlinkSponsor(sponsorID string, now time.Time) {
	if o.SponsorID == nil || *o.SponsorID != sponsorID {
		return
	}
	o.SponsorID = nil
	o.UpdatedAt = now
}
