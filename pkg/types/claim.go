package types

import (
	"slices"
	"strings"
	"time"
)

type ClaimStatus string

const (
	ClaimStatusPending    ClaimStatus = "pending"
	ClaimStatusVerified   ClaimStatus = "verified"
	ClaimStatusProcessing ClaimStatus = "processing"
	ClaimStatusShipped    ClaimStatus = "shipped"
	ClaimStatusDelivered  ClaimStatus = "delivered"
	ClaimStatusRejected   ClaimStatus = "rejected"
)

var ClaimTransitions = Transitions[ClaimStatus]{
	ClaimStatusPending:    {ClaimStatusVerified, ClaimStatusRejected},
	ClaimStatusVerified:   {ClaimStatusProcessing, ClaimStatusRejected},
	ClaimStatusProcessing: {ClaimStatusShipped, ClaimStatusRejected},
	ClaimStatusShipped:    {ClaimStatusDelivered},
}

// legacyClaimStatuses maps the older upper-case vocabulary onto the
// canonical one.
var legacyClaimStatuses = map[string]ClaimStatus{
	"PENDING":   ClaimStatusPending,
	"APPROVED":  ClaimStatusVerified,
	"REJECTED":  ClaimStatusRejected,
	"SHIPPED":   ClaimStatusShipped,
	"DELIVERED": ClaimStatusDelivered,
}

// ParseClaimStatus accepts canonical and legacy status names.
func ParseClaimStatus(s string) (ClaimStatus, error) {
	if legacy, ok := legacyClaimStatuses[s]; ok {
		return legacy, nil
	}
	status := ClaimStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case ClaimStatusPending, ClaimStatusVerified, ClaimStatusProcessing,
		ClaimStatusShipped, ClaimStatusDelivered, ClaimStatusRejected:
		return status, nil
	}
	return "", ValidationError("invalid claim status %q", s)
}

type ShippingInfo struct {
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Organization string `json:"organization,omitempty"`
	Address      string `json:"address"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
	Message      string `json:"message,omitempty"`
}

func (s ShippingInfo) Validate() error {
	var missing []string
	for name, v := range map[string]string{
		"fullName": s.FullName,
		"email":    s.Email,
		"phone":    s.Phone,
		"address":  s.Address,
		"city":     s.City,
		"state":    s.State,
		"zipCode":  s.ZipCode,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return ValidationError("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

type StatusChange struct {
	Status ClaimStatus `json:"status"`
	Date   time.Time   `json:"date"`
	Note   string      `json:"note,omitempty"`
}

type ClaimNote struct {
	Text string    `json:"text"`
	By   string    `json:"by"`
	At   time.Time `json:"at"`
}

type ProofOfImpact struct {
	Images      []string  `json:"images"`
	Description string    `json:"description"`
	SubmittedAt time.Time `json:"submittedAt"`
}

type Claim struct {
	ID              string         `db:"id" json:"id"`
	CauseID         string         `db:"cause_id" json:"causeId"`
	UserID          string         `db:"user_id" json:"userId"`
	CauseTitle      string         `db:"cause_title" json:"causeTitle"`
	FullName        string         `db:"full_name" json:"fullName"`
	Email           string         `db:"email" json:"email"`
	Phone           string         `db:"phone" json:"phone"`
	Organization    string         `db:"organization" json:"organization,omitempty"`
	Address         string         `db:"address" json:"address"`
	City            string         `db:"city" json:"city"`
	State           string         `db:"state" json:"state"`
	ZipCode         string         `db:"zip_code" json:"zipCode"`
	Message         string         `db:"message" json:"message,omitempty"`
	Status          ClaimStatus    `db:"status" json:"status"`
	TrackingNumber  *string        `db:"tracking_number" json:"trackingNumber,omitempty"`
	TrackingURL     *string        `db:"tracking_url" json:"trackingUrl,omitempty"`
	Verified        bool           `db:"verified" json:"verified"`
	VerifiedAt      *time.Time     `db:"verified_at" json:"verifiedAt,omitempty"`
	FromWaitlist    bool           `db:"from_waitlist" json:"fromWaitlist"`
	WaitlistEntryID *string        `db:"waitlist_entry_id" json:"waitlistEntryId,omitempty"`
	Notes           []ClaimNote    `db:"notes" json:"notes"`
	ProofOfImpact   *ProofOfImpact `db:"proof_of_impact" json:"proofOfImpact,omitempty"`
	StatusHistory   []StatusChange `db:"status_history" json:"statusHistory"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updatedAt"`
}

func NewClaim(id string, cause *Cause, userID string, info ShippingInfo, now time.Time) *Claim {
	return &Claim{
		ID:           id,
		CauseID:      cause.ID,
		UserID:       userID,
		CauseTitle:   cause.Title,
		FullName:     info.FullName,
		Email:        info.Email,
		Phone:        info.Phone,
		Organization: info.Organization,
		Address:      info.Address,
		City:         info.City,
		State:        info.State,
		ZipCode:      info.ZipCode,
		Message:      info.Message,
		Status:       ClaimStatusPending,
		Notes:        []ClaimNote{},
		StatusHistory: []StatusChange{
			{Status: ClaimStatusPending, Date: now, Note: "Claim created"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

type ClaimStatusUpdate struct {
	Status         ClaimStatus
	TrackingNumber string
	TrackingURL    string
	Note           string
}

// Transition applies update and appends exactly one history entry for it.
func (c *Claim) Transition(u ClaimStatusUpdate, now time.Time) error {
	if err := ClaimTransitions.Check("claim", c.Status, u.Status); err != nil {
		return err
	}
	if u.Status == ClaimStatusShipped {
		if strings.TrimSpace(u.TrackingNumber) == "" && c.TrackingNumber == nil {
			return ValidationError("a tracking number is required to mark a claim shipped")
		}
	}
	if u.TrackingNumber != "" {
		c.TrackingNumber = &u.TrackingNumber
	}
	if u.TrackingURL != "" {
		c.TrackingURL = &u.TrackingURL
	}
	if u.Status == ClaimStatusVerified {
		c.Verified = true
		c.VerifiedAt = &now
	}
	c.Status = u.Status
	c.StatusHistory = append(c.StatusHistory, StatusChange{Status: u.Status, Date: now, Note: u.Note})
	c.UpdatedAt = now
	return nil
}

func (c *Claim) AddNote(by, text string, now time.Time) error {
	if strings.TrimSpace(text) == "" {
		return ValidationError("note text is required")
	}
	c.Notes = append(c.Notes, ClaimNote{Text: text, By: by, At: now})
	c.UpdatedAt = now
	return nil
}

// SubmitProof replaces any earlier proof of impact.
func (c *Claim) SubmitProof(images []string, description string, now time.Time) error {
	if len(images) == 0 && strings.TrimSpace(description) == "" {
		return ValidationError("proof of impact needs images or a description")
	}
	if images == nil {
		images = []string{}
	}
	c.ProofOfImpact = &ProofOfImpact{Images: images, Description: description, SubmittedAt: now}
	c.UpdatedAt = now
	return nil
}

// ClaimFilter narrows the admin claim listing.
type ClaimFilter struct {
	Status  ClaimStatus
	CauseID string
	UserID  string
	From    *time.Time
	To      *time.Time
	Query   string
	Page    int
	Limit   int
}

const DefaultPageLimit = 20

func (f *ClaimFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = DefaultPageLimit
	}
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}
