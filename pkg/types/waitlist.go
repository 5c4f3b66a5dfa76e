package types

import (
	"crypto/subtle"
	"strings"
	"time"
)

type WaitlistStatus string

const (
	WaitlistStatusWaiting  WaitlistStatus = "waiting"
	WaitlistStatusNotified WaitlistStatus = "notified"
	WaitlistStatusClaimed  WaitlistStatus = "claimed"
	WaitlistStatusExpired  WaitlistStatus = "expired"
)

// MagicLinkTTL is how long a promoted entry may redeem its link.
const MagicLinkTTL = 48 * time.Hour

var WaitlistTransitions = Transitions[WaitlistStatus]{
	WaitlistStatusWaiting:  {WaitlistStatusNotified, WaitlistStatusExpired},
	WaitlistStatusNotified: {WaitlistStatusNotified, WaitlistStatusClaimed, WaitlistStatusExpired, WaitlistStatusWaiting},
	WaitlistStatusExpired:  {WaitlistStatusNotified, WaitlistStatusWaiting},
}

func ParseWaitlistStatus(s string) (WaitlistStatus, error) {
	status := WaitlistStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case WaitlistStatusWaiting, WaitlistStatusNotified, WaitlistStatusClaimed, WaitlistStatusExpired:
		return status, nil
	}
	return "", ValidationError("invalid waitlist status %q", s)
}

type ContactInfo struct {
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	Organization string `json:"organization,omitempty"`
	Message      string `json:"message,omitempty"`
	NotifyEmail  *bool  `json:"notifyEmail,omitempty"`
	NotifySMS    bool   `json:"notifySms,omitempty"`
}

func (c ContactInfo) Validate() error {
	if strings.TrimSpace(c.FullName) == "" || strings.TrimSpace(c.Email) == "" {
		return ValidationError("fullName and email are required")
	}
	return nil
}

type WaitlistEntry struct {
	ID                 string         `db:"id" json:"id"`
	CauseID            string         `db:"cause_id" json:"causeId"`
	UserID             string         `db:"user_id" json:"userId"`
	FullName           string         `db:"full_name" json:"fullName"`
	Email              string         `db:"email" json:"email"`
	Phone              string         `db:"phone" json:"phone,omitempty"`
	Organization       string         `db:"organization" json:"organization,omitempty"`
	Message            string         `db:"message" json:"message,omitempty"`
	NotifyEmail        bool           `db:"notify_email" json:"notifyEmail"`
	NotifySMS          bool           `db:"notify_sms" json:"notifySms"`
	Position           int            `db:"position" json:"position"`
	Status             WaitlistStatus `db:"status" json:"status"`
	MagicLinkToken     *string        `db:"magic_link_token" json:"-"`
	MagicLinkSentAt    *time.Time     `db:"magic_link_sent_at" json:"magicLinkSentAt,omitempty"`
	MagicLinkExpiresAt *time.Time     `db:"magic_link_expires_at" json:"magicLinkExpiresAt,omitempty"`
	ClaimID            *string        `db:"claim_id" json:"claimId,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updatedAt"`
}

// NewWaitlistEntry builds a waiting entry. Position is assigned by the store
// when the entry is inserted.
func NewWaitlistEntry(id, causeID, userID string, info ContactInfo, now time.Time) *WaitlistEntry {
	notifyEmail := true
	if info.NotifyEmail != nil {
		notifyEmail = *info.NotifyEmail
	}
	return &WaitlistEntry{
		ID:           id,
		CauseID:      causeID,
		UserID:       userID,
		FullName:     info.FullName,
		Email:        info.Email,
		Phone:        info.Phone,
		Organization: info.Organization,
		Message:      info.Message,
		NotifyEmail:  notifyEmail,
		NotifySMS:    info.NotifySMS,
		Status:       WaitlistStatusWaiting,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Promote issues a fresh magic link. Any earlier token stops working.
func (w *WaitlistEntry) Promote(token string, now time.Time) error {
	if err := WaitlistTransitions.Check("waitlist entry", w.Status, WaitlistStatusNotified); err != nil {
		return err
	}
	expires := now.Add(MagicLinkTTL)
	w.MagicLinkToken = &token
	w.MagicLinkSentAt = &now
	w.MagicLinkExpiresAt = &expires
	w.Status = WaitlistStatusNotified
	w.UpdatedAt = now
	return nil
}

func (w *WaitlistEntry) LinkExpired(now time.Time) bool {
	return w.MagicLinkExpiresAt == nil || !now.Before(*w.MagicLinkExpiresAt)
}

// CheckToken validates token against the entry. An expired link yields a
// StateError and the caller is expected to persist Expire.
func (w *WaitlistEntry) CheckToken(token string, now time.Time) error {
	if w.MagicLinkToken == nil || token == "" ||
		subtle.ConstantTimeCompare([]byte(*w.MagicLinkToken), []byte(token)) != 1 {
		return UnauthorizedError("invalid magic link")
	}
	if w.Status != WaitlistStatusNotified {
		return StateError("magic link is no longer valid (status %s)", w.Status)
	}
	if w.LinkExpired(now) {
		return StateError("magic link has expired")
	}
	return nil
}

// SetStatus applies an admin override. Moving to expired or back to waiting
// clears the link; notified and claimed have their own entry points.
func (w *WaitlistEntry) SetStatus(to WaitlistStatus, now time.Time) error {
	if to == WaitlistStatusNotified || to == WaitlistStatusClaimed {
		return ValidationError("status %s cannot be set directly", to)
	}
	if err := WaitlistTransitions.Check("waitlist entry", w.Status, to); err != nil {
		return err
	}
	w.Status = to
	w.clearLink()
	w.UpdatedAt = now
	return nil
}

func (w *WaitlistEntry) Expire(now time.Time) {
	w.Status = WaitlistStatusExpired
	w.clearLink()
	w.UpdatedAt = now
}

func (w *WaitlistEntry) Redeem(claimID string, now time.Time) error {
	if err := WaitlistTransitions.Check("waitlist entry", w.Status, WaitlistStatusClaimed); err != nil {
		return err
	}
	w.Status = WaitlistStatusClaimed
	w.ClaimID = &claimID
	w.MagicLinkToken = nil
	w.UpdatedAt = now
	return nil
}

func (w *WaitlistEntry) clearLink() {
	w.MagicLinkToken = nil
	w.MagicLinkSentAt = nil
	w.MagicLinkExpiresAt = nil
}

// MagicLinkDetails is the public summary shown before a claimer redeems.
type MagicLinkDetails struct {
	EntryID    string    `json:"entryId"`
	CauseID    string    `json:"causeId"`
	CauseTitle string    `json:"causeTitle"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	Position   int       `json:"position"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type WaitlistFilter struct {
	CauseID string
	UserID  string
	Status  WaitlistStatus
}

func (f WaitlistFilter) Match(w *WaitlistEntry) bool {
	if f.CauseID != "" && w.CauseID != f.CauseID {
		return false
	}
	if f.UserID != "" && w.UserID != f.UserID {
		return false
	}
	if f.Status != "" && w.Status != f.Status {
		return false
	}
	return true
}
