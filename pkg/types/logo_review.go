package types

import (
	"strings"
	"time"
)

type LogoReviewStatus string

const (
	LogoReviewPending          LogoReviewStatus = "PENDING"
	LogoReviewApproved         LogoReviewStatus = "APPROVED"
	LogoReviewChangesRequested LogoReviewStatus = "CHANGES_REQUESTED"
	LogoReviewRejected         LogoReviewStatus = "REJECTED"
)

var LogoReviewTransitions = Transitions[LogoReviewStatus]{
	LogoReviewPending:          {LogoReviewApproved, LogoReviewChangesRequested, LogoReviewRejected},
	LogoReviewChangesRequested: {LogoReviewPending, LogoReviewApproved, LogoReviewRejected},
}

func (s LogoReviewStatus) Valid() bool {
	switch s {
	case LogoReviewPending, LogoReviewApproved, LogoReviewChangesRequested, LogoReviewRejected:
		return true
	}
	return false
}

// Default tote preview placement, in percent of the mockup.
const (
	DefaultLogoSize      = 20
	DefaultLogoPositionX = 50
	DefaultLogoPositionY = 75
)

type LogoCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

type LogoComment struct {
	By         string    `json:"by"`
	Text       string    `json:"text"`
	Screenshot string    `json:"screenshot,omitempty"`
	At         time.Time `json:"at"`
}

type LogoPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type TotePreview struct {
	LogoSize        float64      `json:"logoSize"`
	LogoPosition    LogoPosition `json:"logoPosition"`
	PreviewImageURL string       `json:"previewImageUrl,omitempty"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// TotePreviewInput carries pointers so that a missing size or coordinate
// can be told apart from zero.
type TotePreviewInput struct {
	LogoSize        *float64           `json:"logoSize"`
	LogoPosition    *LogoPositionInput `json:"logoPosition"`
	PreviewImageURL string             `json:"previewImageUrl"`
}

type LogoPositionInput struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func (in TotePreviewInput) Validate() error {
	if in.LogoSize == nil || in.LogoPosition == nil || in.LogoPosition.X == nil || in.LogoPosition.Y == nil {
		return ValidationError("logoSize and logoPosition (x, y) are required")
	}
	if *in.LogoSize <= 0 {
		return ValidationError("logoSize must be greater than zero")
	}
	return nil
}

type LogoReview struct {
	ID            string           `db:"id" json:"id"`
	CampaignID    string           `db:"campaign_id" json:"campaignId"`
	SponsorID     string           `db:"sponsor_id" json:"sponsorId"`
	SponsorUserID *string          `db:"sponsor_user_id" json:"sponsorUserId,omitempty"`
	OriginalURL   string           `db:"original_url" json:"originalUrl"`
	CorrectedURL  *string          `db:"corrected_url" json:"correctedUrl,omitempty"`
	Status        LogoReviewStatus `db:"status" json:"status"`
	Checks        []LogoCheck      `db:"checks" json:"checks"`
	Comments      []LogoComment    `db:"comments" json:"comments"`
	Palette       []string         `db:"palette" json:"palette"`
	TotePreview   TotePreview      `db:"tote_preview" json:"totePreview"`
	CreatedAt     time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updatedAt"`
}

func NewLogoReview(id, campaignID, sponsorID, originalURL string, sponsorUserID *string, now time.Time) (*LogoReview, error) {
	if campaignID == "" || sponsorID == "" || strings.TrimSpace(originalURL) == "" {
		return nil, ValidationError("campaignId, sponsorId and originalUrl are required")
	}
	return &LogoReview{
		ID:            id,
		CampaignID:    campaignID,
		SponsorID:     sponsorID,
		SponsorUserID: sponsorUserID,
		OriginalURL:   originalURL,
		Status:        LogoReviewPending,
		Checks:        []LogoCheck{},
		Comments:      []LogoComment{},
		Palette:       []string{},
		TotePreview: TotePreview{
			LogoSize:        DefaultLogoSize,
			LogoPosition:    LogoPosition{X: DefaultLogoPositionX, Y: DefaultLogoPositionY},
			PreviewImageURL: originalURL,
			UpdatedAt:       now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CurrentURL is the artwork the review is judging right now.
func (r *LogoReview) CurrentURL() string {
	if r.CorrectedURL != nil && *r.CorrectedURL != "" {
		return *r.CorrectedURL
	}
	return r.OriginalURL
}

func (r *LogoReview) AddComment(by, text, screenshot string, now time.Time) error {
	if strings.TrimSpace(text) == "" {
		return ValidationError("comment text is required")
	}
	r.Comments = append(r.Comments, LogoComment{By: by, Text: text, Screenshot: screenshot, At: now})
	r.UpdatedAt = now
	return nil
}

// SetStatus moves the review and attaches comment when given. Asking for
// changes or rejecting requires a justification.
func (r *LogoReview) SetStatus(to LogoReviewStatus, by, comment string, now time.Time) error {
	if !to.Valid() {
		return ValidationError("invalid logo review status %q", to)
	}
	if (to == LogoReviewChangesRequested || to == LogoReviewRejected) && strings.TrimSpace(comment) == "" {
		return ValidationError("a comment is required when requesting changes or rejecting")
	}
	if err := LogoReviewTransitions.Check("logo review", r.Status, to); err != nil {
		return err
	}
	r.Status = to
	r.UpdatedAt = now
	if strings.TrimSpace(comment) != "" {
		r.Comments = append(r.Comments, LogoComment{By: by, Text: comment, At: now})
	}
	return nil
}

// Resubmit records corrected artwork. A review waiting on changes goes back
// to PENDING; it still needs an admin to approve it.
func (r *LogoReview) Resubmit(correctedURL string, now time.Time) error {
	if strings.TrimSpace(correctedURL) == "" {
		return ValidationError("correctedUrl is required")
	}
	if r.Status == LogoReviewApproved || r.Status == LogoReviewRejected {
		return StateError("logo review is already %s", r.Status)
	}
	r.CorrectedURL = &correctedURL
	if r.Status == LogoReviewChangesRequested {
		r.Status = LogoReviewPending
	}
	r.UpdatedAt = now
	return nil
}

// ReplaceChecks swaps in a fresh set of automated results. Status is untouched.
func (r *LogoReview) ReplaceChecks(checks []LogoCheck, now time.Time) {
	if checks == nil {
		checks = []LogoCheck{}
	}
	r.Checks = checks
	r.UpdatedAt = now
}

func (r *LogoReview) SetPalette(palette []string, now time.Time) {
	if palette == nil {
		palette = []string{}
	}
	r.Palette = palette
	r.UpdatedAt = now
}

func (r *LogoReview) UpdateTotePreview(in TotePreviewInput, now time.Time) error {
	if err := in.Validate(); err != nil {
		return err
	}
	preview := TotePreview{
		LogoSize:        *in.LogoSize,
		LogoPosition:    LogoPosition{X: *in.LogoPosition.X, Y: *in.LogoPosition.Y},
		PreviewImageURL: in.PreviewImageURL,
		UpdatedAt:       now,
	}
	if preview.PreviewImageURL == "" {
		preview.PreviewImageURL = r.TotePreview.PreviewImageURL
	}
	r.TotePreview = preview
	r.UpdatedAt = now
	return nil
}

func (r *LogoReview) ChecksPassed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return len(r.Checks) > 0
}

type LogoReviewFilter struct {
	Status     LogoReviewStatus
	CampaignID string
	Page       int
	Limit      int
}

func (f *LogoReviewFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = DefaultPageLimit
	}
}
