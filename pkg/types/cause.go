package types

import (
	"strings"
	"time"
)

type CauseStatus string

const (
	CauseStatusPending   CauseStatus = "pending"
	CauseStatusOpen      CauseStatus = "open"
	CauseStatusSponsored CauseStatus = "sponsored"
	CauseStatusWaitlist  CauseStatus = "waitlist"
	CauseStatusCompleted CauseStatus = "completed"
	CauseStatusRejected  CauseStatus = "rejected"
)

const DefaultCauseRejectionReason = "Rejected by administrator"

var CauseTransitions = Transitions[CauseStatus]{
	CauseStatusPending:   {CauseStatusOpen, CauseStatusRejected, CauseStatusCompleted},
	CauseStatusOpen:      {CauseStatusSponsored, CauseStatusWaitlist, CauseStatusCompleted},
	CauseStatusWaitlist:  {CauseStatusSponsored, CauseStatusCompleted},
	CauseStatusSponsored: {CauseStatusCompleted},
}

func (s CauseStatus) Valid() bool {
	switch s {
	case CauseStatusPending, CauseStatusOpen, CauseStatusSponsored,
		CauseStatusWaitlist, CauseStatusCompleted, CauseStatusRejected:
		return true
	}
	return false
}

type ReviewComment struct {
	By   string    `json:"by"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Cause owns its sponsor entries. Sponsor mutations go through the methods
// below so that Raised and Status are recomputed together with the list.
type Cause struct {
	ID              string          `db:"id" json:"id"`
	Title           string          `db:"title" json:"title"`
	Description     string          `db:"description" json:"description"`
	Story           string          `db:"story" json:"story,omitempty"`
	Impact          string          `db:"impact" json:"impact,omitempty"`
	Timeline        string          `db:"timeline" json:"timeline,omitempty"`
	ImageURL        string          `db:"image_url" json:"imageUrl,omitempty"`
	Category        string          `db:"category" json:"category"`
	Goal            int64           `db:"goal" json:"goal"`
	Raised          int64           `db:"raised" json:"raised"`
	Status          CauseStatus     `db:"status" json:"status"`
	RejectionReason *string         `db:"rejection_reason" json:"rejectionReason,omitempty"`
	IsOnline        bool            `db:"is_online" json:"isOnline"`
	CreatedBy       *string         `db:"created_by" json:"createdBy,omitempty"`
	CreatorName     *string         `db:"creator_name" json:"creatorName,omitempty"`
	CreatorEmail    *string         `db:"creator_email" json:"creatorEmail,omitempty"`
	ClaimedBy       *string         `db:"claimed_by" json:"claimedBy,omitempty"`
	ClaimedAt       *time.Time      `db:"claimed_at" json:"claimedAt,omitempty"`
	ClaimCount      int             `db:"claim_count" json:"claimCount"`
	Sponsors        []Sponsor       `db:"sponsors" json:"sponsors"`
	ReviewComments  []ReviewComment `db:"review_comments" json:"reviewComments,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

type CauseInput struct {
	Title       string
	Description string
	Story       string
	Impact      string
	Timeline    string
	ImageURL    string
	Category    string
	Goal        int64
}

func (in CauseInput) Validate() error {
	var missing []string
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(in.Category) == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return ValidationError("missing required fields: %s", strings.Join(missing, ", "))
	}
	if in.Goal <= 0 {
		return ValidationError("goal must be greater than zero")
	}
	return nil
}

// NewCause builds a pending, offline cause attributed to creator.
func NewCause(id string, in CauseInput, creator *User, now time.Time) *Cause {
	c := &Cause{
		ID:          id,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Story:       in.Story,
		Impact:      in.Impact,
		Timeline:    in.Timeline,
		ImageURL:    in.ImageURL,
		Category:    in.Category,
		Goal:        in.Goal,
		Status:      CauseStatusPending,
		Sponsors:    []Sponsor{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if creator != nil {
		c.CreatedBy = &creator.ID
		name := creator.DisplayName()
		c.CreatorName = &name
		c.CreatorEmail = &creator.Email
	}
	return c
}

// ApplyEdit overwrites descriptive fields and the goal. Sponsors are never
// edited here; a new goal is re-checked against approved funding.
func (c *Cause) ApplyEdit(in CauseInput, now time.Time) error {
	if in.Title != "" {
		c.Title = strings.TrimSpace(in.Title)
	}
	if in.Description != "" {
		c.Description = in.Description
	}
	if in.Story != "" {
		c.Story = in.Story
	}
	if in.Impact != "" {
		c.Impact = in.Impact
	}
	if in.Timeline != "" {
		c.Timeline = in.Timeline
	}
	if in.ImageURL != "" {
		c.ImageURL = in.ImageURL
	}
	if in.Category != "" {
		c.Category = in.Category
	}
	if in.Goal != 0 {
		if in.Goal < 0 {
			return ValidationError("goal must be greater than zero")
		}
		c.Goal = in.Goal
		c.recompute()
	}
	c.UpdatedAt = now
	return nil
}

func (c *Cause) transition(to CauseStatus, now time.Time) error {
	if err := CauseTransitions.Check("cause", c.Status, to); err != nil {
		return err
	}
	c.Status = to
	c.UpdatedAt = now
	return nil
}

func (c *Cause) Approve(now time.Time) error {
	if err := c.transition(CauseStatusOpen, now); err != nil {
		return err
	}
	c.IsOnline = true
	c.RejectionReason = nil
	return nil
}

func (c *Cause) Reject(reason string, now time.Time) error {
	if err := c.transition(CauseStatusRejected, now); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		reason = DefaultCauseRejectionReason
	}
	c.IsOnline = false
	c.RejectionReason = &reason
	return nil
}

func (c *Cause) ToggleOnline(now time.Time) {
	c.IsOnline = !c.IsOnline
	c.UpdatedAt = now
}

// ForceClose moves any live cause to completed.
func (c *Cause) ForceClose(now time.Time) error {
	return c.transition(CauseStatusCompleted, now)
}

func (c *Cause) OpenWaitlist(now time.Time) error {
	return c.transition(CauseStatusWaitlist, now)
}

func (c *Cause) AddComment(by, text string, now time.Time) error {
	if strings.TrimSpace(text) == "" {
		return ValidationError("comment text is required")
	}
	c.ReviewComments = append(c.ReviewComments, ReviewComment{By: by, Text: text, At: now})
	c.UpdatedAt = now
	return nil
}

// AddSponsor appends a pending sponsorship request. Only open causes accept one.
func (c *Cause) AddSponsor(id string, in SponsorInput, now time.Time) (*Sponsor, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if c.Status != CauseStatusOpen {
		return nil, StateError("cause is not accepting sponsorships (status %s)", c.Status)
	}
	return c.appendSponsor(id, in, SponsorStatusPending, now), nil
}

// AddPaidSponsor appends a sponsorship backed by a captured payment. The
// entry is approved immediately when approve is set, otherwise it waits
// for an admin like any other request.
func (c *Cause) AddPaidSponsor(id string, in SponsorInput, ref PaymentRef, approve bool, now time.Time) (*Sponsor, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if c.Status != CauseStatusOpen && c.Status != CauseStatusWaitlist {
		return nil, StateError("cause is not accepting sponsorships (status %s)", c.Status)
	}
	for _, s := range c.Sponsors {
		if ref.OrderID != "" && s.OrderID == ref.OrderID {
			return nil, ConflictError("order %s already recorded a sponsorship", ref.OrderID)
		}
	}
	status := SponsorStatusPending
	if approve {
		status = SponsorStatusApproved
	}
	s := c.appendSponsor(id, in, status, now)
	s.OrderID = ref.OrderID
	s.PaymentID = ref.PaymentID
	c.recompute()
	return s, nil
}

func (c *Cause) appendSponsor(id string, in SponsorInput, status SponsorStatus, now time.Time) *Sponsor {
	c.Sponsors = append(c.Sponsors, Sponsor{
		ID:        id,
		UserID:    in.UserID,
		Name:      in.Name,
		Email:     in.Email,
		Logo:      in.Logo,
		Amount:    in.Amount,
		Quantity:  in.Quantity,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	})
	c.UpdatedAt = now
	return &c.Sponsors[len(c.Sponsors)-1]
}

func (c *Cause) Sponsor(sponsorID string) (*Sponsor, error) {
	for i := range c.Sponsors {
		if c.Sponsors[i].ID == sponsorID {
			return &c.Sponsors[i], nil
		}
	}
	return nil, ErrSponsorNotFound
}

func (c *Cause) ApproveSponsor(sponsorID string, now time.Time) (*Sponsor, error) {
	return c.setSponsorStatus(sponsorID, SponsorStatusApproved, "", now)
}

func (c *Cause) RejectSponsor(sponsorID, reason string, now time.Time) (*Sponsor, error) {
	if strings.TrimSpace(reason) == "" {
		reason = DefaultSponsorRejectionReason
	}
	return c.setSponsorStatus(sponsorID, SponsorStatusRejected, reason, now)
}

func (c *Cause) setSponsorStatus(sponsorID string, to SponsorStatus, reason string, now time.Time) (*Sponsor, error) {
	s, err := c.Sponsor(sponsorID)
	if err != nil {
		return nil, err
	}
	if err := SponsorTransitions.Check("sponsorship", s.Status, to); err != nil {
		return nil, err
	}
	s.Status = to
	s.RejectionReason = reason
	s.UpdatedAt = now
	c.UpdatedAt = now
	c.recompute()
	return s, nil
}

// AttachLogoReview records which review governs a sponsor's logo. Once the
// review is approved its current artwork becomes the sponsor's logo.
func (c *Cause) AttachLogoReview(sponsorID string, review *LogoReview, now time.Time) error {
	s, err := c.Sponsor(sponsorID)
	if err != nil {
		return err
	}
	s.LogoReviewID = review.ID
	s.LogoStatus = review.Status
	preview := review.TotePreview
	s.TotePreview = &preview
	if review.Status == LogoReviewApproved {
		s.Logo = review.CurrentURL()
	}
	s.UpdatedAt = now
	return nil
}

// ApprovedTotal is the sum of approved sponsor amounts.
func (c *Cause) ApprovedTotal() int64 {
	var total int64
	for _, s := range c.Sponsors {
		if s.Status == SponsorStatusApproved {
			total += s.Amount
		}
	}
	return total
}

// recompute re-derives Raised and promotes the cause to sponsored once the
// approved total reaches the goal. It never moves a cause out of sponsored.
func (c *Cause) recompute() {
	c.Raised = c.ApprovedTotal()
	if c.Goal <= 0 || c.Raised < c.Goal {
		return
	}
	if c.Status == CauseStatusOpen || c.Status == CauseStatusWaitlist {
		c.Status = CauseStatusSponsored
	}
}

func (c *Cause) Claimable() bool {
	return c.Status == CauseStatusSponsored && c.ClaimedBy == nil
}

// CheckClaimable decides whether userID may take this cause's totes.
func (c *Cause) CheckClaimable(userID string) error {
	if c.Status != CauseStatusSponsored {
		return StateError("cause is not available for claiming (status %s)", c.Status)
	}
	if c.ClaimedBy != nil {
		if *c.ClaimedBy == userID {
			return ConflictError("you have already claimed this cause")
		}
		return StateError("cause has already been claimed")
	}
	return nil
}

func (c *Cause) MarkClaimed(userID string, now time.Time) error {
	if err := c.CheckClaimable(userID); err != nil {
		return err
	}
	c.ClaimedBy = &userID
	c.ClaimedAt = &now
	c.ClaimCount++
	c.UpdatedAt = now
	return nil
}

// ReleaseClaim frees the cause for another claimant after userID's claim
// was rejected. It reports whether userID held the cause.
func (c *Cause) ReleaseClaim(userID string, now time.Time) bool {
	if c.ClaimedBy == nil || *c.ClaimedBy != userID {
		return false
	}
	c.ClaimedBy = nil
	c.ClaimedAt = nil
	if c.ClaimCount > 0 {
		c.ClaimCount--
	}
	c.UpdatedAt = now
	return true
}

func (c *Cause) HasSponsorUser(userID string) bool {
	for _, s := range c.Sponsors {
		if s.UserID != nil && *s.UserID == userID {
			return true
		}
	}
	return false
}

// PendingSponsorships lists this cause's sponsor entries awaiting review.
func (c *Cause) PendingSponsorships() []PendingSponsorship {
	var out []PendingSponsorship
	for _, s := range c.Sponsors {
		if s.Status != SponsorStatusPending {
			continue
		}
		out = append(out, PendingSponsorship{
			ID:        s.ID,
			Sponsor:   s.Name,
			SponsorID: s.ID,
			Cause:     c.Title,
			CauseID:   c.ID,
			Amount:    s.Amount,
			Logo:      s.Logo,
			Date:      s.CreatedAt,
			Status:    s.Status,
		})
	}
	return out
}

// Public is the view shown to non-admins: creator contact details are
// dropped, rejected sponsors are hidden and logos appear only once their
// review is approved.
func (c *Cause) Public() *Cause {
	out := *c
	out.CreatorEmail = nil
	out.ReviewComments = nil
	out.Sponsors = make([]Sponsor, 0, len(c.Sponsors))
	for _, s := range c.Sponsors {
		if s.Status == SponsorStatusRejected {
			continue
		}
		s.Email = ""
		s.OrderID = ""
		s.PaymentID = ""
		if s.LogoStatus != LogoReviewApproved {
			s.Logo = ""
			s.TotePreview = nil
		}
		out.Sponsors = append(out.Sponsors, s)
	}
	return &out
}

// CauseFilter narrows cause listings. Zero values match everything.
type CauseFilter struct {
	Status          CauseStatus
	OnlineOnly      bool
	CreatedBy       string
	SponsorUserID   string
	ClaimedBy       string
	PendingSponsors bool
}

func (f CauseFilter) Match(c *Cause) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.OnlineOnly && !c.IsOnline {
		return false
	}
	if f.CreatedBy != "" && (c.CreatedBy == nil || *c.CreatedBy != f.CreatedBy) {
		return false
	}
	if f.SponsorUserID != "" && !c.HasSponsorUser(f.SponsorUserID) {
		return false
	}
	if f.ClaimedBy != "" && (c.ClaimedBy == nil || *c.ClaimedBy != f.ClaimedBy) {
		return false
	}
	if f.PendingSponsors && len(c.PendingSponsorships()) == 0 {
		return false
	}
	return true
}
