package service

import (
	"context"
	"errors"

	"causeconnect/internal/utils"
	"causeconnect/pkg/types"

	"github.com/sirupsen/logrus"
)

// LogoReviews runs the brand review of sponsor artwork. The review is the
// source of truth; its status and tote preview are projected onto the
// sponsor entry inside the cause on a best effort basis.
type LogoReviews struct {
	Common
	reviews  LogoReviewStore
	causes   CauseStore
	analyzer LogoAnalyzer
}

func NewLogoReviews(c Common, reviews LogoReviewStore, causes CauseStore, analyzer LogoAnalyzer) *LogoReviews {
	return &LogoReviews{Common: c, reviews: reviews, causes: causes, analyzer: analyzer}
}

// ReviewResult reports whether the sponsor projection was updated along
// with the review.
type ReviewResult struct {
	Review        *types.LogoReview `json:"review"`
	SponsorSynced bool              `json:"sponsorSynced"`
}

// Create opens a review for a sponsor's logo and runs the automated checks.
func (s *LogoReviews) Create(ctx context.Context, campaignID, sponsorID, originalURL string, sponsorUserID *string) (*types.LogoReview, error) {
	cause, err := s.causes.Cause(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if _, err := cause.Sponsor(sponsorID); err != nil {
		return nil, err
	}

	review, err := types.NewLogoReview(utils.NanoID(), campaignID, sponsorID, originalURL, sponsorUserID, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.reviews.CreateLogoReview(ctx, review); err != nil {
		return nil, err
	}
	s.transition("logo_review", string(review.Status))

	if s.analyzer != nil {
		if updated, err := s.RunChecks(ctx, review.ID); err != nil {
			s.Logger.WithError(err).WithField("review_id", review.ID).Warn("initial logo checks failed")
		} else {
			review = updated
		}
	}

	_ = s.project(ctx, review)

	return review, nil
}

// CreateFor opens a review on behalf of viewer, who must own the sponsor
// entry or be an admin.
func (s *LogoReviews) CreateFor(ctx context.Context, viewer *types.User, campaignID, sponsorID, originalURL string) (*types.LogoReview, error) {
	cause, err := s.causes.Cause(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	sponsor, err := cause.Sponsor(sponsorID)
	if err != nil {
		return nil, err
	}
	if !isAdmin(viewer) && (sponsor.UserID == nil || *sponsor.UserID != viewer.ID) {
		return nil, types.ErrInsufficientRole
	}

	if _, err := s.reviews.LogoReviewBySponsor(ctx, campaignID, sponsorID); err == nil {
		return nil, types.ConflictError("a logo review already exists for this sponsorship")
	} else if !errors.Is(err, types.ErrLogoReviewNotFound) {
		return nil, err
	}

	return s.Create(ctx, campaignID, sponsorID, originalURL, sponsor.UserID)
}

func canSeeReview(r *types.LogoReview, viewer *types.User) bool {
	if isAdmin(viewer) {
		return true
	}
	return viewer != nil && r.SponsorUserID != nil && *r.SponsorUserID == viewer.ID
}

func (s *LogoReviews) Get(ctx context.Context, reviewID string, viewer *types.User) (*types.LogoReview, error) {
	review, err := s.reviews.LogoReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if !canSeeReview(review, viewer) {
		return nil, types.ErrInsufficientRole
	}
	return review, nil
}

func (s *LogoReviews) BySponsor(ctx context.Context, campaignID, sponsorID string, viewer *types.User) (*types.LogoReview, error) {
	review, err := s.reviews.LogoReviewBySponsor(ctx, campaignID, sponsorID)
	if err != nil {
		return nil, err
	}
	if !canSeeReview(review, viewer) {
		return nil, types.ErrInsufficientRole
	}
	return review, nil
}

func (s *LogoReviews) List(ctx context.Context, filter types.LogoReviewFilter) ([]*types.LogoReview, types.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, types.Pagination{}, types.ValidationError("invalid logo review status %q", filter.Status)
	}
	filter.Normalize()

	reviews, total, err := s.reviews.LogoReviews(ctx, filter)
	if err != nil {
		return nil, types.Pagination{}, err
	}

	return reviews, types.NewPagination(filter.Page, filter.Limit, total), nil
}

func (s *LogoReviews) AddComment(ctx context.Context, reviewID string, viewer *types.User, text, screenshot string) (*types.LogoReview, error) {
	return s.reviews.MutateLogoReview(ctx, reviewID, func(r *types.LogoReview) error {
		if !canSeeReview(r, viewer) {
			return types.ErrInsufficientRole
		}
		return r.AddComment(viewer.DisplayName(), text, screenshot, s.now())
	})
}

func (s *LogoReviews) SetStatus(ctx context.Context, reviewID string, actor *types.User, status types.LogoReviewStatus, comment string) (*ReviewResult, error) {
	review, err := s.reviews.MutateLogoReview(ctx, reviewID, func(r *types.LogoReview) error {
		return r.SetStatus(status, actor.DisplayName(), comment, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.transition("logo_review", string(review.Status))

	return &ReviewResult{Review: review, SponsorSynced: s.project(ctx, review) == nil}, nil
}

type BatchFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchSetStatus applies one decision to many reviews. Each review is its
// own unit; failures are collected rather than aborting the batch.
func (s *LogoReviews) BatchSetStatus(ctx context.Context, reviewIDs []string, actor *types.User, status types.LogoReviewStatus, comment string) ([]*types.LogoReview, []BatchFailure) {
	updated := make([]*types.LogoReview, 0, len(reviewIDs))
	failed := make([]BatchFailure, 0)
	for _, id := range reviewIDs {
		res, err := s.SetStatus(ctx, id, actor, status, comment)
		if err != nil {
			failed = append(failed, BatchFailure{ID: id, Error: err.Error()})
			continue
		}
		updated = append(updated, res.Review)
	}
	return updated, failed
}

// RunChecks analyses the current artwork and replaces the check results
// and palette. Status is left alone. The image is fetched before the
// review is locked.
func (s *LogoReviews) RunChecks(ctx context.Context, reviewID string) (*types.LogoReview, error) {
	if s.analyzer == nil {
		return nil, types.UpstreamError(nil, "logo analysis is not configured")
	}

	review, err := s.reviews.LogoReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	url := review.CurrentURL()
	result, err := s.analyzer.Analyze(ctx, url)
	if err != nil {
		s.Metrics.Error("logocheck")
		return nil, err
	}

	return s.reviews.MutateLogoReview(ctx, reviewID, func(r *types.LogoReview) error {
		if r.CurrentURL() != url {
			return types.ConflictError("logo changed while it was being checked, run the checks again")
		}
		now := s.now()
		r.ReplaceChecks(result.Checks, now)
		r.SetPalette(result.Palette, now)
		return nil
	})
}

func (s *LogoReviews) SetChecks(ctx context.Context, reviewID string, checks []types.LogoCheck) (*types.LogoReview, error) {
	for _, c := range checks {
		if c.Name == "" {
			return nil, types.ValidationError("every check needs a name")
		}
	}
	return s.reviews.MutateLogoReview(ctx, reviewID, func(r *types.LogoReview) error {
		r.ReplaceChecks(checks, s.now())
		return nil
	})
}

// Resubmit records corrected artwork and re-runs the checks against it.
func (s *LogoReviews) Resubmit(ctx context.Context, reviewID string, viewer *types.User, correctedURL string) (*ReviewResult, error) {
	review, err := s.reviews.MutateLogoReview(ctx, reviewID, func(r *types.LogoReview) error {
		if !canSeeReview(r, viewer) {
			return types.ErrInsufficientRole
		}
		return r.Resubmit(correctedURL, s.now())
	})
	if err != nil {
		return nil, err
	}

	if s.analyzer != nil {
		if checked, err := s.RunChecks(ctx, reviewID); err != nil {
			s.Logger.WithError(err).WithField("review_id", reviewID).Warn("logo checks after resubmission failed")
		} else {
			review = checked
		}
	}

	return &ReviewResult{Review: review, SponsorSynced: s.project(ctx, review) == nil}, nil
}

func (s *LogoReviews) SetPalette(ctx context.Context, reviewID string, palette []string) (*types.LogoReview, error) {
	if palette == nil {
		return nil, types.ValidationError("palette is required")
	}
	return s.reviews.MutateLogoReview(ctx, reviewID, func(r *types.LogoReview) error {
		r.SetPalette(palette, s.now())
		return nil
	})
}

// UpdateTotePreview stores the preview on the review, then copies it onto
// the sponsor entry. A failed copy leaves the review updated.
func (s *LogoReviews) UpdateTotePreview(ctx context.Context, reviewID string, viewer *types.User, in types.TotePreviewInput) (*ReviewResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	review, err := s.reviews.MutateLogoReview(ctx, reviewID, func(r *types.LogoReview) error {
		if !canSeeReview(r, viewer) {
			return types.ErrInsufficientRole
		}
		return r.UpdateTotePreview(in, s.now())
	})
	if err != nil {
		return nil, err
	}

	return &ReviewResult{Review: review, SponsorSynced: s.project(ctx, review) == nil}, nil
}

// Reconcile re-projects a review onto its sponsor entry and reports any
// failure to the caller.
func (s *LogoReviews) Reconcile(ctx context.Context, reviewID string) (*types.LogoReview, error) {
	review, err := s.reviews.LogoReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if err := s.project(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

func (s *LogoReviews) project(ctx context.Context, review *types.LogoReview) error {
	_, err := s.causes.MutateCause(ctx, review.CampaignID, func(c *types.Cause) error {
		return c.AttachLogoReview(review.SponsorID, review, s.now())
	})
	if err != nil {
		s.Metrics.Error("logo_projection")
		s.Logger.WithError(err).WithFields(logrus.Fields{
			"review_id":  review.ID,
			"cause_id":   review.CampaignID,
			"sponsor_id": review.SponsorID,
		}).Warn("failed to project logo review onto sponsor")
		return err
	}
	return nil
}

