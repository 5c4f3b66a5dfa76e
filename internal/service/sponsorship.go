package service

import (
	"context"
	"sort"
	"time"

	"causeconnect/internal/utils"
	"causeconnect/pkg/types"

	"github.com/sirupsen/logrus"
)

// Sponsorships manages the sponsor entries embedded in each cause. Every
// change goes through one locked cause mutation so Raised never drifts.
type Sponsorships struct {
	Common
	causes          CauseStore
	reviews         *LogoReviews
	autoApprovePaid bool
}

func NewSponsorships(c Common, causes CauseStore, reviews *LogoReviews, autoApprovePaid bool) *Sponsorships {
	return &Sponsorships{
		Common:          c,
		causes:          causes,
		reviews:         reviews,
		autoApprovePaid: autoApprovePaid,
	}
}

// Request adds a pending sponsorship to an open cause. A supplied logo
// opens a logo review.
func (s *Sponsorships) Request(ctx context.Context, causeID string, in types.SponsorInput) (*types.Cause, *types.Sponsor, error) {
	id := utils.NanoID()
	cause, err := mutateCause(ctx, s.Common, s.causes, causeID, "add_sponsor", func(c *types.Cause, now time.Time) error {
		_, err := c.AddSponsor(id, in, now)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.transition("sponsor", string(types.SponsorStatusPending))

	return s.afterAdd(ctx, cause, id)
}

// RecordPaid adds a sponsorship backed by a captured payment. Whether it
// counts towards Raised immediately depends on the auto-approve policy;
// the logo stays hidden until its review is approved either way.
func (s *Sponsorships) RecordPaid(ctx context.Context, causeID string, in types.SponsorInput, ref types.PaymentRef) (*types.Cause, *types.Sponsor, error) {
	return s.recordPaid(ctx, utils.NanoID(), causeID, in, ref)
}

func (s *Sponsorships) recordPaid(ctx context.Context, id, causeID string, in types.SponsorInput, ref types.PaymentRef) (*types.Cause, *types.Sponsor, error) {
	cause, err := mutateCause(ctx, s.Common, s.causes, causeID, "add_paid_sponsor", func(c *types.Cause, now time.Time) error {
		_, err := c.AddPaidSponsor(id, in, ref, s.autoApprovePaid, now)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	status := types.SponsorStatusPending
	if s.autoApprovePaid {
		status = types.SponsorStatusApproved
	}
	s.transition("sponsor", string(status))

	return s.afterAdd(ctx, cause, id)
}

func (s *Sponsorships) afterAdd(ctx context.Context, cause *types.Cause, sponsorID string) (*types.Cause, *types.Sponsor, error) {
	sponsor, err := cause.Sponsor(sponsorID)
	if err != nil {
		return nil, nil, err
	}

	if sponsor.Logo != "" && s.reviews != nil {
		review, err := s.reviews.Create(ctx, cause.ID, sponsor.ID, sponsor.Logo, sponsor.UserID)
		if err != nil {
			s.Logger.WithError(err).WithFields(logrus.Fields{
				"cause_id":   cause.ID,
				"sponsor_id": sponsor.ID,
			}).Warn("failed to open logo review for sponsorship")
		} else {
			sponsor.LogoReviewID = review.ID
			sponsor.LogoStatus = review.Status
		}
	}

	return cause, sponsor, nil
}

func (s *Sponsorships) Approve(ctx context.Context, causeID, sponsorID string) (*types.Cause, error) {
	cause, err := mutateCause(ctx, s.Common, s.causes, causeID, "approve_sponsor", func(c *types.Cause, now time.Time) error {
		_, err := c.ApproveSponsor(sponsorID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.transition("sponsor", string(types.SponsorStatusApproved))
	return cause, nil
}

func (s *Sponsorships) Reject(ctx context.Context, causeID, sponsorID, reason string) (*types.Cause, error) {
	cause, err := mutateCause(ctx, s.Common, s.causes, causeID, "reject_sponsor", func(c *types.Cause, now time.Time) error {
		_, err := c.RejectSponsor(sponsorID, reason, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.transition("sponsor", string(types.SponsorStatusRejected))
	return cause, nil
}

// Pending flattens every cause's pending sponsor entries into one queue,
// oldest first.
func (s *Sponsorships) Pending(ctx context.Context) ([]types.PendingSponsorship, error) {
	causes, err := s.causes.Causes(ctx, types.CauseFilter{PendingSponsors: true})
	if err != nil {
		return nil, err
	}

	out := make([]types.PendingSponsorship, 0)
	for _, c := range causes {
		out = append(out, c.PendingSponsorships()...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})

	return out, nil
}

// BySponsor lists causes a user has sponsored.
func (s *Sponsorships) BySponsor(ctx context.Context, userID string) ([]*types.Cause, error) {
	causes, err := s.causes.Causes(ctx, types.CauseFilter{SponsorUserID: userID, OnlineOnly: true})
	if err != nil {
		return nil, err
	}

	out := make([]*types.Cause, 0, len(causes))
	for _, c := range causes {
		out = append(out, c.Public())
	}
	return out, nil
}
