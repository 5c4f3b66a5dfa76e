package service

import (
	"context"
	"strings"

	"causeconnect/internal/utils"
	"causeconnect/pkg/types"

	"github.com/sirupsen/logrus"
)

type Claims struct {
	Common
	claims ClaimStore
	mail   Notifier
}

func NewClaims(c Common, claims ClaimStore, mail Notifier) *Claims {
	return &Claims{Common: c, claims: claims, mail: mail}
}

// Create claims a sponsored cause for claimant. The cause is stamped with
// its claimant in the same transaction that inserts the claim.
func (s *Claims) Create(ctx context.Context, causeID string, claimant *types.User, info types.ShippingInfo) (*types.Claim, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}

	claim, err := s.claims.CreateClaimForCause(ctx, causeID, func(c *types.Cause) (*types.Claim, error) {
		now := s.now()
		if err := c.MarkClaimed(claimant.ID, now); err != nil {
			return nil, err
		}
		return types.NewClaim(utils.NanoID(), c, claimant.ID, info, now), nil
	})
	if err != nil {
		return nil, err
	}

	s.transition("claim", string(claim.Status))
	s.Logger.WithFields(logrus.Fields{
		"claim_id": claim.ID,
		"cause_id": causeID,
		"user_id":  claimant.ID,
	}).Info("claim created")

	s.confirm(ctx, claim)

	return claim, nil
}

func (s *Claims) confirm(ctx context.Context, claim *types.Claim) {
	if err := s.mail.SendClaimConfirmation(ctx, claim); err != nil {
		s.Logger.WithError(err).WithField("claim_id", claim.ID).Warn("failed to send claim confirmation")
	}
}

func (s *Claims) Get(ctx context.Context, claimID string, viewer *types.User) (*types.Claim, error) {
	claim, err := s.claims.Claim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if err := requireSelfOrAdmin(viewer, claim.UserID); err != nil {
		return nil, err
	}
	return claim, nil
}

func (s *Claims) List(ctx context.Context, filter types.ClaimFilter) ([]*types.Claim, types.Pagination, error) {
	filter.Normalize()
	filter.Query = strings.TrimSpace(filter.Query)

	claims, total, err := s.claims.Claims(ctx, filter)
	if err != nil {
		return nil, types.Pagination{}, err
	}

	return claims, types.NewPagination(filter.Page, filter.Limit, total), nil
}

func (s *Claims) ForUser(ctx context.Context, userID string, viewer *types.User) ([]*types.Claim, error) {
	if err := requireSelfOrAdmin(viewer, userID); err != nil {
		return nil, err
	}
	return s.claims.ClaimsByUser(ctx, userID)
}

// Mine lists claims of the viewer, or every claim for an admin.
func (s *Claims) Mine(ctx context.Context, viewer *types.User) ([]*types.Claim, error) {
	if isAdmin(viewer) {
		claims, _, err := s.claims.Claims(ctx, types.ClaimFilter{Page: 1, Limit: 100})
		return claims, err
	}
	return s.claims.ClaimsByUser(ctx, viewer.ID)
}

// UpdateStatus moves a claim along its fulfilment flow. Rejecting a claim
// hands the cause back so another claimant or the waitlist can take it.
// Moving into shipped notifies the claimant once the change is stored.
func (s *Claims) UpdateStatus(ctx context.Context, claimID string, update types.ClaimStatusUpdate) (*types.Claim, error) {
	var released bool
	claim, err := s.claims.MutateClaimWithCause(ctx, claimID, func(c *types.Claim, cause *types.Cause) error {
		now := s.now()
		if err := c.Transition(update, now); err != nil {
			return err
		}
		if c.Status == types.ClaimStatusRejected {
			released = cause.ReleaseClaim(c.UserID, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if released {
		s.Logger.WithFields(logrus.Fields{
			"claim_id": claim.ID,
			"cause_id": claim.CauseID,
		}).Info("cause released after claim rejection")
	}

	s.transition("claim", string(claim.Status))
	s.Logger.WithFields(logrus.Fields{
		"claim_id": claim.ID,
		"status":   claim.Status,
	}).Info("claim status updated")

	if claim.Status == types.ClaimStatusShipped {
		if err := s.mail.SendShipment(ctx, claim); err != nil {
			s.Logger.WithError(err).WithField("claim_id", claim.ID).Warn("failed to send shipment email")
		}
	}

	return claim, nil
}

func (s *Claims) Verify(ctx context.Context, claimID string, actor *types.User) (*types.Claim, error) {
	return s.UpdateStatus(ctx, claimID, types.ClaimStatusUpdate{
		Status: types.ClaimStatusVerified,
		Note:   "Verified by " + actor.DisplayName(),
	})
}

func (s *Claims) AddNote(ctx context.Context, claimID string, actor *types.User, text string) (*types.Claim, error) {
	return s.claims.MutateClaim(ctx, claimID, func(c *types.Claim) error {
		return c.AddNote(actor.DisplayName(), text, s.now())
	})
}

// SubmitProof stores the claimant's proof of impact, replacing any earlier one.
func (s *Claims) SubmitProof(ctx context.Context, claimID string, viewer *types.User, images []string, description string) (*types.Claim, error) {
	return s.claims.MutateClaim(ctx, claimID, func(c *types.Claim) error {
		if viewer == nil || c.UserID != viewer.ID {
			return types.ForbiddenError("only the claimant can submit proof of impact")
		}
		return c.SubmitProof(images, description, s.now())
	})
}

