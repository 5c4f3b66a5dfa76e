package service

import (
	"context"

	"causeconnect/pkg/types"
)

type ClaimerStats struct {
	ActiveCauses int   `json:"activeCauses"`
	TotalRaised  int64 `json:"totalRaised"`
	TotesClaimed int   `json:"totesClaimed"`
}

// Claimers backs the claimer dashboard: the causes a user created and the
// totals derived from them.
type Claimers struct {
	Common
	causes CauseStore
	claims ClaimStore
}

func NewClaimers(c Common, causes CauseStore, claims ClaimStore) *Claimers {
	return &Claimers{Common: c, causes: causes, claims: claims}
}

func (s *Claimers) Causes(ctx context.Context, userID string, viewer *types.User) ([]*types.Cause, error) {
	if err := requireSelfOrAdmin(viewer, userID); err != nil {
		return nil, err
	}
	return s.causes.Causes(ctx, types.CauseFilter{CreatedBy: userID})
}

func (s *Claimers) Stats(ctx context.Context, userID string, viewer *types.User) (*ClaimerStats, error) {
	if err := requireSelfOrAdmin(viewer, userID); err != nil {
		return nil, err
	}

	causes, err := s.causes.Causes(ctx, types.CauseFilter{CreatedBy: userID})
	if err != nil {
		return nil, err
	}

	claims, err := s.claims.ClaimsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &ClaimerStats{TotesClaimed: len(claims)}
	for _, c := range causes {
		if c.IsOnline {
			stats.ActiveCauses++
		}
		stats.TotalRaised += c.Raised
	}

	return stats, nil
}
