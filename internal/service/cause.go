package service

import (
	"context"
	"time"

	"causeconnect/internal/utils"
	"causeconnect/pkg/types"

	"github.com/sirupsen/logrus"
)

type Causes struct {
	Common
	causes CauseStore
}

func NewCauses(c Common, causes CauseStore) *Causes {
	return &Causes{Common: c, causes: causes}
}

// Submit records a new cause awaiting review. Causes created by an admin
// skip the queue and go live straight away.
func (s *Causes) Submit(ctx context.Context, in types.CauseInput, submitter *types.User) (*types.Cause, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	cause := types.NewCause(utils.NanoID(), in, submitter, now)
	if isAdmin(submitter) {
		if err := cause.Approve(now); err != nil {
			return nil, err
		}
	}

	if err := s.causes.CreateCause(ctx, cause); err != nil {
		return nil, err
	}

	s.transition("cause", string(cause.Status))
	s.Logger.WithFields(logrus.Fields{
		"cause_id": cause.ID,
		"status":   cause.Status,
	}).Info("cause submitted")

	return cause, nil
}

// visible decides what viewer may see of c. Admins and the creator see
// everything; everyone else sees the public view of online causes.
func visible(c *types.Cause, viewer *types.User) (*types.Cause, bool) {
	if canSeeAll(c, viewer) {
		return c, true
	}
	if !c.IsOnline {
		return nil, false
	}
	return c.Public(), true
}

func canSeeAll(c *types.Cause, viewer *types.User) bool {
	if isAdmin(viewer) {
		return true
	}
	return viewer != nil && c.CreatedBy != nil && *c.CreatedBy == viewer.ID
}

// CauseView is the copy of c that viewer may be handed back after acting
// on it.
func CauseView(c *types.Cause, viewer *types.User) *types.Cause {
	if canSeeAll(c, viewer) {
		return c
	}
	return c.Public()
}

func (s *Causes) Get(ctx context.Context, causeID string, viewer *types.User) (*types.Cause, error) {
	cause, err := s.causes.Cause(ctx, causeID)
	if err != nil {
		return nil, err
	}

	out, ok := visible(cause, viewer)
	if !ok {
		return nil, types.ErrCauseNotFound
	}

	return out, nil
}

// List returns causes matching filter as viewer may see them. Non-admins
// only ever get online causes.
func (s *Causes) List(ctx context.Context, filter types.CauseFilter, viewer *types.User) ([]*types.Cause, error) {
	if !isAdmin(viewer) {
		filter.OnlineOnly = true
	}

	causes, err := s.causes.Causes(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]*types.Cause, 0, len(causes))
	for _, c := range causes {
		if v, ok := visible(c, viewer); ok {
			out = append(out, v)
		}
	}

	return out, nil
}

// ByCreator lists every cause a user submitted, online or not.
func (s *Causes) ByCreator(ctx context.Context, userID string, viewer *types.User) ([]*types.Cause, error) {
	if err := requireSelfOrAdmin(viewer, userID); err != nil {
		return nil, err
	}
	return s.causes.Causes(ctx, types.CauseFilter{CreatedBy: userID})
}

// mutateCause applies fn to the locked cause and records any status change.
func mutateCause(ctx context.Context, c Common, causes CauseStore, causeID, action string, fn func(*types.Cause, time.Time) error) (*types.Cause, error) {
	var from types.CauseStatus
	cause, err := causes.MutateCause(ctx, causeID, func(cause *types.Cause) error {
		from = cause.Status
		return fn(cause, c.now())
	})
	if err != nil {
		return nil, err
	}

	if cause.Status != from {
		c.transition("cause", string(cause.Status))
	}

	c.Logger.WithFields(logrus.Fields{
		"cause_id": cause.ID,
		"action":   action,
		"status":   cause.Status,
		"raised":   cause.Raised,
	}).Info("cause updated")

	return cause, nil
}

func (s *Causes) Update(ctx context.Context, causeID string, in types.CauseInput) (*types.Cause, error) {
	return mutateCause(ctx, s.Common, s.causes, causeID, "update", func(c *types.Cause, now time.Time) error {
		return c.ApplyEdit(in, now)
	})
}

func (s *Causes) Approve(ctx context.Context, causeID string) (*types.Cause, error) {
	return mutateCause(ctx, s.Common, s.causes, causeID, "approve", func(c *types.Cause, now time.Time) error {
		return c.Approve(now)
	})
}

func (s *Causes) Reject(ctx context.Context, causeID, reason string) (*types.Cause, error) {
	return mutateCause(ctx, s.Common, s.causes, causeID, "reject", func(c *types.Cause, now time.Time) error {
		return c.Reject(reason, now)
	})
}

func (s *Causes) ToggleOnline(ctx context.Context, causeID string) (*types.Cause, error) {
	return mutateCause(ctx, s.Common, s.causes, causeID, "toggle_online", func(c *types.Cause, now time.Time) error {
		c.ToggleOnline(now)
		return nil
	})
}

// ForceClose completes a cause, ending sponsorship and claims.
func (s *Causes) ForceClose(ctx context.Context, causeID string) (*types.Cause, error) {
	return mutateCause(ctx, s.Common, s.causes, causeID, "force_close", func(c *types.Cause, now time.Time) error {
		return c.ForceClose(now)
	})
}

func (s *Causes) OpenWaitlist(ctx context.Context, causeID string) (*types.Cause, error) {
	return mutateCause(ctx, s.Common, s.causes, causeID, "open_waitlist", func(c *types.Cause, now time.Time) error {
		return c.OpenWaitlist(now)
	})
}

func (s *Causes) Comment(ctx context.Context, causeID string, author *types.User, text string) (*types.Cause, error) {
	return mutateCause(ctx, s.Common, s.causes, causeID, "comment", func(c *types.Cause, now time.Time) error {
		return c.AddComment(author.DisplayName(), text, now)
	})
}

// Review applies an admin campaign decision: approve or reject.
func (s *Causes) Review(ctx context.Context, causeID, action, reason string) (*types.Cause, error) {
	switch action {
	case "approve":
		return s.Approve(ctx, causeID)
	case "reject":
		return s.Reject(ctx, causeID, reason)
	}
	return nil, types.ValidationError("action must be approve or reject")
}

func (s *Causes) Delete(ctx context.Context, causeID string) error {
	if err := s.causes.DeleteCause(ctx, causeID); err != nil {
		return err
	}
	s.Logger.WithField("cause_id", causeID).Info("cause deleted")
	return nil
}
