package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"causeconnect/internal/utils"
	"causeconnect/pkg/types"

	"github.com/sirupsen/logrus"
)

const magicLinkTokenSize = 32

type Waitlist struct {
	Common
	entries     WaitlistStore
	causes      CauseStore
	mail        Notifier
	frontendURL string
}

func NewWaitlist(c Common, entries WaitlistStore, causes CauseStore, mail Notifier, frontendURL string) *Waitlist {
	return &Waitlist{
		Common:      c,
		entries:     entries,
		causes:      causes,
		mail:        mail,
		frontendURL: strings.TrimSuffix(frontendURL, "/"),
	}
}

// Join queues user for a cause that is collecting a waitlist. Positions
// are handed out by the store under the cause lock.
func (s *Waitlist) Join(ctx context.Context, causeID string, user *types.User, info types.ContactInfo) (*types.WaitlistEntry, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}

	entry := types.NewWaitlistEntry(utils.NanoID(), causeID, user.ID, info, s.now())
	entry, err := s.entries.JoinWaitlist(ctx, entry, func(c *types.Cause) error {
		if c.Status != types.CauseStatusWaitlist {
			return types.StateError("cause is not accepting waitlist entries (status %s)", c.Status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.transition("waitlist", string(entry.Status))
	s.Logger.WithFields(logrus.Fields{
		"entry_id": entry.ID,
		"cause_id": causeID,
		"user_id":  user.ID,
		"position": entry.Position,
	}).Info("joined waitlist")

	return entry, nil
}

func (s *Waitlist) Get(ctx context.Context, entryID string, viewer *types.User) (*types.WaitlistEntry, error) {
	entry, err := s.entries.WaitlistEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if err := requireSelfOrAdmin(viewer, entry.UserID); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Waitlist) List(ctx context.Context, filter types.WaitlistFilter) ([]*types.WaitlistEntry, error) {
	return s.entries.WaitlistEntries(ctx, filter)
}

// ByCause is open to admins and to sponsors of the cause.
func (s *Waitlist) ByCause(ctx context.Context, causeID string, viewer *types.User) ([]*types.WaitlistEntry, error) {
	if !isAdmin(viewer) {
		cause, err := s.causes.Cause(ctx, causeID)
		if err != nil {
			return nil, err
		}
		if viewer == nil || !cause.HasSponsorUser(viewer.ID) {
			return nil, types.ErrInsufficientRole
		}
	}
	return s.entries.WaitlistEntries(ctx, types.WaitlistFilter{CauseID: causeID})
}

func (s *Waitlist) ByUser(ctx context.Context, userID string, viewer *types.User) ([]*types.WaitlistEntry, error) {
	if err := requireSelfOrAdmin(viewer, userID); err != nil {
		return nil, err
	}
	return s.entries.WaitlistEntries(ctx, types.WaitlistFilter{UserID: userID})
}

// Promotion is the outcome of sending a magic link.
type Promotion struct {
	Entry    *types.WaitlistEntry `json:"entry"`
	Notified bool                 `json:"notified"`
}

// Promote issues a fresh 48 hour magic link to an entry whose cause is
// sponsored and unclaimed, then emails it.
func (s *Waitlist) Promote(ctx context.Context, entryID string) (*Promotion, error) {
	token := utils.NanoIDSize(magicLinkTokenSize)

	var causeTitle string
	entry, err := s.entries.MutateWaitlistEntry(ctx, entryID, func(e *types.WaitlistEntry, c *types.Cause) error {
		if !c.Claimable() {
			return types.StateError("cause is not available for claiming")
		}
		causeTitle = c.Title
		return e.Promote(token, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.transition("waitlist", string(entry.Status))

	out := &Promotion{Entry: entry, Notified: true}
	if err := s.mail.SendMagicLink(ctx, entry, causeTitle, s.MagicLink(entry.CauseID, token)); err != nil {
		out.Notified = false
		s.Logger.WithError(err).WithField("entry_id", entry.ID).Warn("failed to send magic link")
	}

	return out, nil
}

func (s *Waitlist) MagicLink(causeID, token string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("causeId", causeID)
	return fmt.Sprintf("%s/claim/magic-link?%s", s.frontendURL, q.Encode())
}

// SetStatus is the admin override. expired and waiting clear the link.
func (s *Waitlist) SetStatus(ctx context.Context, entryID string, status types.WaitlistStatus) (*types.WaitlistEntry, error) {
	entry, err := s.entries.MutateWaitlistEntry(ctx, entryID, func(e *types.WaitlistEntry, _ *types.Cause) error {
		return e.SetStatus(status, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.transition("waitlist", string(entry.Status))
	return entry, nil
}

// entryForToken finds the entry behind token. A lapsed link is marked
// expired on the spot.
func (s *Waitlist) entryForToken(ctx context.Context, token string) (*types.WaitlistEntry, error) {
	if strings.TrimSpace(token) == "" {
		return nil, types.ValidationError("token is required")
	}

	entry, err := s.entries.WaitlistEntryByToken(ctx, token)
	if errors.Is(err, types.ErrWaitlistEntryNotFound) {
		return nil, types.UnauthorizedError("invalid magic link")
	}
	if err != nil {
		return nil, err
	}

	if entry.Status == types.WaitlistStatusNotified && entry.LinkExpired(s.now()) {
		_, err := s.entries.MutateWaitlistEntry(ctx, entry.ID, func(e *types.WaitlistEntry, _ *types.Cause) error {
			if e.Status == types.WaitlistStatusNotified && e.LinkExpired(s.now()) {
				e.Expire(s.now())
			}
			return nil
		})
		if err != nil {
			s.Logger.WithError(err).WithField("entry_id", entry.ID).Warn("failed to persist magic link expiry")
		} else {
			s.transition("waitlist", string(types.WaitlistStatusExpired))
		}
		return nil, types.StateError("magic link has expired")
	}

	return entry, nil
}

// VerifyMagicLink checks a token without consuming it.
func (s *Waitlist) VerifyMagicLink(ctx context.Context, token string) (*types.MagicLinkDetails, error) {
	entry, err := s.entryForToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := entry.CheckToken(token, s.now()); err != nil {
		return nil, err
	}

	cause, err := s.causes.Cause(ctx, entry.CauseID)
	if err != nil {
		return nil, err
	}
	if !cause.Claimable() {
		return nil, types.StateError("cause is no longer available for claiming")
	}

	return &types.MagicLinkDetails{
		EntryID:    entry.ID,
		CauseID:    cause.ID,
		CauseTitle: cause.Title,
		FullName:   entry.FullName,
		Email:      entry.Email,
		Position:   entry.Position,
		ExpiresAt:  *entry.MagicLinkExpiresAt,
	}, nil
}

// Redeem consumes a magic link: the token is checked, the cause is stamped
// with the entry's user, the claim is created and the entry is marked
// claimed, all in one transaction. The first redeemer wins.
func (s *Waitlist) Redeem(ctx context.Context, token string, info types.ShippingInfo) (*types.Claim, error) {
	entry, err := s.entryForToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if info.FullName == "" {
		info.FullName = entry.FullName
	}
	if info.Email == "" {
		info.Email = entry.Email
	}
	if info.Phone == "" {
		info.Phone = entry.Phone
	}
	if info.Organization == "" {
		info.Organization = entry.Organization
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}

	claim, err := s.entries.RedeemMagicLink(ctx, entry.ID, func(e *types.WaitlistEntry, c *types.Cause) (*types.Claim, error) {
		now := s.now()
		if err := e.CheckToken(token, now); err != nil {
			return nil, err
		}
		if err := c.MarkClaimed(e.UserID, now); err != nil {
			return nil, err
		}

		claim := types.NewClaim(utils.NanoID(), c, e.UserID, info, now)
		claim.FromWaitlist = true
		claim.WaitlistEntryID = &e.ID

		if err := e.Redeem(claim.ID, now); err != nil {
			return nil, err
		}
		return claim, nil
	})
	if err != nil {
		return nil, err
	}

	s.transition("waitlist", string(types.WaitlistStatusClaimed))
	s.transition("claim", string(claim.Status))
	s.Logger.WithFields(logrus.Fields{
		"entry_id": entry.ID,
		"claim_id": claim.ID,
		"cause_id": claim.CauseID,
	}).Info("magic link redeemed")

	if err := s.mail.SendClaimConfirmation(ctx, claim); err != nil {
		s.Logger.WithError(err).WithField("claim_id", claim.ID).Warn("failed to send claim confirmation")
	}

	return claim, nil
}
