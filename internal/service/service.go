package service

import (
	"context"
	"time"

	"causeconnect/internal/logocheck"
	"causeconnect/internal/metrics"
	"causeconnect/pkg/types"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// The store interfaces mirror the Postgres repositories. Every Mutate*
// call runs fn against a locked copy and persists it atomically.

type UserStore interface {
	User(ctx context.Context, userID string) (*types.User, error)
	UserByEmail(ctx context.Context, email string) (*types.User, error)
	UserByRefreshToken(ctx context.Context, token string) (*types.User, error)
	Users(ctx context.Context, role types.Role) ([]*types.User, error)
	CreateUser(ctx context.Context, user *types.User) error
	UpdateProfile(ctx context.Context, user *types.User) error
	SetRole(ctx context.Context, userID string, role types.Role) error
	SetOTP(ctx context.Context, userID, code string, expiresAt time.Time) error
	ClearOTP(ctx context.Context, userID, code string) (bool, error)
	SetRefreshToken(ctx context.Context, userID, token string) error
	RotateRefreshToken(ctx context.Context, userID, current, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, token string) error
}

type CauseStore interface {
	Cause(ctx context.Context, causeID string) (*types.Cause, error)
	Causes(ctx context.Context, filter types.CauseFilter) ([]*types.Cause, error)
	CreateCause(ctx context.Context, cause *types.Cause) error
	DeleteCause(ctx context.Context, causeID string) error
	MutateCause(ctx context.Context, causeID string, fn func(*types.Cause) error) (*types.Cause, error)
}

type LogoReviewStore interface {
	LogoReview(ctx context.Context, reviewID string) (*types.LogoReview, error)
	LogoReviewBySponsor(ctx context.Context, campaignID, sponsorID string) (*types.LogoReview, error)
	LogoReviews(ctx context.Context, filter types.LogoReviewFilter) ([]*types.LogoReview, int, error)
	CreateLogoReview(ctx context.Context, review *types.LogoReview) error
	MutateLogoReview(ctx context.Context, reviewID string, fn func(*types.LogoReview) error) (*types.LogoReview, error)
}

type ClaimStore interface {
	Claim(ctx context.Context, claimID string) (*types.Claim, error)
	Claims(ctx context.Context, filter types.ClaimFilter) ([]*types.Claim, int, error)
	ClaimsByUser(ctx context.Context, userID string) ([]*types.Claim, error)
	CreateClaimForCause(ctx context.Context, causeID string, build func(*types.Cause) (*types.Claim, error)) (*types.Claim, error)
	MutateClaim(ctx context.Context, claimID string, fn func(*types.Claim) error) (*types.Claim, error)
	MutateClaimWithCause(ctx context.Context, claimID string, fn func(*types.Claim, *types.Cause) error) (*types.Claim, error)
}

type WaitlistStore interface {
	WaitlistEntry(ctx context.Context, entryID string) (*types.WaitlistEntry, error)
	WaitlistEntryByToken(ctx context.Context, token string) (*types.WaitlistEntry, error)
	WaitlistEntries(ctx context.Context, filter types.WaitlistFilter) ([]*types.WaitlistEntry, error)
	JoinWaitlist(ctx context.Context, entry *types.WaitlistEntry, check func(*types.Cause) error) (*types.WaitlistEntry, error)
	MutateWaitlistEntry(ctx context.Context, entryID string, fn func(*types.WaitlistEntry, *types.Cause) error) (*types.WaitlistEntry, error)
	RedeemMagicLink(ctx context.Context, entryID string, redeem func(*types.WaitlistEntry, *types.Cause) (*types.Claim, error)) (*types.Claim, error)
}

type OrderStore interface {
	OrderByGatewayID(ctx context.Context, gatewayOrderID string) (*types.Order, error)
	CreateOrder(ctx context.Context, order *types.Order) error
	MutateOrder(ctx context.Context, gatewayOrderID string, fn func(*types.Order) error) (*types.Order, error)
}

// Notifier is the transactional mail sender.
type Notifier interface {
	Send(ctx context.Context, to, subject, template string, data map[string]any) error
	SendOTP(ctx context.Context, to, code string) error
	SendMagicLink(ctx context.Context, entry *types.WaitlistEntry, causeTitle, link string) error
	SendClaimConfirmation(ctx context.Context, claim *types.Claim) error
	SendShipment(ctx context.Context, claim *types.Claim) error
	SendPaymentReceipt(ctx context.Context, to string, order *types.Order, causeTitle string) error
}

type LogoAnalyzer interface {
	Analyze(ctx context.Context, url string) (*logocheck.Result, error)
}

// Common carries what every service needs.
type Common struct {
	Logger  *logrus.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func (c Common) now() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now()
}

func (c Common) transition(entity, to string) {
	c.Metrics.Transition(entity, to)
}

// isAdmin reports whether u is a signed in admin.
func isAdmin(u *types.User) bool {
	return u != nil && u.Role == types.RoleAdmin
}

// requireSelfOrAdmin allows a user to act on their own records.
func requireSelfOrAdmin(viewer *types.User, ownerID string) error {
	if viewer == nil {
		return types.ErrInvalidToken
	}
	if viewer.ID == ownerID || isAdmin(viewer) {
		return nil
	}
	return types.ErrInsufficientRole
}
