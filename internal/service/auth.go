package service

import (
	"context"
	"errors"
	"strings"

	"causeconnect/internal/auth"
	"causeconnect/pkg/types"

	"github.com/sirupsen/logrus"
)

type TokenIssuer interface {
	IssuePair(userID string) (access, refresh string, err error)
	ParseAccess(raw string) (string, error)
	ParseRefresh(raw string) (string, error)
}

// AdminAuthenticator verifies admin credentials outside the OTP flow and
// returns the verified email.
type AdminAuthenticator interface {
	Authenticate(ctx context.Context, email, password string) (string, error)
}

type Auth struct {
	Common
	users   UserStore
	tokens  TokenIssuer
	mail    Notifier
	limiter auth.Limiter
	admins  AdminAuthenticator
}

// NewAuth wires the identity service. admins may be nil, which disables
// the admin credential path.
func NewAuth(c Common, users UserStore, tokens TokenIssuer, mail Notifier, limiter auth.Limiter, admins AdminAuthenticator) *Auth {
	if limiter == nil {
		limiter = auth.NoopLimiter{}
	}
	return &Auth{
		Common:  c,
		users:   users,
		tokens:  tokens,
		mail:    mail,
		limiter: limiter,
		admins:  admins,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", types.ValidationError("email is required")
	}
	if err := validate.Var(email, "email"); err != nil {
		return "", types.ValidationError("invalid email address")
	}
	return email, nil
}

type RegisterInput struct {
	Email string
	Name  string
	Role  types.Role
}

// Register creates an unverified user, or refreshes the profile of one that
// never finished verification, and emails a login code.
func (a *Auth) Register(ctx context.Context, in RegisterInput) (*types.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = types.RoleVisitor
	}
	if !role.SelfAssignable() {
		return nil, types.ValidationError("role %q cannot be chosen at registration", role)
	}

	if err := a.throttle(ctx, email); err != nil {
		return nil, err
	}

	user, err := a.users.UserByEmail(ctx, email)
	switch {
	case errors.Is(err, types.ErrUserNotFound):
		user = &types.User{Email: email, Role: role}
		if name := strings.TrimSpace(in.Name); name != "" {
			user.Name = &name
		}
		if err := a.users.CreateUser(ctx, user); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case user.Verified:
		return nil, types.ConflictError("a user with this email is already registered")
	default:
		if name := strings.TrimSpace(in.Name); name != "" {
			user.Name = &name
		}
		user.Role = role
		if err := a.users.UpdateProfile(ctx, user); err != nil {
			return nil, err
		}
	}

	if err := a.issueOTP(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// RequestOTP finds or creates the user and emails a fresh login code.
func (a *Auth) RequestOTP(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	if err := a.throttle(ctx, email); err != nil {
		return err
	}

	user, err := a.users.UserByEmail(ctx, email)
	if errors.Is(err, types.ErrUserNotFound) {
		user = &types.User{Email: email, Role: types.RoleVisitor}
		err = a.users.CreateUser(ctx, user)
	}
	if err != nil {
		return err
	}

	return a.issueOTP(ctx, user)
}

func (a *Auth) throttle(ctx context.Context, email string) error {
	ok, err := a.limiter.Allow(ctx, email)
	if err != nil {
		// a broken limiter must not lock everyone out
		a.Logger.WithError(err).Warn("otp limiter unavailable")
		return nil
	}
	if !ok {
		return types.RateLimitedError("too many code requests, try again later")
	}
	return nil
}

// issueOTP stores a code and mails it. When the mail cannot be sent the
// code is withdrawn again.
func (a *Auth) issueOTP(ctx context.Context, user *types.User) error {
	code, err := auth.NewOTP()
	if err != nil {
		return err
	}

	user.SetOTP(code, a.now())
	if err := a.users.SetOTP(ctx, user.ID, code, *user.OTPExpiresAt); err != nil {
		return err
	}

	if err := a.mail.SendOTP(ctx, user.Email, code); err != nil {
		if _, cerr := a.users.ClearOTP(ctx, user.ID, code); cerr != nil {
			a.Logger.WithError(cerr).WithField("user_id", user.ID).Error("failed to withdraw undelivered otp")
		}
		a.Metrics.Error("mail")
		return types.UpstreamError(err, "failed to send verification code")
	}

	a.Logger.WithField("user_id", user.ID).Info("otp issued")
	return nil
}

type VerifyInput struct {
	Email string
	Code  string
	Name  string
	Role  types.Role
}

// VerifyOTP consumes the code and signs the user in. Name and role, when
// given, complete a pending registration.
func (a *Auth) VerifyOTP(ctx context.Context, in VerifyInput) (*types.TokenPair, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return nil, types.ValidationError("code is required")
	}
	if in.Role != "" && !in.Role.SelfAssignable() {
		return nil, types.ValidationError("role %q cannot be chosen at registration", in.Role)
	}

	user, err := a.users.UserByEmail(ctx, email)
	if errors.Is(err, types.ErrUserNotFound) {
		return nil, types.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !user.OTPValid(code, a.now()) {
		return nil, types.ErrInvalidCredentials
	}

	consumed, err := a.users.ClearOTP(ctx, user.ID, code)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, types.ErrInvalidCredentials
	}
	user.OTPCode = nil
	user.OTPExpiresAt = nil

	if !user.Verified || in.Name != "" || in.Role != "" {
		user.Verified = true
		if name := strings.TrimSpace(in.Name); name != "" {
			user.Name = &name
		}
		if in.Role != "" && user.Role != types.RoleAdmin {
			user.Role = in.Role
		}
		if err := a.users.UpdateProfile(ctx, user); err != nil {
			return nil, err
		}
	}

	return a.issue(ctx, user)
}

// Login is the OTP login. Admin credentials go through AdminLogin.
func (a *Auth) Login(ctx context.Context, email, code string) (*types.TokenPair, error) {
	return a.VerifyOTP(ctx, VerifyInput{Email: email, Code: code})
}

// AdminLogin signs an admin in with a password checked by the admin
// identity provider. Every attempt is audited.
func (a *Auth) AdminLogin(ctx context.Context, email, password string) (*types.TokenPair, error) {
	entry := a.Logger.WithFields(logrus.Fields{
		"audit": true,
		"event": "admin_login",
		"email": strings.ToLower(strings.TrimSpace(email)),
	})

	if a.admins == nil {
		entry.WithField("outcome", "disabled").Warn("admin login attempted while disabled")
		return nil, types.ForbiddenError("admin login is not enabled")
	}

	verified, err := a.admins.Authenticate(ctx, email, password)
	if err != nil {
		entry.WithError(err).WithField("outcome", "denied").Warn("admin login denied")
		return nil, err
	}

	user, err := a.users.UserByEmail(ctx, verified)
	switch {
	case errors.Is(err, types.ErrUserNotFound):
		user = &types.User{Email: verified, Role: types.RoleAdmin, Verified: true}
		if err := a.users.CreateUser(ctx, user); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case user.Role != types.RoleAdmin:
		if err := a.users.SetRole(ctx, user.ID, types.RoleAdmin); err != nil {
			return nil, err
		}
		user.Role = types.RoleAdmin
		entry.WithField("user_id", user.ID).Warn("user promoted to admin by identity provider")
	}

	pair, err := a.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	entry.WithFields(logrus.Fields{"outcome": "granted", "user_id": user.ID}).Info("admin login granted")
	return pair, nil
}

// issue hands out a new pair and makes its refresh token the only valid one.
func (a *Auth) issue(ctx context.Context, user *types.User) (*types.TokenPair, error) {
	access, refresh, err := a.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, err
	}

	if err := a.users.SetRefreshToken(ctx, user.ID, refresh); err != nil {
		return nil, err
	}
	user.RefreshToken = &refresh

	return &types.TokenPair{AccessToken: access, RefreshToken: refresh, User: user}, nil
}

// Refresh rotates a refresh token. It must decode and still be the one on
// record for its user.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (*types.TokenPair, error) {
	userID, err := a.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := a.users.User(ctx, userID)
	if errors.Is(err, types.ErrUserNotFound) {
		return nil, types.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		return nil, types.ErrInvalidToken
	}

	access, next, err := a.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, err
	}

	rotated, err := a.users.RotateRefreshToken(ctx, user.ID, refreshToken, next)
	if err != nil {
		return nil, err
	}
	if !rotated {
		return nil, types.ErrInvalidToken
	}
	user.RefreshToken = &next

	return &types.TokenPair{AccessToken: access, RefreshToken: next, User: user}, nil
}

func (a *Auth) Logout(ctx context.Context, refreshToken string) error {
	return a.users.ClearRefreshToken(ctx, refreshToken)
}

// Authenticate resolves an access token to the current user record. The
// token only carries identity; the role comes from storage on every call.
func (a *Auth) Authenticate(ctx context.Context, accessToken string) (*types.User, error) {
	userID, err := a.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, err
	}

	user, err := a.users.User(ctx, userID)
	if errors.Is(err, types.ErrUserNotFound) {
		return nil, types.ErrInvalidToken
	}
	return user, err
}

func Authorize(user *types.User, roles ...types.Role) error {
	if user == nil {
		return types.ErrInvalidToken
	}
	if len(roles) == 0 || user.HasRole(roles...) {
		return nil
	}
	return types.ErrInsufficientRole
}

func (a *Auth) User(ctx context.Context, userID string) (*types.User, error) {
	return a.users.User(ctx, userID)
}

func (a *Auth) Users(ctx context.Context, role types.Role) ([]*types.User, error) {
	if role != "" && !role.Valid() {
		return nil, types.ValidationError("invalid role %q", role)
	}
	return a.users.Users(ctx, role)
}

// SetRole changes a user's role. It applies to the next request the user makes.
func (a *Auth) SetRole(ctx context.Context, actor *types.User, userID string, role types.Role) (*types.User, error) {
	if !role.Valid() {
		return nil, types.ValidationError("invalid role %q", role)
	}

	if err := a.users.SetRole(ctx, userID, role); err != nil {
		return nil, err
	}

	a.Logger.WithFields(logrus.Fields{
		"audit":    true,
		"event":    "role_change",
		"actor_id": actor.ID,
		"user_id":  userID,
		"role":     role,
	}).Info("user role changed")

	return a.users.User(ctx, userID)
}
