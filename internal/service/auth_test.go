package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"causeconnect/internal/auth"
	"causeconnect/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type authFixture struct {
	store *memStore
	mail  *fakeMailer
	clock *clock
	svc   *Auth
}

func newAuthFixture(t *testing.T, limiter auth.Limiter, admins AdminAuthenticator) *authFixture {
	t.Helper()

	clk := newClock()
	tokens, err := auth.NewTokens(testSecret, 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	tokens.WithClock(clk.Now)

	store := newMemStore()
	mail := newFakeMailer()

	return &authFixture{
		store: store,
		mail:  mail,
		clock: clk,
		svc:   NewAuth(testCommon(clk), store, tokens, mail, limiter, admins),
	}
}

func TestRegisterAndVerify(t *testing.T) {
	f := newAuthFixture(t, nil, nil)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, RegisterInput{Email: " Jane@Example.org ", Name: "Jane", Role: types.RoleSponsor})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.org", user.Email)
	assert.False(t, user.Verified)

	code := f.mail.otp("jane@example.org")
	require.Len(t, code, 6)

	pair, err := f.svc.VerifyOTP(ctx, VerifyInput{Email: "jane@example.org", Code: code})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.True(t, pair.User.Verified)
	assert.Equal(t, types.RoleSponsor, pair.User.Role)

	me, err := f.svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)

	_, err = f.svc.Register(ctx, RegisterInput{Email: "jane@example.org"})
	assert.True(t, types.IsKind(err, types.KindConflict))
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	f := newAuthFixture(t, nil, nil)

	_, err := f.svc.Register(context.Background(), RegisterInput{Email: "x@example.org", Role: types.RoleAdmin})
	assert.True(t, types.IsKind(err, types.KindValidation))

	_, err = f.svc.Register(context.Background(), RegisterInput{Email: "not-an-email"})
	assert.True(t, types.IsKind(err, types.KindValidation))
}

func TestOTPIsSingleUse(t *testing.T) {
	f := newAuthFixture(t, nil, nil)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestOTP(ctx, "sam@example.org"))
	code := f.mail.otp("sam@example.org")

	_, err := f.svc.Login(ctx, "sam@example.org", code)
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "sam@example.org", code)
	assert.ErrorIs(t, err, types.ErrInvalidCredentials)
}

func TestOTPExpires(t *testing.T) {
	f := newAuthFixture(t, nil, nil)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestOTP(ctx, "sam@example.org"))
	code := f.mail.otp("sam@example.org")

	f.clock.Advance(11 * time.Minute)

	_, err := f.svc.Login(ctx, "sam@example.org", code)
	assert.ErrorIs(t, err, types.ErrInvalidCredentials)
}

func TestConcurrentVerifyConsumesOnce(t *testing.T) {
	f := newAuthFixture(t, nil, nil)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestOTP(ctx, "race@example.org"))
	code := f.mail.otp("race@example.org")

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Login(ctx, "race@example.org", code); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
}

func TestOTPWithdrawnWhenMailFails(t *testing.T) {
	f := newAuthFixture(t, nil, nil)
	f.mail.fail = errors.New("smtp down")

	err := f.svc.RequestOTP(context.Background(), "sam@example.org")
	assert.True(t, types.IsKind(err, types.KindUpstream))

	user, err := f.store.UserByEmail(context.Background(), "sam@example.org")
	require.NoError(t, err)
	assert.Nil(t, user.OTPCode)
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func TestRequestOTPRateLimited(t *testing.T) {
	limiter := new(mockLimiter)
	limiter.On("Allow", mock.Anything, "sam@example.org").Return(false, nil).Once()
	f := newAuthFixture(t, limiter, nil)

	err := f.svc.RequestOTP(context.Background(), "sam@example.org")
	assert.True(t, types.IsKind(err, types.KindRateLimited))
	limiter.AssertExpectations(t)

	_, err = f.store.UserByEmail(context.Background(), "sam@example.org")
	assert.ErrorIs(t, err, types.ErrUserNotFound)
}

func TestRequestOTPIgnoresBrokenLimiter(t *testing.T) {
	limiter := new(mockLimiter)
	limiter.On("Allow", mock.Anything, mock.AnythingOfType("string")).Return(false, errors.New("redis: connection refused"))
	f := newAuthFixture(t, limiter, nil)

	require.NoError(t, f.svc.RequestOTP(context.Background(), "sam@example.org"))
	assert.NotEmpty(t, f.mail.otp("sam@example.org"))
	limiter.AssertNumberOfCalls(t, "Allow", 1)
}

func TestRefreshRotation(t *testing.T) {
	f := newAuthFixture(t, nil, nil)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestOTP(ctx, "sam@example.org"))
	first, err := f.svc.Login(ctx, "sam@example.org", f.mail.otp("sam@example.org"))
	require.NoError(t, err)

	second, err := f.svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, types.ErrInvalidToken)

	_, err = f.svc.Refresh(ctx, second.AccessToken)
	assert.ErrorIs(t, err, types.ErrInvalidToken)

	require.NoError(t, f.svc.Logout(ctx, second.RefreshToken))
	_, err = f.svc.Refresh(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, types.ErrInvalidToken)
}

func TestAuthenticateReadsCurrentRole(t *testing.T) {
	f := newAuthFixture(t, nil, nil)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestOTP(ctx, "sam@example.org"))
	pair, err := f.svc.Login(ctx, "sam@example.org", f.mail.otp("sam@example.org"))
	require.NoError(t, err)

	admin := seedUser(f.store, "admin@example.org", types.RoleAdmin)
	_, err = f.svc.SetRole(ctx, admin, pair.User.ID, types.RoleClaimer)
	require.NoError(t, err)

	me, err := f.svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, types.RoleClaimer, me.Role)
	assert.NoError(t, Authorize(me, types.RoleClaimer, types.RoleAdmin))
	assert.ErrorIs(t, Authorize(me, types.RoleAdmin), types.ErrInsufficientRole)
	assert.ErrorIs(t, Authorize(nil), types.ErrInvalidToken)
}

type staticAdmins struct {
	email string
}

func (s staticAdmins) Authenticate(_ context.Context, email, password string) (string, error) {
	if email != s.email || password != "correct horse" {
		return "", types.ErrInvalidCredentials
	}
	return email, nil
}

func TestAdminLogin(t *testing.T) {
	ctx := context.Background()

	disabled := newAuthFixture(t, nil, nil)
	_, err := disabled.svc.AdminLogin(ctx, "boss@example.org", "correct horse")
	assert.True(t, types.IsKind(err, types.KindForbidden))

	f := newAuthFixture(t, nil, staticAdmins{email: "boss@example.org"})
	existing := seedUser(f.store, "boss@example.org", types.RoleVisitor)

	_, err = f.svc.AdminLogin(ctx, "boss@example.org", "wrong")
	assert.ErrorIs(t, err, types.ErrInvalidCredentials)

	pair, err := f.svc.AdminLogin(ctx, "boss@example.org", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, pair.User.ID)
	assert.Equal(t, types.RoleAdmin, pair.User.Role)
}
