package auth

import (
	"fmt"
	"time"

	"causeconnect/internal/utils"
	"causeconnect/pkg/types"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

const (
	claimTokenType   = "typ"
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	tokenIssuer      = "causeconnect"
)

// Tokens issues and verifies the HS256 access/refresh pair. Tokens carry
// the user id only; roles are always read from storage.
type Tokens struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokens(secret string, accessTTL, refreshTTL time.Duration) (*Tokens, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 bytes")
	}

	return &Tokens{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// WithClock replaces the clock used for issuing and validating tokens.
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	t.now = now
	return t
}

func (t *Tokens) RefreshTTL() time.Duration {
	return t.refreshTTL
}

func (t *Tokens) IssuePair(userID string) (access, refresh string, err error) {
	access, err = t.issue(userID, tokenTypeAccess, t.accessTTL)
	if err != nil {
		return "", "", err
	}

	refresh, err = t.issue(userID, tokenTypeRefresh, t.refreshTTL)
	if err != nil {
		return "", "", err
	}

	return access, refresh, nil
}

func (t *Tokens) issue(userID, kind string, ttl time.Duration) (string, error) {
	now := t.now()

	token, err := jwt.NewBuilder().
		Issuer(tokenIssuer).
		Subject(userID).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		JwtID(utils.NanoIDSize(21)).
		Claim(claimTokenType, kind).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build %s token: %w", kind, err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), t.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}

	return string(signed), nil
}

func (t *Tokens) ParseAccess(raw string) (string, error) {
	return t.parse(raw, tokenTypeAccess)
}

func (t *Tokens) ParseRefresh(raw string) (string, error) {
	return t.parse(raw, tokenTypeRefresh)
}

func (t *Tokens) parse(raw, kind string) (string, error) {
	if raw == "" {
		return "", types.ErrInvalidToken
	}

	token, err := jwt.Parse(
		[]byte(raw),
		jwt.WithKey(jwa.HS256(), t.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithClock(jwt.ClockFunc(t.now)),
	)
	if err != nil {
		return "", &types.Error{Kind: types.KindUnauthorized, Message: types.ErrInvalidToken.Message, Err: err}
	}

	var got string
	if err := token.Get(claimTokenType, &got); err != nil || got != kind {
		return "", types.ErrInvalidToken
	}

	userID, ok := token.Subject()
	if !ok || userID == "" {
		return "", types.ErrInvalidToken
	}

	return userID, nil
}
