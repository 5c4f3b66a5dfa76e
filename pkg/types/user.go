package types

import (
	"crypto/subtle"
	"time"
)

type Role string

const (
	RoleVisitor Role = "visitor"
	RoleSponsor Role = "sponsor"
	RoleClaimer Role = "claimer"
	RoleAdmin   Role = "admin"
)

// OTPTTL is how long an emailed login code stays valid.
const OTPTTL = 10 * time.Minute

func (r Role) Valid() bool {
	switch r {
	case RoleVisitor, RoleSponsor, RoleClaimer, RoleAdmin:
		return true
	}
	return false
}

// SelfAssignable reports whether a user may pick this role at registration.
func (r Role) SelfAssignable() bool {
	return r.Valid() && r != RoleAdmin
}

type User struct {
	ID           string     `db:"id" json:"id"`
	Name         *string    `db:"name" json:"name,omitempty"`
	Email        string     `db:"email" json:"email"`
	Role         Role       `db:"role" json:"role"`
	Verified     bool       `db:"verified" json:"verified"`
	OTPCode      *string    `db:"otp_code" json:"-"`
	OTPExpiresAt *time.Time `db:"otp_expires_at" json:"-"`
	RefreshToken *string    `db:"refresh_token" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Email
}

func (u *User) SetOTP(code string, now time.Time) {
	expires := now.Add(OTPTTL)
	u.OTPCode = &code
	u.OTPExpiresAt = &expires
}

// OTPValid reports whether code matches the stored, unexpired code.
func (u *User) OTPValid(code string, now time.Time) bool {
	if u.OTPCode == nil || u.OTPExpiresAt == nil || code == "" {
		return false
	}
	if !now.Before(*u.OTPExpiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*u.OTPCode), []byte(code)) == 1
}

func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// TokenPair is what a successful login or refresh hands back to the client.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user"`
}
