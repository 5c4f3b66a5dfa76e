package types

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindState
	KindUpstream
	KindRateLimited
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindState:
		return "state"
	case KindUpstream:
		return "upstream"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Error is a domain failure that the transport layer knows how to render.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func ValidationError(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

func NotFoundError(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func UnauthorizedError(format string, args ...any) *Error {
	return newError(KindUnauthorized, format, args...)
}

func ForbiddenError(format string, args ...any) *Error {
	return newError(KindForbidden, format, args...)
}

func ConflictError(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

func StateError(format string, args ...any) *Error {
	return newError(KindState, format, args...)
}

func RateLimitedError(format string, args ...any) *Error {
	return newError(KindRateLimited, format, args...)
}

// UpstreamError wraps a failure of an external collaborator (mail, gateway, storage).
func UpstreamError(err error, format string, args ...any) *Error {
	e := newError(KindUpstream, format, args...)
	e.Err = err
	return e
}

// KindOf reports the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

var (
	ErrUserNotFound          = NotFoundError("user not found")
	ErrCauseNotFound         = NotFoundError("cause not found")
	ErrSponsorNotFound       = NotFoundError("sponsor not found")
	ErrLogoReviewNotFound    = NotFoundError("logo review not found")
	ErrClaimNotFound         = NotFoundError("claim not found")
	ErrWaitlistEntryNotFound = NotFoundError("waitlist entry not found")
	ErrOrderNotFound         = NotFoundError("order not found")

	ErrInvalidCredentials = UnauthorizedError("invalid or expired code")
	ErrInvalidToken       = UnauthorizedError("invalid or expired token")
	ErrInsufficientRole   = ForbiddenError("access denied, insufficient permissions")
)
