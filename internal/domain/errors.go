package domain

import "errors"

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidCredentials = errors.New("incorrect email, password, or user type")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrLockedOut          = errors.New("too many failed login attempts")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")

	ErrUnsupportedType = errors.New("file type not allowed")
	ErrTooLarge        = errors.New("file too large")

	ErrGrantNotFound     = errors.New("invalid download link or access denied")
	ErrGrantExpired      = errors.New("download link has expired")
	ErrGrantConsumed     = errors.New("download link has already been used")
	ErrStoredFileMissing = errors.New("file not found on server")

	// ErrObjectNotFound is returned by storage backends for a missing key.
	ErrObjectNotFound = errors.New("object not found")
)

var ErrInvalidInput = errors.New("invalid input")

// DetailedError carries a client-facing message alongside one of the sentinels above.
type DetailedError struct {
	Kind   error
	Detail string
}

func Detailed(kind error, detail string) error {
	return &DetailedError{Kind: kind, Detail: detail}
}

func (e *DetailedError) Error() string {
	return e.Kind.Error() + ": " + e.Detail
}

func (e *DetailedError) Unwrap() error {
	return e.Kind
}
