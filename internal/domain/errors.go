package domain

import (
	"errors"
	"strings"
)

var (
	// ErrShape indicates a missing or mistyped required top-level field.
	ErrShape = errors.New("malformed site payload")
	// ErrMissingField indicates a required power source field is absent or blank.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidNumber indicates a numeric field that is not a positive number.
	ErrInvalidNumber = errors.New("invalid number")
	// ErrInvalidEnum indicates a value outside its allowed set.
	ErrInvalidEnum = errors.New("invalid enum value")
	// ErrImmutableField indicates an attempt to change the site id.
	ErrImmutableField = errors.New("immutable field")
	// ErrDuplicateID indicates a site with the same id already exists.
	ErrDuplicateID = errors.New("site with this ID already exists")
	// ErrNotFound indicates unknown site id.
	ErrNotFound = errors.New("site not found")

	// ErrInvalidToken indicates a missing, malformed or expired bearer token.
	ErrInvalidToken = errors.New("token is not valid")
	// ErrInvalidCredentials is returned for every failed login, whatever the cause.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists indicates the username is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound indicates unknown user id or username.
	ErrUserNotFound = errors.New("user not found")
	// ErrWeakPassword indicates the password policy was not met.
	ErrWeakPassword = errors.New("weak password")
	// ErrForbidden indicates the caller lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// Violation is a single rejected field.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (v Violation) Error() string { return v.Message }

func (v Violation) Unwrap() error { return v.Err }

// NewViolation builds a violation of the given kind.
func NewViolation(kind error, field, message string) Violation {
	return Violation{Field: field, Message: message, Err: kind}
}

// ValidationError carries every violation found in one payload.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return strings.Join(msgs, ", ")
}

// Unwrap exposes every violation so errors.Is matches any contained kind.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Violations))
	for _, v := range e.Violations {
		errs = append(errs, v)
	}
	return errs
}

// Validation returns nil for an empty list, otherwise a *ValidationError.
func Validation(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}
