package shared

import "errors"

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the operation was rejected on its inputs;
	// no partial state is committed.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState occurs when an action violates the entity lifecycle.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrConflict indicates a concurrent update lost the race.
	ErrConflict = errors.New("conflicting update")
	// ErrConfirmationRequired indicates the entity is still referenced
	// elsewhere and the caller must re-submit with explicit confirmation.
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrForbidden indicates the actor lacks access to the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage returns error text suitable for end users. Wrapped domain
// errors carry their own human-readable reason; anything unrecognised is
// collapsed to a generic message so internals never leak.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrConfirmationRequired),
		errors.Is(err, ErrForbidden):
		return err.Error()
	default:
		return "An unexpected error occurred. Please try again."
	}
}
