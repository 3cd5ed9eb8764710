// Package errs holds the error taxonomy shared across the module. It
// lives below the entity and store packages so they can wrap these
// sentinels without importing the engine.
package errs

import (
	"errors"

	"github.com/xraph/sentinel/policy"
)

var (
	// ErrAccessDenied is returned when a request is not permitted. It
	// deliberately carries no detail about which check failed.
	ErrAccessDenied = errors.New("sentinel: access denied")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("sentinel: not found")

	// ErrValidation indicates the input failed schema or constraint
	// validation. The wrapping error names the offending field.
	ErrValidation = errors.New("sentinel: validation failed")

	// ErrStateConflict indicates the operation is not valid for the
	// entity's current state, such as resolving a step on a terminal
	// application.
	ErrStateConflict = errors.New("sentinel: state conflict")

	// ErrTransient indicates a retryable infrastructure failure such as
	// a write conflict inside a transaction.
	ErrTransient = errors.New("sentinel: transient failure")
)

// IsNotFound reports whether err indicates a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsStateConflict reports whether err is a state conflict.
func IsStateConflict(err error) bool { return errors.Is(err, ErrStateConflict) }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// IsAccessDenied reports whether err is an access denial.
func IsAccessDenied(err error) bool { return errors.Is(err, ErrAccessDenied) }

// IsPolicyViolation reports whether err stems from the role and
// permission model itself rather than from request input.
func IsPolicyViolation(err error) bool {
	return errors.Is(err, policy.ErrInvalidRole) ||
		errors.Is(err, policy.ErrInvalidPermission) ||
		errors.Is(err, policy.ErrCircularInheritance)
}
