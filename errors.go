package sentinel

import "github.com/xraph/sentinel/errs"

// The error taxonomy is defined in the errs package so entity and store
// packages can wrap the sentinels without importing the engine. The
// aliases below keep engine-level callers on the sentinel identifiers.
var (
	ErrAccessDenied  = errs.ErrAccessDenied
	ErrNotFound      = errs.ErrNotFound
	ErrValidation    = errs.ErrValidation
	ErrStateConflict = errs.ErrStateConflict
	ErrTransient     = errs.ErrTransient
)

// IsNotFound reports whether err indicates a missing entity.
func IsNotFound(err error) bool { return errs.IsNotFound(err) }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errs.IsValidation(err) }

// IsStateConflict reports whether err is a state conflict.
func IsStateConflict(err error) bool { return errs.IsStateConflict(err) }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool { return errs.IsTransient(err) }

// IsAccessDenied reports whether err is an access denial.
func IsAccessDenied(err error) bool { return errs.IsAccessDenied(err) }

// IsPolicyViolation reports whether err stems from the role and
// permission model itself rather than from request input.
func IsPolicyViolation(err error) bool { return errs.IsPolicyViolation(err) }
