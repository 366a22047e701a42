// Package errors provides error handling for relset.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints
//   - Marking, so classification survives wrapping
//
// Usage:
//
//	// Wrap with context
//	if err := store.Get(ctx, ref); err != nil {
//	    return errors.Wrap(err, "failed to load entity")
//	}
//
//	// Classify a rule definition problem
//	return errors.ConfigurationErrorf(rule.ID, "field %q is not numeric", rule.Field)
//
//	// Check classification anywhere up the stack
//	if errors.IsConfigurationError(err) { ... }
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// AssertionFailedf reports a broken internal invariant.
var AssertionFailedf = crdb.AssertionFailedf

// Common sentinel errors for use across relset.
// Use these with errors.Is() for type-safe error checking.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrConflict indicates a resource conflict (e.g., duplicate key)
	ErrConflict = New("resource conflict")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out")
)

// Domain taxonomy. Errors are marked with these so that errors.Is keeps
// working after any amount of wrapping.
var (
	// ErrConfiguration indicates an invalid rule or membership definition.
	// Always raised at creation time, never while a sync check runs.
	ErrConfiguration = New("configuration error")

	// ErrEntityStoreUnavailable indicates the entity store could not serve a
	// call. Transient; retried by the sync check orchestrator.
	ErrEntityStoreUnavailable = New("entity store unavailable")

	// ErrInvalidStateTransition indicates a lifecycle transition that is not
	// allowed from the current state.
	ErrInvalidStateTransition = New("invalid state transition")
)

// HintNoChanges is attached to sync check failures that left the ledger untouched.
const HintNoChanges = "sync check failed, no changes made"

// ConfigurationErrorf creates a configuration error naming the offending
// rule, member, or filter.
func ConfigurationErrorf(subject string, format string, args ...interface{}) error {
	return Mark(Wrapf(Newf(format, args...), "%s", subject), ErrConfiguration)
}

// InvalidTransitionf creates an invalid-state-transition error naming the
// offending violation or set.
func InvalidTransitionf(subject string, format string, args ...interface{}) error {
	return Mark(Wrapf(Newf(format, args...), "%s", subject), ErrInvalidStateTransition)
}

// StoreUnavailable marks err as a transient entity store failure.
func StoreUnavailable(err error, operation string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrap(err, operation), ErrEntityStoreUnavailable)
}

// IsConfigurationError checks if an error is or wraps ErrConfiguration
func IsConfigurationError(err error) bool {
	return err != nil && Is(err, ErrConfiguration)
}

// IsEntityStoreUnavailable checks if an error is or wraps ErrEntityStoreUnavailable
func IsEntityStoreUnavailable(err error) bool {
	return err != nil && Is(err, ErrEntityStoreUnavailable)
}

// IsInvalidStateTransition checks if an error is or wraps ErrInvalidStateTransition
func IsInvalidStateTransition(err error) bool {
	return err != nil && Is(err, ErrInvalidStateTransition)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrNotFound)
}

// IsConflictError checks if an error is or wraps ErrConflict
func IsConflictError(err error) bool {
	return err != nil && Is(err, ErrConflict)
}

// NewConflictError creates a conflict error with a formatted message
func NewConflictError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrConflict)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInvalidRequest)
}
