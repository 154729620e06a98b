package engine

import (
	"errors"
	"fmt"

	"github.com/asaidimu/go-vellum/core/access"
	"github.com/asaidimu/go-vellum/core/assets"
	"github.com/asaidimu/go-vellum/core/collection"
	"github.com/asaidimu/go-vellum/core/hook"
	"github.com/asaidimu/go-vellum/core/schema"
)

// The engine's error taxonomy. UnknownCollection, HookAborted, and
// StorageError originate in their owning packages and are re-exported here
// so callers can match the whole taxonomy against one package.
type (
	UnknownCollectionError = collection.UnknownCollectionError
	HookAbortedError       = hook.AbortError
	StorageError           = assets.StorageError
)

// AccessDeniedError reports a predicate refusing an operation.
type AccessDeniedError struct {
	Collection string
	Operation  access.Operation
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: %s on collection '%s'", e.Operation, e.Collection)
}

// ValidationError carries the complete collected issue list for a failed
// validation pass, including uniqueness violations and dangling references.
// Validation never fails fast: all fields are checked before this is built.
type ValidationError struct {
	Collection string
	Issues     []schema.Issue
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation of collection '%s' failed with %d issue(s)", e.Collection, len(e.Issues))
}

// HasCode reports whether any collected issue carries the given code.
func (e *ValidationError) HasCode(code string) bool {
	for _, issue := range e.Issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}

// NotFoundError reports a target document that does not exist or is excluded
// by a scoped access filter. The two cases are deliberately indistinguishable
// so a scoped filter does not leak document existence.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("document '%s' not found in collection '%s'", e.ID, e.Collection)
}

// PersistenceError wraps a backing-store failure. Treated as transient;
// retrying is the caller's concern, not the engine's.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsAccessDenied reports whether err is an AccessDeniedError.
func IsAccessDenied(err error) bool {
	var target *AccessDeniedError
	return errors.As(err, &target)
}

// IsValidation extracts a ValidationError from err.
func IsValidation(err error) (*ValidationError, bool) {
	var target *ValidationError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsUnknownCollection reports whether err is an UnknownCollectionError.
func IsUnknownCollection(err error) bool {
	var target *UnknownCollectionError
	return errors.As(err, &target)
}
