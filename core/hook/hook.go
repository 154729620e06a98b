// Package hook implements the ordered extension points invoked around every
// document mutation. Hooks run synchronously, in declaration order, each
// receiving and returning the working document. Earlier stages may transform
// the payload or abort the operation; afterChange is the only stage where
// observable side effects are safe, since everything before it can still be
// rolled back by a later failure.
package hook

import (
	"context"
	"errors"
	"fmt"

	"github.com/asaidimu/go-vellum/core/access"
	"github.com/asaidimu/go-vellum/core/schema"
)

// Stage names a point in the document lifecycle where hooks may run.
// Execution order within one operation is fixed:
// BeforeValidate → (field validation) → BeforeChange → (persist) → AfterChange.
type Stage string

const (
	BeforeValidate Stage = "beforeValidate"
	BeforeChange   Stage = "beforeChange"
	AfterChange    Stage = "afterChange"
)

// Stages is the pipeline execution order.
var Stages = []Stage{BeforeValidate, BeforeChange, AfterChange}

// Args carries the in-flight operation state through a hook invocation.
type Args struct {
	Collection string
	Operation  access.Operation
	// Doc is the working document. BeforeValidate and BeforeChange hooks may
	// return a replacement; AfterChange receives the finalized document and
	// its return value is discarded.
	Doc schema.Document
	// Original holds the pre-mutation document on update and delete, nil on create.
	Original schema.Document
	// Principal is the actor driving the operation.
	Principal access.Principal
}

// Hook is one lifecycle extension function. Returning a nil document keeps
// the current working document; returning an AbortError (via Abort) cancels
// the whole operation.
type Hook func(ctx context.Context, args *Args) (schema.Document, error)

// Bindings maps each stage to its ordered hook list.
type Bindings map[Stage][]Hook

// AbortError cancels an operation from inside a hook, carrying a
// caller-facing reason.
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("operation aborted by hook: %s", e.Reason)
}

// Abort builds an AbortError with a formatted reason.
func Abort(format string, args ...any) error {
	return &AbortError{Reason: fmt.Sprintf(format, args...)}
}

// IsAbort reports whether err is (or wraps) an AbortError, returning it.
func IsAbort(err error) (*AbortError, bool) {
	var abort *AbortError
	if errors.As(err, &abort) {
		return abort, true
	}
	return nil, false
}

// Run executes every hook bound to a stage, in declaration order, threading
// the working document through. The stage completes fully before the caller
// advances; no hook runs concurrently with another hook of the same document.
func Run(ctx context.Context, bindings Bindings, stage Stage, args *Args) (schema.Document, error) {
	if bindings == nil {
		return args.Doc, nil
	}
	for _, h := range bindings[stage] {
		doc, err := h(ctx, args)
		if err != nil {
			return nil, fmt.Errorf("%s hook failed: %w", stage, err)
		}
		if doc != nil {
			args.Doc = doc
		}
	}
	return args.Doc, nil
}
