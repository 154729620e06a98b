// Package engine implements the document lifecycle orchestrator: given an
// operation on a collection it resolves access, runs the hook pipeline,
// validates fields, derives computed values, and delegates persistence to the
// storage collaborator. The engine is request-scoped and stateless between
// requests; the registry is the only shared state and is read-only after
// startup.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/asaidimu/go-events"
	"go.uber.org/zap"

	"github.com/asaidimu/go-vellum/core/access"
	"github.com/asaidimu/go-vellum/core/assets"
	"github.com/asaidimu/go-vellum/core/collection"
	"github.com/asaidimu/go-vellum/core/hook"
	"github.com/asaidimu/go-vellum/core/schema"
	"github.com/asaidimu/go-vellum/core/storage"
)

// Engine orchestrates document operations over a registry of collections and
// a persistence collaborator.
type Engine struct {
	registry *collection.Registry
	store    storage.Store
	uploader *assets.Uploader
	logger   *zap.Logger
	bus      *events.TypedEventBus[Event]

	subMu         sync.RWMutex
	subscriptions map[string]*SubscriptionInfo
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithUploader wires the binary asset uploader used by upload-type fields.
// Without it, pending binary payloads are rejected.
func WithUploader(uploader *assets.Uploader) Option {
	return func(e *Engine) { e.uploader = uploader }
}

// New creates an Engine over a registry and store. The registry is finalized
// here: collection definitions are immutable for the rest of the process
// lifetime.
func New(registry *collection.Registry, store storage.Store, opts ...Option) (*Engine, error) {
	bus, err := newBus()
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}
	e := &Engine{
		registry:      registry,
		store:         store,
		logger:        zap.NewNop(),
		bus:           bus,
		subscriptions: make(map[string]*SubscriptionInfo),
	}
	for _, opt := range opts {
		opt(e)
	}
	registry.Finalize()
	return e, nil
}

// Request is the single operation-execution entry point's input.
type Request struct {
	Collection string
	Operation  access.Operation
	Principal  access.Principal
	// Payload carries the document data for create and update.
	Payload schema.Document
	// TargetID selects the document for read, update, and delete by id.
	TargetID string
	// Filter adds caller constraints to list reads.
	Filter storage.Filter
	// Page paginates list reads.
	Page storage.Pagination
}

// Result is the structured outcome of Execute.
type Result struct {
	Doc  schema.Document `json:"doc,omitempty"`
	Page *storage.Page   `json:"page,omitempty"`
	// Deleted reports whether a delete removed a document.
	Deleted bool `json:"deleted,omitempty"`
}

// Execute dispatches one operation. Reads with a TargetID return a single
// document; reads without one return a page.
func (e *Engine) Execute(ctx context.Context, req Request) (Result, error) {
	switch req.Operation {
	case access.OperationCreate:
		doc, err := e.Create(ctx, req.Collection, req.Principal, req.Payload)
		return Result{Doc: doc}, err
	case access.OperationRead:
		if req.TargetID != "" {
			doc, err := e.Get(ctx, req.Collection, req.Principal, req.TargetID)
			return Result{Doc: doc}, err
		}
		page, err := e.List(ctx, req.Collection, req.Principal, req.Filter, req.Page)
		if err != nil {
			return Result{}, err
		}
		return Result{Page: &page}, nil
	case access.OperationUpdate:
		doc, err := e.Update(ctx, req.Collection, req.Principal, req.TargetID, req.Payload)
		return Result{Doc: doc}, err
	case access.OperationDelete:
		err := e.Delete(ctx, req.Collection, req.Principal, req.TargetID)
		return Result{Deleted: err == nil}, err
	default:
		return Result{}, fmt.Errorf("unknown operation '%s'", req.Operation)
	}
}

// Create validates and persists a new document.
func (e *Engine) Create(ctx context.Context, slug string, principal access.Principal, payload schema.Document) (schema.Document, error) {
	result, err := e.withEvents(access.OperationCreate, slug,
		DocumentCreateStart, DocumentCreateSuccess, DocumentCreateFailed,
		payload, func() (any, error) {
			return e.create(ctx, slug, principal, payload)
		})
	if err != nil {
		return nil, err
	}
	return result.(schema.Document), nil
}

func (e *Engine) create(ctx context.Context, slug string, principal access.Principal, payload schema.Document) (schema.Document, error) {
	col, err := e.registry.Resolve(slug)
	if err != nil {
		return nil, err
	}
	decision := access.Evaluate(col.Access, access.OperationCreate, principal)
	if decision.Kind != access.DecisionAllow {
		return nil, &AccessDeniedError{Collection: slug, Operation: access.OperationCreate}
	}

	doc := payload.Clone()
	schema.ApplyDefaults(col.Fields, doc)

	args := &hook.Args{Collection: slug, Operation: access.OperationCreate, Doc: doc, Principal: principal}
	if err := e.runPreValidation(ctx, col, args); err != nil {
		return nil, err
	}
	if err := e.resolvePendingUploads(ctx, col, args.Doc); err != nil {
		return nil, err
	}
	if err := e.validate(ctx, col, args.Doc); err != nil {
		return nil, err
	}
	if _, err := hook.Run(ctx, col.Hooks, hook.BeforeChange, args); err != nil {
		return nil, err
	}

	if col.Timestamps {
		now := time.Now().UTC()
		args.Doc[schema.FieldCreatedAt] = now
		args.Doc[schema.FieldUpdatedAt] = now
	}

	if err := e.checkUniqueness(ctx, col, args.Doc, ""); err != nil {
		return nil, err
	}

	stored, err := e.store.Insert(ctx, slug, args.Doc)
	if err != nil {
		return nil, &PersistenceError{Op: "insert", Err: err}
	}

	e.runAfterChange(ctx, col, &hook.Args{
		Collection: slug,
		Operation:  access.OperationCreate,
		Doc:        stored,
		Principal:  principal,
	})
	return stored, nil
}

// Get reads one document by id, honoring scoped access at the persistence layer.
func (e *Engine) Get(ctx context.Context, slug string, principal access.Principal, id string) (schema.Document, error) {
	result, err := e.withEvents(access.OperationRead, slug,
		DocumentReadStart, DocumentReadSuccess, DocumentReadFailed,
		id, func() (any, error) {
			col, err := e.registry.Resolve(slug)
			if err != nil {
				return nil, err
			}
			filter, err := e.readFilter(col, slug, principal)
			if err != nil {
				return nil, err
			}
			doc, err := e.store.FindByID(ctx, slug, id, filter)
			if err != nil {
				return nil, &PersistenceError{Op: "findById", Err: err}
			}
			if doc == nil {
				return nil, &NotFoundError{Collection: slug, ID: id}
			}
			return doc, nil
		})
	if err != nil {
		return nil, err
	}
	return result.(schema.Document), nil
}

// List reads a paginated window of documents. A scoped access decision is
// applied as an additional persistence-layer constraint so pagination
// metadata reflects the filtered count, not the raw collection size.
func (e *Engine) List(ctx context.Context, slug string, principal access.Principal, filter storage.Filter, page storage.Pagination) (storage.Page, error) {
	result, err := e.withEvents(access.OperationRead, slug,
		DocumentReadStart, DocumentReadSuccess, DocumentReadFailed,
		filter, func() (any, error) {
			col, err := e.registry.Resolve(slug)
			if err != nil {
				return nil, err
			}
			scoped, err := e.readFilter(col, slug, principal)
			if err != nil {
				return nil, err
			}
			combined := filter.And(scoped.Conditions...)
			docs, total, err := e.store.Find(ctx, slug, combined, page)
			if err != nil {
				return nil, &PersistenceError{Op: "find", Err: err}
			}
			return storage.NewPage(docs, total, page), nil
		})
	if err != nil {
		return storage.Page{}, err
	}
	return result.(storage.Page), nil
}

// FindBySlug is the unique-field lookup convenience used for content
// retrieval by URL path segment.
func (e *Engine) FindBySlug(ctx context.Context, slug string, principal access.Principal, slugValue string) (schema.Document, error) {
	page, err := e.List(ctx, slug, principal, storage.Eq("slug", slugValue), storage.Pagination{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(page.Docs) == 0 {
		return nil, &NotFoundError{Collection: slug, ID: slugValue}
	}
	return page.Docs[0], nil
}

// Update applies a partial payload over an existing document and re-runs the
// full lifecycle. createdAt is preserved; updatedAt refreshes on every write.
func (e *Engine) Update(ctx context.Context, slug string, principal access.Principal, id string, payload schema.Document) (schema.Document, error) {
	result, err := e.withEvents(access.OperationUpdate, slug,
		DocumentUpdateStart, DocumentUpdateSuccess, DocumentUpdateFailed,
		payload, func() (any, error) {
			return e.update(ctx, slug, principal, id, payload)
		})
	if err != nil {
		return nil, err
	}
	return result.(schema.Document), nil
}

func (e *Engine) update(ctx context.Context, slug string, principal access.Principal, id string, payload schema.Document) (schema.Document, error) {
	col, err := e.registry.Resolve(slug)
	if err != nil {
		return nil, err
	}
	filter, err := e.operationFilter(col, slug, access.OperationUpdate, principal)
	if err != nil {
		return nil, err
	}

	original, err := e.store.FindByID(ctx, slug, id, filter)
	if err != nil {
		return nil, &PersistenceError{Op: "findById", Err: err}
	}
	if original == nil {
		return nil, &NotFoundError{Collection: slug, ID: id}
	}

	doc := original.Clone()
	for field, value := range payload {
		doc[field] = value
	}

	args := &hook.Args{
		Collection: slug,
		Operation:  access.OperationUpdate,
		Doc:        doc,
		Original:   original,
		Principal:  principal,
	}
	if err := e.runPreValidation(ctx, col, args); err != nil {
		return nil, err
	}
	if err := e.resolvePendingUploads(ctx, col, args.Doc); err != nil {
		return nil, err
	}
	if err := e.validate(ctx, col, args.Doc); err != nil {
		return nil, err
	}
	if _, err := hook.Run(ctx, col.Hooks, hook.BeforeChange, args); err != nil {
		return nil, err
	}

	if col.Timestamps {
		// createdAt is set exactly once on create and never changes here.
		args.Doc[schema.FieldCreatedAt] = original[schema.FieldCreatedAt]
		args.Doc[schema.FieldUpdatedAt] = time.Now().UTC()
	}
	args.Doc[schema.FieldID] = id

	if err := e.checkUniqueness(ctx, col, args.Doc, id); err != nil {
		return nil, err
	}

	updated, err := e.store.UpdateByID(ctx, slug, id, args.Doc, filter)
	if err != nil {
		return nil, &PersistenceError{Op: "updateById", Err: err}
	}
	if updated == nil {
		return nil, &NotFoundError{Collection: slug, ID: id}
	}

	e.runAfterChange(ctx, col, &hook.Args{
		Collection: slug,
		Operation:  access.OperationUpdate,
		Doc:        updated,
		Original:   original,
		Principal:  principal,
	})
	return updated, nil
}

// Delete removes a document and, after the persistence delete commits,
// deletes any blobs referenced by its upload fields. Blob deletion never runs
// before the commit; a failed delete must not leave dangling references.
//
// The collection's beforeChange hooks run with the stored document as both
// Doc and Original, and their returned document is discarded. Hooks that
// derive fields see nothing to derive on delete; an Abort still cancels it.
func (e *Engine) Delete(ctx context.Context, slug string, principal access.Principal, id string) error {
	_, err := e.withEvents(access.OperationDelete, slug,
		DocumentDeleteStart, DocumentDeleteSuccess, DocumentDeleteFailed,
		id, func() (any, error) {
			return nil, e.delete(ctx, slug, principal, id)
		})
	return err
}

func (e *Engine) delete(ctx context.Context, slug string, principal access.Principal, id string) error {
	col, err := e.registry.Resolve(slug)
	if err != nil {
		return err
	}
	filter, err := e.operationFilter(col, slug, access.OperationDelete, principal)
	if err != nil {
		return err
	}

	doc, err := e.store.FindByID(ctx, slug, id, filter)
	if err != nil {
		return &PersistenceError{Op: "findById", Err: err}
	}
	if doc == nil {
		return &NotFoundError{Collection: slug, ID: id}
	}

	args := &hook.Args{
		Collection: slug,
		Operation:  access.OperationDelete,
		Doc:        doc,
		Original:   doc,
		Principal:  principal,
	}
	if _, err := hook.Run(ctx, col.Hooks, hook.BeforeChange, args); err != nil {
		return err
	}

	deleted, err := e.store.DeleteByID(ctx, slug, id, filter)
	if err != nil {
		return &PersistenceError{Op: "deleteById", Err: err}
	}
	if !deleted {
		return &NotFoundError{Collection: slug, ID: id}
	}

	e.removeReferencedAssets(ctx, col, doc)
	e.runAfterChange(ctx, col, args)
	return nil
}

// readFilter resolves the read predicate into a persistence filter.
func (e *Engine) readFilter(col *collection.CollectionSchema, slug string, principal access.Principal) (storage.Filter, error) {
	return e.operationFilter(col, slug, access.OperationRead, principal)
}

func (e *Engine) operationFilter(col *collection.CollectionSchema, slug string, op access.Operation, principal access.Principal) (storage.Filter, error) {
	decision := access.Evaluate(col.Access, op, principal)
	switch decision.Kind {
	case access.DecisionAllow:
		return storage.Filter{}, nil
	case access.DecisionScoped:
		return storage.FromCriteria(decision.Criteria), nil
	default:
		return storage.Filter{}, &AccessDeniedError{Collection: slug, Operation: op}
	}
}

// runPreValidation runs field-scoped beforeValidate hooks for every declared
// field, then the collection-level beforeValidate hooks. All of these
// complete before any beforeChange hook runs.
func (e *Engine) runPreValidation(ctx context.Context, col *collection.CollectionSchema, args *hook.Args) error {
	for i := range col.Fields {
		field := &col.Fields[i]
		for _, fieldHook := range field.BeforeValidate {
			value, err := fieldHook(ctx, args.Doc[field.Name], args.Doc, args.Operation)
			if err != nil {
				return fmt.Errorf("beforeValidate hook on field '%s' failed: %w", field.Name, err)
			}
			if value != nil {
				args.Doc[field.Name] = value
			}
		}
	}
	_, err := hook.Run(ctx, col.Hooks, hook.BeforeValidate, args)
	return err
}

func (e *Engine) validate(ctx context.Context, col *collection.CollectionSchema, doc schema.Document) error {
	validator := schema.NewValidator(col.Fields, e.refChecker())
	result := validator.Validate(ctx, doc)
	if !result.Valid {
		return &ValidationError{Collection: col.Slug, Issues: result.Issues}
	}
	return nil
}

// checkUniqueness performs the advisory uniqueness pre-check for every
// declared unique field, collecting all conflicts. The window between this
// check and the persistence write is an accepted race; a race-free guarantee
// must come from the store (e.g. a unique index).
func (e *Engine) checkUniqueness(ctx context.Context, col *collection.CollectionSchema, doc schema.Document, excludeID string) error {
	var issues []schema.Issue
	for _, field := range col.UniqueFields {
		value, ok := doc[field]
		if !ok || value == nil {
			continue
		}
		filter := storage.Eq(field, value)
		if excludeID != "" {
			filter = filter.And(storage.Condition{Field: schema.FieldID, Operator: storage.OpNeq, Value: excludeID})
		}
		count, err := e.store.CountMatching(ctx, col.Slug, filter)
		if err != nil {
			return &PersistenceError{Op: "countMatching", Err: err}
		}
		if count > 0 {
			issues = append(issues, schema.Issue{
				Code:     schema.CodeUniquenessViolation,
				Message:  fmt.Sprintf("value %v for field '%s' is already taken", value, field),
				Path:     field,
				Severity: "error",
			})
		}
	}
	if len(issues) > 0 {
		return &ValidationError{Collection: col.Slug, Issues: issues}
	}
	return nil
}

// runAfterChange runs afterChange hooks with the finalized document. The
// primary write has already committed, so hook failures are reported via the
// logger and the event bus but never fail the operation.
func (e *Engine) runAfterChange(ctx context.Context, col *collection.CollectionSchema, args *hook.Args) {
	if col.Hooks == nil {
		return
	}
	for _, h := range col.Hooks[hook.AfterChange] {
		if _, err := h(ctx, args); err != nil {
			errStr := err.Error()
			e.logger.Warn("afterChange hook failed",
				zap.String("collection", col.Slug),
				zap.String("operation", string(args.Operation)),
				zap.Error(err))
			e.emit(Event{
				Type:       HookAfterChangeFailed,
				Timestamp:  time.Now().UnixMilli(),
				Operation:  args.Operation,
				Collection: col.Slug,
				DocumentID: args.Doc.ID(),
				Error:      &errStr,
			})
		}
	}
}

// resolvePendingUploads replaces pending binary payloads in upload fields
// with stored AssetReferences. The put happens before field validation; the
// reference document is inserted into the target binary-capable collection
// so the field's existence check passes.
func (e *Engine) resolvePendingUploads(ctx context.Context, col *collection.CollectionSchema, doc schema.Document) error {
	for i := range col.Fields {
		field := &col.Fields[i]
		if field.Kind != schema.FieldUpload {
			continue
		}
		pending, ok := pendingUpload(doc[field.Name])
		if !ok {
			continue
		}
		if e.uploader == nil {
			return &StorageError{Op: "put", Name: pending.Filename, Err: fmt.Errorf("no asset adapter configured")}
		}
		target, err := e.registry.Resolve(field.Target)
		if err != nil {
			return err
		}
		if target.Upload == nil {
			return fmt.Errorf("upload field '%s' targets collection '%s', which is not binary-capable", field.Name, field.Target)
		}
		if !target.Upload.Accepts(pending.ContentType) {
			return &ValidationError{Collection: col.Slug, Issues: []schema.Issue{{
				Code:     schema.CodeValidatorFailed,
				Message:  fmt.Sprintf("content type '%s' is not accepted by collection '%s'", pending.ContentType, field.Target),
				Path:     field.Name,
				Severity: "error",
			}}}
		}

		ref, err := e.uploader.Upload(ctx, pending, target.Upload.SizeProfiles)
		if err != nil {
			return err
		}

		assetDoc := schema.Document{
			"filename": pending.Filename,
			"url":      ref.URL,
			"mimeType": ref.MimeType,
			"size":     ref.Size,
		}
		if len(ref.SizeVariants) > 0 {
			variants := make(map[string]any, len(ref.SizeVariants))
			for name, url := range ref.SizeVariants {
				variants[name] = url
			}
			assetDoc["sizeVariants"] = variants
		}
		if target.Timestamps {
			now := time.Now().UTC()
			assetDoc[schema.FieldCreatedAt] = now
			assetDoc[schema.FieldUpdatedAt] = now
		}
		stored, err := e.store.Insert(ctx, field.Target, assetDoc)
		if err != nil {
			return &PersistenceError{Op: "insert", Err: err}
		}
		ref.DocumentID = stored.ID()
		doc[field.Name] = ref.ToDocument()
	}
	return nil
}

// removeReferencedAssets deletes the blobs behind every upload field of a
// just-deleted document. Runs after the persistence delete committed;
// failures are logged and surfaced as warning events only.
func (e *Engine) removeReferencedAssets(ctx context.Context, col *collection.CollectionSchema, doc schema.Document) {
	if e.uploader == nil {
		return
	}
	for i := range col.Fields {
		field := &col.Fields[i]
		if field.Kind != schema.FieldUpload {
			continue
		}
		ref, ok := assets.RefFromDocument(doc[field.Name])
		if !ok {
			continue
		}
		for _, target := range e.uploader.Remove(ctx, ref) {
			errStr := fmt.Sprintf("orphaned blob left behind: %s", target)
			e.emit(Event{
				Type:       AssetDeleteFailed,
				Timestamp:  time.Now().UnixMilli(),
				Operation:  access.OperationDelete,
				Collection: col.Slug,
				DocumentID: doc.ID(),
				Error:      &errStr,
			})
		}
	}
}

func pendingUpload(value any) (assets.PendingUpload, bool) {
	switch v := value.(type) {
	case assets.PendingUpload:
		return v, true
	case *assets.PendingUpload:
		if v != nil {
			return *v, true
		}
	}
	return assets.PendingUpload{}, false
}

// refChecker adapts the store into the validator's reference checker.
// Unknown target collections report false so the issue lands on the field.
func (e *Engine) refChecker() schema.ReferenceChecker {
	return &storeRefChecker{registry: e.registry, store: e.store}
}

type storeRefChecker struct {
	registry *collection.Registry
	store    storage.Store
}

func (c *storeRefChecker) Exists(ctx context.Context, slug string, id string) (bool, error) {
	if _, err := c.registry.Resolve(slug); err != nil {
		return false, nil
	}
	doc, err := c.store.FindByID(ctx, slug, id, storage.Filter{})
	if err != nil {
		return false, err
	}
	return doc != nil, nil
}
