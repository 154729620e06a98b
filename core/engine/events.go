package engine

import (
	"context"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/google/uuid"

	"github.com/asaidimu/go-vellum/core/access"
	"github.com/asaidimu/go-vellum/core/schema"
)

// EventType identifies one engine lifecycle event.
type EventType string

const (
	DocumentCreateStart   EventType = "document:create:start"
	DocumentCreateSuccess EventType = "document:create:success"
	DocumentCreateFailed  EventType = "document:create:failed"
	DocumentReadStart     EventType = "document:read:start"
	DocumentReadSuccess   EventType = "document:read:success"
	DocumentReadFailed    EventType = "document:read:failed"
	DocumentUpdateStart   EventType = "document:update:start"
	DocumentUpdateSuccess EventType = "document:update:success"
	DocumentUpdateFailed  EventType = "document:update:failed"
	DocumentDeleteStart   EventType = "document:delete:start"
	DocumentDeleteSuccess EventType = "document:delete:success"
	DocumentDeleteFailed  EventType = "document:delete:failed"

	// HookAfterChangeFailed reports an afterChange hook failure. The primary
	// write has already committed, so this is a warning, never an operation
	// failure.
	HookAfterChangeFailed EventType = "hook:afterchange:failed"

	// AssetDeleteFailed reports a post-commit blob delete failure (an
	// orphaned blob was left behind).
	AssetDeleteFailed EventType = "asset:delete:failed"
)

// Event is emitted around every engine operation.
type Event struct {
	Type       EventType        `json:"type"`
	Timestamp  int64            `json:"timestamp"` // Unix milliseconds
	Operation  access.Operation `json:"operation"`
	Collection string           `json:"collection"`
	DocumentID string           `json:"documentId,omitempty"`
	Input      any              `json:"input,omitempty"`
	Output     any              `json:"output,omitempty"`
	Error      *string          `json:"error,omitempty"`
	Issues     []schema.Issue   `json:"issues,omitempty"`
	Duration   *int64           `json:"duration,omitempty"` // milliseconds
}

// EventCallback handles one emitted event.
type EventCallback func(ctx context.Context, event Event) error

// SubscriptionInfo describes a registered event subscription.
type SubscriptionInfo struct {
	ID          string    `json:"id"`
	Event       EventType `json:"event"`
	Label       *string   `json:"label,omitempty"`
	Description *string   `json:"description,omitempty"`
	Unsubscribe func()    `json:"-"`
}

// RegisterSubscriptionOptions configures a subscription registration.
type RegisterSubscriptionOptions struct {
	Event       EventType
	Label       *string
	Description *string
	Callback    EventCallback
}

// RegisterSubscription registers a callback for an event type and returns an
// id usable with UnregisterSubscription.
func (e *Engine) RegisterSubscription(options RegisterSubscriptionOptions) string {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	unsubscribe := e.bus.Subscribe(string(options.Event), func(ctx context.Context, event Event) error {
		return options.Callback(ctx, event)
	})
	id := uuid.New().String()

	e.subscriptions[id] = &SubscriptionInfo{
		ID:          id,
		Event:       options.Event,
		Label:       options.Label,
		Description: options.Description,
		Unsubscribe: unsubscribe,
	}
	return id
}

// UnregisterSubscription removes a subscription by id.
func (e *Engine) UnregisterSubscription(id string) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	if info, ok := e.subscriptions[id]; ok {
		info.Unsubscribe()
		delete(e.subscriptions, id)
	}
}

// Subscriptions lists the active subscriptions.
func (e *Engine) Subscriptions() []SubscriptionInfo {
	e.subMu.RLock()
	defer e.subMu.RUnlock()
	subs := make([]SubscriptionInfo, 0, len(e.subscriptions))
	for _, sub := range e.subscriptions {
		subs = append(subs, *sub)
	}
	return subs
}

func newBus() (*events.TypedEventBus[Event], error) {
	return events.NewTypedEventBus[Event](events.DefaultConfig())
}

func (e *Engine) emit(event Event) {
	if e.bus != nil {
		e.bus.Emit(string(event.Type), event)
	}
}

// withEvents wraps an operation with start, success, and failure events,
// recording the operation duration.
func (e *Engine) withEvents(
	op access.Operation,
	collectionSlug string,
	start, success, failed EventType,
	input any,
	fn func() (any, error),
) (any, error) {
	startTime := time.Now()
	e.emit(Event{
		Type:       start,
		Timestamp:  startTime.UnixMilli(),
		Operation:  op,
		Collection: collectionSlug,
		Input:      input,
	})

	result, err := fn()
	duration := time.Since(startTime).Milliseconds()

	if err != nil {
		errStr := err.Error()
		event := Event{
			Type:       failed,
			Timestamp:  time.Now().UnixMilli(),
			Operation:  op,
			Collection: collectionSlug,
			Input:      input,
			Error:      &errStr,
			Duration:   &duration,
		}
		if verr, ok := IsValidation(err); ok {
			event.Issues = verr.Issues
		}
		e.emit(event)
		return nil, err
	}

	e.emit(Event{
		Type:       success,
		Timestamp:  time.Now().UnixMilli(),
		Operation:  op,
		Collection: collectionSlug,
		Input:      input,
		Output:     result,
		Duration:   &duration,
	})
	return result, nil
}
