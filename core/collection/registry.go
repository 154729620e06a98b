package collection

import (
	"fmt"
	"sort"
	"sync"
)

// DuplicateSlugError reports a second registration under an existing slug.
type DuplicateSlugError struct {
	Slug string
}

func (e *DuplicateSlugError) Error() string {
	return fmt.Sprintf("collection '%s' is already registered", e.Slug)
}

// UnknownCollectionError reports a lookup for an unregistered slug.
type UnknownCollectionError struct {
	Slug string
}

func (e *UnknownCollectionError) Error() string {
	return fmt.Sprintf("unknown collection '%s'", e.Slug)
}

// Registry maps collection slugs to their definitions. It is built during the
// startup phase and then finalized; after Finalize the registry is read-only
// and safe for concurrent use without further locking discipline by callers.
// Registries are plain values handed to the engine, not process singletons,
// so multiple independent registries can coexist in one process.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]*CollectionSchema
	finalized   bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{collections: make(map[string]*CollectionSchema)}
}

// Register adds a collection definition. Registration order carries no
// runtime meaning: relation and upload targets resolve lazily, so forward
// references between collections are fine.
func (r *Registry) Register(c *CollectionSchema) error {
	if err := c.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return fmt.Errorf("registry is finalized; cannot register '%s'", c.Slug)
	}
	if _, exists := r.collections[c.Slug]; exists {
		return &DuplicateSlugError{Slug: c.Slug}
	}
	r.collections[c.Slug] = c
	return nil
}

// MustRegister is Register for startup wiring; it panics on error.
func (r *Registry) MustRegister(c *CollectionSchema) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// Finalize closes the registration phase. Further Register calls fail.
func (r *Registry) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalized = true
}

// Resolve returns the definition registered under slug.
func (r *Registry) Resolve(slug string) (*CollectionSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[slug]
	if !ok {
		return nil, &UnknownCollectionError{Slug: slug}
	}
	return c, nil
}

// Slugs returns every registered slug in sorted order.
func (r *Registry) Slugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	slugs := make([]string, 0, len(r.collections))
	for slug := range r.collections {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}
