package idgen

import (
	"context"
	"sync"
)

// Processor is the generation strategy contract. Given a source
// configuration and a quantity, it produces that many freshly-reserved
// identifiers. Reservation is the unit of uniqueness: values handed back
// are never produced again, even if delivery downstream fails.
type Processor interface {
	// Reserve produces batchSize identifiers from the source, in issuance
	// order. Callers hold the source's exclusion lock; implementations
	// never need their own cross-call serialization.
	Reserve(ctx context.Context, source IdentifierSource, batchSize int) ([]string, error)
}

// Registry maps source variant tags to the processor responsible for them.
// Read-mostly: registrations happen at startup (or by trusted callers
// extending the engine), lookups on every generation.
type Registry struct {
	mu         sync.RWMutex
	processors map[SourceType]Processor
}

// NewRegistry creates an empty processor registry.
func NewRegistry() *Registry {
	return &Registry{processors: make(map[SourceType]Processor)}
}

// Register associates a variant tag with a processor. The last
// registration for a tag wins, which supports overriding for tests and
// extensions.
func (r *Registry) Register(sourceType SourceType, p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[sourceType] = p
}

// Get resolves the processor for a source. Returns false when the
// source's variant has no registered processor.
func (r *Registry) Get(source IdentifierSource) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[source.Type()]
	return p, ok
}

// Types returns the variant tags that currently have a processor.
func (r *Registry) Types() []SourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]SourceType, 0, len(r.processors))
	for t := range r.processors {
		types = append(types, t)
	}
	return types
}
