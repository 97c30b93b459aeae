package idgen

import (
	"context"

	"github.com/thenano/openmrs-module-idgen/internal/core/id"
)

// SourceRepository persists identifier sources of all variants.
// Implementations live in infrastructure/storage.
type SourceRepository interface {
	// Create inserts a new source.
	Create(ctx context.Context, source IdentifierSource) error

	// Update modifies an existing source (with optimistic locking).
	// The sequential counter column is owned by SequenceRepository and is
	// never written by Update.
	Update(ctx context.Context, source IdentifierSource) error

	// GetByID retrieves a source by id.
	GetByID(ctx context.Context, sourceID id.ID) (IdentifierSource, error)

	// List retrieves all sources, optionally including retired ones.
	List(ctx context.Context, includeRetired bool) ([]IdentifierSource, error)

	// ListByType retrieves sources of one variant.
	ListByType(ctx context.Context, sourceType SourceType, includeRetired bool) ([]IdentifierSource, error)

	// Purge permanently removes a source and its pool entries.
	Purge(ctx context.Context, sourceID id.ID) error
}

// SequenceRepository owns the sequential counter state. It is the only
// component permitted to advance it.
type SequenceRepository interface {
	// ReserveRange atomically advances the counter of a sequential source
	// by count and returns the inclusive run (first, last) of reserved raw
	// values. The stored value after return equals last. Reservation and
	// persistence are a single statement: no crash can expose an
	// intermediate state.
	ReserveRange(ctx context.Context, sourceID id.ID, count int) (first, last int64, err error)

	// CurrentValue reads the committed counter value.
	CurrentValue(ctx context.Context, sourceID id.ID) (int64, error)

	// SetValue overwrites the counter (management/migration only). Values
	// lower than the current one are rejected: the counter is monotonic.
	SetValue(ctx context.Context, sourceID id.ID, value int64) error
}

// PoolRepository owns pooled identifier state.
type PoolRepository interface {
	// Reserve atomically flips up to count AVAILABLE entries of the pool
	// to USED and returns them, recording who consumed them. Concurrent
	// callers never receive the same entry. If fewer than count entries
	// are available, only those are returned; no blocking, no refill.
	// Consumption order follows the pool's SequentialAllocation flag.
	Reserve(ctx context.Context, pool *IdentifierPool, count int, usedBy string) ([]*PooledIdentifier, error)

	// Count returns pool sizes. availableOnly and usedOnly narrow the
	// count to one status; both false counts everything; both true is a
	// contradiction and counts nothing.
	Count(ctx context.Context, poolID id.ID, availableOnly, usedOnly bool) (int, error)

	// Add inserts new AVAILABLE entries. Fails with a conflict error if
	// any identifier is already present in the pool, available or used.
	Add(ctx context.Context, poolID id.ID, identifiers []string) error
}

// LogRepository is the append-only issuance ledger.
type LogRepository interface {
	// Append writes issuance records. There is no update or delete.
	Append(ctx context.Context, entries []*LogEntry) error

	// List returns entries matching the filter, oldest first.
	List(ctx context.Context, filter LogFilter) ([]*LogEntry, error)
}

// AutoGenerationRepository persists auto-generation options.
type AutoGenerationRepository interface {
	// Create inserts an option. Fails with a conflict error when another
	// option already covers the same identifier type.
	Create(ctx context.Context, option *AutoGenerationOption) error

	// Update modifies an existing option by id.
	Update(ctx context.Context, option *AutoGenerationOption) error

	// GetByType returns the option covering an identifier type, or a
	// not-found error.
	GetByType(ctx context.Context, identifierType string) (*AutoGenerationOption, error)

	// List returns all options.
	List(ctx context.Context) ([]*AutoGenerationOption, error)

	// Purge permanently removes an option.
	Purge(ctx context.Context, optionID id.ID) error
}
