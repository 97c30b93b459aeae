// Package entity provides base types shared by all persisted entities.
package entity

import (
	"context"
	"time"

	"github.com/thenano/openmrs-module-idgen/internal/core/id"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	// Validate checks entity invariants.
	// Returns nil if valid, AppError with details otherwise.
	Validate(ctx context.Context) error
}

// BaseEntity contains common fields for all entities.
type BaseEntity struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`

	// Audit fields
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
}

// NewBaseEntity creates a new BaseEntity with generated ID.
func NewBaseEntity() BaseEntity {
	return BaseEntity{
		ID:        id.New(),
		Version:   1,
		CreatedAt: time.Now().UTC(),
	}
}

// Touch increments version (for optimistic locking).
func (b *BaseEntity) Touch() {
	b.Version++
}

// Retireable adds soft-retire metadata. Retired entities reject new work
// but remain queryable for history.
type Retireable struct {
	Retired      bool       `db:"retired" json:"retired"`
	RetiredBy    *string    `db:"retired_by" json:"retiredBy,omitempty"`
	RetiredAt    *time.Time `db:"retired_at" json:"retiredAt,omitempty"`
	RetireReason *string    `db:"retire_reason" json:"retireReason,omitempty"`
}

// Retire marks the entity retired, recording who and why.
func (r *Retireable) Retire(by, reason string) {
	now := time.Now().UTC()
	r.Retired = true
	r.RetiredBy = &by
	r.RetiredAt = &now
	if reason != "" {
		r.RetireReason = &reason
	}
}

// Unretire clears retire metadata.
func (r *Retireable) Unretire() {
	r.Retired = false
	r.RetiredBy = nil
	r.RetiredAt = nil
	r.RetireReason = nil
}
