package idgen

import (
	"time"

	"github.com/thenano/openmrs-module-idgen/internal/core/id"
)

// PooledStatus is the lifecycle state of a pool entry.
// AVAILABLE transitions to USED exactly once; never back.
type PooledStatus string

const (
	PooledAvailable PooledStatus = "AVAILABLE"
	PooledUsed      PooledStatus = "USED"
)

// PooledIdentifier is one pre-generated identifier held by a pool.
type PooledIdentifier struct {
	ID         id.ID        `db:"id" json:"id"`
	PoolID     id.ID        `db:"pool_id" json:"poolId"`
	Identifier string       `db:"identifier" json:"identifier"`
	Status     PooledStatus `db:"status" json:"status"`
	AddedAt    time.Time    `db:"added_at" json:"addedAt"`
	UsedAt     *time.Time   `db:"used_at" json:"usedAt,omitempty"`
	UsedBy     *string      `db:"used_by" json:"usedBy,omitempty"`
}

// NewPooledIdentifier creates an AVAILABLE entry for a pool.
func NewPooledIdentifier(poolID id.ID, identifier string) *PooledIdentifier {
	return &PooledIdentifier{
		ID:         id.New(),
		PoolID:     poolID,
		Identifier: identifier,
		Status:     PooledAvailable,
		AddedAt:    time.Now().UTC(),
	}
}
