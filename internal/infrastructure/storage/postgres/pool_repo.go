package postgres

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	"github.com/thenano/openmrs-module-idgen/internal/core/id"
	"github.com/thenano/openmrs-module-idgen/internal/domain/idgen"
)

// PoolRepo implements idgen.PoolRepository on idgen_pooled_identifiers.
type PoolRepo struct {
	tm *TxManager
}

// NewPoolRepo creates a pool repository.
func NewPoolRepo(tm *TxManager) *PoolRepo {
	return &PoolRepo{tm: tm}
}

// reserveSequential selects the oldest available entries in insertion
// order. FOR UPDATE SKIP LOCKED keeps concurrent reservations from
// blocking on or double-claiming the same rows.
const reserveSequential = `
	WITH picked AS (
		SELECT id FROM idgen_pooled_identifiers
		WHERE pool_id = $1 AND status = 'AVAILABLE'
		ORDER BY added_at, id
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	)
	UPDATE idgen_pooled_identifiers p
	SET status = 'USED', used_at = now(), used_by = $3
	FROM picked
	WHERE p.id = picked.id
	RETURNING p.id, p.pool_id, p.identifier, p.status, p.added_at, p.used_at, p.used_by
`

const reserveRandom = `
	WITH picked AS (
		SELECT id FROM idgen_pooled_identifiers
		WHERE pool_id = $1 AND status = 'AVAILABLE'
		ORDER BY random()
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	)
	UPDATE idgen_pooled_identifiers p
	SET status = 'USED', used_at = now(), used_by = $3
	FROM picked
	WHERE p.id = picked.id
	RETURNING p.id, p.pool_id, p.identifier, p.status, p.added_at, p.used_at, p.used_by
`

// Reserve flips up to count AVAILABLE entries to USED and returns them.
func (r *PoolRepo) Reserve(ctx context.Context, pool *idgen.IdentifierPool, count int, usedBy string) ([]*idgen.PooledIdentifier, error) {
	if count < 1 {
		return nil, apperror.NewValidation("reservation count must be positive").
			WithDetail("count", count)
	}
	q := r.tm.GetQuerier(ctx)

	query := reserveRandom
	if pool.SequentialAllocation {
		query = reserveSequential
	}

	var entries []*idgen.PooledIdentifier
	if err := pgxscan.Select(ctx, q, &entries, query, pool.ID, count, usedBy); err != nil {
		return nil, apperror.NewDatabase(fmt.Errorf("reserve pool entries: %w", err))
	}
	return entries, nil
}

// Count returns pool sizes by status. Both flags set is a contradiction
// and counts nothing.
func (r *PoolRepo) Count(ctx context.Context, poolID id.ID, availableOnly, usedOnly bool) (int, error) {
	if availableOnly && usedOnly {
		return 0, nil
	}
	q := r.tm.GetQuerier(ctx)

	query := `SELECT count(*) FROM idgen_pooled_identifiers WHERE pool_id = $1`
	switch {
	case availableOnly:
		query += ` AND status = 'AVAILABLE'`
	case usedOnly:
		query += ` AND status = 'USED'`
	}

	var n int
	if err := q.QueryRow(ctx, query, poolID).Scan(&n); err != nil {
		return 0, apperror.NewDatabase(fmt.Errorf("count pool entries: %w", err))
	}
	return n, nil
}

// Add inserts new AVAILABLE entries. The unique (pool_id, identifier)
// constraint rejects duplicates whether available or used.
func (r *PoolRepo) Add(ctx context.Context, poolID id.ID, identifiers []string) error {
	if len(identifiers) == 0 {
		return nil
	}
	q := r.tm.GetQuerier(ctx)

	qb := builder().
		Insert("idgen_pooled_identifiers").
		Columns("id", "pool_id", "identifier", "status", "added_at")
	for _, identifier := range identifiers {
		entry := idgen.NewPooledIdentifier(poolID, identifier)
		qb = qb.Values(entry.ID, entry.PoolID, entry.Identifier, entry.Status, entry.AddedAt)
	}

	sql, args, err := qb.ToSql()
	if err != nil {
		return fmt.Errorf("build pool insert: %w", err)
	}

	if _, err := q.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return apperror.NewConflict("one or more identifiers already exist in the pool")
		}
		return apperror.NewDatabase(fmt.Errorf("insert pool entries: %w", err))
	}
	return nil
}
