package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	"github.com/thenano/openmrs-module-idgen/internal/core/id"
)

// SequenceRepo implements idgen.SequenceRepository. It is the only
// writer of the seq_next_value column.
type SequenceRepo struct {
	tm *TxManager
}

// NewSequenceRepo creates a sequence repository.
func NewSequenceRepo(tm *TxManager) *SequenceRepo {
	return &SequenceRepo{tm: tm}
}

// ReserveRange advances the counter by count in a single statement and
// returns the reserved run. The row lock taken by UPDATE serializes
// concurrent reservations; each caller sees a distinct, contiguous run.
func (r *SequenceRepo) ReserveRange(ctx context.Context, sourceID id.ID, count int) (int64, int64, error) {
	if count < 1 {
		return 0, 0, apperror.NewValidation("reservation count must be positive").
			WithDetail("count", count)
	}
	q := r.tm.GetQuerier(ctx)

	query := `
		UPDATE idgen_sources
		SET seq_next_value = seq_next_value + $2
		WHERE id = $1 AND source_type = 'sequential'
		RETURNING seq_next_value
	`

	var last int64
	err := q.QueryRow(ctx, query, sourceID, count).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, apperror.NewNotFound("sequential source", sourceID.String())
	}
	if err != nil {
		return 0, 0, apperror.NewDatabase(fmt.Errorf("reserve range: %w", err))
	}

	return last - int64(count) + 1, last, nil
}

// CurrentValue reads the committed counter value.
func (r *SequenceRepo) CurrentValue(ctx context.Context, sourceID id.ID) (int64, error) {
	q := r.tm.GetQuerier(ctx)

	query := `
		SELECT seq_next_value FROM idgen_sources
		WHERE id = $1 AND source_type = 'sequential'
	`

	var value int64
	err := q.QueryRow(ctx, query, sourceID).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperror.NewNotFound("sequential source", sourceID.String())
	}
	if err != nil {
		return 0, apperror.NewDatabase(fmt.Errorf("read counter: %w", err))
	}
	return value, nil
}

// SetValue overwrites the counter. Moving it backwards would reissue
// identifiers, so lower values are rejected.
func (r *SequenceRepo) SetValue(ctx context.Context, sourceID id.ID, value int64) error {
	q := r.tm.GetQuerier(ctx)

	query := `
		UPDATE idgen_sources
		SET seq_next_value = $2
		WHERE id = $1 AND source_type = 'sequential' AND seq_next_value <= $2
	`

	tag, err := q.Exec(ctx, query, sourceID, value)
	if err != nil {
		return apperror.NewDatabase(fmt.Errorf("set counter: %w", err))
	}
	if tag.RowsAffected() == 0 {
		current, err := r.CurrentValue(ctx, sourceID)
		if err != nil {
			return err
		}
		return apperror.NewConflict("counter cannot move backwards").
			WithDetail("current", current).
			WithDetail("requested", value)
	}
	return nil
}
