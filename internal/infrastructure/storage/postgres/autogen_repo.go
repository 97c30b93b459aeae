package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	"github.com/thenano/openmrs-module-idgen/internal/core/id"
	"github.com/thenano/openmrs-module-idgen/internal/domain/idgen"
)

// AutoGenerationRepo implements idgen.AutoGenerationRepository.
// The unique index on identifier_type enforces at most one option per
// identifier type.
type AutoGenerationRepo struct {
	tm *TxManager
}

// NewAutoGenerationRepo creates an auto-generation option repository.
func NewAutoGenerationRepo(tm *TxManager) *AutoGenerationRepo {
	return &AutoGenerationRepo{tm: tm}
}

const autoGenColumns = `id, identifier_type, source_id,
	automatic_generation_enabled, manual_entry_enabled,
	version, created_at, created_by`

// Create inserts an option.
func (r *AutoGenerationRepo) Create(ctx context.Context, option *idgen.AutoGenerationOption) error {
	q := r.tm.GetQuerier(ctx)

	query := `
		INSERT INTO idgen_auto_generation_options (
			id, identifier_type, source_id,
			automatic_generation_enabled, manual_entry_enabled,
			version, created_at, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := q.Exec(ctx, query,
		option.ID, option.IdentifierType, option.SourceID,
		option.AutomaticGenerationEnabled, option.ManualEntryEnabled,
		option.Version, option.CreatedAt, option.CreatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.NewConflict(
				fmt.Sprintf("identifier type %q already has an auto-generation option", option.IdentifierType))
		}
		return apperror.NewDatabase(fmt.Errorf("insert auto-generation option: %w", err))
	}
	return nil
}

// Update modifies an option with optimistic locking.
func (r *AutoGenerationRepo) Update(ctx context.Context, option *idgen.AutoGenerationOption) error {
	q := r.tm.GetQuerier(ctx)

	query := `
		UPDATE idgen_auto_generation_options SET
			identifier_type = $2,
			source_id = $3,
			automatic_generation_enabled = $4,
			manual_entry_enabled = $5,
			version = version + 1
		WHERE id = $1 AND version = $6
	`

	tag, err := q.Exec(ctx, query,
		option.ID, option.IdentifierType, option.SourceID,
		option.AutomaticGenerationEnabled, option.ManualEntryEnabled,
		option.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.NewConflict(
				fmt.Sprintf("identifier type %q already has an auto-generation option", option.IdentifierType))
		}
		return apperror.NewDatabase(fmt.Errorf("update auto-generation option: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConflict(
			fmt.Sprintf("option %s was modified concurrently or does not exist", option.ID))
	}

	option.Version++
	return nil
}

// GetByType returns the option covering an identifier type.
func (r *AutoGenerationRepo) GetByType(ctx context.Context, identifierType string) (*idgen.AutoGenerationOption, error) {
	q := r.tm.GetQuerier(ctx)

	query := `SELECT ` + autoGenColumns + `
		FROM idgen_auto_generation_options
		WHERE identifier_type = $1`

	var option idgen.AutoGenerationOption
	err := pgxscan.Get(ctx, q, &option, query, identifierType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("auto-generation option", identifierType)
	}
	if err != nil {
		return nil, apperror.NewDatabase(fmt.Errorf("query auto-generation option: %w", err))
	}
	return &option, nil
}

// List returns all options.
func (r *AutoGenerationRepo) List(ctx context.Context) ([]*idgen.AutoGenerationOption, error) {
	q := r.tm.GetQuerier(ctx)

	query := `SELECT ` + autoGenColumns + `
		FROM idgen_auto_generation_options
		ORDER BY identifier_type`

	var options []*idgen.AutoGenerationOption
	if err := pgxscan.Select(ctx, q, &options, query); err != nil {
		return nil, apperror.NewDatabase(fmt.Errorf("list auto-generation options: %w", err))
	}
	return options, nil
}

// Purge permanently removes an option.
func (r *AutoGenerationRepo) Purge(ctx context.Context, optionID id.ID) error {
	q := r.tm.GetQuerier(ctx)

	tag, err := q.Exec(ctx, `DELETE FROM idgen_auto_generation_options WHERE id = $1`, optionID)
	if err != nil {
		return apperror.NewDatabase(fmt.Errorf("purge auto-generation option: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("auto-generation option", optionID.String())
	}
	return nil
}
