package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	"github.com/thenano/openmrs-module-idgen/internal/domain/idgen"
)

// LogRepo implements idgen.LogRepository on idgen_log_entries. The table
// is append-only; no update or delete statements exist here.
type LogRepo struct {
	tm *TxManager
}

// NewLogRepo creates a ledger repository.
func NewLogRepo(tm *TxManager) *LogRepo {
	return &LogRepo{tm: tm}
}

// Append writes issuance records in one multi-row insert.
func (r *LogRepo) Append(ctx context.Context, entries []*idgen.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	q := r.tm.GetQuerier(ctx)

	qb := builder().
		Insert("idgen_log_entries").
		Columns("id", "source_id", "identifier", "generated_at", "generated_by", "comment")
	for _, e := range entries {
		qb = qb.Values(e.ID, e.SourceID, e.Identifier, e.GeneratedAt, e.GeneratedBy, e.Comment)
	}

	sql, args, err := qb.ToSql()
	if err != nil {
		return fmt.Errorf("build ledger insert: %w", err)
	}

	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return apperror.NewDatabase(fmt.Errorf("append ledger entries: %w", err))
	}
	return nil
}

// List returns entries matching the filter, oldest first. Date bounds
// compare by calendar date, not instant.
func (r *LogRepo) List(ctx context.Context, filter idgen.LogFilter) ([]*idgen.LogEntry, error) {
	q := r.tm.GetQuerier(ctx)

	qb := builder().
		Select("id", "source_id", "identifier", "generated_at", "generated_by", "comment").
		From("idgen_log_entries").
		OrderBy("generated_at", "id")

	if filter.SourceID != nil {
		qb = qb.Where(squirrel.Eq{"source_id": *filter.SourceID})
	}
	if filter.FromDate != nil {
		qb = qb.Where(squirrel.Expr("generated_at::date >= ?::date", *filter.FromDate))
	}
	if filter.ToDate != nil {
		qb = qb.Where(squirrel.Expr("generated_at::date <= ?::date", *filter.ToDate))
	}
	if filter.Identifier != "" {
		qb = qb.Where(squirrel.Like{"identifier": "%" + filter.Identifier + "%"})
	}
	if filter.GeneratedBy != "" {
		qb = qb.Where(squirrel.Eq{"generated_by": filter.GeneratedBy})
	}
	if filter.Comment != "" {
		qb = qb.Where(squirrel.Like{"comment": "%" + filter.Comment + "%"})
	}

	sql, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ledger query: %w", err)
	}

	var entries []*idgen.LogEntry
	if err := pgxscan.Select(ctx, q, &entries, sql, args...); err != nil {
		return nil, apperror.NewDatabase(fmt.Errorf("list ledger entries: %w", err))
	}
	return entries, nil
}
