package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	"github.com/thenano/openmrs-module-idgen/internal/core/id"
	"github.com/thenano/openmrs-module-idgen/internal/domain/idgen"
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaks.
const uniqueViolation = "23505"

// builder returns a squirrel builder with PostgreSQL placeholders.
func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// sourceColumns is the full column list of idgen_sources. All variants
// share the table; variant-specific columns are nullable.
var sourceColumns = []string{
	"id", "source_type", "name", "description",
	"version", "created_at", "created_by",
	"retired", "retired_by", "retired_at", "retire_reason",
	"seq_prefix", "seq_suffix", "seq_first_base",
	"seq_min_length", "seq_max_length", "seq_base_charset",
	"seq_check_digit", "seq_next_value",
	"remote_url", "remote_username", "remote_password", "remote_timeout_ms",
	"pool_source_id", "pool_batch_size", "pool_min_size",
	"pool_sequential", "pool_refill_scheduled",
}

// sourceRow is the flat scan target for idgen_sources.
type sourceRow struct {
	ID           id.ID      `db:"id"`
	SourceType   string     `db:"source_type"`
	Name         string     `db:"name"`
	Description  string     `db:"description"`
	Version      int        `db:"version"`
	CreatedAt    time.Time  `db:"created_at"`
	CreatedBy    string     `db:"created_by"`
	Retired      bool       `db:"retired"`
	RetiredBy    *string    `db:"retired_by"`
	RetiredAt    *time.Time `db:"retired_at"`
	RetireReason *string    `db:"retire_reason"`

	SeqPrefix     *string `db:"seq_prefix"`
	SeqSuffix     *string `db:"seq_suffix"`
	SeqFirstBase  *string `db:"seq_first_base"`
	SeqMinLength  *int    `db:"seq_min_length"`
	SeqMaxLength  *int    `db:"seq_max_length"`
	SeqCharset    *string `db:"seq_base_charset"`
	SeqCheckDigit *string `db:"seq_check_digit"`
	SeqNextValue  *int64  `db:"seq_next_value"`

	RemoteURL       *string `db:"remote_url"`
	RemoteUsername  *string `db:"remote_username"`
	RemotePassword  *string `db:"remote_password"`
	RemoteTimeoutMS *int64  `db:"remote_timeout_ms"`

	PoolSourceID        *id.ID `db:"pool_source_id"`
	PoolBatchSize       *int   `db:"pool_batch_size"`
	PoolMinSize         *int   `db:"pool_min_size"`
	PoolSequential      *bool  `db:"pool_sequential"`
	PoolRefillScheduled *bool  `db:"pool_refill_scheduled"`
}

// toSource converts a row into the matching source variant.
func (r *sourceRow) toSource() (idgen.IdentifierSource, error) {
	info := idgen.SourceInfo{
		Name:        r.Name,
		Description: r.Description,
	}
	info.ID = r.ID
	info.Version = r.Version
	info.CreatedAt = r.CreatedAt
	info.CreatedBy = r.CreatedBy
	info.Retired = r.Retired
	info.RetiredBy = r.RetiredBy
	info.RetiredAt = r.RetiredAt
	info.RetireReason = r.RetireReason

	switch idgen.SourceType(r.SourceType) {
	case idgen.SourceTypeSequential:
		s := &idgen.SequentialSource{SourceInfo: info}
		s.Prefix = strOrEmpty(r.SeqPrefix)
		s.Suffix = strOrEmpty(r.SeqSuffix)
		s.FirstIdentifierBase = strOrEmpty(r.SeqFirstBase)
		s.MinLength = intOrZero(r.SeqMinLength)
		s.MaxLength = intOrZero(r.SeqMaxLength)
		s.BaseCharacterSet = strOrEmpty(r.SeqCharset)
		s.CheckDigitAlgorithm = strOrEmpty(r.SeqCheckDigit)
		if r.SeqNextValue != nil {
			s.NextValue = *r.SeqNextValue
		}
		return s, nil

	case idgen.SourceTypeRemote:
		s := &idgen.RemoteSource{SourceInfo: info}
		s.URL = strOrEmpty(r.RemoteURL)
		s.Username = strOrEmpty(r.RemoteUsername)
		s.Password = strOrEmpty(r.RemotePassword)
		if r.RemoteTimeoutMS != nil {
			s.Timeout = time.Duration(*r.RemoteTimeoutMS) * time.Millisecond
		}
		return s, nil

	case idgen.SourceTypePool:
		p := &idgen.IdentifierPool{SourceInfo: info}
		p.BackingSourceID = r.PoolSourceID
		p.BatchSize = intOrZero(r.PoolBatchSize)
		p.MinPoolSize = intOrZero(r.PoolMinSize)
		if r.PoolSequential != nil {
			p.SequentialAllocation = *r.PoolSequential
		}
		if r.PoolRefillScheduled != nil {
			p.RefillWithScheduledTask = *r.PoolRefillScheduled
		}
		return p, nil
	}

	return nil, fmt.Errorf("unknown source type %q in row %s", r.SourceType, r.ID)
}

// rowFromSource flattens a source variant into column values keyed by
// column name, for insert and update statements.
func rowFromSource(source idgen.IdentifierSource) map[string]any {
	info := source.Info()
	m := map[string]any{
		"id":            info.ID,
		"source_type":   string(source.Type()),
		"name":          info.Name,
		"description":   info.Description,
		"version":       info.Version,
		"created_at":    info.CreatedAt,
		"created_by":    info.CreatedBy,
		"retired":       info.Retired,
		"retired_by":    info.RetiredBy,
		"retired_at":    info.RetiredAt,
		"retire_reason": info.RetireReason,
	}

	switch s := source.(type) {
	case *idgen.SequentialSource:
		m["seq_prefix"] = s.Prefix
		m["seq_suffix"] = s.Suffix
		m["seq_first_base"] = s.FirstIdentifierBase
		m["seq_min_length"] = s.MinLength
		m["seq_max_length"] = s.MaxLength
		m["seq_base_charset"] = s.BaseCharacterSet
		m["seq_check_digit"] = s.CheckDigitAlgorithm
		m["seq_next_value"] = s.NextValue
	case *idgen.RemoteSource:
		m["remote_url"] = s.URL
		m["remote_username"] = s.Username
		m["remote_password"] = s.Password
		m["remote_timeout_ms"] = s.Timeout.Milliseconds()
	case *idgen.IdentifierPool:
		m["pool_source_id"] = s.BackingSourceID
		m["pool_batch_size"] = s.BatchSize
		m["pool_min_size"] = s.MinPoolSize
		m["pool_sequential"] = s.SequentialAllocation
		m["pool_refill_scheduled"] = s.RefillWithScheduledTask
	}

	return m
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intOrZero(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

// SourceRepo implements idgen.SourceRepository on idgen_sources.
type SourceRepo struct {
	tm *TxManager
}

// NewSourceRepo creates a source repository.
func NewSourceRepo(tm *TxManager) *SourceRepo {
	return &SourceRepo{tm: tm}
}

// Create inserts a new source.
func (r *SourceRepo) Create(ctx context.Context, source idgen.IdentifierSource) error {
	q := r.tm.GetQuerier(ctx)

	sql, args, err := builder().
		Insert("idgen_sources").
		SetMap(rowFromSource(source)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert source: %w", err)
	}

	if _, err := q.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return apperror.NewConflict(
				fmt.Sprintf("source %q already exists", source.Info().Name))
		}
		return apperror.NewDatabase(fmt.Errorf("insert source: %w", err))
	}
	return nil
}

// Update modifies a source with optimistic locking. The sequential
// counter column stays untouched: it is owned by SequenceRepo.
func (r *SourceRepo) Update(ctx context.Context, source idgen.IdentifierSource) error {
	q := r.tm.GetQuerier(ctx)
	info := source.Info()

	data := rowFromSource(source)
	delete(data, "id")
	delete(data, "source_type")
	delete(data, "created_at")
	delete(data, "created_by")
	delete(data, "seq_next_value")
	data["version"] = squirrel.Expr("version + 1")

	sql, args, err := builder().
		Update("idgen_sources").
		SetMap(data).
		Where(squirrel.Eq{"id": info.ID, "version": info.Version}).
		Where(squirrel.Eq{"source_type": string(source.Type())}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update source: %w", err)
	}

	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewDatabase(fmt.Errorf("update source: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConflict(
			fmt.Sprintf("source %s was modified concurrently or does not exist", info.ID))
	}

	info.Version++
	return nil
}

// GetByID retrieves a source by id.
func (r *SourceRepo) GetByID(ctx context.Context, sourceID id.ID) (idgen.IdentifierSource, error) {
	q := r.tm.GetQuerier(ctx)

	sql, args, err := builder().
		Select(sourceColumns...).
		From("idgen_sources").
		Where(squirrel.Eq{"id": sourceID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select source: %w", err)
	}

	var row sourceRow
	if err := pgxscan.Get(ctx, q, &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("identifier source", sourceID.String())
		}
		return nil, apperror.NewDatabase(fmt.Errorf("query source: %w", err))
	}
	return row.toSource()
}

// List retrieves all sources, oldest first.
func (r *SourceRepo) List(ctx context.Context, includeRetired bool) ([]idgen.IdentifierSource, error) {
	return r.list(ctx, "", includeRetired)
}

// ListByType retrieves sources of one variant.
func (r *SourceRepo) ListByType(ctx context.Context, sourceType idgen.SourceType, includeRetired bool) ([]idgen.IdentifierSource, error) {
	return r.list(ctx, sourceType, includeRetired)
}

func (r *SourceRepo) list(ctx context.Context, sourceType idgen.SourceType, includeRetired bool) ([]idgen.IdentifierSource, error) {
	q := r.tm.GetQuerier(ctx)

	qb := builder().
		Select(sourceColumns...).
		From("idgen_sources").
		OrderBy("created_at", "id")
	if sourceType != "" {
		qb = qb.Where(squirrel.Eq{"source_type": string(sourceType)})
	}
	if !includeRetired {
		qb = qb.Where(squirrel.Eq{"retired": false})
	}

	sql, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sources: %w", err)
	}

	var rows []*sourceRow
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, apperror.NewDatabase(fmt.Errorf("list sources: %w", err))
	}

	sources := make([]idgen.IdentifierSource, 0, len(rows))
	for _, row := range rows {
		source, err := row.toSource()
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, nil
}

// Purge permanently removes a source. Pool entries go with it via the
// foreign key cascade.
func (r *SourceRepo) Purge(ctx context.Context, sourceID id.ID) error {
	q := r.tm.GetQuerier(ctx)

	tag, err := q.Exec(ctx, `DELETE FROM idgen_sources WHERE id = $1`, sourceID)
	if err != nil {
		return apperror.NewDatabase(fmt.Errorf("purge source: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("identifier source", sourceID.String())
	}
	return nil
}
