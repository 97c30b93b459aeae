package idgen

import (
	"context"
	"strings"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	"github.com/thenano/openmrs-module-idgen/internal/core/checkdigit"
	appctx "github.com/thenano/openmrs-module-idgen/internal/core/context"
	"github.com/thenano/openmrs-module-idgen/internal/core/id"
	"github.com/thenano/openmrs-module-idgen/internal/core/tx"
	"github.com/thenano/openmrs-module-idgen/pkg/logger"
)

// Service is the generation orchestrator and the public entry point of
// the engine. It resolves a source to its processor, enforces per-source
// exclusion around the reserve step, records every issuance in the
// ledger, and exposes the management surface for sources, pools and
// auto-generation options.
type Service struct {
	sources     SourceRepository
	sequences   SequenceRepository
	pools       PoolRepository
	logs        LogRepository
	options     AutoGenerationRepository
	registry    *Registry
	checkDigits *checkdigit.Registry
	txManager   tx.Manager // optional; single-statement stores need none
	locks       *sourceLocks
}

// ServiceConfig configures the generation service.
type ServiceConfig struct {
	Sources     SourceRepository
	Sequences   SequenceRepository
	Pools       PoolRepository
	Logs        LogRepository
	Options     AutoGenerationRepository
	CheckDigits *checkdigit.Registry // nil gets the built-in algorithms
	TxManager   tx.Manager           // optional
}

// NewService creates the orchestrator with the built-in processors
// registered for all three source variants.
func NewService(cfg ServiceConfig) *Service {
	checkDigits := cfg.CheckDigits
	if checkDigits == nil {
		checkDigits = checkdigit.NewRegistry()
	}

	s := &Service{
		sources:     cfg.Sources,
		sequences:   cfg.Sequences,
		pools:       cfg.Pools,
		logs:        cfg.Logs,
		options:     cfg.Options,
		registry:    NewRegistry(),
		checkDigits: checkDigits,
		txManager:   cfg.TxManager,
		locks:       newSourceLocks(),
	}

	s.registry.Register(SourceTypeSequential, NewSequentialProcessor(cfg.Sequences, checkDigits))
	s.registry.Register(SourceTypeRemote, NewRemoteProcessor())
	s.registry.Register(SourceTypePool, NewPoolProcessor(cfg.Pools))
	return s
}

// CheckDigits exposes the check-digit algorithm registry for extension.
func (s *Service) CheckDigits() *checkdigit.Registry {
	return s.checkDigits
}

func (s *Service) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txManager == nil {
		return fn(ctx)
	}
	return s.txManager.RunInTransaction(ctx, fn)
}

// --- Source management ---

// SourceTypes returns the variant tags that currently have a registered
// processor.
func (s *Service) SourceTypes() []SourceType {
	return s.registry.Types()
}

// GetSource retrieves a source by id, retired or not.
func (s *Service) GetSource(ctx context.Context, sourceID id.ID) (IdentifierSource, error) {
	return s.sources.GetByID(ctx, sourceID)
}

// AllSources lists every source, optionally including retired ones.
func (s *Service) AllSources(ctx context.Context, includeRetired bool) ([]IdentifierSource, error) {
	return s.sources.List(ctx, includeRetired)
}

// SourcesByType lists sources of one variant.
func (s *Service) SourcesByType(ctx context.Context, sourceType SourceType, includeRetired bool) ([]IdentifierSource, error) {
	return s.sources.ListByType(ctx, sourceType, includeRetired)
}

// SaveSource persists a source, creating or updating as appropriate, and
// returns the persisted entity. For new sequential sources the counter is
// seeded from the configured first identifier base.
func (s *Service) SaveSource(ctx context.Context, source IdentifierSource) (IdentifierSource, error) {
	if err := source.Validate(ctx); err != nil {
		return nil, normalizeValidation(err)
	}

	info := source.Info()
	if info.CreatedBy == "" {
		info.CreatedBy = appctx.GetActorName(ctx)
	}

	_, err := s.sources.GetByID(ctx, info.ID)
	switch {
	case err == nil:
		if err := s.inTransaction(ctx, func(ctx context.Context) error {
			return s.sources.Update(ctx, source)
		}); err != nil {
			return nil, err
		}
	case apperror.IsNotFound(err):
		if seq, ok := source.(*SequentialSource); ok {
			initial, err := seq.InitialValue()
			if err != nil {
				return nil, apperror.NewValidation("first identifier base is not expressible in the base character set").
					WithCause(err)
			}
			seq.NextValue = initial
		}
		if err := s.inTransaction(ctx, func(ctx context.Context) error {
			return s.sources.Create(ctx, source)
		}); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	logger.Info(ctx, "identifier source saved",
		"source_id", info.ID.String(),
		"name", info.Name,
		"type", string(source.Type()),
	)
	return source, nil
}

// RetireSource soft-deletes a source: new generation requests are
// rejected, history remains queryable.
func (s *Service) RetireSource(ctx context.Context, sourceID id.ID, reason string) (IdentifierSource, error) {
	source, err := s.sources.GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	source.Info().Retire(appctx.GetActorName(ctx), reason)
	if err := s.inTransaction(ctx, func(ctx context.Context) error {
		return s.sources.Update(ctx, source)
	}); err != nil {
		return nil, err
	}
	return source, nil
}

// PurgeSource permanently removes a source, its pool entries, and any
// auto-generation options that reference it.
func (s *Service) PurgeSource(ctx context.Context, sourceID id.ID) error {
	if _, err := s.sources.GetByID(ctx, sourceID); err != nil {
		return err
	}
	return s.inTransaction(ctx, func(ctx context.Context) error {
		return s.sources.Purge(ctx, sourceID)
	})
}

// SetSequenceValue overwrites a sequential source's counter, for
// migrations and corrections. Lowering the counter is rejected.
func (s *Service) SetSequenceValue(ctx context.Context, sourceID id.ID, value int64) error {
	source, err := s.sources.GetByID(ctx, sourceID)
	if err != nil {
		return err
	}
	if _, ok := source.(*SequentialSource); !ok {
		return apperror.NewValidation("source is not a sequential source").
			WithDetail("source_id", sourceID.String())
	}

	unlock := s.locks.acquire(sourceID.String())
	defer unlock()
	return s.sequences.SetValue(ctx, sourceID, value)
}

// SequenceValue reads the committed counter of a sequential source.
func (s *Service) SequenceValue(ctx context.Context, sourceID id.ID) (int64, error) {
	source, err := s.sources.GetByID(ctx, sourceID)
	if err != nil {
		return 0, err
	}
	if _, ok := source.(*SequentialSource); !ok {
		return 0, apperror.NewValidation("source is not a sequential source").
			WithDetail("source_id", sourceID.String())
	}
	return s.sequences.CurrentValue(ctx, sourceID)
}

// --- Processor registry ---

// RegisterProcessor associates a source variant with a generation
// strategy. The last registration for a variant wins.
func (s *Service) RegisterProcessor(sourceType SourceType, p Processor) {
	s.registry.Register(sourceType, p)
}

// Processor resolves the generation strategy for a source.
func (s *Service) Processor(source IdentifierSource) (Processor, error) {
	p, ok := s.registry.Get(source)
	if !ok {
		return nil, apperror.NewUnsupportedSource(string(source.Type()))
	}
	return p, nil
}

// --- Generation ---

// GenerateIdentifier issues a single identifier from the source.
func (s *Service) GenerateIdentifier(ctx context.Context, sourceID id.ID, comment string) (string, error) {
	identifiers, err := s.GenerateIdentifiers(ctx, sourceID, 1, comment)
	if err != nil {
		return "", err
	}
	return identifiers[0], nil
}

// GenerateIdentifiers issues a batch of identifiers from the source, in
// issuance order. The batch fully succeeds or fully fails. Concurrent
// batches against the same source serialize; different sources proceed
// independently.
func (s *Service) GenerateIdentifiers(ctx context.Context, sourceID id.ID, batchSize int, comment string) ([]string, error) {
	if batchSize < 1 {
		return nil, apperror.NewValidation("batch size must be at least 1").
			WithDetail("batch_size", batchSize)
	}

	source, err := s.sources.GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	info := source.Info()
	if info.Retired {
		return nil, apperror.NewValidation("source is retired and cannot generate identifiers").
			WithDetail("source_id", sourceID.String()).
			WithDetail("name", info.Name)
	}

	processor, err := s.Processor(source)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.acquire(sourceID.String())
	defer unlock()

	identifiers, err := processor.Reserve(ctx, source, batchSize)
	if err != nil {
		logger.Warn(ctx, "identifier generation failed",
			"source_id", sourceID.String(),
			"name", info.Name,
			"batch_size", batchSize,
			"error", err,
		)
		return nil, err
	}

	if err := s.recordIssuance(ctx, sourceID, identifiers, comment); err != nil {
		// The reservation stands; returning the error tells the caller
		// the audit record is incomplete.
		return nil, err
	}

	logger.Info(ctx, "identifiers generated",
		"source_id", sourceID.String(),
		"name", info.Name,
		"count", len(identifiers),
	)
	return identifiers, nil
}

func (s *Service) recordIssuance(ctx context.Context, sourceID id.ID, identifiers []string, comment string) error {
	actor := appctx.GetActorName(ctx)
	entries := make([]*LogEntry, len(identifiers))
	for i, identifier := range identifiers {
		entries[i] = NewLogEntry(sourceID, identifier, actor, comment)
	}
	return s.inTransaction(ctx, func(ctx context.Context) error {
		return s.logs.Append(ctx, entries)
	})
}

// --- Pool operations ---

func (s *Service) getPool(ctx context.Context, poolID id.ID) (*IdentifierPool, error) {
	source, err := s.sources.GetByID(ctx, poolID)
	if err != nil {
		return nil, err
	}
	pool, ok := source.(*IdentifierPool)
	if !ok {
		return nil, apperror.NewValidation("source is not an identifier pool").
			WithDetail("source_id", poolID.String())
	}
	return pool, nil
}

// AvailableIdentifiers reserves up to quantity AVAILABLE entries from the
// pool and returns them. Returned entries are flipped to USED in the same
// atomic operation, so concurrent callers never receive the same entry;
// when fewer than quantity are available only those are returned.
func (s *Service) AvailableIdentifiers(ctx context.Context, poolID id.ID, quantity int) ([]*PooledIdentifier, error) {
	if quantity < 1 {
		return nil, apperror.NewValidation("quantity must be at least 1").
			WithDetail("quantity", quantity)
	}
	pool, err := s.getPool(ctx, poolID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.acquire(poolID.String())
	defer unlock()

	entries, err := s.pools.Reserve(ctx, pool, quantity, appctx.GetActorName(ctx))
	if err != nil {
		return nil, err
	}

	identifiers := make([]string, len(entries))
	for i, e := range entries {
		identifiers[i] = e.Identifier
	}
	if len(identifiers) > 0 {
		if err := s.recordIssuance(ctx, poolID, identifiers, "reserved from pool"); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// QuantityInPool counts pool entries. availableOnly and usedOnly narrow
// the count; both false counts everything, both true counts nothing.
func (s *Service) QuantityInPool(ctx context.Context, poolID id.ID, availableOnly, usedOnly bool) (int, error) {
	pool, err := s.getPool(ctx, poolID)
	if err != nil {
		return 0, err
	}
	return s.pools.Count(ctx, pool.ID, availableOnly, usedOnly)
}

// AddIdentifiersToPool uploads a list of identifiers into the pool as
// AVAILABLE entries. Duplicates of anything already in the pool, available
// or used, fail the whole upload.
func (s *Service) AddIdentifiersToPool(ctx context.Context, poolID id.ID, identifiers []string) error {
	pool, err := s.getPool(ctx, poolID)
	if err != nil {
		return err
	}

	cleaned := make([]string, 0, len(identifiers))
	for _, identifier := range identifiers {
		identifier = strings.TrimSpace(identifier)
		if identifier != "" {
			cleaned = append(cleaned, identifier)
		}
	}
	if len(cleaned) == 0 {
		return apperror.NewValidation("no identifiers supplied")
	}

	if err := s.inTransaction(ctx, func(ctx context.Context) error {
		return s.pools.Add(ctx, pool.ID, cleaned)
	}); err != nil {
		return err
	}

	logger.Info(ctx, "identifiers uploaded to pool",
		"pool_id", pool.ID.String(),
		"name", pool.Name,
		"count", len(cleaned),
	)
	return nil
}

// FillPoolFromSource draws batchSize identifiers from the pool's backing
// source (through the normal generation path, under the backing source's
// own exclusion) and adds them to the pool. A batchSize of 0 uses the
// pool's configured batch size.
func (s *Service) FillPoolFromSource(ctx context.Context, poolID id.ID, batchSize int) error {
	pool, err := s.getPool(ctx, poolID)
	if err != nil {
		return err
	}
	if pool.BackingSourceID == nil {
		return apperror.NewValidation("pool has no backing source to fill from").
			WithDetail("pool_id", poolID.String())
	}
	if batchSize == 0 {
		batchSize = pool.BatchSize
	}
	if batchSize < 1 {
		return apperror.NewValidation("batch size must be at least 1").
			WithDetail("batch_size", batchSize)
	}

	identifiers, err := s.GenerateIdentifiers(ctx, *pool.BackingSourceID, batchSize, "filling pool "+pool.Name)
	if err != nil {
		return err
	}
	return s.AddIdentifiersToPool(ctx, poolID, identifiers)
}

// --- Auto-generation options ---

// AutoGenerationOption returns the option covering an identifier type.
func (s *Service) AutoGenerationOption(ctx context.Context, identifierType string) (*AutoGenerationOption, error) {
	return s.options.GetByType(ctx, identifierType)
}

// AutoGenerationOptions lists all options.
func (s *Service) AutoGenerationOptions(ctx context.Context) ([]*AutoGenerationOption, error) {
	return s.options.List(ctx)
}

// SaveAutoGenerationOption persists an option. A second option for an
// identifier type that is already covered fails with a conflict; updating
// the existing option by id is allowed.
func (s *Service) SaveAutoGenerationOption(ctx context.Context, option *AutoGenerationOption) (*AutoGenerationOption, error) {
	if err := option.Validate(ctx); err != nil {
		return nil, normalizeValidation(err)
	}
	if _, err := s.sources.GetByID(ctx, option.SourceID); err != nil {
		return nil, err
	}

	existing, err := s.options.GetByType(ctx, option.IdentifierType)
	switch {
	case err == nil && existing.ID != option.ID:
		return nil, apperror.NewConflict("an auto-generation option already covers this identifier type").
			WithDetail("identifier_type", option.IdentifierType).
			WithDetail("existing_id", existing.ID.String())
	case err == nil:
		if err := s.inTransaction(ctx, func(ctx context.Context) error {
			return s.options.Update(ctx, option)
		}); err != nil {
			return nil, err
		}
	case apperror.IsNotFound(err):
		if err := s.inTransaction(ctx, func(ctx context.Context) error {
			return s.options.Create(ctx, option)
		}); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return option, nil
}

// PurgeAutoGenerationOption permanently removes an option.
func (s *Service) PurgeAutoGenerationOption(ctx context.Context, optionID id.ID) error {
	return s.inTransaction(ctx, func(ctx context.Context) error {
		return s.options.Purge(ctx, optionID)
	})
}

// --- Ledger ---

// LogEntries returns issuance records matching the filter, oldest first.
// All criteria are optional and conjunctive; date bounds compare by
// calendar date.
func (s *Service) LogEntries(ctx context.Context, filter LogFilter) ([]*LogEntry, error) {
	return s.logs.List(ctx, filter)
}

func normalizeValidation(err error) error {
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewValidation(err.Error())
}
