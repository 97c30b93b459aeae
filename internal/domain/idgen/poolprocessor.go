package idgen

import (
	"context"
	"fmt"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	appctx "github.com/thenano/openmrs-module-idgen/internal/core/context"
)

// PoolProcessor hands out pre-generated identifiers from a pool.
// A batch either fully succeeds or fully fails: when the pool cannot
// cover the whole batch, nothing is consumed and the caller is told to
// refill. Refilling never happens inline here.
type PoolProcessor struct {
	pools PoolRepository
}

// NewPoolProcessor creates the pool-backed generation strategy.
func NewPoolProcessor(pools PoolRepository) *PoolProcessor {
	return &PoolProcessor{pools: pools}
}

var _ Processor = (*PoolProcessor)(nil)

// Reserve implements Processor. The caller holds the pool source's
// exclusion lock, so the count check and the reservation are not racing
// other generations against the same pool.
func (p *PoolProcessor) Reserve(ctx context.Context, source IdentifierSource, batchSize int) ([]string, error) {
	pool, ok := source.(*IdentifierPool)
	if !ok {
		return nil, apperror.NewInternal(fmt.Errorf("pool processor received %T", source))
	}

	available, err := p.pools.Count(ctx, pool.ID, true, false)
	if err != nil {
		return nil, err
	}
	if available < batchSize {
		return nil, apperror.NewGenerationFailure("pool does not hold enough available identifiers").
			WithDetail("pool", pool.Name).
			WithDetail("available", available).
			WithDetail("requested", batchSize)
	}

	entries, err := p.pools.Reserve(ctx, pool, batchSize, appctx.GetActorName(ctx))
	if err != nil {
		return nil, err
	}
	if len(entries) != batchSize {
		return nil, apperror.NewInternal(fmt.Errorf("pool %s reserved %d of %d entries", pool.Name, len(entries), batchSize))
	}

	identifiers := make([]string, len(entries))
	for i, e := range entries {
		identifiers[i] = e.Identifier
	}
	return identifiers, nil
}
