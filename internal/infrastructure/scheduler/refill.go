// Package scheduler runs background maintenance tasks. Currently the
// only task is the pool refill scan.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	"github.com/thenano/openmrs-module-idgen/internal/domain/idgen"
	"github.com/thenano/openmrs-module-idgen/pkg/logger"
)

// DefaultRefillSchedule runs the scan every five minutes.
const DefaultRefillSchedule = "*/5 * * * *"

// Refiller periodically tops up identifier pools that opted into
// scheduled refill and have dropped below their low watermark. Pools are
// never refilled inline during a read; this scan is the only automatic
// refill path.
type Refiller struct {
	service  *idgen.Service
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
}

// NewRefiller creates a refiller. An empty schedule uses the default.
func NewRefiller(service *idgen.Service, schedule string) *Refiller {
	if schedule == "" {
		schedule = DefaultRefillSchedule
	}
	return &Refiller{
		service:  service,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		schedule: schedule,
		timeout:  5 * time.Minute,
	}
}

// Start registers the scan and starts the cron loop.
func (r *Refiller) Start() error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.RunOnce(ctx)
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop stops the cron loop and waits for a running scan to finish.
func (r *Refiller) Stop() {
	<-r.cron.Stop().Done()
}

// RunOnce scans all pools and refills those below their watermark.
// One failing pool does not stop the scan.
func (r *Refiller) RunOnce(ctx context.Context) {
	pools, err := r.service.SourcesByType(ctx, idgen.SourceTypePool, false)
	if err != nil {
		logger.Error(ctx, "refill scan failed to list pools", "error", err)
		return
	}

	for _, source := range pools {
		pool, ok := source.(*idgen.IdentifierPool)
		if !ok || !pool.RefillWithScheduledTask {
			continue
		}
		if err := r.refillPool(ctx, pool); err != nil {
			logger.Error(ctx, "pool refill failed",
				"pool", pool.Name,
				"pool_id", pool.ID.String(),
				"error", err,
			)
		}
	}
}

func (r *Refiller) refillPool(ctx context.Context, pool *idgen.IdentifierPool) error {
	available, err := r.service.QuantityInPool(ctx, pool.ID, true, false)
	if err != nil {
		return err
	}
	if available >= pool.MinPoolSize {
		return nil
	}

	logger.Info(ctx, "refilling pool",
		"pool", pool.Name,
		"available", available,
		"min_pool_size", pool.MinPoolSize,
	)

	err = r.service.FillPoolFromSource(ctx, pool.ID, 0)
	if apperror.IsIndeterminate(err) {
		// The remote call may or may not have issued identifiers.
		// Surface it loudly instead of retrying within this scan.
		logger.Warn(ctx, "pool refill hit indeterminate remote failure",
			"pool", pool.Name,
		)
	}
	return err
}
