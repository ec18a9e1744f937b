// Package orchestrator drives execution plans to completion: it discovers
// ready jobs, runs them against provider adapters through a worker pool, and
// finalizes executions once every job is terminal.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/synthome-dev/synthome/internal/infra"
	"github.com/synthome-dev/synthome/internal/metrics"
	"github.com/synthome-dev/synthome/internal/notify"
	"github.com/synthome-dev/synthome/internal/provider"
	"github.com/synthome-dev/synthome/internal/queue"
	"github.com/synthome-dev/synthome/internal/registry"
	"github.com/synthome-dev/synthome/internal/storage"
	"github.com/synthome-dev/synthome/internal/store"
	"github.com/synthome-dev/synthome/internal/usage"
)

// AdapterSource hands out provider adapters per credential.
type AdapterSource interface {
	Adapter(provider, explicitKey string) (provider.Adapter, error)
}

// Options wires the orchestrator's collaborators.
type Options struct {
	Store     store.Store
	Queue     queue.Queue
	Registry  *registry.Registry
	Providers AdapterSource
	Media     storage.Store
	Notifier  *notify.Notifier
	Metrics   *metrics.Metrics
	Usage     usage.Recorder
	Config    *infra.Config
	Logger    infra.Logger
}

// Orchestrator owns the dispatch scan and the worker pool.
type Orchestrator struct {
	store     store.Store
	queue     queue.Queue
	registry  *registry.Registry
	providers AdapterSource
	media     storage.Store
	notifier  *notify.Notifier
	metrics   *metrics.Metrics
	usage     usage.Recorder
	cfg       *infra.Config
	logger    infra.Logger

	pool *ants.Pool
}

// New builds an orchestrator and its worker pool.
func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil || opts.Queue == nil || opts.Registry == nil || opts.Providers == nil {
		return nil, fmt.Errorf("orchestrator: store, queue, registry and providers are required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = &infra.Config{}
	}
	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	pool, err := ants.NewPool(concurrency, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: create worker pool: %w", err)
	}
	u := opts.Usage
	if u == nil {
		u = usage.NoopRecorder{}
	}
	return &Orchestrator{
		store:     opts.Store,
		queue:     opts.Queue,
		registry:  opts.Registry,
		providers: opts.Providers,
		media:     opts.Media,
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		usage:     u,
		cfg:       cfg,
		logger:    opts.Logger,
		pool:      pool,
	}, nil
}

// Run blocks until ctx is canceled, scanning for dispatchable work and
// feeding dequeued jobs to the pool.
func (o *Orchestrator) Run(ctx context.Context) error {
	interval := o.cfg.DispatchInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	go o.consume(ctx, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer o.pool.Release()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := o.scan(ctx); err != nil && ctx.Err() == nil {
				o.logger.Error().Err(err).Msg("orchestrator: dispatch scan failed")
			}
		}
	}
}

// consume moves queued items into the worker pool.
func (o *Orchestrator) consume(ctx context.Context, idle time.Duration) {
	for {
		if ctx.Err() != nil {
			return
		}
		item, ok, err := o.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.logger.Error().Err(err).Msg("orchestrator: dequeue failed")
			ok = false
		}
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idle):
			}
			continue
		}
		it := item
		if err := o.pool.Submit(func() { o.runJob(ctx, it) }); err != nil {
			o.logger.Error().Err(err).Str("job_id", it.JobID).Msg("orchestrator: submit to pool failed")
		}
	}
}
