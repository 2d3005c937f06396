package service

import (
	"context"
	"sync"
	"time"

	"MarketFlow/internal/modules/processor/domain/topic"
	"MarketFlow/internal/modules/processor/infrastructure/metrics"
	"MarketFlow/internal/modules/processor/infrastructure/mq"
	"MarketFlow/pkg/zlog"

	"go.uber.org/zap"
)

type MonitorOptions struct {
	CheckInterval time.Duration
	Worker        WorkerOptions
}

func (o MonitorOptions) withDefaults() MonitorOptions {
	if o.CheckInterval <= 0 {
		o.CheckInterval = 30 * time.Second
	}
	o.Worker = o.Worker.withDefaults()
	return o
}

// PartitionMonitor discovers the partitions of every routed input topic and
// starts one PartitionWorker per partition it has not seen before. It is the
// only writer of the registry.
type PartitionMonitor struct {
	router   *topic.Router
	fetcher  *MetadataFetcher
	factory  mq.ClientFactory
	registry *Registry
	opts     MonitorOptions
	metrics  *metrics.ProcessorMetrics

	trigger  chan struct{}
	done     chan struct{}
	doneOnce sync.Once
}

func NewPartitionMonitor(router *topic.Router, fetcher *MetadataFetcher, factory mq.ClientFactory, registry *Registry, opts MonitorOptions, m *metrics.ProcessorMetrics) *PartitionMonitor {
	return &PartitionMonitor{
		router:   router,
		fetcher:  fetcher,
		factory:  factory,
		registry: registry,
		opts:     opts.withDefaults(),
		metrics:  m,
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Done is closed when Run returns. No worker is registered after that.
func (pm *PartitionMonitor) Done() <-chan struct{} { return pm.done }

// Run performs a discovery cycle immediately and then every CheckInterval,
// or earlier when Trigger is called, until ctx is cancelled.
func (pm *PartitionMonitor) Run(ctx context.Context) {
	defer pm.doneOnce.Do(func() { close(pm.done) })
	zlog.Info("partition monitor started",
		zap.Strings("topics", pm.router.InputTopics()),
		zap.Duration("check_interval", pm.opts.CheckInterval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			zlog.Info("partition monitor stopped", zap.Int("workers", pm.registry.Len()))
			return
		case <-timer.C:
		case <-pm.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		pm.RunOnce(ctx)
		timer.Reset(pm.opts.CheckInterval)
	}
}

// RunOnce runs one discovery cycle and returns the number of workers it
// started. Partitions already in the registry are skipped.
func (pm *PartitionMonitor) RunOnce(ctx context.Context) int {
	started := 0
	for _, input := range pm.router.InputTopics() {
		if ctx.Err() != nil {
			return started
		}
		for _, partition := range pm.fetcher.FetchPartitions(ctx, input) {
			if ctx.Err() != nil {
				return started
			}
			key := topic.PartitionKey{Topic: input, Partition: partition}
			if pm.registry.Has(key) {
				continue
			}
			if pm.start(ctx, key) {
				started++
			}
		}
	}
	if started > 0 {
		zlog.Info("partition discovery cycle finished",
			zap.Int("started", started),
			zap.Int("workers", pm.registry.Len()))
	}
	return started
}

func (pm *PartitionMonitor) start(ctx context.Context, key topic.PartitionKey) bool {
	w, err := NewPartitionWorker(key, pm.router, pm.factory, pm.opts.Worker, pm.metrics)
	if err != nil {
		// not registered, so the next cycle tries again
		zlog.Error("failed to start partition worker",
			zap.String("topic", key.Topic),
			zap.Int32("partition", key.Partition),
			zap.Error(err))
		return false
	}
	if !pm.registry.Register(w.Handle()) {
		w.close()
		w.Handle().markDone()
		return false
	}
	// shutdown may have begun while the clients were dialing
	if ctx.Err() != nil {
		w.close()
		w.Handle().markDone()
		return false
	}
	go w.Run(ctx)
	return true
}

// Trigger requests an early discovery cycle. It returns false when a request
// is already pending.
func (pm *PartitionMonitor) Trigger() bool {
	select {
	case pm.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}
