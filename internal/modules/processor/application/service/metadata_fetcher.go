package service

import (
	"context"
	"errors"
	"time"

	"MarketFlow/internal/modules/processor/infrastructure/metrics"
	"MarketFlow/internal/modules/processor/infrastructure/mq"
	"MarketFlow/pkg/zlog"

	"go.uber.org/zap"
)

// RetryPolicy is a fixed-count, fixed-delay retry policy. Sleep waits
// between attempts and returns early with ctx's error on cancellation; tests
// replace it to avoid real waits.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	Sleep    func(ctx context.Context, d time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Delay: 5 * time.Second, Sleep: SleepContext}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	if p.Sleep == nil {
		p.Sleep = SleepContext
	}
	return p
}

// SleepContext sleeps for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type MetadataFetcher struct {
	client  mq.MetadataClient
	policy  RetryPolicy
	metrics *metrics.ProcessorMetrics
}

func NewMetadataFetcher(client mq.MetadataClient, policy RetryPolicy, m *metrics.ProcessorMetrics) *MetadataFetcher {
	return &MetadataFetcher{client: client, policy: policy.withDefaults(), metrics: m}
}

// FetchPartitions returns the partitions of topic. Missing topics and broker
// faults are retried per the policy; when every attempt fails the result is
// empty, which callers treat as "no partitions yet".
func (f *MetadataFetcher) FetchPartitions(ctx context.Context, topic string) []int32 {
	for attempt := 1; attempt <= f.policy.Attempts; attempt++ {
		if ctx.Err() != nil {
			return nil
		}

		partitions, err := f.client.Partitions(topic)
		if err == nil {
			zlog.Debug("fetched topic partitions",
				zap.String("topic", topic),
				zap.Int32s("partitions", partitions))
			return partitions
		}

		f.metrics.MetadataFailure(topic)
		if errors.Is(err, mq.ErrTopicNotFound) {
			zlog.Warn("topic not found in metadata",
				zap.String("topic", topic),
				zap.Int("attempt", attempt),
				zap.Int("attempts", f.policy.Attempts))
		} else {
			zlog.Error("failed to fetch topic metadata",
				zap.String("topic", topic),
				zap.Int("attempt", attempt),
				zap.Int("attempts", f.policy.Attempts),
				zap.Error(err))
		}

		if attempt < f.policy.Attempts {
			if err := f.policy.Sleep(ctx, f.policy.Delay); err != nil {
				return nil
			}
		}
	}

	zlog.Warn("no partitions found for topic",
		zap.String("topic", topic),
		zap.Int("attempts", f.policy.Attempts))
	return nil
}

func (f *MetadataFetcher) Close() error {
	if f == nil || f.client == nil {
		return nil
	}
	return f.client.Close()
}
