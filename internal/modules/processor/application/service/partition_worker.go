package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketFlow/internal/modules/processor/domain/topic"
	"MarketFlow/internal/modules/processor/infrastructure/metrics"
	"MarketFlow/internal/modules/processor/infrastructure/mq"
	"MarketFlow/pkg/jsoncodec"
	"MarketFlow/pkg/zlog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const tracerName = "marketflow-processor"

type WorkerOptions struct {
	PollTimeout time.Duration
}

func (o WorkerOptions) withDefaults() WorkerOptions {
	if o.PollTimeout <= 0 {
		o.PollTimeout = time.Second
	}
	return o
}

// stageError tags a dropped message with the step that failed.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }

func (e *stageError) Unwrap() error { return e.err }

// PartitionWorker owns one partition: it polls it, transforms every message
// with its route and publishes the result, until ctx is cancelled.
type PartitionWorker struct {
	key       topic.PartitionKey
	route     topic.Route
	consumer  mq.PartitionConsumer
	publisher mq.Publisher
	handle    *WorkerHandle
	opts      WorkerOptions
	metrics   *metrics.ProcessorMetrics
}

// NewPartitionWorker resolves the route of key and opens the worker's own
// consumer (assigned to exactly key) and producer. key.Topic must be one of
// router's input topics; anything else panics.
func NewPartitionWorker(key topic.PartitionKey, router *topic.Router, factory mq.ClientFactory, opts WorkerOptions, m *metrics.ProcessorMetrics) (*PartitionWorker, error) {
	route := router.MustRoute(key.Topic)

	consumer, err := factory.NewPartitionConsumer(key.Topic, key.Partition)
	if err != nil {
		return nil, fmt.Errorf("create consumer for %s: %w", key, err)
	}
	publisher, err := factory.NewPublisher()
	if err != nil {
		_ = consumer.Close()
		return nil, fmt.Errorf("create producer for %s: %w", key, err)
	}

	w := &PartitionWorker{
		key:       key,
		route:     route,
		consumer:  consumer,
		publisher: publisher,
		handle:    newWorkerHandle(key),
		opts:      opts.withDefaults(),
		metrics:   m,
	}
	m.WorkerTransition("", StateStarting.String())
	return w, nil
}

func (w *PartitionWorker) Handle() *WorkerHandle { return w.handle }

func (w *PartitionWorker) transition(to WorkerState) {
	from := w.handle.swapState(to)
	w.metrics.WorkerTransition(from.String(), to.String())
}

// Run blocks until ctx is cancelled. In-flight work always completes; the
// loop only observes cancellation between messages. A panic escaping the
// loop, or a consumer closed underneath it, leaves the worker in StateCrashed.
func (w *PartitionWorker) Run(ctx context.Context) {
	defer w.handle.markDone()
	defer w.close()
	defer func() {
		if r := recover(); r != nil {
			w.transition(StateCrashed)
			zlog.Error("partition worker crashed",
				zap.String("topic", w.key.Topic),
				zap.Int32("partition", w.key.Partition),
				zap.Any("panic", r))
		}
	}()

	w.transition(StateRunning)
	zlog.Info("started processing partition",
		zap.String("topic", w.key.Topic),
		zap.Int32("partition", w.key.Partition),
		zap.String("output_topic", w.route.Output))

	for ctx.Err() == nil {
		if !w.poll(ctx) {
			w.transition(StateCrashed)
			return
		}
	}
	w.transition(StateDraining)
}

// poll handles at most one message. It returns false once the consumer is
// closed for good, since every later Poll would fail without waiting.
func (w *PartitionWorker) poll(ctx context.Context) bool {
	msg, err := w.consumer.Poll(ctx, w.opts.PollTimeout)
	if err != nil {
		if errors.Is(err, mq.ErrPartitionEOF) {
			return true
		}
		if errors.Is(err, mq.ErrClosed) {
			zlog.Error("partition consumer closed, stopping worker",
				zap.String("topic", w.key.Topic),
				zap.Int32("partition", w.key.Partition),
				zap.Error(err))
			w.metrics.Dropped(w.key.Topic, metrics.ReasonPoll)
			return false
		}
		zlog.Error("kafka poll error",
			zap.String("topic", w.key.Topic),
			zap.Int32("partition", w.key.Partition),
			zap.Error(err))
		w.metrics.Dropped(w.key.Topic, metrics.ReasonPoll)
		return true
	}
	if msg == nil {
		return true
	}

	w.metrics.Consumed(w.key.Topic)
	start := time.Now()
	if err := w.process(ctx, msg); err != nil {
		w.handle.dropped.Add(1)
		reason := metrics.ReasonTransform
		var se *stageError
		if errors.As(err, &se) {
			reason = se.stage
		}
		w.metrics.Dropped(w.key.Topic, reason)
		zlog.Error("dropped message",
			zap.String("topic", w.key.Topic),
			zap.Int32("partition", w.key.Partition),
			zap.Int64("offset", msg.Offset),
			zap.String("reason", reason),
			zap.Error(err))
		return true
	}
	w.handle.processed.Add(1)
	w.metrics.Published(w.key.Topic, w.route.Output, time.Since(start))
	return true
}

func (w *PartitionWorker) process(ctx context.Context, msg *mq.Message) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ProcessMessage")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(
		attribute.String("messaging.source", w.key.Topic),
		attribute.Int("messaging.partition", int(w.key.Partition)),
		attribute.Int64("messaging.offset", msg.Offset),
		attribute.String("messaging.destination", w.route.Output),
	)

	doc, err := jsoncodec.DecodeUTF8(msg.Value)
	if err != nil {
		return &stageError{stage: metrics.ReasonDecode, err: err}
	}
	zlog.Debug("consumed message",
		zap.String("topic", w.key.Topic),
		zap.Int32("partition", w.key.Partition),
		zap.Int64("offset", msg.Offset))

	out, err := w.transform(ctx, doc)
	if err != nil {
		return &stageError{stage: metrics.ReasonTransform, err: err}
	}

	payload, err := jsoncodec.Marshal(out)
	if err != nil {
		return &stageError{stage: metrics.ReasonEncode, err: err}
	}

	// the publish must finish even if shutdown starts meanwhile
	res, err := w.publisher.Publish(context.WithoutCancel(ctx), mq.Message{
		Topic: w.route.Output,
		Key:   msg.Key,
		Value: payload,
	})
	if err != nil {
		return &stageError{stage: metrics.ReasonPublish, err: err}
	}
	zlog.Debug("published message",
		zap.String("topic", w.key.Topic),
		zap.Int32("partition", w.key.Partition),
		zap.String("output_topic", w.route.Output),
		zap.Int32("output_partition", res.Partition),
		zap.Int64("output_offset", res.Offset))
	return nil
}

// transform runs the route's transform and converts a panic into an error.
func (w *PartitionWorker) transform(ctx context.Context, doc any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transform panic: %v", r)
		}
	}()
	return w.route.Transform(ctx, doc)
}

func (w *PartitionWorker) close() {
	if err := w.consumer.Close(); err != nil {
		zlog.Warn("close consumer failed",
			zap.String("topic", w.key.Topic),
			zap.Int32("partition", w.key.Partition),
			zap.Error(err))
	}
	if err := w.publisher.Close(); err != nil {
		zlog.Warn("close producer failed",
			zap.String("topic", w.key.Topic),
			zap.Int32("partition", w.key.Partition),
			zap.Error(err))
	}
	if w.handle.State() != StateCrashed {
		w.transition(StateClosed)
	}
	zlog.Info("stopped processing partition",
		zap.String("topic", w.key.Topic),
		zap.Int32("partition", w.key.Partition),
		zap.String("state", w.handle.State().String()))
}
