package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "marketflow"
	subsystem = "processor"
)

// Drop reasons used as the "reason" label of messages_dropped_total.
const (
	ReasonPoll      = "poll"
	ReasonDecode    = "decode"
	ReasonTransform = "transform"
	ReasonEncode    = "encode"
	ReasonPublish   = "publish"
)

// ProcessorMetrics groups the Prometheus collectors of the partition
// processor. A nil *ProcessorMetrics is valid and records nothing.
type ProcessorMetrics struct {
	consumedTotal      *prometheus.CounterVec
	publishedTotal     *prometheus.CounterVec
	droppedTotal       *prometheus.CounterVec
	metadataFailures   *prometheus.CounterVec
	workers            *prometheus.GaugeVec
	processingDuration *prometheus.HistogramVec
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// New creates the collectors and registers them on registerer
// (prometheus.DefaultRegisterer when nil).
func New(registerer prometheus.Registerer) (*ProcessorMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &ProcessorMetrics{
		consumedTotal:    newCounterVec("messages_consumed_total", "Messages polled from input partitions", []string{"topic"}),
		publishedTotal:   newCounterVec("messages_published_total", "Transformed messages acknowledged by the broker", []string{"topic", "output_topic"}),
		droppedTotal:     newCounterVec("messages_dropped_total", "Messages dropped without being republished", []string{"topic", "reason"}),
		metadataFailures: newCounterVec("metadata_fetch_failures_total", "Failed partition metadata lookups", []string{"topic"}),
		workers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "partition_workers",
				Help:      "Partition workers by lifecycle state",
			},
			[]string{"state"},
		),
		processingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "process_duration_seconds",
				Help:      "Decode, transform and publish latency per message",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"topic"},
		),
	}

	var err error
	if m.consumedTotal, err = register(registerer, m.consumedTotal); err != nil {
		return nil, err
	}
	if m.publishedTotal, err = register(registerer, m.publishedTotal); err != nil {
		return nil, err
	}
	if m.droppedTotal, err = register(registerer, m.droppedTotal); err != nil {
		return nil, err
	}
	if m.metadataFailures, err = register(registerer, m.metadataFailures); err != nil {
		return nil, err
	}
	if m.workers, err = register(registerer, m.workers); err != nil {
		return nil, err
	}
	if m.processingDuration, err = register(registerer, m.processingDuration); err != nil {
		return nil, err
	}
	return m, nil
}

// register reuses an identical collector that is already registered, so two
// processors sharing a registry report into the same series.
func register[T prometheus.Collector](registerer prometheus.Registerer, c T) (T, error) {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *ProcessorMetrics) Consumed(topic string) {
	if m == nil {
		return
	}
	m.consumedTotal.WithLabelValues(topic).Inc()
}

func (m *ProcessorMetrics) Published(topic, outputTopic string, took time.Duration) {
	if m == nil {
		return
	}
	m.publishedTotal.WithLabelValues(topic, outputTopic).Inc()
	m.processingDuration.WithLabelValues(topic).Observe(took.Seconds())
}

func (m *ProcessorMetrics) Dropped(topic, reason string) {
	if m == nil {
		return
	}
	m.droppedTotal.WithLabelValues(topic, reason).Inc()
}

func (m *ProcessorMetrics) MetadataFailure(topic string) {
	if m == nil {
		return
	}
	m.metadataFailures.WithLabelValues(topic).Inc()
}

// WorkerTransition moves one worker from state from to state to. An empty
// from only increments to.
func (m *ProcessorMetrics) WorkerTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	if from != "" {
		m.workers.WithLabelValues(from).Dec()
	}
	if to != "" {
		m.workers.WithLabelValues(to).Inc()
	}
}
