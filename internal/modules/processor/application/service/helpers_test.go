package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"MarketFlow/internal/modules/processor/domain/topic"
	"MarketFlow/internal/modules/processor/infrastructure/mq"
)

var testTopics = map[string]string{
	"daily":                "daily",
	"processed-daily":      "processed-daily",
	"15min":                "15min",
	"processed-15min":      "processed-15min",
	"options":              "options",
	"processed-options":    "processed-options",
	"historical":           "historical",
	"processed-historical": "processed-historical",
}

func identity(_ context.Context, doc any) (any, error) { return doc, nil }

func newTestRouter(t *testing.T, daily topic.Transform) *topic.Router {
	t.Helper()
	if daily == nil {
		daily = identity
	}
	r, err := topic.NewRouter(testTopics, map[topic.Role]topic.Transform{
		topic.RoleDaily:      daily,
		topic.Role15Min:      identity,
		topic.RoleOptions:    identity,
		topic.RoleHistorical: identity,
	})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return r
}

type pollItem struct {
	msg *mq.Message
	err error
}

type fakeConsumer struct {
	items       chan pollItem
	closes      atomic.Int32
	polls       atomic.Int32
	broken      atomic.Bool
	panicOnPoll bool
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{items: make(chan pollItem, 64)}
}

func (c *fakeConsumer) push(value string) {
	c.items <- pollItem{msg: &mq.Message{Value: []byte(value)}}
}

func (c *fakeConsumer) pushErr(err error) {
	c.items <- pollItem{err: err}
}

// breakChannels makes every later Poll fail at once, like a sarama partition
// consumer that shut itself down after a fatal fetch error.
func (c *fakeConsumer) breakChannels() { c.broken.Store(true) }

func (c *fakeConsumer) Poll(ctx context.Context, timeout time.Duration) (*mq.Message, error) {
	c.polls.Add(1)
	if c.panicOnPoll {
		panic("consumer exploded")
	}
	if c.broken.Load() {
		return nil, mq.ErrClosed
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case it := <-c.items:
		return it.msg, it.err
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, nil
	}
}

func (c *fakeConsumer) Close() error {
	c.closes.Add(1)
	return nil
}

type publishSink struct {
	mu   sync.Mutex
	msgs []mq.Message
	fail bool
}

func (s *publishSink) all() []mq.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]mq.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *publishSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

type fakePublisher struct {
	sink   *publishSink
	closes atomic.Int32
}

func (p *fakePublisher) Publish(ctx context.Context, msg mq.Message) (mq.PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return mq.PublishResult{}, err
	}
	p.sink.mu.Lock()
	defer p.sink.mu.Unlock()
	if p.sink.fail {
		return mq.PublishResult{}, errors.New("broker unavailable")
	}
	p.sink.msgs = append(p.sink.msgs, msg)
	return mq.PublishResult{Offset: int64(len(p.sink.msgs) - 1)}, nil
}

func (p *fakePublisher) Close() error {
	p.closes.Add(1)
	return nil
}

type fakeFactory struct {
	mu          sync.Mutex
	consumers   map[topic.PartitionKey]*fakeConsumer
	publishers  []*fakePublisher
	created     int
	sink        *publishSink
	consumerErr error
	panicKeys   map[topic.PartitionKey]bool

	// when block is set, NewPartitionConsumer signals entered and waits on it
	block   chan struct{}
	entered chan struct{}
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		consumers: make(map[topic.PartitionKey]*fakeConsumer),
		panicKeys: make(map[topic.PartitionKey]bool),
		sink:      &publishSink{},
	}
}

// consumer returns the consumer for key, creating it ahead of the worker so
// tests can queue messages before it starts.
func (f *fakeFactory) consumer(key topic.PartitionKey) *fakeConsumer {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.consumers[key]
	if !ok {
		c = newFakeConsumer()
		f.consumers[key] = c
	}
	return c
}

func (f *fakeFactory) NewPartitionConsumer(name string, partition int32) (mq.PartitionConsumer, error) {
	if f.block != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
		<-f.block
	}
	if f.consumerErr != nil {
		return nil, f.consumerErr
	}
	key := topic.PartitionKey{Topic: name, Partition: partition}
	c := f.consumer(key)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	c.panicOnPoll = f.panicKeys[key]
	return c, nil
}

func (f *fakeFactory) NewPublisher() (mq.Publisher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &fakePublisher{sink: f.sink}
	f.publishers = append(f.publishers, p)
	return p, nil
}

func (f *fakeFactory) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

type fakeMetadata struct {
	mu         sync.Mutex
	partitions map[string][]int32
	errs       map[string]error
	calls      map[string]int
	closed     int
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{
		partitions: make(map[string][]int32),
		errs:       make(map[string]error),
		calls:      make(map[string]int),
	}
}

func (m *fakeMetadata) set(name string, partitions ...int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partitions[name] = partitions
}

func (m *fakeMetadata) Partitions(name string) ([]int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
	if err := m.errs[name]; err != nil {
		return nil, err
	}
	p, ok := m.partitions[name]
	if !ok {
		return nil, mq.ErrTopicNotFound
	}
	return append([]int32(nil), p...), nil
}

func (m *fakeMetadata) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *fakeMetadata) closedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out: %s", msg)
}
