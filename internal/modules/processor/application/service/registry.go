package service

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"MarketFlow/internal/modules/processor/application/dto/respond"
	"MarketFlow/internal/modules/processor/domain/topic"
)

type WorkerState int32

const (
	StateStarting WorkerState = iota
	StateRunning
	StateDraining
	StateClosed
	StateCrashed
)

func (s WorkerState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// WorkerHandle is the registry's view of one partition worker.
type WorkerHandle struct {
	Key       topic.PartitionKey
	StartedAt time.Time

	state     atomic.Int32
	processed atomic.Uint64
	dropped   atomic.Uint64
	done      chan struct{}
	doneOnce  sync.Once
}

func newWorkerHandle(key topic.PartitionKey) *WorkerHandle {
	return &WorkerHandle{
		Key:       key,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

func (h *WorkerHandle) State() WorkerState { return WorkerState(h.state.Load()) }

func (h *WorkerHandle) swapState(s WorkerState) WorkerState {
	return WorkerState(h.state.Swap(int32(s)))
}

func (h *WorkerHandle) Processed() uint64 { return h.processed.Load() }

func (h *WorkerHandle) Dropped() uint64 { return h.dropped.Load() }

// Done is closed once the worker goroutine has exited.
func (h *WorkerHandle) Done() <-chan struct{} { return h.done }

func (h *WorkerHandle) markDone() {
	h.doneOnce.Do(func() { close(h.done) })
}

// Wait blocks until the worker exits or timeout elapses; it reports whether
// the worker exited.
func (h *WorkerHandle) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-h.done:
		return true
	case <-timer.C:
		return false
	}
}

// Registry tracks every partition worker ever started. Entries are never
// removed, so a crashed worker keeps its key and is not started again.
type Registry struct {
	mu      sync.RWMutex
	entries map[topic.PartitionKey]*WorkerHandle
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[topic.PartitionKey]*WorkerHandle)}
}

func (r *Registry) Has(key topic.PartitionKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// Register adds h under its key; it returns false if the key is taken.
func (r *Registry) Register(h *WorkerHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[h.Key]; ok {
		return false
	}
	r.entries[h.Key] = h
	return true
}

func (r *Registry) Get(key topic.PartitionKey) (*WorkerHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.entries[key]
	return h, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Handles returns the handles ordered by topic, then partition.
func (r *Registry) Handles() []*WorkerHandle {
	r.mu.RLock()
	out := make([]*WorkerHandle, 0, len(r.entries))
	for _, h := range r.entries {
		out = append(out, h)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Topic != out[j].Key.Topic {
			return out[i].Key.Topic < out[j].Key.Topic
		}
		return out[i].Key.Partition < out[j].Key.Partition
	})
	return out
}

func (r *Registry) Snapshot() []respond.PartitionStatus {
	handles := r.Handles()
	out := make([]respond.PartitionStatus, 0, len(handles))
	for _, h := range handles {
		out = append(out, respond.PartitionStatus{
			Topic:     h.Key.Topic,
			Partition: h.Key.Partition,
			State:     h.State().String(),
			StartedAt: h.StartedAt,
			Processed: h.Processed(),
			Dropped:   h.Dropped(),
		})
	}
	return out
}
