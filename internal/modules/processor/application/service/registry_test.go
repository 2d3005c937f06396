package service

import (
	"testing"
	"time"

	"MarketFlow/internal/modules/processor/domain/topic"
)

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	key := topic.PartitionKey{Topic: "daily", Partition: 1}
	if !r.Register(newWorkerHandle(key)) {
		t.Fatal("first register failed")
	}
	if r.Register(newWorkerHandle(key)) {
		t.Fatal("duplicate key registered")
	}
	if r.Len() != 1 || !r.Has(key) {
		t.Fatalf("unexpected registry state, len %d", r.Len())
	}
}

func TestRegistrySnapshotOrder(t *testing.T) {
	r := NewRegistry()
	for _, k := range []topic.PartitionKey{
		{Topic: "options", Partition: 0},
		{Topic: "daily", Partition: 2},
		{Topic: "daily", Partition: 0},
	} {
		r.Register(newWorkerHandle(k))
	}
	h, _ := r.Get(topic.PartitionKey{Topic: "daily", Partition: 2})
	h.swapState(StateRunning)
	h.processed.Add(3)

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(snap))
	}
	if snap[0].Topic != "daily" || snap[0].Partition != 0 || snap[2].Topic != "options" {
		t.Fatalf("unexpected order %+v", snap)
	}
	if snap[1].State != "running" || snap[1].Processed != 3 {
		t.Fatalf("unexpected status %+v", snap[1])
	}
	if snap[0].State != "starting" {
		t.Fatalf("new handles start in starting, got %s", snap[0].State)
	}
}

func TestHandleWait(t *testing.T) {
	h := newWorkerHandle(topic.PartitionKey{Topic: "daily"})
	if h.Wait(10 * time.Millisecond) {
		t.Fatal("wait returned before done")
	}
	h.markDone()
	h.markDone()
	if !h.Wait(time.Millisecond) {
		t.Fatal("wait did not observe done")
	}
}
