// Package activation implements the multi-producer, single-consumer
// activation event queue: one lock-protected shard per
// producer, with a work_bitmap hint so the consumer can skip empty shards
// without taking every shard's lock on every poll.
//
// Grounded on catrate/limiter.go's per-key-lock shape (categoryData.mu
// guarding a ring buffer, with an atomic field used as a fast-path hint
// before taking the lock).
package activation

import (
	"sync"
	"sync/atomic"

	"github.com/sivasankariit/qfq-rl/internal/class"
)

// MaxShards bounds the number of producer shards: the work bitmap is a
// single machine word, one bit per shard's work_bitmap.
const MaxShards = 64

// Event captures a class's 0→1 backlog transition: the class that became
// non-empty and the length of the packet that caused it.
type Event struct {
	Class  *class.Class
	PktLen uint32
}

type shard struct {
	mu     sync.Mutex
	events []Event
}

// Queues is the fixed array of per-shard activation queues plus the
// work_bitmap hint. Producers call Publish; the single consumer calls Drain.
type Queues struct {
	shards     []shard
	workBitmap uint64
}

// New constructs a Queues with the given number of shards (one per expected
// producer; typically one per CPU). Panics if shardCount is not in
// (0, MaxShards].
func New(shardCount int) *Queues {
	if shardCount <= 0 || shardCount > MaxShards {
		panic("activation: shardCount out of range")
	}
	return &Queues{shards: make([]shard, shardCount)}
}

// Shards returns the number of configured shards.
func (q *Queues) Shards() int { return len(q.shards) }

// Publish appends ev to the given shard and sets its work_bitmap bit. Safe
// for concurrent use by multiple producers, provided each calls with a
// distinct or otherwise independently-owned shard index (e.g. its CPU id
// modulo Shards()). Mirrors qfq_enqueue_work_entry: append-under-lock, then
// a publish barrier (Go's mutex unlock provides this), then bit-set.
func (q *Queues) Publish(shardIndex int, ev Event) {
	s := &q.shards[shardIndex]
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()

	atomic.OrUint64(&q.workBitmap, uint64(1)<<uint(shardIndex))
}

// HasWork reports whether any shard's work_bitmap bit is set, using an
// atomic load. False negatives are impossible (a producer sets its bit only
// after appending, and the single consumer clears a bit before taking that
// shard's events); false positives are harmless.
func (q *Queues) HasWork() bool {
	return atomic.LoadUint64(&q.workBitmap) != 0
}

// Drain reads work_bitmap as a non-atomic hint, then for each shard whose
// bit appears set, atomically test-and-clears that one bit before draining
// it under its own lock, exactly mirroring qfq_spinner_activate_classes's
// per-CPU test_and_clear_bit loop. Must only be called from the single
// consumer goroutine.
func (q *Queues) Drain(fn func(Event)) {
	hint := q.workBitmap // deliberately non-atomic: a stale 1 just means one extra no-op shard check
	if hint == 0 {
		return
	}

	for i := range q.shards {
		bit := uint64(1) << uint(i)
		if hint&bit == 0 {
			continue
		}

		old := atomic.AndUint64(&q.workBitmap, ^bit)
		if old&bit == 0 {
			continue // another reader already claimed this shard's bit
		}

		s := &q.shards[i]
		s.mu.Lock()
		events := s.events
		s.events = nil
		s.mu.Unlock()

		for _, ev := range events {
			fn(ev)
		}
	}
}
