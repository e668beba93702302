// Package spinner implements the single-consumer dequeue loop: a busy-spinning
// worker goroutine (not pinned to a CPU) that drains activation events, runs the
// engine's dequeue step, and hands packets to a transmit sink, retrying a
// cached packet across iterations when the sink is busy.
//
// Grounded on microbatch.Batcher's done/stopped-channel, sync.Once shutdown
// shape: a background goroutine runs until told to stop, and Stop blocks
// until it has actually exited.
package spinner

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sivasankariit/qfq-rl/internal/activation"
	"github.com/sivasankariit/qfq-rl/internal/engine"
	"github.com/sivasankariit/qfq-rl/internal/qfqlog"
	"github.com/sivasankariit/qfq-rl/queue"
	"github.com/sivasankariit/qfq-rl/transmit"
)

// waitYieldEvery is how many empty wait_for_work iterations pass before
// voluntarily yielding to the OS scheduler, mirroring the kernel's
// schedule_counter >= 10000 threshold in qfq_spinner_wait_for_skb.
const waitYieldEvery = 10_000

// loopYieldEvery is how many outer-loop iterations pass before yielding
// regardless of whether work was found, mirroring the kernel's
// schedule_counter >= 100000 threshold in the main spinner loop.
const loopYieldEvery = 100_000

// Spinner is the single mutator of Engine state: exactly one goroutine may
// ever call Run on a given Spinner.
type Spinner struct {
	Engine     *engine.Engine
	Activation *activation.Queues
	Sink       transmit.Sink
	Log        *qfqlog.Logger

	stopping int32
	done     chan struct{}
	doneOnce sync.Once
}

// New constructs a Spinner. log may be nil, in which case diagnostics are
// discarded.
func New(eng *engine.Engine, act *activation.Queues, sink transmit.Sink, log *qfqlog.Logger) *Spinner {
	if log == nil {
		log = qfqlog.Nop()
	}
	return &Spinner{
		Engine:     eng,
		Activation: act,
		Sink:       sink,
		Log:        log,
		done:       make(chan struct{}),
	}
}

// Run executes the spinner loop until Stop is called. It is meant to be run
// on its own goroutine (nothing pins it to a CPU); Run itself only
// guarantees that it is the sole caller of Engine's mutating methods for as
// long as it's running.
func (s *Spinner) Run() {
	defer s.doneOnce.Do(func() { close(s.done) })

	var cached queue.Packet
	var iterations uint64

	for !s.shouldStop() {
		s.waitForWork(&cached)
		if s.shouldStop() {
			return
		}

		s.drainActivationEvents()

		if cached == nil {
			res, ok := s.Engine.Dequeue()
			if !ok {
				iterations++
				if iterations%loopYieldEvery == 0 {
					runtime.Gosched()
				}
				continue
			}
			cached = res.Packet
		}

		if !s.Sink.IsFrozenOrStopped() {
			result := s.Sink.Transmit(cached)
			if result.OK {
				cached = nil
			}
		}

		iterations++
		if iterations%loopYieldEvery == 0 {
			runtime.Gosched()
		}
	}
}

// waitForWork busy-polls until there is an activation event pending, a
// class is already backlogged in the engine, or a cached packet is waiting
// to be retransmitted — or until Stop is called.
func (s *Spinner) waitForWork(cached *queue.Packet) {
	var iterations uint64
	for !s.shouldStop() {
		if *cached != nil || s.Activation.HasWork() || s.Engine.HasBacklog() {
			return
		}
		iterations++
		if iterations%waitYieldEvery == 0 {
			runtime.Gosched()
		}
	}
}

// drainActivationEvents pops every pending activation event across all
// shards, calls Activate for each, and folds each class's weight into
// WSumActive exactly once per event — mirroring qfq_spinner_activate_classes
// doing both the activate() call and the wsum_active accounting inline in
// the same loop (see Engine.Activate on WSumActive ownership).
func (s *Spinner) drainActivationEvents() {
	s.Activation.Drain(func(ev activation.Event) {
		s.Engine.Activate(ev.Class, ev.PktLen)
		if !ev.Class.IsZeroWeight() {
			s.Engine.WSumActive += ev.Class.Weight()
		}
	})
}

// Stop signals Run to exit and blocks until it has done so. Safe to call
// multiple times and from a different goroutine than Run.
func (s *Spinner) Stop() {
	atomic.StoreInt32(&s.stopping, 1)
	<-s.done
}

func (s *Spinner) shouldStop() bool {
	return atomic.LoadInt32(&s.stopping) != 0
}
