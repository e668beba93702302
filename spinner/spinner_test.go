package spinner

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sivasankariit/qfq-rl/internal/activation"
	"github.com/sivasankariit/qfq-rl/internal/class"
	"github.com/sivasankariit/qfq-rl/internal/engine"
	"github.com/sivasankariit/qfq-rl/internal/fixedpoint"
	"github.com/sivasankariit/qfq-rl/internal/vclock"
	"github.com/sivasankariit/qfq-rl/queue"
	"github.com/sivasankariit/qfq-rl/transmit"
)

type testPacket uint32

func (p testPacket) Len() uint32 { return uint32(p) }

func newWallClockEngine() (*engine.Engine, *class.Registry) {
	reg := class.NewRegistry()
	clk := vclock.New(vclock.DefaultLinkSpeedMbps, func() int64 { return time.Now().UnixNano() })
	return engine.New(reg, clk), reg
}

func newSpinnerClass(id uint32, weight int64) *class.Class {
	return &class.Class{
		ID:    id,
		Queue: queue.NewFIFO(0),
		InvW:  fixedpoint.One / weight,
		LMax:  1500,
	}
}

// busySink accepts every packet and counts them atomically, safe to read
// from the test goroutine while Run is still executing on its own.
type busySink struct {
	sent int64
}

func (b *busySink) IsFrozenOrStopped() bool { return false }

func (b *busySink) Transmit(pkt queue.Packet) transmit.Result {
	atomic.AddInt64(&b.sent, 1)
	return transmit.Result{OK: true}
}

func TestSpinner_PublishEnqueueDrainsAndTransmits(t *testing.T) {
	t.Parallel()

	eng, reg := newWallClockEngine()
	cl := newSpinnerClass(1, 1)
	reg.Insert(cl)

	const n = 50
	for i := 0; i < n; i++ {
		cl.Queue.Enqueue(testPacket(1500))
	}

	act := activation.New(1)
	act.Publish(0, activation.Event{Class: cl, PktLen: 1500})

	sink := &busySink{}
	sp := New(eng, act, sink, nil)

	go sp.Run()
	defer sp.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&sink.sent) == n
	}, 2*time.Second, time.Millisecond)
}

func TestSpinner_StopIsIdempotentAndBlocksUntilExit(t *testing.T) {
	t.Parallel()

	eng, reg := newWallClockEngine()
	_ = reg

	act := activation.New(1)
	sink := &busySink{}
	sp := New(eng, act, sink, nil)

	go sp.Run()

	sp.Stop()
	sp.Stop() // must not panic or block forever the second time
}

func TestSpinner_RetriesCachedPacketWhenSinkFrozen(t *testing.T) {
	t.Parallel()

	eng, reg := newWallClockEngine()
	cl := newSpinnerClass(1, 1)
	reg.Insert(cl)
	cl.Queue.Enqueue(testPacket(1500))

	act := activation.New(1)
	act.Publish(0, activation.Event{Class: cl, PktLen: 1500})

	sink := &frozenThenOpenSink{openAfter: 100 * time.Millisecond}
	sp := New(eng, act, sink, nil)

	go sp.Run()
	defer sp.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&sink.sent) == 1
	}, 2*time.Second, time.Millisecond)
}

// TestSpinner_RateLimitedBacklog_DoesNotLivelock exercises the scenario
// where ER empties (the rate limiter is holding the only active class
// ineligible) while IR/EB/IB still hold it backlogged, and no further
// activation events are ever published. waitForWork must notice the
// engine-level backlog rather than waiting solely on the activation queue,
// or Run never calls Dequeue again and the packets never drain.
func TestSpinner_RateLimitedBacklog_DoesNotLivelock(t *testing.T) {
	t.Parallel()

	reg := class.NewRegistry()
	clk := vclock.New(1, func() int64 { return time.Now().UnixNano() })
	eng := engine.New(reg, clk)

	cl := newSpinnerClass(1, 1)
	reg.Insert(cl)

	const n = 20
	for i := 0; i < n; i++ {
		cl.Queue.Enqueue(testPacket(1500))
	}

	act := activation.New(1)
	act.Publish(0, activation.Event{Class: cl, PktLen: 1500})

	sink := &busySink{}
	sp := New(eng, act, sink, nil)

	go sp.Run()
	defer sp.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&sink.sent) == n
	}, 5*time.Second, time.Millisecond)
}

type frozenThenOpenSink struct {
	openAfter time.Duration
	start     time.Time
	started   int32
	sent      int64
}

func (f *frozenThenOpenSink) IsFrozenOrStopped() bool {
	if atomic.CompareAndSwapInt32(&f.started, 0, 1) {
		f.start = time.Now()
	}
	return time.Since(f.start) < f.openAfter
}

func (f *frozenThenOpenSink) Transmit(pkt queue.Packet) transmit.Result {
	atomic.AddInt64(&f.sent, 1)
	return transmit.Result{OK: true}
}
