// Package class implements the QFQ class/group data model: admission
// parameters, virtual start/finish timestamps, the group slot ring, and the
// id -> class / index -> group registries.
//
// All mutation here is expected to happen on the single scheduler-owning
// goroutine; nothing in this package is safe for concurrent use.
package class

import (
	"github.com/sivasankariit/qfq-rl/internal/fixedpoint"
	"github.com/sivasankariit/qfq-rl/queue"
)

// Class is a single traffic class: a weight/lmax pair, a sub-queue, and the
// virtual timestamps QFQ uses to order it against its siblings.
type Class struct {
	ID uint32

	Queue queue.SubQueue

	// InvW is ONE_FP/weight, or fixedpoint.ZeroWeightSentinel for a
	// weight-zero class (admitted, but never dequeued).
	InvW int64
	// LMax is the maximum packet size this class is configured for.
	LMax uint32

	// S, F are virtual start/finish timestamps, fixed-point, wraparound
	// compared via fixedpoint.Greater.
	S, F uint64

	// Grp is the group this class currently belongs to, recomputed whenever
	// InvW/LMax change. Never nil once the class is registered.
	Grp *Group

	// stats; see Scheduler.ClassStats. Packets and Bytes are updated on every
	// successful dequeue. Drops is not updated by this module and stays 0;
	// drops are counted by the sub-queue itself (e.g. queue.FIFO.Dropped).
	Packets uint64
	Bytes   uint64
	Drops   uint64
	// rateEWMA is an exponentially weighted moving average of bytes/sec,
	// updated on dequeue.
	rateEWMA   float64
	lastDeqNS  int64
	hasLastDeq bool
}

// Weight returns the class's configured weight, recovering it from InvW.
// Returns 0 for a weight-zero (sentinel) class.
func (c *Class) Weight() int64 {
	if c.InvW == fixedpoint.ZeroWeightSentinel {
		return 0
	}
	return fixedpoint.One / c.InvW
}

// IsZeroWeight reports whether c uses the weight-zero sentinel.
func (c *Class) IsZeroWeight() bool {
	return c.InvW == fixedpoint.ZeroWeightSentinel
}

// RecordDequeue updates packet/byte counters and the rate estimate for a
// dequeued packet of length bytes observed at nowNS. Called by the engine
// once per successful dequeue.
func (c *Class) RecordDequeue(bytes uint32, nowNS int64) {
	c.Packets++
	c.Bytes += uint64(bytes)

	if !c.hasLastDeq {
		c.hasLastDeq = true
		c.lastDeqNS = nowNS
		c.rateEWMA = 0
		return
	}

	dt := nowNS - c.lastDeqNS
	c.lastDeqNS = nowNS
	if dt <= 0 {
		return
	}

	instantaneous := float64(bytes) / (float64(dt) / 1e9)
	const alpha = 0.25 // smoothing factor: each new sample carries a quarter of the weight
	c.rateEWMA = alpha*instantaneous + (1-alpha)*c.rateEWMA
}

// RateBps returns the current smoothed dequeue rate estimate, in bytes/sec.
func (c *Class) RateBps() float64 {
	return c.rateEWMA
}
