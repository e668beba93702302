// Package vclock implements the rate-limited virtual clock: accumulating
// elapsed real time into virtual-time increments bounded by the configured
// link drain rate, so the scheduler paces at line rate
// instead of being purely work-conserving.
//
// Every field here is touched only by the scheduler's single consumer
// goroutine and is deliberately not atomic — see DESIGN.md.
package vclock

import (
	"time"

	"github.com/sivasankariit/qfq-rl/internal/fixedpoint"
)

const nsecPerSec = int64(time.Second)

// DefaultLinkSpeedMbps is the default link bits-per-microsecond numerator. It
// models a 9.8 Gb/s pacing target, matching the original scheduler's
// conservative de-rating below the Ethernet-framed 10Gb/s line rate.
const DefaultLinkSpeedMbps = 9800

// Clock abstracts wall-clock reads so tests can drive virtual time
// deterministically without sleeping (SPEC_FULL §13).
type Clock func() int64

// RealClock returns the current time in nanoseconds since the Unix epoch.
func RealClock() int64 {
	return time.Now().UnixNano()
}

// VirtualClock advances V from wall-clock deltas, bounded by the drain rate,
// and accumulates deferred virtual-time debt across dequeues.
type VirtualClock struct {
	// LinkSpeedMbps is the configured link speed (Mbps numerator); DRAIN_RATE
	// is derived from it. Must be set before first use.
	LinkSpeedMbps uint32

	// V is the current virtual time.
	V uint64

	vDiffSum     uint64
	tDiffSum     uint64
	vLastUpdated int64

	initialized bool
	now         Clock
}

// New constructs a VirtualClock using the given link speed and clock source.
// A nil clock defaults to RealClock.
func New(linkSpeedMbps uint32, now Clock) *VirtualClock {
	if now == nil {
		now = RealClock
	}
	return &VirtualClock{LinkSpeedMbps: linkSpeedMbps, now: now}
}

// drainRate is DRAIN_RATE: virtual-time units advanced per nanosecond at
// full link utilisation.
func (vc *VirtualClock) drainRate() uint64 {
	return uint64(vc.LinkSpeedMbps) * 125000 * uint64(fixedpoint.One) / uint64(nsecPerSec)
}

// RecordDequeue records the pacing debt incurred by dequeuing a packet of
// length len bytes, given the current sum of active class weights
// wsumActive. Called once per dequeue.
func (vc *VirtualClock) RecordDequeue(length uint32, wsumActive int64) {
	denom := uint64(vc.LinkSpeedMbps)
	if uint64(wsumActive) > denom {
		denom = uint64(wsumActive)
	}
	vc.vDiffSum += uint64(length) * uint64(fixedpoint.One) / denom
	vc.tDiffSum += uint64(length) * uint64(nsecPerSec) / (125000 * uint64(vc.LinkSpeedMbps))
}

// Update advances V's three regimes, and reports whether V
// changed (old, new), so the caller can invoke make-eligible logic against
// old V. erActive reports whether any group is currently in the ER state.
func (vc *VirtualClock) Update(erActive bool, wsumActive int64) (oldV, newV uint64) {
	now := vc.now()
	oldV = vc.V

	if !vc.initialized {
		vc.initialized = true
		vc.vLastUpdated = now
		return oldV, vc.V
	}

	if now == vc.vLastUpdated {
		return oldV, vc.V
	}

	dt := uint64(now - vc.vLastUpdated)

	denom := uint64(vc.LinkSpeedMbps)
	if uint64(wsumActive) > denom {
		denom = uint64(wsumActive)
	}

	var dv uint64
	switch {
	case vc.tDiffSum > 0:
		if dt >= vc.tDiffSum {
			dv = vc.vDiffSum
			dt -= vc.tDiffSum
			vc.vDiffSum = 0
			vc.tDiffSum = 0
			if !erActive {
				dv += vc.drainRate() * dt / denom
			}
		} else {
			dv = vc.vDiffSum * dt / vc.tDiffSum
			vc.vDiffSum -= dv
			vc.tDiffSum -= dt
		}
	case !erActive:
		dv = vc.drainRate() * dt / denom
	default:
		dv = 0
	}

	vc.V += dv
	vc.vLastUpdated = now
	return oldV, vc.V
}

// VDiffSum and TDiffSum expose the pacing accumulators, for diagnostics and
// invariant checks.
func (vc *VirtualClock) VDiffSum() uint64 { return vc.vDiffSum }
func (vc *VirtualClock) TDiffSum() uint64 { return vc.tDiffSum }

// Now returns the current reading of the clock's underlying time source,
// for callers (e.g. per-class rate estimation) that need a timestamp
// consistent with the one driving V.
func (vc *VirtualClock) Now() int64 { return vc.now() }
