package engine

import "github.com/sivasankariit/qfq-rl/internal/fixedpoint"

// EligibilityPolicy controls what update_eligible does beyond the mandatory
// make-eligible promotion already applied via V's advancement. Forwarding V
// to the next ineligible group's start time (the classical QFQ
// work-conserving step) is deliberately left pluggable rather than baked
// into the engine.
type EligibilityPolicy interface {
	// UpdateEligible is invoked whenever any group is IR or IB after V has
	// advanced. oldV is V's value before this dequeue/deactivate's update.
	UpdateEligible(e *Engine, oldV uint64)
}

// RateLimitedPolicy is the default: no additional forwarding of V. Rate
// limiting (the virtual clock's bounded advancement) is what paces the
// schedule; the engine never forwards V on its own to keep it work
// conserving.
type RateLimitedPolicy struct{}

func (RateLimitedPolicy) UpdateEligible(*Engine, uint64) {}

// WorkConservingPolicy implements the classical QFQ behavior: if no group is
// ER, forward V to the start time of the lowest-start ineligible group, then
// re-run make-eligible. This trades the rate limiter's pacing guarantee for
// a strictly work-conserving schedule, and is not the default.
type WorkConservingPolicy struct{}

func (WorkConservingPolicy) UpdateEligible(e *Engine, oldV uint64) {
	if e.bitmaps[ER] != 0 {
		return
	}

	ineligible := e.bitmaps[IR] | e.bitmaps[IB]
	if ineligible == 0 {
		return
	}

	var minS uint64
	found := false
	for m := ineligible; m != 0; {
		idx := fixedpoint.FFS(m)
		m &^= fixedpoint.Bitmap(1) << uint(idx)

		g := e.Registry.Group(idx)
		if !found || fixedpoint.Greater(minS, g.S) {
			minS = g.S
			found = true
		}
	}
	if !found {
		return
	}

	if fixedpoint.Greater(minS, e.V()) {
		e.Clock.V = minS
		e.makeEligible(oldV)
	}
}
