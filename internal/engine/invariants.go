package engine

import (
	"fmt"

	"github.com/sivasankariit/qfq-rl/internal/class"
	"github.com/sivasankariit/qfq-rl/internal/fixedpoint"
)

// CheckInvariants verifies the scheduler's core structural invariants:
// disjoint state bitmaps, wsum and wsum_active matching the class weights,
// every non-empty group (and no empty one) recorded in a state bitmap, group
// S alignment and F-S width, and stored state matching calc_state.
// It is a diagnostic, not a hot-path check: intended for tests and for an
// occasionally-sampled assertion in long-running soak tests, never for
// every dequeue. Every violation found is reported via OnInvariantViolation
// (if set) and included in the returned slice.
func (e *Engine) CheckInvariants() []string {
	var violations []string
	report := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		violations = append(violations, msg)
		if e.OnInvariantViolation != nil {
			e.OnInvariantViolation(msg)
		}
	}

	// Property 2: pairwise disjointness of the four bitmaps.
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if e.bitmaps[i]&e.bitmaps[j] != 0 {
				report("bitmaps[%s] and bitmaps[%s] overlap: %#x", State(i), State(j), e.bitmaps[i]&e.bitmaps[j])
			}
		}
	}

	recorded := e.bitmaps[ER] | e.bitmaps[IR] | e.bitmaps[EB] | e.bitmaps[IB]

	// Properties 3 and 4: wsum/wsum_active match the sum of configured
	// weights over all/backlogged non-zero-weight classes respectively.
	var wsum, wsumActive int64
	e.Registry.Each(func(c *class.Class) {
		if c.IsZeroWeight() {
			return
		}
		wsum += c.Weight()
		if c.Queue != nil && c.Queue.Length() > 0 {
			wsumActive += c.Weight()
		}
	})
	if wsum != e.Registry.WSum {
		report("wsum=%d, recomputed sum over all classes=%d", e.Registry.WSum, wsum)
	}
	if wsumActive != e.WSumActive {
		report("wsum_active=%d, recomputed sum over backlogged classes=%d", e.WSumActive, wsumActive)
	}

	for _, g := range e.Registry.Groups() {
		nonEmpty := !g.Empty()
		inBitmap := recorded&(fixedpoint.Bitmap(1)<<uint(g.Index)) != 0

		// Property 1: a group with classes appears in exactly one bitmap.
		if nonEmpty && !inBitmap {
			report("group %d has classes but is in no state bitmap", g.Index)
		}
		if !nonEmpty && inBitmap {
			report("group %d is empty but recorded in a state bitmap", g.Index)
		}

		if inBitmap {
			// Property 5.
			if g.S&((uint64(1)<<g.SlotShift)-1) != 0 {
				report("group %d S=%d is not a multiple of 1<<%d", g.Index, g.S, g.SlotShift)
			}
			if g.F-g.S != uint64(2)<<g.SlotShift {
				report("group %d F-S=%d, want %d", g.Index, g.F-g.S, uint64(2)<<g.SlotShift)
			}

			// Property 6.
			want := e.calcState(g)
			gotState, ok := e.storedState(g.Index)
			if !ok || gotState != want {
				report("group %d stored state does not match calc_state: stored=%v want=%v", g.Index, gotState, want)
			}
		}
	}

	return violations
}

// storedState returns which of the four bitmaps currently records index, and
// whether it was found in exactly one.
func (e *Engine) storedState(index int) (State, bool) {
	bit := fixedpoint.Bitmap(1) << uint(index)
	found := State(-1)
	count := 0
	for s := ER; s <= IB; s++ {
		if e.bitmaps[s]&bit != 0 {
			found = s
			count++
		}
	}
	return found, count == 1
}
