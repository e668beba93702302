package engine

import (
	"github.com/sivasankariit/qfq-rl/internal/class"
	"github.com/sivasankariit/qfq-rl/internal/fixedpoint"
	"github.com/sivasankariit/qfq-rl/internal/vclock"
	"github.com/sivasankariit/qfq-rl/queue"
)

// Engine owns the four group-state bitmaps, the class/group registry, and
// the virtual clock, and implements every QFQ state transition: activate,
// deactivate, and dequeue. A single Engine is meant to be driven exclusively
// by the spinner goroutine; nothing here takes a lock.
type Engine struct {
	Registry *class.Registry
	Clock    *vclock.VirtualClock

	bitmaps bitmaps

	// WSumActive is the sum of configured weights of currently-backlogged
	// classes.
	WSumActive int64

	// Policy controls the update_eligible forward-V step. Defaults to RateLimitedPolicy if nil.
	Policy EligibilityPolicy

	// OnInvariantViolation, if set, is invoked by CheckInvariants with a
	// description of any failed invariant. Never called from the hot path.
	OnInvariantViolation func(msg string)
}

// New constructs an Engine over an existing registry and virtual clock.
func New(reg *class.Registry, clk *vclock.VirtualClock) *Engine {
	return &Engine{Registry: reg, Clock: clk, Policy: RateLimitedPolicy{}}
}

// ERBitmap, IRBitmap, EBBitmap, IBBitmap expose the raw state bitmaps, for
// diagnostics and invariant checks.
func (e *Engine) ERBitmap() fixedpoint.Bitmap { return e.bitmaps[ER] }
func (e *Engine) IRBitmap() fixedpoint.Bitmap { return e.bitmaps[IR] }
func (e *Engine) EBBitmap() fixedpoint.Bitmap { return e.bitmaps[EB] }
func (e *Engine) IBBitmap() fixedpoint.Bitmap { return e.bitmaps[IB] }

func (e *Engine) V() uint64 { return e.Clock.V }

// HasBacklog reports whether any group holds a backlogged class, in any of
// the four states. ER alone can be empty while IR/EB/IB hold classes that
// are simply not yet eligible or are blocked on the rate limiter — callers
// that only poll ER would livelock waiting for work that already exists.
func (e *Engine) HasBacklog() bool {
	return e.bitmaps[ER]|e.bitmaps[IR]|e.bitmaps[EB]|e.bitmaps[IB] != 0
}

// groupInState finds the lowest-index group recorded in state s within the
// bits set in mask. Returns nil if mask has no corresponding group, i.e. the
// masked-down bitmap is empty.
func (e *Engine) groupInState(mask fixedpoint.Bitmap, s State) *class.Group {
	bm := e.bitmaps[s] & mask
	if bm == 0 {
		return nil
	}
	return e.Registry.Group(fixedpoint.FFS(bm))
}

// calcState computes a group's current state from its S/F against V and the
// ER bitmapMirrors qfq_calc_state exactly, including
// evaluating mask_from(ER, g.Index) (inclusive of g's own index, which is
// harmless since g is never recorded in ER while its state is being
// (re)computed).
func (e *Engine) calcState(g *class.Group) State {
	s := State(0)
	if fixedpoint.Greater(g.S, e.V()) {
		s = IR // ineligible bit set; blocked bit decided below
	}

	mask := fixedpoint.MaskFrom(e.bitmaps[ER], g.Index)
	if next := e.groupInState(mask, ER); next != nil {
		if fixedpoint.Greater(g.F, next.F) {
			s |= EB // sets the blocked bit (value 2), yielding EB or IB
		}
	}
	return s
}

// unblockGroups reimplements qfq_unblock_groups: after group index's F may
// have shrunk (old_F was its previous value), promote every lower-index
// EB/IB group to ER/IR if no surviving higher-index ER group still blocks
// them.
func (e *Engine) unblockGroups(index int, oldF uint64) {
	mask := fixedpoint.MaskFrom(e.bitmaps[ER], index+1)
	if next := e.groupInState(mask, ER); next != nil {
		if !fixedpoint.Greater(next.F, oldF) {
			return
		}
	}

	mask = fixedpoint.MaskBelow(index)
	e.bitmaps.move(mask, EB, ER)
	e.bitmaps.move(mask, IB, IR)
}

// makeEligible reimplements qfq_make_eligible: when V has crossed into a new
// slot relative to oldV, promote every IR/IB group whose index falls within
// the affected range to ER/EB.
func (e *Engine) makeEligible(oldV uint64) {
	vSlot := e.V() >> fixedpoint.MinSlotShift
	oldSlot := oldV >> fixedpoint.MinSlotShift
	if vSlot == oldSlot {
		return
	}

	diff := fixedpoint.Bitmap(vSlot ^ oldSlot)
	mask := fixedpoint.MaskBelow(fixedpoint.FLS(diff) + 1)
	e.bitmaps.move(mask, IR, ER)
	e.bitmaps.move(mask, IB, EB)
}

// updateEligible reimplements qfq_update_eligible. If any group is currently
// ineligible, delegate to the configured policy.
func (e *Engine) updateEligible(oldV uint64) {
	if e.bitmaps[IR]|e.bitmaps[IB] != 0 && e.Policy != nil {
		e.Policy.UpdateEligible(e, oldV)
	}
}

// UpdateSystemTime advances V via the virtual clock and promotes any groups
// that become eligible as a result. Must be called at the top of every
// dequeue.
func (e *Engine) UpdateSystemTime() {
	erActive := e.bitmaps[ER] != 0
	oldV, _ := e.Clock.Update(erActive, e.WSumActive)
	e.makeEligible(oldV)
}

// updateStart reimplements qfq_update_start: assigns a class's new virtual
// start time as it becomes backlogged
func (e *Engine) updateStart(cl *class.Class) {
	g := cl.Grp
	shift := g.SlotShift

	roundedF := fixedpoint.RoundDown(cl.F, shift)
	limit := fixedpoint.RoundDown(e.V(), shift) + (uint64(1) << shift)

	if !fixedpoint.Greater(cl.F, e.V()) || fixedpoint.Greater(roundedF, limit) {
		mask := fixedpoint.MaskFrom(e.bitmaps[ER], g.Index)
		if next := e.groupInState(mask, ER); next != nil {
			if fixedpoint.Greater(roundedF, next.F) {
				if fixedpoint.Greater(limit, next.F) {
					cl.S = next.F
				} else {
					cl.S = limit
				}
				return
			}
		}
		cl.S = e.V()
		return
	}

	cl.S = cl.F
}

// Activate reimplements qfq_activate_class: transitions a class from idle to
// backlogged, assigning it a start/finish time and inserting it into its
// group's slot ringIt does not touch WSumActive: per the
// original source, that accounting happens once per drained activation
// event, not inside activate itself (a reconfiguration can also reactivate a
// class whose weight delta was already folded into WSumActive). Callers
// (the activation drain loop) are responsible for it. A zero-weight class is
// left idle: it is never inserted into a slot ring.
func (e *Engine) Activate(cl *class.Class, pktLen uint32) {
	if cl.IsZeroWeight() {
		return
	}
	g := cl.Grp

	e.updateStart(cl)
	cl.F = cl.S + uint64(pktLen)*uint64(cl.InvW)
	roundedS := fixedpoint.RoundDown(cl.S, g.SlotShift)

	if !g.Empty() {
		if !fixedpoint.Greater(g.S, cl.S) {
			g.Insert(cl, roundedS)
			return
		}
		g.Rotate(roundedS)
		e.bitmaps.clearBit(IR, g.Index)
		e.bitmaps.clearBit(IB, g.Index)
	}

	g.S = roundedS
	g.F = roundedS + (uint64(2) << g.SlotShift)
	s := e.calcState(g)
	e.bitmaps.set(s, g.Index)

	g.Insert(cl, roundedS)
}

// Deactivate reimplements qfq_deactivate_class: removes a class from its
// group's slot ring (called once its sub-queue drains independent of a
// dequeue, e.g. on weight/group reconfiguration or deletion). When this
// empties an ER group with no higher-index ER group left, every EB/IB group
// above the highest remaining lower-index ER group (or every EB/IB group, if
// none remains) is promoted to ER/IR. V itself is not changed here.
func (e *Engine) Deactivate(cl *class.Class) {
	g := cl.Grp

	cl.F = cl.S
	g.Remove(cl)

	if g.Empty() {
		e.bitmaps.clearBit(IR, g.Index)
		e.bitmaps.clearBit(EB, g.Index)
		e.bitmaps.clearBit(IB, g.Index)

		if e.bitmaps.has(ER, g.Index) && fixedpoint.MaskFrom(e.bitmaps[ER], g.Index+1) == 0 {
			mask := e.bitmaps[ER] & fixedpoint.MaskBelow(g.Index)
			if mask != 0 {
				mask = ^fixedpoint.MaskBelow(fixedpoint.FLS(mask) + 1)
			} else {
				mask = ^fixedpoint.Bitmap(0)
			}
			e.bitmaps.move(mask, EB, ER)
			e.bitmaps.move(mask, IB, IR)
		}
		e.bitmaps.clearBit(ER, g.Index)
	} else if g.FrontEmpty() {
		head := g.Scan()
		roundedS := fixedpoint.RoundDown(head.S, g.SlotShift)
		if g.S != roundedS {
			e.bitmaps.clearAll(g.Index)
			g.S = roundedS
			g.F = roundedS + (uint64(2) << g.SlotShift)
			e.bitmaps.set(e.calcState(g), g.Index)
		}
	}

	e.updateEligible(e.V())
}

// clearBit removes group index from bitmap state s only.
func (b *bitmaps) clearBit(s State, index int) {
	b[s] &^= fixedpoint.Bitmap(1) << uint(index)
}

// DequeueResult reports the outcome of Dequeue.
type DequeueResult struct {
	Class  *class.Class
	Packet queue.Packet
}

// Dequeue reimplements qfq_dequeue in full advances
// system time, picks the lowest-index ER group, extracts one packet from its
// head class, records pacing debt, and updates class/group state.
func (e *Engine) Dequeue() (DequeueResult, bool) {
	e.UpdateSystemTime()

	if e.bitmaps[ER] == 0 {
		return DequeueResult{}, false
	}

	g := e.Registry.Group(fixedpoint.FFS(e.bitmaps[ER]))
	cl := g.Head()
	if cl == nil {
		return DequeueResult{}, false
	}

	pkt := cl.Queue.DequeuePeeked()
	if pkt == nil {
		return DequeueResult{}, false
	}
	clQLen := cl.Queue.Length()
	nextLen := cl.Queue.PeekLength()

	oldV := e.V()
	length := pkt.Len()
	e.Clock.RecordDequeue(length, e.WSumActive)

	cl.RecordDequeue(length, e.Clock.Now())

	groupChanged := e.updateClass(g, cl, nextLen)

	if groupChanged {
		oldF := g.F
		if !cl.IsZeroWeight() && clQLen == 0 {
			e.WSumActive -= cl.Weight()
		}

		newHead := g.Scan()
		if newHead == nil {
			e.bitmaps.clearBit(ER, g.Index)
		} else {
			roundedS := fixedpoint.RoundDown(newHead.S, g.SlotShift)
			if roundedS != g.S {
				g.S = roundedS
				g.F = roundedS + (uint64(2) << g.SlotShift)
				e.bitmaps.clearBit(ER, g.Index)
				e.bitmaps.set(e.calcState(g), g.Index)
			}
		}

		e.unblockGroups(g.Index, oldF)
	} else if !cl.IsZeroWeight() && clQLen == 0 {
		e.WSumActive -= cl.Weight()
	}

	e.updateEligible(oldV)

	return DequeueResult{Class: cl, Packet: pkt}, true
}

// updateClass reimplements qfq_update_class: advances cl.S to its prior
// finish time, and either removes it from its slot (drained, or reweighted
// to zero) or recomputes its finish time and possibly re-slots it. Returns
// true iff the group's slot-ring membership changed and needs a group-state
// refresh.
func (e *Engine) updateClass(g *class.Group, cl *class.Class, nextLen uint32) bool {
	cl.S = cl.F

	if nextLen == 0 || cl.IsZeroWeight() {
		g.FrontSlotRemove()
		return true
	}

	cl.F = cl.S + uint64(nextLen)*uint64(cl.InvW)
	roundedS := fixedpoint.RoundDown(cl.S, g.SlotShift)
	if roundedS == g.S {
		return false
	}

	g.FrontSlotRemove()
	g.Insert(cl, roundedS)
	return true
}
