package class

import "github.com/sivasankariit/qfq-rl/internal/fixedpoint"

// Group holds every class mapped to one log2(lmax/weight) octave. Its slot
// ring is a rotating circular array of MaxSlots buckets, indexed by a
// class's rounded start time relative to the group's own start time.
type Group struct {
	Index     int
	SlotShift uint

	// S, F are the group's virtual start/finish timestamps.
	S, F uint64

	// Front is the physical index of logical slot 0.
	Front int
	// FullSlots has bit k set iff logical slot k is non-empty.
	FullSlots fixedpoint.Bitmap

	slots [fixedpoint.MaxSlots][]*Class

	// OnSlotOverflow, if set, is invoked (in addition to silently clamping)
	// when Insert computes a slot index >= MaxSlots. It exists purely as a
	// diagnostic hook;
	// Insert always clamps regardless of whether this is set.
	OnSlotOverflow func(cl *Class, slot uint64)
}

// NewGroup constructs an empty group for the given index, with its fixed
// slot_shift precomputed
func NewGroup(index int) *Group {
	return &Group{
		Index:     index,
		SlotShift: uint(fixedpoint.MTUShift + fixedpoint.FracBits - (fixedpoint.MaxIndex - index)),
	}
}

func (g *Group) physicalSlot(logicalSlot int) int {
	return (g.Front + logicalSlot) % fixedpoint.MaxSlots
}

// Insert places cl at the head of the slot corresponding to roundedS,
// clamping to the last slot (and reporting via OnSlotOverflow) if the
// computed slot would overflow the ring. Head-insertion makes same-slot
// service order LIFO (most recently inserted first), matching
// qfq_slot_insert's hlist_add_head.
func (g *Group) Insert(cl *Class, roundedS uint64) {
	slot := (roundedS - g.S) >> g.SlotShift
	if slot >= fixedpoint.MaxSlots {
		if g.OnSlotOverflow != nil {
			g.OnSlotOverflow(cl, slot)
		}
		slot = fixedpoint.MaxSlots - 1
	}

	i := g.physicalSlot(int(slot))
	g.slots[i] = append(g.slots[i], nil)
	copy(g.slots[i][1:], g.slots[i])
	g.slots[i][0] = cl
	g.FullSlots |= fixedpoint.Bitmap(1) << uint(slot)
}

// Head returns the most recently inserted class in the front slot (LIFO
// within a slot), or nil if the group has no classes.
func (g *Group) Head() *Class {
	s := g.slots[g.Front]
	if len(s) == 0 {
		return nil
	}
	return s[0]
}

// FrontSlotRemove pops the head of the front slot, clearing its full_slots
// bit (bit 0) if the slot is now empty.
func (g *Group) FrontSlotRemove() {
	s := g.slots[g.Front]
	if len(s) == 0 {
		return
	}
	s[0] = nil
	g.slots[g.Front] = s[1:]
	if len(g.slots[g.Front]) == 0 {
		g.FullSlots &^= 1
	}
}

// Scan returns the class at the head of the first non-empty slot, rotating
// the ring so that slot becomes logical slot 0. Returns nil if the group is
// empty.
func (g *Group) Scan() *Class {
	if g.FullSlots == 0 {
		return nil
	}
	i := fixedpoint.FFS(g.FullSlots)
	if i > 0 {
		g.Front = (g.Front + i) % fixedpoint.MaxSlots
		g.FullSlots >>= uint(i)
	}
	return g.Head()
}

// Rotate adjusts the ring when the group's start time moves backward (i.e.
// roundedS < g.S): it shifts full_slots left and moves front back by the
// same amount, making room for a new, earlier slot 0 without moving any
// class between buckets.
func (g *Group) Rotate(roundedS uint64) {
	i := int((g.S - roundedS) >> g.SlotShift)
	g.FullSlots <<= uint(i)
	g.Front = ((g.Front-i)%fixedpoint.MaxSlots + fixedpoint.MaxSlots) % fixedpoint.MaxSlots
}

// Remove removes cl from whatever slot its rounded start time (computed
// against the group's current S and slot_shift) maps to. It's the
// counterpart to Insert, used on deactivation or weight/group reconfiguration.
func (g *Group) Remove(cl *Class) {
	roundedS := fixedpoint.RoundDown(cl.S, g.SlotShift)
	offset := (roundedS - g.S) >> g.SlotShift
	i := g.physicalSlot(int(offset))

	bucket := g.slots[i]
	for idx, c := range bucket {
		if c == cl {
			g.slots[i] = append(bucket[:idx], bucket[idx+1:]...)
			break
		}
	}
	if len(g.slots[i]) == 0 {
		g.FullSlots &^= fixedpoint.Bitmap(1) << uint(offset)
	}
}

// FrontEmpty reports whether the group's front slot currently holds no
// classes (used by deactivate to decide whether a new head must be scanned).
func (g *Group) FrontEmpty() bool {
	return len(g.slots[g.Front]) == 0
}

// Empty reports whether the group holds no classes in any slot.
func (g *Group) Empty() bool {
	return g.FullSlots == 0
}
