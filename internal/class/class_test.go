package class

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sivasankariit/qfq-rl/internal/fixedpoint"
)

func TestCalcIndex_ZeroWeightSentinel(t *testing.T) {
	t.Parallel()
	require.Equal(t, 0, CalcIndex(fixedpoint.ZeroWeightSentinel, 1500))
}

func TestCalcIndex_MonotonicWithWeight(t *testing.T) {
	t.Parallel()

	lmax := uint32(1 << fixedpoint.MTUShift)
	invWHeavy := fixedpoint.One / 1000 // heavy weight -> small slot_size -> low index
	invWLight := fixedpoint.One / 1    // weight 1 -> largest slot_size -> highest index

	heavy := CalcIndex(invWHeavy, lmax)
	light := CalcIndex(invWLight, lmax)

	require.GreaterOrEqual(t, light, heavy)
	require.LessOrEqual(t, light, fixedpoint.MaxIndex)
	require.GreaterOrEqual(t, heavy, 0)
}

func TestGroup_InsertScanFrontRemove(t *testing.T) {
	t.Parallel()

	g := NewGroup(10)
	g.S = 0

	c1 := &Class{ID: 1}
	c2 := &Class{ID: 2}

	roundedS1 := uint64(0)
	roundedS2 := uint64(3) << g.SlotShift

	g.Insert(c1, roundedS1)
	g.Insert(c2, roundedS2)

	require.Same(t, c1, g.Head())

	g.FrontSlotRemove()

	head := g.Scan()
	require.Same(t, c2, head)
}

func TestGroup_Insert_SameSlotIsLIFO(t *testing.T) {
	t.Parallel()

	g := NewGroup(10)
	g.S = 0

	c1 := &Class{ID: 1}
	c2 := &Class{ID: 2}
	c3 := &Class{ID: 3}

	g.Insert(c1, 0)
	g.Insert(c2, 0)
	g.Insert(c3, 0)

	require.Same(t, c3, g.Head())
	g.FrontSlotRemove()
	require.Same(t, c2, g.Head())
	g.FrontSlotRemove()
	require.Same(t, c1, g.Head())
	g.FrontSlotRemove()
	require.Nil(t, g.Head())
}

func TestGroup_RotateBackward(t *testing.T) {
	t.Parallel()

	g := NewGroup(5)
	g.S = 10 << g.SlotShift

	c1 := &Class{ID: 1}
	g.Insert(c1, g.S)
	require.Same(t, c1, g.Head())

	newS := uint64(8) << g.SlotShift
	g.Rotate(newS)
	g.S = newS

	c2 := &Class{ID: 2}
	g.Insert(c2, newS)

	require.Same(t, c2, g.Head())
}

func TestGroup_RemoveArbitrary(t *testing.T) {
	t.Parallel()

	g := NewGroup(0)
	g.S = 0

	c1 := &Class{ID: 1, S: 0}
	c2 := &Class{ID: 2, S: 1 << g.SlotShift}

	g.Insert(c1, c1.S)
	g.Insert(c2, c2.S)

	g.Remove(c1)

	require.Nil(t, g.Head()) // front slot (slot 0) is now empty

	head := g.Scan()
	require.Same(t, c2, head)
}

func TestRegistry_InsertReconfigureRemove(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	c := &Class{ID: 1, InvW: fixedpoint.One / 2, LMax: 1500}
	r.Insert(c)
	require.EqualValues(t, 2, r.WSum)
	require.Same(t, c, r.Lookup(1))

	oldGrp, newGrp := r.Reconfigure(c, fixedpoint.One/4, 1500)
	require.EqualValues(t, 4, r.WSum)
	require.NotSame(t, oldGrp, newGrp, "different weight should map to a different group in this range")

	r.Remove(1)
	require.EqualValues(t, 0, r.WSum)
	require.Nil(t, r.Lookup(1))
}
