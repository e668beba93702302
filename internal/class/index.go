package class

import (
	"math/bits"

	"github.com/sivasankariit/qfq-rl/internal/fixedpoint"
)

// CalcIndex computes the group a class with the given reciprocal weight and
// maximum packet length belongs to: index = log2(lmax/weight), scaled by
// fixedpoint.MinSlotShift. It is only ever called once per weight/lmax pair,
// at class creation or reconfiguration.
func CalcIndex(invW int64, lmax uint32) int {
	if invW == fixedpoint.ZeroWeightSentinel {
		return 0
	}

	slotSize := uint64(lmax) * uint64(invW)

	sizeMap := slotSize >> fixedpoint.MinSlotShift
	if sizeMap == 0 {
		return 0
	}

	index := bits.Len64(sizeMap) // floor(log2(sizeMap)) + 1
	if slotSize == uint64(1)<<uint(index+fixedpoint.MinSlotShift-1) {
		index--
	}

	if index < 0 {
		index = 0
	}
	return index
}
