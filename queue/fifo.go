package queue

// FIFO is a reference SubQueue implementation: a plain drop-tail FIFO backed
// by ringBuffer. It is the default sub-queue a Class gets if the embedder
// doesn't supply one of their own; This package treats the sub-queue's internal
// policy as opaque, and this is the simplest policy satisfying the contract.
type FIFO struct {
	ring    ringBuffer[Packet]
	maxLen  uint32
	dropped uint64
}

// NewFIFO constructs a FIFO that holds at most maxLen packets; beyond that,
// Enqueue reports EnqueueDroppedFull. maxLen of 0 means unbounded.
func NewFIFO(maxLen uint32) *FIFO {
	return &FIFO{
		ring:   *newRingBuffer[Packet](16),
		maxLen: maxLen,
	}
}

func (f *FIFO) Enqueue(pkt Packet) EnqueueResult {
	if f.maxLen != 0 && uint32(f.ring.Len()) >= f.maxLen {
		f.dropped++
		return EnqueueResult{OK: false, Dropped: true, Kind: EnqueueDroppedFull}
	}
	f.ring.PushBack(pkt)
	return EnqueueResult{OK: true}
}

func (f *FIFO) PeekLength() uint32 {
	if f.ring.Len() == 0 {
		return 0
	}
	return f.ring.Front().Len()
}

func (f *FIFO) DequeuePeeked() Packet {
	v, ok := f.ring.PopFront()
	if !ok {
		return nil
	}
	return v
}

func (f *FIFO) DropOne() uint32 {
	v, ok := f.ring.PopFront()
	if !ok {
		return 0
	}
	f.dropped++
	return v.Len()
}

func (f *FIFO) Length() uint32 {
	return uint32(f.ring.Len())
}

func (f *FIFO) Reset() {
	f.ring.Reset()
}

// Dropped returns the cumulative number of packets dropped by this queue,
// either via DropOne or a full Enqueue.
func (f *FIFO) Dropped() uint64 {
	return f.dropped
}
