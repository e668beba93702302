package qfqrl

// ClassStats is the read-only statistics surface for a single class.
type ClassStats struct {
	ID          uint32
	Packets     uint64
	Bytes       uint64
	Drops       uint64
	RateBps     float64
	QueueLength uint32
	Backlogged  bool
}

// SchedulerStats is the read-only scheduler-wide statistics surface.
type SchedulerStats struct {
	WSum       int64
	WSumActive int64
	ClassCount int
}
