package qfqrl

import "github.com/sivasankariit/qfq-rl/internal/fixedpoint"

// ClassConfig is the admission-time configuration for a single class. Zero
// Weight and LMax take their defaults; DefaultClassConfig spells them out.
type ClassConfig struct {
	// ID uniquely identifies the class within a Scheduler.
	ID uint32
	// Weight is the class's fair-share weight, in [1, fixedpoint.MaxWeight].
	// Defaults to 1 if zero.
	Weight int64
	// LMax is the largest packet size this class is configured for, in
	// [1, 1<<fixedpoint.MTUShift]. Defaults to 1<<fixedpoint.MTUShift if zero.
	LMax uint32
	// QueueLimit bounds the number of packets the class's sub-queue may
	// hold; 0 means unbounded. Only used if ConfigureClass is given a nil
	// sub-queue.
	QueueLimit uint32
}

// DefaultClassConfig returns a ClassConfig for the given id with the
// default weight (1) and lmax (1<<MTUShift).
func DefaultClassConfig(id uint32) ClassConfig {
	return ClassConfig{ID: id, Weight: 1, LMax: uint32(1) << fixedpoint.MTUShift}
}

func (c ClassConfig) normalized() ClassConfig {
	if c.Weight == 0 {
		c.Weight = 1
	}
	if c.LMax == 0 {
		c.LMax = uint32(1) << fixedpoint.MTUShift
	}
	return c
}

// SchedulerConfig configures a Scheduler at construction time.
type SchedulerConfig struct {
	// LinkSpeedMbps sets the virtual clock's drain rate.
	// Defaults to vclock.DefaultLinkSpeedMbps if zero.
	LinkSpeedMbps uint32
	// ActivationShards is the number of producer shards the activation
	// queue is built with; typically one per expected
	// concurrent producer. Defaults to 1 if zero.
	ActivationShards int
}
