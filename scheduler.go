// Package qfqrl implements a Quick Fair Queueing with Rate Limitation
// (QFQ-RL) packet scheduler: a hierarchical timestamp/bitmap engine for
// choosing which of many weighted traffic classes sends next, paced by a
// rate-limited virtual clock, with a lock-protected multi-producer front end
// feeding a single consumer goroutine (not pinned to a CPU).
//
// Scheduler ties together the pieces in internal/class, internal/engine,
// internal/vclock, and internal/activation behind one exported API. Enqueue
// is safe to call from any number of producer goroutines. Dequeue,
// ConfigureClass, and DeleteClass all mutate engine state directly and must
// only ever be called from the single goroutine that owns the scheduler
// — typically the spinner loop in package spinner, or the
// caller itself in a single-threaded embedding.
package qfqrl

import (
	"cmp"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/sivasankariit/qfq-rl/classify"
	"github.com/sivasankariit/qfq-rl/internal/activation"
	"github.com/sivasankariit/qfq-rl/internal/class"
	"github.com/sivasankariit/qfq-rl/internal/engine"
	"github.com/sivasankariit/qfq-rl/internal/fixedpoint"
	"github.com/sivasankariit/qfq-rl/internal/qfqlog"
	"github.com/sivasankariit/qfq-rl/internal/vclock"
	"github.com/sivasankariit/qfq-rl/queue"
)

// Scheduler is a complete QFQ-RL instance: a class registry, the QFQ state
// engine, the rate-limiting virtual clock, and the multi-producer activation
// front end.
type Scheduler struct {
	registry   *class.Registry
	engine     *engine.Engine
	activation *activation.Queues
	classifier classify.Classifier
	log        *qfqlog.Logger
}

// New constructs a Scheduler. now is the wall-clock source the virtual clock
// paces against (vclock.Clock); pass time.Now().UnixNano in production and a
// controllable fake in tests.
func New(cfg SchedulerConfig, classifier classify.Classifier, now vclock.Clock, log *qfqlog.Logger) *Scheduler {
	if cfg.LinkSpeedMbps == 0 {
		cfg.LinkSpeedMbps = vclock.DefaultLinkSpeedMbps
	}
	if cfg.ActivationShards <= 0 {
		cfg.ActivationShards = 1
	}
	if log == nil {
		log = qfqlog.Nop()
	}

	reg := class.NewRegistry()
	clk := vclock.New(cfg.LinkSpeedMbps, now)
	eng := engine.New(reg, clk)
	eng.OnInvariantViolation = log.InvariantViolation

	for _, g := range reg.Groups() {
		grp := g
		grp.OnSlotOverflow = func(cl *class.Class, slot uint64) {
			log.SlotOverflow(grp.Index, cl.ID, grp.S+slot<<grp.SlotShift)
		}
	}

	return &Scheduler{
		registry:   reg,
		engine:     eng,
		activation: activation.New(cfg.ActivationShards),
		classifier: classifier,
		log:        log,
	}
}

// Activation exposes the multi-producer activation queue, for wiring a
// spinner.Spinner.
func (s *Scheduler) Activation() *activation.Queues { return s.activation }

// Engine exposes the underlying QFQ state engine, for wiring a
// spinner.Spinner or running CheckInvariants from tests.
func (s *Scheduler) Engine() *engine.Engine { return s.engine }

// ConfigureClass admits a new class or updates an existing one.
// Must be called from the scheduler's owning goroutine.
func (s *Scheduler) ConfigureClass(cfg ClassConfig, q queue.SubQueue) error {
	cfg = cfg.normalized()
	if cfg.Weight < 1 || cfg.Weight > fixedpoint.MaxWeight {
		return fmt.Errorf("%w: weight %d not in [1, %d]", ErrInvalidWeight, cfg.Weight, fixedpoint.MaxWeight)
	}
	if cfg.LMax < 1 || cfg.LMax > uint32(1)<<fixedpoint.MTUShift {
		return fmt.Errorf("%w: lmax %d not in [1, %d]", ErrInvalidLMax, cfg.LMax, uint32(1)<<fixedpoint.MTUShift)
	}

	invW := fixedpoint.One / cfg.Weight

	if existing := s.registry.Lookup(cfg.ID); existing != nil {
		return s.reconfigure(existing, invW, cfg.LMax)
	}

	if s.registry.WSum+cfg.Weight > fixedpoint.MaxWSum {
		return fmt.Errorf("%w: wsum %d + weight %d > %d", ErrWSumOverflow, s.registry.WSum, cfg.Weight, fixedpoint.MaxWSum)
	}

	if q == nil {
		q = queue.NewFIFO(cfg.QueueLimit)
	}
	cl := &class.Class{ID: cfg.ID, Queue: q, InvW: invW, LMax: cfg.LMax}
	s.registry.Insert(cl)
	return nil
}

// reconfigure implements the class-update rules: no-op if
// (weight, lmax) is unchanged, otherwise recompute the group and, if it
// changed while the class was backlogged, deactivate-then-reactivate it
// (clamping F to S so the half-served packet isn't double-charged).
func (s *Scheduler) reconfigure(cl *class.Class, invW int64, lmax uint32) error {
	if cl.InvW == invW && cl.LMax == lmax {
		return nil
	}

	deltaW := int64(0)
	if !cl.IsZeroWeight() {
		deltaW -= cl.Weight()
	}
	if invW != fixedpoint.ZeroWeightSentinel {
		deltaW += fixedpoint.One / invW
	}
	if s.registry.WSum+deltaW > fixedpoint.MaxWSum {
		return fmt.Errorf("%w: reconfiguring class %d", ErrWSumOverflow, cl.ID)
	}

	backlogged := cl.Queue.Length() > 0
	if backlogged {
		s.engine.WSumActive += deltaW
	}

	oldGroup, newGroup := s.registry.Reconfigure(cl, invW, lmax)
	if oldGroup == newGroup {
		return nil
	}

	if backlogged {
		// Clamp F<-S so the half-served packet isn't double charged, then
		// reactivate in the new group with the current head packet's length,
		// bypassing the activation queue since this already runs on the
		// engine's owning goroutine.
		s.engine.Deactivate(cl)
		if head := cl.Queue.PeekLength(); head != 0 {
			s.engine.Activate(cl, head)
		}
	}

	return nil
}

// DeleteClass removes a class entirely, draining and discarding its
// sub-queue. Must be called from the scheduler's owning goroutine.
func (s *Scheduler) DeleteClass(id uint32) error {
	cl := s.registry.Lookup(id)
	if cl == nil {
		return ErrUnknownClass
	}
	if cl.Queue.Length() > 0 {
		s.engine.Deactivate(cl)
		cl.Queue.Reset()
		if !cl.IsZeroWeight() {
			s.engine.WSumActive -= cl.Weight()
		}
	}
	s.registry.Remove(id)
	return nil
}

// Enqueue classifies pkt, appends it to the target class's sub-queue, and —
// on a 0→1 backlog transition — publishes an activation event on
// shardIndex. Safe to call from any number of producer
// goroutines, each with its own shardIndex (e.g. its CPU id modulo
// s.Activation().Shards()).
func (s *Scheduler) Enqueue(pkt queue.Packet, shardIndex int) error {
	result := s.classifier.Classify(pkt)
	if !result.HasClass {
		switch result.Disposition {
		case classify.Bypass, classify.Stolen:
			return nil
		default:
			return &SchedulerError{Kind: ErrKindClassificationDrop, Msg: "packet shot by classifier"}
		}
	}

	cl := s.registry.Lookup(result.ClassID)
	if cl == nil {
		return ErrUnknownClass
	}

	wasEmpty := cl.Queue.Length() == 0
	enqRes := cl.Queue.Enqueue(pkt)
	if !enqRes.OK {
		return &SchedulerError{Kind: ErrKindSubQueueFull, Msg: fmt.Sprintf("class %d sub-queue full", cl.ID)}
	}

	if wasEmpty && !cl.IsZeroWeight() {
		s.activation.Publish(shardIndex, activation.Event{Class: cl, PktLen: pkt.Len()})
	}
	return nil
}

// Reset discards every class's queued packets, deactivates every backlogged
// class and zeroes wsum_active, returning the Scheduler to an
// empty-but-configured state (classes remain registered). V and the virtual
// clock's pacing accumulators keep their values. Must be called from the
// scheduler's owning goroutine.
func (s *Scheduler) Reset() {
	s.registry.Each(func(cl *class.Class) {
		if cl.Queue.Length() > 0 {
			s.engine.Deactivate(cl)
		}
		cl.Queue.Reset()
	})
	s.engine.WSumActive = 0
}

// ActiveClasses returns the ids of every class currently backlogged
// (present in some group's slot ring), sorted by weight descending (ties
// broken by id ascending) so the heaviest-weighted classes — the ones most
// likely to dominate wsum_active — sort first in diagnostic output.
func (s *Scheduler) ActiveClasses() []uint32 {
	var active []*class.Class
	s.registry.Each(func(cl *class.Class) {
		if cl.Queue.Length() > 0 {
			active = append(active, cl)
		}
	})
	slices.SortFunc(active, func(a, b *class.Class) int {
		if c := cmp.Compare(b.Weight(), a.Weight()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	ids := make([]uint32, len(active))
	for i, cl := range active {
		ids[i] = cl.ID
	}
	return ids
}

// ActiveGroups returns the indices of every group currently in any of the
// four state bitmaps (ER, IR, EB, IB).
func (s *Scheduler) ActiveGroups() []int {
	combined := s.engine.ERBitmap() | s.engine.IRBitmap() | s.engine.EBBitmap() | s.engine.IBBitmap()
	var indices []int
	for combined != 0 {
		idx := fixedpoint.FFS(combined)
		indices = append(indices, idx)
		combined &^= fixedpoint.Bitmap(1) << uint(idx)
	}
	return indices
}

// ClassStats returns the read-only statistics surface for a single class
//, or ok=false if no such class is registered.
func (s *Scheduler) ClassStats(id uint32) (ClassStats, bool) {
	cl := s.registry.Lookup(id)
	if cl == nil {
		return ClassStats{}, false
	}
	return ClassStats{
		ID:          cl.ID,
		Packets:     cl.Packets,
		Bytes:       cl.Bytes,
		Drops:       cl.Drops,
		RateBps:     cl.RateBps(),
		QueueLength: cl.Queue.Length(),
		Backlogged:  cl.Queue.Length() > 0,
	}, true
}

// Stats returns the read-only scheduler-wide statistics surface.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		WSum:       s.registry.WSum,
		WSumActive: s.engine.WSumActive,
		ClassCount: s.registry.Len(),
	}
}

// Dequeue pulls the next packet to transmitMust only be
// called from the scheduler's owning goroutine (normally the spinner loop).
func (s *Scheduler) Dequeue() (engine.DequeueResult, bool) {
	return s.engine.Dequeue()
}
