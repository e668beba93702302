// Package classify defines the classifier contract: mapping an
// inbound packet to the class it should be enqueued on, or a reason it
// should bypass scheduling entirely. The filter engine itself (hash table
// lookups, tc-style match rules) is explicitly out of scope;
// this package only names the boundary.
package classify

import "github.com/sivasankariit/qfq-rl/queue"

// Disposition reports what should happen to a packet the Classifier
// declined to hand a class for.
type Disposition int

const (
	// Bypass means the packet should skip the scheduler and be transmitted
	// directly (e.g. a control-plane or diagnostic packet).
	Bypass Disposition = iota
	// Stolen means another subsystem has taken ownership of the packet; the
	// caller must not free or further process it.
	Stolen
	// Shot means the packet was deliberately dropped by classification
	// policy (a classification-drop).
	Shot
)

// Result is what Classifier.Classify returns: either a ClassID to enqueue
// on, or a Disposition explaining why no class applies.
type Result struct {
	ClassID     uint32
	HasClass    bool
	Disposition Disposition
}

// Classifier maps packets to the class they should be queued on.
type Classifier interface {
	Classify(pkt queue.Packet) Result
}

// Func adapts a plain function to Classifier.
type Func func(pkt queue.Packet) Result

func (f Func) Classify(pkt queue.Packet) Result { return f(pkt) }

// Fixed returns a Classifier that always routes to the given class id,
// useful for tests and single-class simulations.
func Fixed(classID uint32) Classifier {
	return Func(func(queue.Packet) Result {
		return Result{ClassID: classID, HasClass: true}
	})
}
