// Package transmit defines the device transmit contract the spinner hands
// dequeued packets to. The scheduler core knows nothing about
// NICs, queue freezing, or hardware offload; it only needs these two calls.
package transmit

import (
	"sync"

	"github.com/sivasankariit/qfq-rl/queue"
)

// Result reports the outcome of a Transmit call.
type Result struct {
	OK    bool
	Busy  bool
	Error error
}

// Sink is the transmit path collaborator: something that can report whether
// it is currently able to accept a packet, and attempt to send one.
type Sink interface {
	// IsFrozenOrStopped reports whether the underlying transmit queue is
	// currently frozen or stopped, mirroring netif_xmit_frozen_or_stopped.
	// The spinner skips Transmit entirely while this is true, retaining its
	// cached packet for the next iteration.
	IsFrozenOrStopped() bool

	// Transmit attempts to send pkt. On a non-OK result, the spinner
	// retains pkt and retries on a subsequent iteration.
	Transmit(pkt queue.Packet) Result
}

// Discard is a no-op Sink that always accepts, useful for simulation and
// tests that only care about scheduling decisions, not a real transmit path.
// Safe for concurrent Transmit calls from the spinner goroutine and reads of
// Sent/Count from an observing goroutine.
type Discard struct {
	mu   sync.Mutex
	Sent []queue.Packet
}

func (d *Discard) IsFrozenOrStopped() bool { return false }

func (d *Discard) Transmit(pkt queue.Packet) Result {
	d.mu.Lock()
	d.Sent = append(d.Sent, pkt)
	d.mu.Unlock()
	return Result{OK: true}
}

// Count returns the number of packets transmitted so far.
func (d *Discard) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Sent)
}
