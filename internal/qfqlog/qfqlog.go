// Package qfqlog is the scheduler's diagnostics sink: slot-ring
// overflow, activation-event allocation failure, and invariant violations.
// None of these are hot-path events under correct operation, so allocation
// cost here is not a design concern the way it is in the engine or spinner;
// what does matter is that a nil *Logger is always safe to call, so callers
// that don't want diagnostics can simply not configure one.
//
// Built on github.com/joeycumines/logiface, using the logiface-slog adapter
// to drive a standard log/slog handler underneath.
package qfqlog

import (
	"log/slog"

	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// Logger wraps a configured logiface logger with the scheduler's specific
// diagnostic events. The zero value is not usable; use New or Nop.
type Logger struct {
	l *logiface.Logger[*islog.Event]
}

// New builds a Logger that writes through handler.
func New(handler slog.Handler) *Logger {
	return &Logger{l: islog.L.New(islog.L.WithSlogHandler(handler))}
}

// Nop returns a Logger that discards everything. Safe to use as a default
// when the caller hasn't configured diagnostics.
func Nop() *Logger { return &Logger{} }

func (lg *Logger) enabled() bool { return lg != nil && lg.l != nil }

// SlotOverflow reports that Insert computed a slot index of MaxSlots or more
// for a class (its rounded start time roundedS lies that many slots past the
// group's start time) and clamped it into the last slot. Rate-limited via
// Limit so a pathological group can't flood the sink.
func (lg *Logger) SlotOverflow(groupIndex int, classID uint32, roundedS uint64) {
	if !lg.enabled() {
		return
	}
	lg.l.Warning().
		Limit().
		Int("group", groupIndex).
		Uint64("class", uint64(classID)).
		Uint64("rounded_s", roundedS).
		Log("slot index past end of ring, clamped into last slot")
}

// ActivationAllocFailed reports that a producer could not publish an
// activation event for cl.
// The packet that triggered the activation attempt is dropped by the caller;
// this call only records why.
func (lg *Logger) ActivationAllocFailed(classID uint32) {
	if !lg.enabled() {
		return
	}
	lg.l.Err().
		Limit().
		Uint64("class", uint64(classID)).
		Log("activation event allocation failed, packet dropped")
}

// InvariantViolation reports an invariant check failure. These
// should never fire outside of a bug; wire it to Engine.OnInvariantViolation.
func (lg *Logger) InvariantViolation(msg string) {
	if !lg.enabled() {
		return
	}
	lg.l.Crit().
		Str("violation", msg).
		Log("scheduler invariant violated")
}

// RateLimiterDebtCarried reports that a class's rate-limit debt was large
// enough to freeze the entire link for the logged duration. Informational only.
func (lg *Logger) RateLimiterDebtCarried(debtNanos int64) {
	if !lg.enabled() {
		return
	}
	lg.l.Debug().
		Int64("debt_ns", debtNanos).
		Log("virtual clock carried forward rate-limit debt")
}
