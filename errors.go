package qfqrl

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a scheduler-facing call failed or a packet was
// dropped
type ErrorKind int

const (
	// ErrKindConfiguration covers invalid weight/lmax or a wsum overflow,
	// rejected at the control-plane boundary with scheduler state unchanged.
	ErrKindConfiguration ErrorKind = iota
	// ErrKindClassificationDrop covers a classifier verdict of shot or a
	// missing class for a packet that isn't bypassed.
	ErrKindClassificationDrop
	// ErrKindSubQueueFull covers a sub-queue rejecting Enqueue.
	ErrKindSubQueueFull
	// ErrKindUnknownClass covers an operation naming a class id that was
	// never configured.
	ErrKindUnknownClass
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindConfiguration:
		return "configuration"
	case ErrKindClassificationDrop:
		return "classification-drop"
	case ErrKindSubQueueFull:
		return "sub-queue-full"
	case ErrKindUnknownClass:
		return "unknown-class"
	default:
		return "unknown"
	}
}

// SchedulerError is the error type every exported rejection carries, so
// callers can branch on Kind without string-matching.
type SchedulerError struct {
	Kind ErrorKind
	Msg  string
}

func (e *SchedulerError) Error() string {
	return fmt.Sprintf("qfq-rl: %s: %s", e.Kind, e.Msg)
}

// Sentinel errors for errors.Is comparisons against common rejections.
var (
	ErrInvalidWeight  = &SchedulerError{Kind: ErrKindConfiguration, Msg: "weight out of range"}
	ErrInvalidLMax    = &SchedulerError{Kind: ErrKindConfiguration, Msg: "lmax out of range"}
	ErrWSumOverflow   = &SchedulerError{Kind: ErrKindConfiguration, Msg: "weight sum would exceed MaxWSum"}
	ErrUnknownClass   = &SchedulerError{Kind: ErrKindUnknownClass, Msg: "no class registered with this id"}
	ErrDuplicateClass = &SchedulerError{Kind: ErrKindConfiguration, Msg: "class id already registered"}
)

// Is allows errors.Is(err, ErrInvalidWeight) to match any SchedulerError of
// the same Kind and Msg, not just the exact sentinel pointer.
func (e *SchedulerError) Is(target error) bool {
	var other *SchedulerError
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind && e.Msg == other.Msg
}
