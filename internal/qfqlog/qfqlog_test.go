package qfqlog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return New(handler), &buf
}

func TestNop_NeverPanics(t *testing.T) {
	t.Parallel()

	var lg *Logger
	require.NotPanics(t, func() {
		lg.SlotOverflow(1, 2, 3)
		lg.ActivationAllocFailed(4)
		lg.InvariantViolation("x")
		lg.RateLimiterDebtCarried(5)
	})

	nop := Nop()
	require.NotPanics(t, func() {
		nop.SlotOverflow(1, 2, 3)
		nop.ActivationAllocFailed(4)
		nop.InvariantViolation("x")
		nop.RateLimiterDebtCarried(5)
	})
}

func TestSlotOverflow_WritesExpectedFields(t *testing.T) {
	t.Parallel()

	lg, buf := newTestLogger(t)
	lg.SlotOverflow(3, 42, 1024)

	require.Contains(t, buf.String(), "clamped into last slot")

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(strings.NewReader(buf.String())).Decode(&decoded))
	require.EqualValues(t, 3, decoded["group"])
	require.EqualValues(t, 42, decoded["class"])
	require.EqualValues(t, 1024, decoded["rounded_s"])
}

func TestActivationAllocFailed_WritesClassID(t *testing.T) {
	t.Parallel()

	lg, buf := newTestLogger(t)
	lg.ActivationAllocFailed(7)

	require.Contains(t, buf.String(), "allocation failed")
	require.Contains(t, buf.String(), `"class":7`)
}

func TestInvariantViolation_WritesMessage(t *testing.T) {
	t.Parallel()

	lg, buf := newTestLogger(t)
	lg.InvariantViolation("bitmap overlap between ER and EB")

	require.Contains(t, buf.String(), "scheduler invariant violated")
	require.Contains(t, buf.String(), "bitmap overlap between ER and EB")
}

func TestRateLimiterDebtCarried_RespectsDebugLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	lg := New(handler)

	lg.RateLimiterDebtCarried(1000)
	require.Empty(t, buf.String(), "debug-level message should be filtered by a warn-level handler")
}
