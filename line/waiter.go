package line

import (
	"strings"
	"time"
)

// DefaultTimeoutMs and DefaultDelayMs are ResponseWaiter's defaults
// (§6 configuration knobs).
const (
	DefaultTimeoutMs = 5000
	DefaultDelayMs   = 100
)

// WaitOptions configures one ResponseWaiter.Wait call. Zero value
// means: no line-count requirement, no terminator, unbounded wait,
// default poll delay, OK/FAIL sentinel detection. Callers wanting the
// conventional 5s budget pass TimeoutMs: DefaultTimeoutMs explicitly.
type WaitOptions struct {
	// Terminator, if non-empty, ends the wait on the first line
	// containing it as a substring.
	Terminator string
	// Lines, if > 0, ends the wait once this many lines have been
	// read, checked before Terminator (tie-break policy, §4.2).
	Lines int
	// TimeoutMs is the wall-clock budget; 0 means unbounded.
	TimeoutMs int
	// DelayMs is the poll interval.
	DelayMs int
	// Transcript, if non-nil, receives every line read.
	Transcript *[]string
}

// Waiter polls a Reader for a terminal condition: a line-count reached,
// a terminator substring seen, or (absent either) the bare OK / FAIL ER
// sentinels.
type Waiter struct {
	reader *Reader
}

// NewWaiter builds a Waiter over reader.
func NewWaiter(reader *Reader) *Waiter {
	return &Waiter{reader: reader}
}

// Wait blocks until one of the terminal conditions in WaitOptions is
// met or the timeout elapses. It returns true for a successful match
// (line count, terminator, or bare OK) and false for FAIL ER… or
// timeout. On a FAIL ER… match the read buffer is drained before
// returning, consistent with discardBuffer semantics (§4.7).
func (w *Waiter) Wait(opts WaitOptions) bool {
	delayMs := opts.DelayMs
	if delayMs == 0 {
		delayMs = DefaultDelayMs
	}
	delay := time.Duration(delayMs) * time.Millisecond
	unbounded := opts.TimeoutMs == 0
	timeout := time.Duration(opts.TimeoutMs) * time.Millisecond
	deadline := time.Now().Add(timeout)

	count := 0
	for {
		if !unbounded && time.Now().After(deadline) {
			return false
		}

		text, ok := w.reader.ReadLineTimeout(delay, delay)
		if !ok {
			if !unbounded && time.Now().After(deadline) {
				return false
			}
			continue
		}

		if opts.Transcript != nil {
			*opts.Transcript = append(*opts.Transcript, text)
		}
		count++

		if opts.Lines > 0 {
			if count >= opts.Lines {
				return true
			}
			continue
		}
		if opts.Terminator != "" {
			if strings.Contains(text, opts.Terminator) {
				return true
			}
			continue
		}
		if text == "OK" || strings.HasPrefix(text, "OK ") {
			return true
		}
		if strings.HasPrefix(text, "FAIL ER") {
			w.reader.Discard(delay)
			return false
		}
	}
}
