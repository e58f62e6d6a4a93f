// Package reps turns a per-frame stream of correctness observations into
// discrete repetition events.
package reps

import "time"

// Phase is the counter's position within one repetition.
type Phase string

const (
	WaitingForCorrect Phase = "waiting_for_correct"
	Holding           Phase = "holding"
	Counted           Phase = "counted"
)

// Counter is a hold-and-release state machine:
//
//	WAITING_FOR_CORRECT -correct-> HOLDING -held >= hold-> COUNTED -incorrect-> WAITING_FOR_CORRECT
//	                               HOLDING -incorrect-> WAITING_FOR_CORRECT
//
// With a zero hold the HOLDING phase is passed through immediately, so an
// incorrect-to-correct edge counts on the frame it happens. The session is
// assumed to start in an incorrect posture.
//
// A Counter is not safe for concurrent use.
type Counter struct {
	hold      time.Duration
	phase     Phase
	holdStart time.Time
	last      time.Time
	count     int
}

// NewCounter returns a counter requiring hold of sustained correctness per
// repetition. Negative holds are treated as zero.
func NewCounter(hold time.Duration) *Counter {
	if hold < 0 {
		hold = 0
	}
	return &Counter{hold: hold, phase: WaitingForCorrect}
}

// Observe feeds one frame and reports whether it completed a repetition.
// A timestamp earlier than one already seen makes no hold progress.
func (c *Counter) Observe(correct bool, ts time.Time) bool {
	regressed := !c.last.IsZero() && ts.Before(c.last)
	if regressed {
		ts = c.last
	} else {
		c.last = ts
	}

	if !correct {
		c.phase = WaitingForCorrect
		c.holdStart = time.Time{}
		return false
	}

	switch c.phase {
	case WaitingForCorrect:
		c.phase = Holding
		c.holdStart = ts
		if c.hold == 0 {
			return c.emit()
		}
	case Holding:
		if !regressed && ts.Sub(c.holdStart) >= c.hold {
			return c.emit()
		}
	case Counted:
		// Still inside the same holding phase; wait for release.
	}
	return false
}

func (c *Counter) emit() bool {
	c.count++
	c.phase = Counted
	return true
}

// Count returns the repetitions counted since the last reset.
func (c *Counter) Count() int { return c.count }

// Phase returns the current phase.
func (c *Counter) Phase() Phase { return c.phase }

// HoldElapsed returns how long correctness has been held in the current
// holding phase as of the latest observation.
func (c *Counter) HoldElapsed() time.Duration {
	if c.phase == WaitingForCorrect || c.holdStart.IsZero() {
		return 0
	}
	return c.last.Sub(c.holdStart)
}

// Hold returns the configured hold duration.
func (c *Counter) Hold() time.Duration { return c.hold }

// Reset returns the counter to WaitingForCorrect with a zero count.
func (c *Counter) Reset() {
	c.phase = WaitingForCorrect
	c.holdStart = time.Time{}
	c.last = time.Time{}
	c.count = 0
}
