// Package feedback turns an exercise judgment into a quality level, a
// 0-100 score and patient-facing guidance.
package feedback

import (
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/rehab.report/internal/exercise"
)

// Level is the quality of one frame. The set is closed and ordered from
// best to worst; ERROR means the frame could not be evaluated at all.
type Level int

const (
	Excellent Level = iota
	Good
	NeedsImprovement
	Incorrect
	Error
)

var levelNames = [...]string{
	Excellent:        "EXCELLENT",
	Good:             "GOOD",
	NeedsImprovement: "NEEDS_IMPROVEMENT",
	Incorrect:        "INCORRECT",
	Error:            "ERROR",
}

// Levels returns every level in order.
func Levels() []Level {
	return []Level{Excellent, Good, NeedsImprovement, Incorrect, Error}
}

func (l Level) String() string {
	if l < Excellent || l > Error {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel is the inverse of Level.String.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("unknown feedback level %q", s)
}

func (l Level) MarshalText() ([]byte, error) {
	if l < Excellent || l > Error {
		return nil, fmt.Errorf("invalid feedback level %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Feedback is the per-frame output of the evaluator.
type Feedback struct {
	Level           Level           `json:"level"`
	Score           float64         `json:"score"`
	Correct         bool            `json:"is_correct"`
	Reason          exercise.Reason `json:"reason,omitempty"`
	CurrentAngle    float64         `json:"current_angle"`
	TargetAngle     float64         `json:"target_angle"`
	AngleDifference float64         `json:"angle_difference"`
	Messages        []string        `json:"messages"`
	Corrections     []string        `json:"corrections"`
	Encouragements  []string        `json:"encouragements"`

	// Set by the evaluator.
	Repetitions  int       `json:"repetitions"`
	RepCompleted bool      `json:"rep_completed"`
	HoldProgress float64   `json:"hold_progress"` // 0-1 of the required hold
	Timestamp    time.Time `json:"timestamp"`
}

// PrimaryMessage returns the first message, or a default for the level.
func (f Feedback) PrimaryMessage() string {
	if len(f.Messages) > 0 {
		return f.Messages[0]
	}
	return defaultMessages[f.Level]
}

// String formats the feedback for terminal output.
func (f Feedback) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s score=%.1f", f.Level, f.Score)
	if f.Level != Error {
		fmt.Fprintf(&b, " angle=%.1f° target=%.1f°", f.CurrentAngle, f.TargetAngle)
	}
	for _, m := range f.Messages {
		fmt.Fprintf(&b, "\n  - %s", m)
	}
	for _, c := range f.Corrections {
		fmt.Fprintf(&b, "\n  > %s", c)
	}
	for _, e := range f.Encouragements {
		fmt.Fprintf(&b, "\n  * %s", e)
	}
	return b.String()
}

var defaultMessages = map[Level]string{
	Excellent:        "Excellent form! Keep it up!",
	Good:             "Good job! Minor adjustments needed.",
	NeedsImprovement: "Keep trying! Focus on the corrections.",
	Incorrect:        "Please adjust your position.",
	Error:            "Cannot evaluate, make sure you are visible.",
}

var encouragements = map[Level][]string{
	Excellent: {
		"Perfect! You're doing great!",
		"Excellent form! Keep it up!",
		"Outstanding! Maintain this quality!",
	},
	Good: {
		"Good job! Almost there!",
		"Nice work! Small improvement needed.",
		"You're doing well! Stay focused.",
	},
	NeedsImprovement: {
		"Keep trying! You're making progress.",
		"Don't give up! Focus on the corrections.",
		"Every repetition helps! Stay with it.",
	},
	Incorrect: {
		"Let's adjust and try again.",
		"Take a moment to reset your position.",
		"Remember to move slowly and deliberately.",
	},
}
