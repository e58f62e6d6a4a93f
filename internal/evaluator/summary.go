package evaluator

import (
	"fmt"
	"time"

	"github.com/banshee-data/rehab.report/internal/exercise"
)

// Summary aggregates one session. Duration is serialised in nanoseconds so
// a stored summary round-trips exactly.
type Summary struct {
	SessionID         string        `json:"session_id"`
	Exercise          string        `json:"exercise"`
	Kind              exercise.Kind `json:"kind"`
	Side              exercise.Side `json:"side"`
	TotalRepetitions  int           `json:"total_repetitions"`
	TargetRepetitions int           `json:"target_repetitions"`
	AverageScore      float64       `json:"average_score"`
	Duration          time.Duration `json:"duration_ns"`
	Completed         bool          `json:"completed"`
	FramesEvaluated   int           `json:"frames_evaluated"`
	ErrorFrames       int           `json:"error_frames"`
	StartedAt         time.Time     `json:"started_at"`
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: %d/%d reps, average score %.1f, duration %s, %d frames (%d errors)",
		s.Exercise, s.TotalRepetitions, s.TargetRepetitions, s.AverageScore,
		s.Duration.Round(time.Millisecond), s.FramesEvaluated, s.ErrorFrames)
}
