// Package evaluator runs one exercise session: it measures each landmark
// frame, judges it, counts repetitions and aggregates a session summary.
package evaluator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/rehab.report/internal/exercise"
	"github.com/banshee-data/rehab.report/internal/feedback"
	"github.com/banshee-data/rehab.report/internal/geometry"
	"github.com/banshee-data/rehab.report/internal/monitoring"
	"github.com/banshee-data/rehab.report/internal/pose"
	"github.com/banshee-data/rehab.report/internal/reps"
	"github.com/banshee-data/rehab.report/internal/timeutil"
)

// ErrInvalidState is returned for operations out of sequence: evaluating
// before an exercise is bound or before the session is started.
var ErrInvalidState = errors.New("invalid evaluator state")

// Metrics receives per-frame observations. *metrics.Manager implements it.
type Metrics interface {
	ObserveFrame(kind exercise.Kind, level feedback.Level, score float64)
	ObserveRepetition(kind exercise.Kind)
	SessionStarted(kind exercise.Kind)
	SessionEnded(kind exercise.Kind)
}

// Hooks are called synchronously from the evaluating goroutine. Any may be
// nil.
type Hooks struct {
	OnStart      func(s Summary)
	OnFeedback   func(f feedback.Feedback)
	OnRepetition func(count int, f feedback.Feedback)
	OnComplete   func(s Summary)
}

// Config holds evaluator-wide settings.
type Config struct {
	Clock timeutil.Clock
	// VisibilityThreshold is the minimum landmark visibility, inclusive.
	VisibilityThreshold float64
	// HistoryLimit bounds the frame records kept per session; 0 keeps all.
	HistoryLimit int
	Metrics      Metrics
	Hooks        Hooks
}

// DefaultConfig returns a config with a real clock and the standard
// visibility threshold.
func DefaultConfig() Config {
	return Config{
		Clock:               timeutil.RealClock{},
		VisibilityThreshold: pose.DefaultVisibilityThreshold,
	}
}

// session is all mutable per-session state, owned by one Evaluator.
type session struct {
	id          string
	started     bool
	ended       bool
	startedAt   time.Time
	endedAt     time.Time
	counter     *reps.Counter
	scores      []float64
	frames      int
	errorFrames int
	completed   bool
	recorder    *Recorder
}

// Evaluator evaluates frames for one subject. It is not safe for
// concurrent use; callers serialize frames.
type Evaluator struct {
	config Config
	def    exercise.Definition
	cfg    exercise.Config
	s      *session
}

// New creates an evaluator with no exercise bound.
func New(config Config) *Evaluator {
	if config.Clock == nil {
		config.Clock = timeutil.RealClock{}
	}
	if config.VisibilityThreshold <= 0 {
		config.VisibilityThreshold = pose.DefaultVisibilityThreshold
	}
	return &Evaluator{config: config}
}

func (e *Evaluator) newSession() *session {
	return &session{
		id:       uuid.NewString(),
		counter:  reps.NewCounter(e.cfg.HoldDuration),
		recorder: NewRecorder(e.config.HistoryLimit),
	}
}

// SetExercise binds def with cfg and resets the session. An invalid cfg
// leaves the evaluator untouched.
func (e *Evaluator) SetExercise(def exercise.Definition, cfg exercise.Config) error {
	if def == nil {
		return fmt.Errorf("%w: no exercise given", exercise.ErrInvalidConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.endActive()
	e.def = def
	e.cfg = cfg
	e.s = e.newSession()
	monitoring.Sessionf(e.s.id, "exercise set: %s side=%s target=%.1f tolerance=%.1f hold=%s reps=%d",
		def.Kind(), cfg.Side, cfg.TargetAngle, cfg.Tolerance, cfg.HoldDuration, cfg.Repetitions)
	return nil
}

// SetExerciseByName looks up name and binds it. An unknown name returns
// exercise.ErrUnknownExercise.
func (e *Evaluator) SetExerciseByName(name string, cfg exercise.Config) error {
	def, err := exercise.Lookup(name)
	if err != nil {
		return err
	}
	return e.SetExercise(def, cfg)
}

// StartSession marks the session active. Starting an active session is a
// no-op; an ended session must be reset first.
func (e *Evaluator) StartSession() error {
	if e.def == nil {
		return fmt.Errorf("%w: no exercise set", ErrInvalidState)
	}
	if e.s.ended {
		return fmt.Errorf("%w: session ended, reset before starting again", ErrInvalidState)
	}
	if e.s.started {
		return nil
	}
	e.s.started = true
	e.s.startedAt = e.config.Clock.Now()
	monitoring.Sessionf(e.s.id, "session started: %s", e.def.Kind())
	if e.config.Metrics != nil {
		e.config.Metrics.SessionStarted(e.def.Kind())
	}
	if e.config.Hooks.OnStart != nil {
		e.config.Hooks.OnStart(e.Summary())
	}
	return nil
}

// EndSession stops the session clock. Further frames are rejected until
// ResetSession. Ending an ended session is a no-op.
func (e *Evaluator) EndSession() error {
	if e.def == nil || !e.s.started {
		return fmt.Errorf("%w: session not started", ErrInvalidState)
	}
	e.endActive()
	return nil
}

func (e *Evaluator) endActive() {
	if e.s == nil || !e.s.started || e.s.ended {
		return
	}
	e.s.ended = true
	e.s.endedAt = e.config.Clock.Now()
	monitoring.Sessionf(e.s.id, "session ended: %d reps, %d frames (%d errors)",
		e.s.counter.Count(), e.s.frames, e.s.errorFrames)
	if e.config.Metrics != nil {
		e.config.Metrics.SessionEnded(e.def.Kind())
	}
}

// ResetSession discards session progress and returns to the state right
// after SetExercise.
func (e *Evaluator) ResetSession() error {
	if e.def == nil {
		return fmt.Errorf("%w: no exercise set", ErrInvalidState)
	}
	e.endActive()
	e.s = e.newSession()
	monitoring.Sessionf(e.s.id, "session reset: %s", e.def.Kind())
	return nil
}

// EvaluateFrame measures and judges one landmark frame. Frames whose
// landmarks are missing, not visible enough or geometrically degenerate
// produce ERROR feedback and leave the repetition count and score history
// unchanged.
func (e *Evaluator) EvaluateFrame(set *pose.LandmarkSet) (feedback.Feedback, error) {
	if e.def == nil {
		return feedback.Feedback{}, fmt.Errorf("%w: no exercise set", ErrInvalidState)
	}
	if !e.s.started {
		return feedback.Feedback{}, fmt.Errorf("%w: session not started", ErrInvalidState)
	}
	if e.s.ended {
		return feedback.Feedback{}, fmt.Errorf("%w: session ended", ErrInvalidState)
	}
	if set == nil {
		set = pose.NewLandmarkSet(nil, time.Time{})
	}

	ts := set.Timestamp()
	if ts.IsZero() {
		ts = e.config.Clock.Now()
	}
	kind := e.def.Kind()

	angle, err := e.def.Measure(set, e.cfg, e.config.VisibilityThreshold)
	if err != nil {
		var lmErr *exercise.LandmarkError
		if !errors.As(err, &lmErr) && !errors.Is(err, geometry.ErrDegenerateGeometry) {
			return feedback.Feedback{}, err
		}
		return e.recordError(err, ts), nil
	}

	j := e.def.Evaluate(angle, e.cfg)
	fb := feedback.Compose(e.def.Name(), j)

	// A counted repetition is released only once the angle leaves the zone
	// widened by the hysteresis margin. Holds need strict correctness.
	inZone := j.Correct
	if e.s.counter.Phase() == reps.Counted {
		inZone = e.cfg.InZone(angle, e.cfg.Hysteresis)
	}
	fb.RepCompleted = e.s.counter.Observe(inZone, ts)
	fb.Repetitions = e.s.counter.Count()
	fb.HoldProgress = holdProgress(e.s.counter)
	fb.Timestamp = ts

	e.s.frames++
	e.s.scores = append(e.s.scores, fb.Score)
	e.s.recorder.Add(FrameRecord{
		Index:       e.s.frames + e.s.errorFrames,
		Timestamp:   ts,
		Level:       fb.Level,
		Score:       fb.Score,
		Angle:       angle,
		Correct:     j.Correct,
		Repetitions: fb.Repetitions,
	})

	if e.config.Metrics != nil {
		e.config.Metrics.ObserveFrame(kind, fb.Level, fb.Score)
	}
	if e.config.Hooks.OnFeedback != nil {
		e.config.Hooks.OnFeedback(fb)
	}
	if fb.RepCompleted {
		e.onRepetition(fb)
	}
	return fb, nil
}

// holdProgress is the fraction of the required hold reached by the current
// repetition.
func holdProgress(c *reps.Counter) float64 {
	switch c.Phase() {
	case reps.Counted:
		return 1
	case reps.Holding:
		if c.Hold() <= 0 {
			return 1
		}
		return math.Min(1, float64(c.HoldElapsed())/float64(c.Hold()))
	}
	return 0
}

func (e *Evaluator) onRepetition(fb feedback.Feedback) {
	kind := e.def.Kind()
	monitoring.Sessionf(e.s.id, "repetition %d counted (%s, score %.1f)", fb.Repetitions, kind, fb.Score)
	if e.config.Metrics != nil {
		e.config.Metrics.ObserveRepetition(kind)
	}
	if e.config.Hooks.OnRepetition != nil {
		e.config.Hooks.OnRepetition(fb.Repetitions, fb)
	}
	if e.cfg.Repetitions > 0 && fb.Repetitions >= e.cfg.Repetitions && !e.s.completed {
		e.s.completed = true
		monitoring.Sessionf(e.s.id, "target of %d repetitions reached", e.cfg.Repetitions)
		if e.config.Hooks.OnComplete != nil {
			e.config.Hooks.OnComplete(e.Summary())
		}
	}
}

func (e *Evaluator) recordError(err error, ts time.Time) feedback.Feedback {
	ref, _ := e.cfg.Reference()
	fb := feedback.ErrorFeedback(err.Error(), ref)
	fb.Repetitions = e.s.counter.Count()
	fb.Timestamp = ts

	e.s.errorFrames++
	e.s.recorder.Add(FrameRecord{
		Index:       e.s.frames + e.s.errorFrames,
		Timestamp:   ts,
		Level:       feedback.Error,
		Repetitions: fb.Repetitions,
	})
	monitoring.Sessionf(e.s.id, "frame not evaluated: %v", err)

	if e.config.Metrics != nil {
		e.config.Metrics.ObserveFrame(e.def.Kind(), feedback.Error, 0)
	}
	if e.config.Hooks.OnFeedback != nil {
		e.config.Hooks.OnFeedback(fb)
	}
	return fb
}

// Summary returns the session summary. It is a pure read and valid at any
// time; before any frame it holds zero values.
func (e *Evaluator) Summary() Summary {
	if e.def == nil {
		return Summary{}
	}
	s := Summary{
		SessionID:         e.s.id,
		Exercise:          e.def.Name(),
		Kind:              e.def.Kind(),
		Side:              e.cfg.Side,
		TotalRepetitions:  e.s.counter.Count(),
		TargetRepetitions: e.cfg.Repetitions,
		Completed:         e.s.completed,
		FramesEvaluated:   e.s.frames,
		ErrorFrames:       e.s.errorFrames,
		StartedAt:         e.s.startedAt,
	}
	if len(e.s.scores) > 0 {
		s.AverageScore = stat.Mean(e.s.scores, nil)
	}
	switch {
	case e.s.ended:
		s.Duration = e.s.endedAt.Sub(e.s.startedAt)
	case e.s.started:
		s.Duration = e.config.Clock.Since(e.s.startedAt)
	}
	if s.Duration < 0 {
		s.Duration = 0
	}
	return s
}

// Frames returns the recorded frame trace, oldest first.
func (e *Evaluator) Frames() []FrameRecord {
	if e.s == nil {
		return nil
	}
	return e.s.recorder.All()
}

// Exercise returns the bound exercise and config, or nil.
func (e *Evaluator) Exercise() (exercise.Definition, exercise.Config) { return e.def, e.cfg }

// Started reports whether the session is active.
func (e *Evaluator) Started() bool { return e.s != nil && e.s.started && !e.s.ended }

// Ended reports whether the session was ended with EndSession.
func (e *Evaluator) Ended() bool { return e.s != nil && e.s.ended }

// Phase returns the repetition counter phase.
func (e *Evaluator) Phase() reps.Phase {
	if e.s == nil {
		return reps.WaitingForCorrect
	}
	return e.s.counter.Phase()
}
