package feedback

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rehab.report/internal/exercise"
)

func TestClassify_BandEdges(t *testing.T) {
	const tol = 15.0
	tests := []struct {
		name  string
		d     float64
		level Level
		score float64
	}{
		{"on target", 0, Excellent, 100},
		{"excellent edge inclusive", 0.25 * tol, Excellent, 90},
		{"just past excellent", 0.25*tol + 1e-9, Good, 90},
		{"good edge inclusive", 0.5 * tol, Good, 75},
		{"just past good", 0.5*tol + 1e-9, NeedsImprovement, 75},
		{"tolerance inclusive", tol, NeedsImprovement, 50},
		{"just past tolerance", tol + 1e-9, Incorrect, 50},
		{"one tolerance out", 2 * tol, Incorrect, 25},
		{"decays to zero", 3 * tol, Incorrect, 0},
		{"floored", 10 * tol, Incorrect, 0},
		{"sign ignored", -0.5 * tol, Good, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, score := Classify(tt.d, tol)
			assert.Equal(t, tt.level, level)
			assert.InDelta(t, tt.score, score, 1e-6)
		})
	}
}

func TestClassify_ZeroTolerance(t *testing.T) {
	level, score := Classify(0, 0)
	assert.Equal(t, Excellent, level)
	assert.Equal(t, 100.0, score)

	level, score = Classify(1, 0)
	assert.Equal(t, Incorrect, level)
	assert.InDelta(t, 25, score, 1e-9)

	_, score = Classify(5, 0)
	assert.Zero(t, score)
}

func TestClassify_ScoreContinuousAndNonIncreasing(t *testing.T) {
	for _, tol := range []float64{1, 10, 15, 37.5} {
		prev := 101.0
		for i := 0; i <= 6000; i++ {
			d := float64(i) * tol / 1000
			_, s := Classify(d, tol)
			require.GreaterOrEqual(t, s, 0.0)
			require.LessOrEqual(t, s, 100.0)
			require.LessOrEqual(t, s, prev+1e-9, "tol=%v d=%v", tol, d)
			if i > 0 {
				// The steepest band drops 50 points over 2T.
				require.Less(t, prev-s, 0.1, "jump at tol=%v d=%v", tol, d)
			}
			prev = s
		}
	}
}

func targetCfg(target, tol float64) exercise.Config {
	return exercise.Config{TargetAngle: target, Tolerance: tol, Side: exercise.Left}
}

func TestCompose_TargetMode(t *testing.T) {
	cfg := targetCfg(90, 15)

	f := Compose("Shoulder Flexion", exercise.Judge(90, cfg))
	assert.True(t, f.Correct)
	assert.Equal(t, Excellent, f.Level)
	assert.GreaterOrEqual(t, f.Score, 90.0)
	assert.Equal(t, 90.0, f.CurrentAngle)
	assert.Equal(t, 90.0, f.TargetAngle)
	assert.Empty(t, f.Corrections)
	assert.Equal(t, "Perfect Shoulder Flexion position!", f.PrimaryMessage())

	// |deviation| 14 is inside the tolerance of 15.
	f = Compose("Shoulder Flexion", exercise.Judge(76, cfg))
	assert.True(t, f.Correct)
	assert.Equal(t, NeedsImprovement, f.Level)
	assert.InDelta(t, 53.333, f.Score, 1e-3)
	assert.Equal(t, []string{"Increase the angle by about 14°."}, f.Corrections)

	f = Compose("Shoulder Flexion", exercise.Judge(50, cfg))
	assert.False(t, f.Correct)
	assert.Equal(t, Incorrect, f.Level)
	assert.Equal(t, exercise.TooLow, f.Reason)
	assert.InDelta(t, 50*(1-25.0/30), f.Score, 1e-9)
	assert.Equal(t, []string{"Raise further (currently 40° too low)."}, f.Corrections)

	f = Compose("Shoulder Flexion", exercise.Judge(120, cfg))
	assert.Equal(t, exercise.TooHigh, f.Reason)
	assert.Equal(t, []string{"Lower slightly (currently 30° too high)."}, f.Corrections)
	assert.InDelta(t, 30, f.AngleDifference, 1e-12)
}

func TestCompose_ToleranceEdge(t *testing.T) {
	cfg := targetCfg(90, 15)
	f := Compose("x", exercise.Judge(105, cfg))
	assert.True(t, f.Correct)
	assert.Equal(t, NeedsImprovement, f.Level)
	assert.InDelta(t, 50, f.Score, 1e-9)
}

func TestCompose_CorrectnessDecidesIncorrect(t *testing.T) {
	// A judgment marked incorrect with a small deviation still maps to
	// INCORRECT, and a correct one never does.
	j := exercise.Judgment{Correct: false, Reason: exercise.OutOfRange, Angle: 60, Reference: 60, BandTolerance: 10}
	f := Compose("x", j)
	assert.Equal(t, Incorrect, f.Level)
	assert.LessOrEqual(t, f.Score, 50.0)

	j = exercise.Judgment{Correct: true, Reason: exercise.OnTarget, Angle: 75, Reference: 60, Deviation: 15 + 1e-12, BandTolerance: 15}
	f = Compose("x", j)
	assert.Equal(t, NeedsImprovement, f.Level)
	assert.InDelta(t, 50, f.Score, 1e-9)
}

func TestCompose_RangeMode(t *testing.T) {
	cfg := exercise.Config{MinAngle: exercise.Float64(60), MaxAngle: exercise.Float64(120), Side: exercise.Right}

	f := Compose("Knee Flexion", exercise.Judge(90, cfg))
	assert.Equal(t, Excellent, f.Level)
	assert.Equal(t, 100.0, f.Score)
	assert.Equal(t, 90.0, f.TargetAngle)

	f = Compose("Knee Flexion", exercise.Judge(130, cfg))
	assert.Equal(t, Incorrect, f.Level)
	assert.Equal(t, exercise.OutOfRange, f.Reason)
	assert.InDelta(t, 50*(1-10.0/60), f.Score, 1e-9)
	assert.Equal(t, []string{"Decrease the angle by 10° to stay in range."}, f.Corrections)

	f = Compose("Knee Flexion", exercise.Judge(55, cfg))
	assert.Equal(t, []string{"Increase the angle by 5° to reach the range."}, f.Corrections)
}

func TestCompose_Deterministic(t *testing.T) {
	cfg := targetCfg(45, 10)
	for _, angle := range []float64{45, 47, 50, 54, 70} {
		a := Compose("Hip Abduction", exercise.Judge(angle, cfg))
		b := Compose("Hip Abduction", exercise.Judge(angle, cfg))
		assert.Equal(t, a, b)
		assert.Len(t, a.Encouragements, 1)
	}
}

func TestErrorFeedback(t *testing.T) {
	f := ErrorFeedback("left_wrist visibility 0.10 below 0.50", 90)
	assert.Equal(t, Error, f.Level)
	assert.Zero(t, f.Score)
	assert.False(t, f.Correct)
	assert.Equal(t, 90.0, f.TargetAngle)
	assert.Len(t, f.Messages, 2)
	assert.Contains(t, f.String(), "ERROR")
}

func TestLevel_OrderAndText(t *testing.T) {
	levels := Levels()
	require.Len(t, levels, 5)
	for i := 1; i < len(levels); i++ {
		assert.Less(t, levels[i-1], levels[i])
	}

	for _, l := range levels {
		parsed, err := ParseLevel(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, parsed)
	}
	_, err := ParseLevel("PERFECT")
	assert.Error(t, err)

	b, err := json.Marshal(Feedback{Level: NeedsImprovement})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"level":"NEEDS_IMPROVEMENT"`)

	var f Feedback
	require.NoError(t, json.Unmarshal(b, &f))
	assert.Equal(t, NeedsImprovement, f.Level)

	_, err = Level(9).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "Level(9)", Level(9).String())
}
