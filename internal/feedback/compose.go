package feedback

import (
	"fmt"
	"math"

	"github.com/banshee-data/rehab.report/internal/exercise"
)

// Band edges as fractions of the band tolerance, and the score at each
// edge. Every band includes its upper edge, and adjacent bands meet at the
// same score so the score is continuous in the deviation.
const (
	excellentEdge = 0.25
	goodEdge      = 0.5

	scoreMax          = 100.0
	scoreExcellentMin = 90.0
	scoreGoodMin      = 75.0
	scoreNeedsMin     = 50.0

	// Beyond the tolerance the score reaches zero this many tolerances
	// further out.
	incorrectSpan = 2.0
)

// Classify maps a deviation d from the reference, with band tolerance t,
// to a level and score. It does not consult correctness; see Compose.
func Classify(d, t float64) (Level, float64) {
	d = math.Abs(d)
	if t <= 0 {
		if d == 0 {
			return Excellent, scoreMax
		}
		return Incorrect, incorrectScore(d, 0, 1)
	}
	switch {
	case d <= excellentEdge*t:
		return Excellent, lerp(scoreMax, scoreExcellentMin, d/(excellentEdge*t))
	case d <= goodEdge*t:
		return Good, lerp(scoreExcellentMin, scoreGoodMin, (d-excellentEdge*t)/((goodEdge-excellentEdge)*t))
	case d <= t:
		return NeedsImprovement, lerp(scoreGoodMin, scoreNeedsMin, (d-goodEdge*t)/((1-goodEdge)*t))
	default:
		return Incorrect, incorrectScore(d, t, t)
	}
}

func incorrectScore(d, t, unit float64) float64 {
	s := scoreNeedsMin * (1 - (d-t)/(incorrectSpan*unit))
	return math.Max(0, math.Min(scoreNeedsMin, s))
}

func lerp(from, to, frac float64) float64 {
	return from + (to-from)*frac
}

// Compose builds the feedback for one judged frame. Correct frames are
// never INCORRECT and incorrect frames always are, regardless of rounding
// at the tolerance edge.
func Compose(name string, j exercise.Judgment) Feedback {
	d := math.Abs(j.Deviation)
	t := j.BandTolerance
	if j.Correct && d > t {
		d = t
	}

	level, score := Classify(d, t)
	if !j.Correct && level != Incorrect {
		level, score = Incorrect, scoreNeedsMin
	}

	f := Feedback{
		Level:           level,
		Score:           score,
		Correct:         j.Correct,
		Reason:          j.Reason,
		CurrentAngle:    j.Angle,
		TargetAngle:     j.Reference,
		AngleDifference: j.Deviation,
		Messages:        []string{message(name, level)},
		Corrections:     corrections(j, level),
	}
	if enc := encouragements[level]; len(enc) > 0 {
		f.Encouragements = []string{enc[int(math.Round(d))%len(enc)]}
	}
	return f
}

// ErrorFeedback is the ERROR-level record for a frame that could not be
// evaluated.
func ErrorFeedback(reason string, target float64) Feedback {
	msgs := []string{defaultMessages[Error]}
	if reason != "" {
		msgs = append(msgs, reason)
	}
	return Feedback{
		Level:       Error,
		TargetAngle: target,
		Messages:    msgs,
		Corrections: []string{"Step back so the camera can see the whole limb."},
	}
}

func message(name string, level Level) string {
	switch level {
	case Excellent:
		return fmt.Sprintf("Perfect %s position!", name)
	case Good:
		return fmt.Sprintf("Good %s, minor adjustment needed.", name)
	case NeedsImprovement:
		return fmt.Sprintf("Nearly there, adjust your %s.", name)
	default:
		return fmt.Sprintf("Adjust your %s position.", name)
	}
}

func corrections(j exercise.Judgment, level Level) []string {
	dev := math.Abs(j.Deviation)
	switch j.Reason {
	case exercise.TooLow:
		return []string{fmt.Sprintf("Raise further (currently %.0f° too low).", dev)}
	case exercise.TooHigh:
		return []string{fmt.Sprintf("Lower slightly (currently %.0f° too high).", dev)}
	case exercise.OutOfRange:
		beyond := dev - j.BandTolerance
		if j.Deviation < 0 {
			return []string{fmt.Sprintf("Increase the angle by %.0f° to reach the range.", beyond)}
		}
		return []string{fmt.Sprintf("Decrease the angle by %.0f° to stay in range.", beyond)}
	}
	if level == Excellent {
		return nil
	}
	if j.Deviation < 0 {
		return []string{fmt.Sprintf("Increase the angle by about %.0f°.", dev)}
	}
	return []string{fmt.Sprintf("Decrease the angle by about %.0f°.", dev)}
}
