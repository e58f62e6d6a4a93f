package exercise

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidConfiguration is returned for configurations that break the
// exercise invariants, and matched by landmark errors for an unusable side.
var ErrInvalidConfiguration = errors.New("invalid exercise configuration")

// Side selects which half of the body is evaluated.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Left {
		return Right
	}
	return Left
}

// Valid reports whether s is left or right.
func (s Side) Valid() bool { return s == Left || s == Right }

// Config parameterises one exercise. MinAngle and MaxAngle are either both
// nil or both set; when set they replace TargetAngle±Tolerance as the
// correctness test.
type Config struct {
	TargetAngle  float64       `json:"target_angle"`
	Tolerance    float64       `json:"tolerance"`
	MinAngle     *float64      `json:"min_angle,omitempty"`
	MaxAngle     *float64      `json:"max_angle,omitempty"`
	HoldDuration time.Duration `json:"hold_duration"`
	Repetitions  int           `json:"repetitions"`
	Side         Side          `json:"side"`
	Use3D        bool          `json:"use_3d"`
	// Hysteresis widens the correct zone, in degrees, when deciding whether a
	// counted repetition has been released.
	Hysteresis float64 `json:"hysteresis_deg,omitempty"`
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if !finite(c.TargetAngle) {
		return fmt.Errorf("%w: target_angle must be finite", ErrInvalidConfiguration)
	}
	if !finite(c.Tolerance) || c.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance must be non-negative, got %v", ErrInvalidConfiguration, c.Tolerance)
	}
	if (c.MinAngle == nil) != (c.MaxAngle == nil) {
		return fmt.Errorf("%w: min_angle and max_angle must be set together", ErrInvalidConfiguration)
	}
	if c.RangeMode() {
		if !finite(*c.MinAngle) || !finite(*c.MaxAngle) || *c.MinAngle >= *c.MaxAngle {
			return fmt.Errorf("%w: min_angle (%v) must be less than max_angle (%v)", ErrInvalidConfiguration, *c.MinAngle, *c.MaxAngle)
		}
	}
	if c.HoldDuration < 0 {
		return fmt.Errorf("%w: hold_duration must be non-negative, got %s", ErrInvalidConfiguration, c.HoldDuration)
	}
	if c.Repetitions < 0 {
		return fmt.Errorf("%w: repetitions must be non-negative, got %d", ErrInvalidConfiguration, c.Repetitions)
	}
	if !c.Side.Valid() {
		return fmt.Errorf("%w: side must be %q or %q, got %q", ErrInvalidConfiguration, Left, Right, c.Side)
	}
	if !finite(c.Hysteresis) || c.Hysteresis < 0 {
		return fmt.Errorf("%w: hysteresis must be non-negative, got %v", ErrInvalidConfiguration, c.Hysteresis)
	}
	return nil
}

// RangeMode reports whether correctness is judged against [MinAngle, MaxAngle].
func (c Config) RangeMode() bool { return c.MinAngle != nil && c.MaxAngle != nil }

// Reference returns the angle deviations are measured from (the target, or
// the midpoint of the range) and the band half-width around it.
func (c Config) Reference() (reference, halfWidth float64) {
	if c.RangeMode() {
		return (*c.MinAngle + *c.MaxAngle) / 2, (*c.MaxAngle - *c.MinAngle) / 2
	}
	return c.TargetAngle, c.Tolerance
}

// InZone reports whether angle is acceptable with the zone widened by margin
// degrees on each side. InZone(angle, 0) is the correctness rule.
func (c Config) InZone(angle, margin float64) bool {
	if c.RangeMode() {
		return *c.MinAngle-margin <= angle && angle <= *c.MaxAngle+margin
	}
	return math.Abs(angle-c.TargetAngle) <= c.Tolerance+margin
}

// Reason classifies a judgment.
type Reason string

const (
	OnTarget   Reason = "ON_TARGET"
	TooLow     Reason = "TOO_LOW"
	TooHigh    Reason = "TOO_HIGH"
	OutOfRange Reason = "OUT_OF_RANGE"
)

// Judgment is the outcome of evaluating one angle against a Config.
type Judgment struct {
	Correct bool
	Reason  Reason
	Angle   float64
	// Reference is the target angle, or the range midpoint in range mode.
	Reference float64
	// BandTolerance is the tolerance, or the range half-width in range mode.
	BandTolerance float64
	// Deviation is Angle - Reference.
	Deviation float64
}

// Judge applies the correctness rule shared by every exercise.
func Judge(angle float64, cfg Config) Judgment {
	ref, half := cfg.Reference()
	j := Judgment{
		Correct:       cfg.InZone(angle, 0),
		Angle:         angle,
		Reference:     ref,
		BandTolerance: half,
		Deviation:     angle - ref,
	}
	switch {
	case j.Correct:
		j.Reason = OnTarget
	case cfg.RangeMode():
		j.Reason = OutOfRange
	case angle < cfg.TargetAngle:
		j.Reason = TooLow
	default:
		j.Reason = TooHigh
	}
	return j
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Float64 returns a pointer to v, for MinAngle/MaxAngle literals.
func Float64(v float64) *float64 { return &v }
