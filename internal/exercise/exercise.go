// Package exercise defines the supported rehabilitation movements: which
// landmarks form each joint angle and how a measured angle is judged.
package exercise

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/rehab.report/internal/geometry"
	"github.com/banshee-data/rehab.report/internal/pose"
)

// ErrUnknownExercise is returned when an exercise name is not registered.
var ErrUnknownExercise = errors.New("unknown exercise")

// Kind identifies one of the supported exercises.
type Kind string

const (
	ShoulderFlexion   Kind = "shoulder_flexion"
	ShoulderAbduction Kind = "shoulder_abduction"
	ElbowFlexion      Kind = "elbow_flexion"
	KneeFlexion       Kind = "knee_flexion"
	HipFlexion        Kind = "hip_flexion"
	HipAbduction      Kind = "hip_abduction"
)

// Definition is implemented by every supported exercise. Definitions are
// stateless and safe to share.
type Definition interface {
	Kind() Kind
	Name() string
	Description() string
	Instructions(cfg Config) []string
	DefaultConfig() Config
	// LandmarksFor returns the (ray end, vertex, ray end) landmarks whose
	// angle drives the exercise on side.
	LandmarksFor(side Side) [3]pose.LandmarkName
	// Measure computes the movement angle from a landmark set.
	Measure(set *pose.LandmarkSet, cfg Config, visibilityThreshold float64) (float64, error)
	Evaluate(angle float64, cfg Config) Judgment
}

// LandmarkError reports a required landmark that is missing or not visible
// enough to trust. It matches ErrInvalidConfiguration: the requested side
// cannot be evaluated from this frame.
type LandmarkError struct {
	Landmark   pose.LandmarkName
	Present    bool
	Visibility float64
	Threshold  float64
}

func (e *LandmarkError) Error() string {
	if !e.Present {
		return fmt.Sprintf("landmark %s not detected", e.Landmark)
	}
	return fmt.Sprintf("landmark %s visibility %.2f below threshold %.2f", e.Landmark, e.Visibility, e.Threshold)
}

// Is makes errors.Is(err, ErrInvalidConfiguration) hold.
func (e *LandmarkError) Is(target error) bool { return target == ErrInvalidConfiguration }

// movementAngle maps the interior joint angle to the movement angle: 0 for
// a straight joint, growing as the joint closes.
func movementAngle(interior float64) float64 {
	return math.Max(0, math.Min(180, 180-interior))
}

// joint names a landmark relative to the evaluated side.
type joint struct {
	part     string
	opposite bool
}

func (j joint) on(side Side) pose.LandmarkName {
	if j.opposite {
		side = side.Opposite()
	}
	return pose.LandmarkName(string(side) + "_" + j.part)
}

type variant struct {
	kind        Kind
	name        string
	description string
	steps       []string
	joints      [3]joint
	target      float64
	tolerance   float64
}

func (v *variant) Kind() Kind          { return v.kind }
func (v *variant) Name() string        { return v.name }
func (v *variant) Description() string { return v.description }

func (v *variant) DefaultConfig() Config {
	return Config{
		TargetAngle: v.target,
		Tolerance:   v.tolerance,
		Repetitions: 10,
		Side:        Left,
	}
}

func (v *variant) Instructions(cfg Config) []string {
	r := strings.NewReplacer("{side}", string(cfg.Side), "{target}", fmt.Sprintf("%.0f°", cfg.TargetAngle))
	out := make([]string, len(v.steps))
	for i, s := range v.steps {
		out[i] = r.Replace(s)
	}
	return out
}

func (v *variant) LandmarksFor(side Side) [3]pose.LandmarkName {
	return [3]pose.LandmarkName{v.joints[0].on(side), v.joints[1].on(side), v.joints[2].on(side)}
}

func (v *variant) Measure(set *pose.LandmarkSet, cfg Config, threshold float64) (float64, error) {
	names := v.LandmarksFor(cfg.Side)
	var pts [3]geometry.Point
	for i, name := range names {
		lm, ok := set.Get(name)
		if !set.IsVisible(name, threshold) {
			return 0, &LandmarkError{Landmark: name, Present: ok, Visibility: lm.Visibility, Threshold: threshold}
		}
		pts[i] = lm.Point()
	}

	var (
		in  float64
		err error
	)
	if cfg.Use3D {
		in, err = geometry.Angle3D(pts[0], pts[1], pts[2])
	} else {
		in, err = geometry.Angle2D(pts[0], pts[1], pts[2])
	}
	if err != nil {
		return 0, fmt.Errorf("%s angle: %w", v.kind, err)
	}
	return movementAngle(in), nil
}

func (v *variant) Evaluate(angle float64, cfg Config) Judgment {
	return Judge(angle, cfg)
}
