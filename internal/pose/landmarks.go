// Package pose holds the landmark data consumed from an external pose
// extractor. The extractor itself is not part of this module; only its
// output contract is modelled here.
package pose

import (
	"sort"
	"time"

	"github.com/banshee-data/rehab.report/internal/geometry"
)

// DefaultVisibilityThreshold is the minimum visibility a landmark needs before
// its position is trusted.
const DefaultVisibilityThreshold = 0.5

// LandmarkName identifies a body joint, following the MediaPipe Pose naming.
type LandmarkName string

const (
	Nose           LandmarkName = "nose"
	LeftShoulder   LandmarkName = "left_shoulder"
	RightShoulder  LandmarkName = "right_shoulder"
	LeftElbow      LandmarkName = "left_elbow"
	RightElbow     LandmarkName = "right_elbow"
	LeftWrist      LandmarkName = "left_wrist"
	RightWrist     LandmarkName = "right_wrist"
	LeftHip        LandmarkName = "left_hip"
	RightHip       LandmarkName = "right_hip"
	LeftKnee       LandmarkName = "left_knee"
	RightKnee      LandmarkName = "right_knee"
	LeftAnkle      LandmarkName = "left_ankle"
	RightAnkle     LandmarkName = "right_ankle"
	LeftHeel       LandmarkName = "left_heel"
	RightHeel      LandmarkName = "right_heel"
	LeftFootIndex  LandmarkName = "left_foot_index"
	RightFootIndex LandmarkName = "right_foot_index"
)

// landmarkIndex maps names to the MediaPipe Pose landmark index so frames
// delivered as a flat array can be decoded.
var landmarkIndex = map[LandmarkName]int{
	Nose:              0,
	"left_eye_inner":  1,
	"left_eye":        2,
	"left_eye_outer":  3,
	"right_eye_inner": 4,
	"right_eye":       5,
	"right_eye_outer": 6,
	"left_ear":        7,
	"right_ear":       8,
	"mouth_left":      9,
	"mouth_right":     10,
	LeftShoulder:      11,
	RightShoulder:     12,
	LeftElbow:         13,
	RightElbow:        14,
	LeftWrist:         15,
	RightWrist:        16,
	"left_pinky":      17,
	"right_pinky":     18,
	"left_index":      19,
	"right_index":     20,
	"left_thumb":      21,
	"right_thumb":     22,
	LeftHip:           23,
	RightHip:          24,
	LeftKnee:          25,
	RightKnee:         26,
	LeftAnkle:         27,
	RightAnkle:        28,
	LeftHeel:          29,
	RightHeel:         30,
	LeftFootIndex:     31,
	RightFootIndex:    32,
}

// NumLandmarks is the size of a full MediaPipe Pose landmark array.
const NumLandmarks = 33

// Known reports whether name is one of the MediaPipe Pose landmarks.
func Known(name LandmarkName) bool {
	_, ok := landmarkIndex[name]
	return ok
}

// NameAt returns the landmark name for a MediaPipe index.
func NameAt(index int) (LandmarkName, bool) {
	for name, i := range landmarkIndex {
		if i == index {
			return name, true
		}
	}
	return "", false
}

// Landmark is one joint position with the extractor's confidence that the
// joint is visible.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z,omitempty"`
	Visibility float64 `json:"visibility"`
}

// Point converts the landmark to a geometry point.
func (l Landmark) Point() geometry.Point {
	return geometry.Point{X: l.X, Y: l.Y, Z: l.Z}
}

// LandmarkSet is an immutable snapshot of the landmarks detected in one frame.
type LandmarkSet struct {
	landmarks map[LandmarkName]Landmark
	timestamp time.Time
}

// NewLandmarkSet copies landmarks into a new set. A zero timestamp means the
// capture time is unknown.
func NewLandmarkSet(landmarks map[LandmarkName]Landmark, timestamp time.Time) *LandmarkSet {
	cp := make(map[LandmarkName]Landmark, len(landmarks))
	for name, lm := range landmarks {
		cp[name] = lm
	}
	return &LandmarkSet{landmarks: cp, timestamp: timestamp}
}

// Get returns the landmark called name.
func (s *LandmarkSet) Get(name LandmarkName) (Landmark, bool) {
	if s == nil {
		return Landmark{}, false
	}
	lm, ok := s.landmarks[name]
	return lm, ok
}

// IsVisible reports whether name is present with visibility >= threshold.
func (s *LandmarkSet) IsVisible(name LandmarkName, threshold float64) bool {
	lm, ok := s.Get(name)
	return ok && lm.Visibility >= threshold
}

// Timestamp returns the capture time, zero if unknown.
func (s *LandmarkSet) Timestamp() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.timestamp
}

// Len returns the number of landmarks in the set.
func (s *LandmarkSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.landmarks)
}

// Names returns the landmark names in the set, sorted.
func (s *LandmarkSet) Names() []LandmarkName {
	if s == nil {
		return nil
	}
	names := make([]LandmarkName, 0, len(s.landmarks))
	for name := range s.landmarks {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
