// Package testutil provides shared test fixtures: synthetic poses and JSON
// requests.
package testutil

import (
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/banshee-data/rehab.report/internal/pose"
)

// NewJSONRequest creates a test HTTP request carrying body as JSON.
func NewJSONRequest(method, path, body string) *http.Request {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// JointPose builds a landmark set in which names[0], names[1], names[2] form
// an interior angle of interiorDeg at names[1]. Every landmark gets the given
// visibility.
func JointPose(names [3]pose.LandmarkName, interiorDeg, visibility float64, ts time.Time) *pose.LandmarkSet {
	const r = 0.2
	rad := interiorDeg * math.Pi / 180
	vertex := pose.Landmark{X: 0.5, Y: 0.5, Visibility: visibility}
	first := pose.Landmark{X: 0.5, Y: 0.5 + r, Visibility: visibility}
	second := pose.Landmark{X: 0.5 + r*math.Sin(rad), Y: 0.5 + r*math.Cos(rad), Visibility: visibility}
	return pose.NewLandmarkSet(map[pose.LandmarkName]pose.Landmark{
		names[0]: first,
		names[1]: vertex,
		names[2]: second,
	}, ts)
}

// MovementPose is JointPose for a movement angle: 0 with the joint straight,
// 180 - interior otherwise.
func MovementPose(names [3]pose.LandmarkName, movementDeg, visibility float64, ts time.Time) *pose.LandmarkSet {
	return JointPose(names, 180-movementDeg, visibility, ts)
}
