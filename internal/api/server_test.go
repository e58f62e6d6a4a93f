package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rehab.report/internal/config"
	"github.com/banshee-data/rehab.report/internal/db"
	"github.com/banshee-data/rehab.report/internal/evaluator"
	"github.com/banshee-data/rehab.report/internal/exercise"
	"github.com/banshee-data/rehab.report/internal/feedback"
	"github.com/banshee-data/rehab.report/internal/metrics"
	"github.com/banshee-data/rehab.report/internal/testutil"
	"github.com/banshee-data/rehab.report/internal/timeutil"
)

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type testServer struct {
	*Server
	handler http.Handler
	clock   *timeutil.MockClock
	db      *db.DB
}

func setupTestServer(t *testing.T, withDB bool) *testServer {
	t.Helper()
	clock := timeutil.NewMockClock(t0)
	m, reg := metrics.NewTestManagerAndRegistry()
	cfg := Config{Tuning: config.EmptyTuningConfig(), Metrics: m, Gatherer: reg, Clock: clock}

	var database *db.DB
	if withDB {
		var err error
		database, err = db.NewDB(filepath.Join(t.TempDir(), "api.db"))
		require.NoError(t, err)
		t.Cleanup(func() { database.Close() })
		cfg.DB = database
	}
	s := NewServer(cfg)
	return &testServer{Server: s, handler: s.Handler(), clock: clock, db: database}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(method, path, body)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) create(t *testing.T, body string) SessionResponse {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/sessions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// frameJSON is a left shoulder flexion frame at deg.
func frameJSON(t *testing.T, deg float64, ts time.Time) string {
	t.Helper()
	names := exercise.MustLookup(exercise.ShoulderFlexion).LandmarksFor(exercise.Left)
	b, err := json.Marshal(testutil.MovementPose(names, deg, 0.95, ts).ToFrame())
	require.NoError(t, err)
	return string(b)
}

func TestListExercises(t *testing.T) {
	ts := setupTestServer(t, false)
	reps := 12
	ts.tuning.Exercises = map[string]*config.ExerciseTuning{
		"knee_flexion": {Repetitions: &reps},
	}

	w := ts.do(t, http.MethodGet, "/api/exercises", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got []ExerciseInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, len(exercise.List()))
	assert.Equal(t, exercise.ShoulderFlexion, got[0].Kind)
	assert.NotEmpty(t, got[0].Instructions)
	for _, info := range got {
		if info.Kind == exercise.KneeFlexion {
			assert.Equal(t, 12, info.DefaultConfig.Repetitions)
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	ts := setupTestServer(t, true)
	sess := ts.create(t, `{"exercise":"shoulder_flexion","side":"left"}`)
	require.NotEmpty(t, sess.ID)
	assert.False(t, sess.Started)
	assert.Equal(t, 90.0, sess.Config.TargetAngle)
	base := "/api/sessions/" + sess.ID

	w := ts.do(t, http.MethodPost, base+"/frames", frameJSON(t, 90, t0))
	assert.Equal(t, http.StatusConflict, w.Code, "frames before start")

	w = ts.do(t, http.MethodPost, base+"/start", "")
	require.Equal(t, http.StatusOK, w.Code)

	angles := []float64{10, 50, 90, 91, 10, 92}
	want := []feedback.Level{
		feedback.Incorrect, feedback.Incorrect, feedback.Excellent,
		feedback.Excellent, feedback.Incorrect, feedback.Excellent,
	}
	for i, a := range angles {
		w := ts.do(t, http.MethodPost, base+"/frames", frameJSON(t, a, t0.Add(time.Duration(i)*33*time.Millisecond)))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var fb feedback.Feedback
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fb))
		assert.Equal(t, want[i], fb.Level, "frame %d", i)
	}

	w = ts.do(t, http.MethodGet, base+"/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	var live SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &live))
	assert.Equal(t, 2, live.Summary.TotalRepetitions)
	assert.Equal(t, sess.ID, live.Summary.SessionID)
	assert.True(t, live.Started)

	ts.clock.Advance(time.Minute)
	w = ts.do(t, http.MethodPost, base+"/finish", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var fin FinishResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fin))
	assert.True(t, fin.Persisted)
	assert.Equal(t, time.Minute, fin.Summary.Duration)

	stored, err := ts.db.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, fin.Summary.TotalRepetitions, stored.TotalRepetitions)
	frames, err := ts.db.ListFrames(sess.ID)
	require.NoError(t, err)
	assert.Len(t, frames, len(angles))

	w = ts.do(t, http.MethodPost, base+"/frames", frameJSON(t, 90, t0))
	assert.Equal(t, http.StatusConflict, w.Code, "frames after finish")

	w = ts.do(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, ts.SessionCount())
	w = ts.do(t, http.MethodGet, base+"/summary", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStoredSessionFallback(t *testing.T) {
	ts := setupTestServer(t, true)
	sess := ts.create(t, `{"exercise":"shoulder_flexion","start":true}`)
	base := "/api/sessions/" + sess.ID
	for i, a := range []float64{90, 10} {
		ts.do(t, http.MethodPost, base+"/frames", frameJSON(t, a, t0.Add(time.Duration(i)*time.Second)))
	}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/finish", "").Code)
	require.True(t, ts.remove(sess.ID, false))

	w := ts.do(t, http.MethodGet, base+"/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stored db.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	assert.Equal(t, sess.ID, stored.SessionID)
	assert.Equal(t, 1, stored.TotalRepetitions)

	w = ts.do(t, http.MethodGet, base+"/frames", "")
	require.Equal(t, http.StatusOK, w.Code)
	var frames []evaluator.FrameRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &frames))
	assert.Len(t, frames, 2)

	w = ts.do(t, http.MethodGet, base+"/chart", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Shoulder Flexion")

	w = ts.do(t, http.MethodGet, "/api/sessions?exercise=shoulder_flexion", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []db.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)

	w = ts.do(t, http.MethodGet, "/api/sessions?exercise=knee_flexion", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestPostFramesBatch(t *testing.T) {
	ts := setupTestServer(t, false)
	sess := ts.create(t, `{"exercise":"shoulder_flexion","start":true}`)

	body := fmt.Sprintf("[%s,%s,%s]",
		frameJSON(t, 90, t0), frameJSON(t, 10, t0.Add(time.Second)), frameJSON(t, 89, t0.Add(2*time.Second)))
	w := ts.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/frames", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp FramesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Feedback, 3)
	assert.Equal(t, 2, resp.Feedback[2].Repetitions)
	assert.True(t, resp.Feedback[2].RepCompleted)
}

func TestLowVisibilityFrameIsErrorFeedback(t *testing.T) {
	ts := setupTestServer(t, false)
	sess := ts.create(t, `{"exercise":"shoulder_flexion","start":true}`)

	names := exercise.MustLookup(exercise.ShoulderFlexion).LandmarksFor(exercise.Left)
	b, err := json.Marshal(testutil.MovementPose(names, 90, 0.1, t0).ToFrame())
	require.NoError(t, err)

	w := ts.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/frames", string(b))
	require.Equal(t, http.StatusOK, w.Code)
	var fb feedback.Feedback
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fb))
	assert.Equal(t, feedback.Error, fb.Level)
	assert.Equal(t, 0.0, fb.Score)
}

func TestRequestErrors(t *testing.T) {
	ts := setupTestServer(t, false)
	sess := ts.create(t, `{"exercise":"knee_flexion"}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown exercise", http.MethodPost, "/api/sessions", `{"exercise":"jumping_jack"}`, http.StatusBadRequest},
		{"invalid config", http.MethodPost, "/api/sessions", `{"exercise":"knee_flexion","config":{"target_angle":90,"tolerance":-1,"side":"left"}}`, http.StatusBadRequest},
		{"invalid side", http.MethodPost, "/api/sessions", `{"exercise":"knee_flexion","side":"up"}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/sessions", `{"exercise":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/sessions", `{"exercise":"knee_flexion","speed":3}`, http.StatusBadRequest},
		{"unknown session", http.MethodPost, "/api/sessions/nope/start", ``, http.StatusNotFound},
		{"unknown session frames", http.MethodPost, "/api/sessions/nope/frames", `{}`, http.StatusNotFound},
		{"bad visibility", http.MethodPost, "/api/sessions/" + sess.ID + "/frames", `{"landmarks":{"left_hip":{"x":0,"y":0,"visibility":2}}}`, http.StatusBadRequest},
		{"unknown landmark", http.MethodPost, "/api/sessions/" + sess.ID + "/frames", `{"landmarks":{"tail":{"x":0,"y":0,"visibility":1}}}`, http.StatusBadRequest},
		{"finish before start", http.MethodPost, "/api/sessions/" + sess.ID + "/finish", ``, http.StatusConflict},
		{"bad chart format", http.MethodGet, "/api/sessions/" + sess.ID + "/chart?format=svg", ``, http.StatusBadRequest},
		{"storage disabled", http.MethodGet, "/api/sessions", ``, http.StatusNotFound},
		{"wrong method", http.MethodGet, "/api/sessions/" + sess.ID + "/start", ``, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestResetSession(t *testing.T) {
	ts := setupTestServer(t, false)
	sess := ts.create(t, `{"exercise":"shoulder_flexion","start":true}`)
	base := "/api/sessions/" + sess.ID
	ts.do(t, http.MethodPost, base+"/frames", frameJSON(t, 90, t0))

	w := ts.do(t, http.MethodPost, base+"/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Summary.TotalRepetitions)
	assert.Equal(t, 0, resp.Summary.FramesEvaluated)
	assert.False(t, resp.Started)
	assert.Equal(t, sess.ID, resp.ID)
}

func TestFinishWithoutStorage(t *testing.T) {
	ts := setupTestServer(t, false)
	sess := ts.create(t, `{"exercise":"shoulder_flexion","start":true}`)

	w := ts.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/finish", "")
	require.Equal(t, http.StatusOK, w.Code)
	var fin FinishResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fin))
	assert.False(t, fin.Persisted)
}

func TestChartLive(t *testing.T) {
	ts := setupTestServer(t, false)
	sess := ts.create(t, `{"exercise":"shoulder_flexion","start":true}`)
	base := "/api/sessions/" + sess.ID
	ts.do(t, http.MethodPost, base+"/frames", frameJSON(t, 85, t0))

	w := ts.do(t, http.MethodGet, base+"/chart", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	w = ts.do(t, http.MethodGet, base+"/chart?format=png", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t, false)
	sess := ts.create(t, `{"exercise":"shoulder_flexion","start":true}`)
	ts.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/frames", frameJSON(t, 90, t0))

	w := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `rehab_test_frames{exercise="shoulder_flexion",level="EXCELLENT"} 1`)
	assert.Contains(t, body, `rehab_test_active_sessions{exercise="shoulder_flexion"} 1`)
	assert.Contains(t, body, `rehab_test_request{method="POST",status="201"} 1`)
	assert.Contains(t, body, `route="POST /api/sessions/{id}/frames"`)
}

func TestSweepDropsIdleSessions(t *testing.T) {
	ts := setupTestServer(t, false)
	idle := ts.create(t, `{"exercise":"shoulder_flexion","start":true}`)
	ts.clock.Advance(20 * time.Minute)
	busy := ts.create(t, `{"exercise":"knee_flexion","start":true}`)
	ts.clock.Advance(15 * time.Minute)

	assert.Equal(t, 1, ts.sweep(ts.clock.Now(), 30*time.Minute))
	_, ok := ts.live(idle.ID)
	assert.False(t, ok)
	_, ok = ts.live(busy.ID)
	assert.True(t, ok)
}

func TestSweepStoresIdleSessions(t *testing.T) {
	ts := setupTestServer(t, true)
	sess := ts.create(t, `{"exercise":"shoulder_flexion","start":true}`)
	base := "/api/sessions/" + sess.ID
	for i, a := range []float64{90, 10, 92} {
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/frames", frameJSON(t, a, t0.Add(time.Duration(i)*time.Second))).Code)
	}
	unstarted := ts.create(t, `{"exercise":"knee_flexion"}`)
	ts.clock.Advance(time.Hour)

	assert.Equal(t, 2, ts.sweep(ts.clock.Now(), 30*time.Minute))
	assert.Zero(t, ts.SessionCount())

	stored, err := ts.db.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.TotalRepetitions)
	assert.Equal(t, time.Hour, stored.Duration)
	frames, err := ts.db.ListFrames(sess.ID)
	require.NoError(t, err)
	assert.Len(t, frames, 3)

	_, err = ts.db.GetSession(unstarted.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)

	w := ts.do(t, http.MethodGet, base+"/summary", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRunSweeper(t *testing.T) {
	ts := setupTestServer(t, false)
	timeout := "1m"
	ts.tuning.IdleTimeout = &timeout
	ts.create(t, `{"exercise":"shoulder_flexion"}`)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ts.RunSweeper(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		ts.clock.Advance(30 * time.Second)
		return ts.SessionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestRunSweeperDisabled(t *testing.T) {
	ts := setupTestServer(t, false)
	timeout := "0s"
	ts.tuning.IdleTimeout = &timeout

	done := make(chan struct{})
	go func() {
		ts.RunSweeper(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper should return when idle expiry is disabled")
	}
}

func TestConcurrentSessions(t *testing.T) {
	ts := setupTestServer(t, false)
	const n = 8
	ids := make([]string, n)
	for i := range ids {
		ids[i] = ts.create(t, `{"exercise":"shoulder_flexion","start":true}`).ID
	}

	handler := ts.handler
	names := exercise.MustLookup(exercise.ShoulderFlexion).LandmarksFor(exercise.Left)
	errs := make(chan error, n)
	for i, id := range ids {
		go func(i int, id string) {
			for j := 0; j <= i; j++ {
				// one rep per pair of frames
				for k, a := range []float64{90, 10} {
					at := t0.Add(time.Duration(j*2+k) * time.Second)
					b, _ := json.Marshal(testutil.MovementPose(names, a, 0.95, at).ToFrame())
					req := testutil.NewJSONRequest(http.MethodPost, "/api/sessions/"+id+"/frames", string(b))
					w := httptest.NewRecorder()
					handler.ServeHTTP(w, req)
					if w.Code != http.StatusOK {
						errs <- fmt.Errorf("session %d: status %d", i, w.Code)
						return
					}
				}
			}
			errs <- nil
		}(i, id)
	}
	for range ids {
		require.NoError(t, <-errs)
	}

	for i, id := range ids {
		w := ts.do(t, http.MethodGet, "/api/sessions/"+id+"/summary", "")
		var resp SessionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, i+1, resp.Summary.TotalRepetitions, "session %d", i)
	}
}

