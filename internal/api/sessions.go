package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/banshee-data/rehab.report/internal/db"
	"github.com/banshee-data/rehab.report/internal/evaluator"
	"github.com/banshee-data/rehab.report/internal/exercise"
	"github.com/banshee-data/rehab.report/internal/feedback"
	"github.com/banshee-data/rehab.report/internal/httputil"
	"github.com/banshee-data/rehab.report/internal/monitoring"
	"github.com/banshee-data/rehab.report/internal/pose"
	"github.com/banshee-data/rehab.report/internal/reps"
)

// ExerciseInfo describes one supported exercise and its tuned defaults.
type ExerciseInfo struct {
	Kind          exercise.Kind   `json:"kind"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	DefaultConfig exercise.Config `json:"default_config"`
	Instructions  []string        `json:"instructions"`
}

// CreateSessionRequest selects an exercise. Config replaces the tuned
// defaults entirely; Side and Repetitions override single fields.
type CreateSessionRequest struct {
	Exercise    string           `json:"exercise"`
	Config      *exercise.Config `json:"config,omitempty"`
	Side        *exercise.Side   `json:"side,omitempty"`
	Repetitions *int             `json:"repetitions,omitempty"`
	Start       bool             `json:"start,omitempty"`
}

// SessionResponse is the live view of a session.
type SessionResponse struct {
	ID           string            `json:"id"`
	Summary      evaluator.Summary `json:"summary"`
	Config       exercise.Config   `json:"config"`
	Instructions []string          `json:"instructions,omitempty"`
	Started      bool              `json:"started"`
	Ended        bool              `json:"ended"`
	Phase        reps.Phase        `json:"phase"`
}

// FramesResponse answers a batch of frames.
type FramesResponse struct {
	Feedback []feedback.Feedback `json:"feedback"`
}

// FinishResponse is returned when a session is finished.
type FinishResponse struct {
	Summary   evaluator.Summary `json:"summary"`
	Persisted bool              `json:"persisted"`
}

func (s *Server) exerciseConfig(def exercise.Definition) (exercise.Config, error) {
	return s.tuning.ExerciseConfig(def.Kind(), def.DefaultConfig())
}

func (s *Server) listExercises(w http.ResponseWriter, r *http.Request) {
	var out []ExerciseInfo
	for _, kind := range exercise.List() {
		def := exercise.MustLookup(kind)
		cfg, err := s.exerciseConfig(def)
		if err != nil {
			writeError(w, fmt.Errorf("%s: %w", kind, err))
			return
		}
		out = append(out, ExerciseInfo{
			Kind:          kind,
			Name:          def.Name(),
			Description:   def.Description(),
			DefaultConfig: cfg,
			Instructions:  def.Instructions(cfg),
		})
	}
	httputil.WriteJSONOK(w, out)
}

// view builds the live response. The caller holds the session lock.
func view(id string, ev *evaluator.Evaluator) SessionResponse {
	def, cfg := ev.Exercise()
	sum := ev.Summary()
	sum.SessionID = id
	return SessionResponse{
		ID:           id,
		Summary:      sum,
		Config:       cfg,
		Instructions: def.Instructions(cfg),
		Started:      ev.Started(),
		Ended:        ev.Ended(),
		Phase:        ev.Phase(),
	}
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	def, err := exercise.Lookup(req.Exercise)
	if err != nil {
		writeError(w, err)
		return
	}

	var cfg exercise.Config
	if req.Config != nil {
		cfg = *req.Config
	} else if cfg, err = s.exerciseConfig(def); err != nil {
		writeError(w, err)
		return
	}
	if req.Side != nil {
		cfg.Side = *req.Side
	}
	if req.Repetitions != nil {
		cfg.Repetitions = *req.Repetitions
	}

	ev := s.newEvaluator()
	if err := ev.SetExercise(def, cfg); err != nil {
		writeError(w, err)
		return
	}
	if req.Start {
		if err := ev.StartSession(); err != nil {
			writeError(w, err)
			return
		}
	}

	id := uuid.NewString()
	s.add(id, ev)
	monitoring.Sessionf(id, "created over http: %s", def.Kind())
	httputil.WriteJSON(w, http.StatusCreated, view(id, ev))
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	found := s.withSession(id, func(ev *evaluator.Evaluator) {
		if err := ev.StartSession(); err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSONOK(w, view(id, ev))
	})
	if !found {
		httputil.NotFound(w, "session not found")
	}
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	found := s.withSession(id, func(ev *evaluator.Evaluator) {
		if err := ev.ResetSession(); err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSONOK(w, view(id, ev))
	})
	if !found {
		httputil.NotFound(w, "session not found")
	}
}

// decodeFrames accepts a single frame object or an array of frames.
func decodeFrames(r *http.Request) ([]*pose.LandmarkSet, bool, error) {
	var raw json.RawMessage
	if err := httputil.DecodeJSON(r, &raw); err != nil {
		return nil, false, err
	}

	batch := len(bytes.TrimSpace(raw)) > 0 && bytes.TrimSpace(raw)[0] == '['
	var frames []pose.Frame
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if batch {
		if err := dec.Decode(&frames); err != nil {
			return nil, true, fmt.Errorf("invalid frames: %w", err)
		}
	} else {
		var f pose.Frame
		if err := dec.Decode(&f); err != nil {
			return nil, false, fmt.Errorf("invalid frame: %w", err)
		}
		frames = []pose.Frame{f}
	}

	sets := make([]*pose.LandmarkSet, len(frames))
	for i := range frames {
		set, err := frames[i].LandmarkSet()
		if err != nil {
			return nil, batch, fmt.Errorf("frame %d: %w", i, err)
		}
		sets[i] = set
	}
	return sets, batch, nil
}

func (s *Server) postFrames(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.live(id); !ok {
		httputil.NotFound(w, "session not found")
		return
	}
	sets, batch, err := decodeFrames(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	found := s.withSession(id, func(ev *evaluator.Evaluator) {
		out := make([]feedback.Feedback, 0, len(sets))
		for _, set := range sets {
			fb, err := ev.EvaluateFrame(set)
			if err != nil {
				writeError(w, err)
				return
			}
			out = append(out, fb)
		}
		if batch {
			httputil.WriteJSONOK(w, FramesResponse{Feedback: out})
			return
		}
		httputil.WriteJSONOK(w, out[0])
	})
	if !found {
		httputil.NotFound(w, "session not found")
	}
}

func (s *Server) getFrames(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.withSession(id, func(ev *evaluator.Evaluator) {
		httputil.WriteJSONOK(w, ev.Frames())
	}) {
		return
	}
	if s.db == nil {
		httputil.NotFound(w, "session not found")
		return
	}
	frames, err := s.db.ListFrames(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(frames) == 0 {
		if _, err := s.db.GetSession(id); err != nil {
			writeError(w, err)
			return
		}
	}
	httputil.WriteJSONOK(w, frames)
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.withSession(id, func(ev *evaluator.Evaluator) {
		httputil.WriteJSONOK(w, view(id, ev))
	}) {
		return
	}
	if s.db == nil {
		httputil.NotFound(w, "session not found")
		return
	}
	stored, err := s.db.GetSession(id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, stored)
}

// finishSession ends the session and, when a database is configured,
// stores its summary and frame trace under the session id. Finishing
// again re-stores the same data.
func (s *Server) finishSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	found := s.withSession(id, func(ev *evaluator.Evaluator) {
		if !ev.Started() && !ev.Ended() {
			httputil.Conflict(w, "session not started")
			return
		}
		if err := ev.EndSession(); err != nil {
			writeError(w, err)
			return
		}
		sum := ev.Summary()
		sum.SessionID = id
		resp := FinishResponse{Summary: sum}
		if s.db != nil {
			stored, err := s.persist(id, ev)
			if err != nil {
				writeError(w, err)
				return
			}
			resp.Summary = stored
			resp.Persisted = true
		}
		monitoring.Sessionf(id, "finished: %s", resp.Summary)
		httputil.WriteJSONOK(w, resp)
	})
	if !found {
		httputil.NotFound(w, "session not found")
	}
}

// deleteSession drops a live session and any stored copy.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	removed := s.remove(id, false)
	if s.db != nil {
		err := s.db.DeleteSession(id)
		switch {
		case err == nil:
			removed = true
		case !removed:
			writeError(w, err)
			return
		}
	}
	if !removed {
		httputil.NotFound(w, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		httputil.NotFound(w, "session storage is disabled")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httputil.BadRequest(w, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}
	kind := exercise.Kind(r.URL.Query().Get("exercise"))
	if kind != "" {
		if _, err := exercise.Lookup(string(kind)); err != nil {
			writeError(w, err)
			return
		}
	}
	sessions, err := s.db.ListSessions(kind, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []db.Session{}
	}
	httputil.WriteJSONOK(w, sessions)
}
