// Package api serves live exercise sessions over HTTP: clients create a
// session, post landmark frames, and fetch feedback, summaries and charts.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/rehab.report/internal/config"
	"github.com/banshee-data/rehab.report/internal/db"
	"github.com/banshee-data/rehab.report/internal/evaluator"
	"github.com/banshee-data/rehab.report/internal/exercise"
	"github.com/banshee-data/rehab.report/internal/httputil"
	"github.com/banshee-data/rehab.report/internal/metrics"
	"github.com/banshee-data/rehab.report/internal/monitoring"
	"github.com/banshee-data/rehab.report/internal/timeutil"
)

// Config wires the server's dependencies. DB and Metrics may be nil, which
// disables persistence and instrumentation respectively.
type Config struct {
	DB       *db.DB
	Tuning   *config.TuningConfig
	Metrics  *metrics.Manager
	Gatherer prometheus.Gatherer
	Clock    timeutil.Clock
}

// liveSession is one evaluator and the lock serializing its frames.
type liveSession struct {
	mu       sync.Mutex
	ev       *evaluator.Evaluator
	lastSeen time.Time
}

type Server struct {
	db      *db.DB
	tuning  *config.TuningConfig
	metrics *metrics.Manager
	gather  prometheus.Gatherer
	clock   timeutil.Clock

	mu       sync.Mutex
	sessions map[string]*liveSession
}

func NewServer(cfg Config) *Server {
	if cfg.Tuning == nil {
		cfg.Tuning = config.EmptyTuningConfig()
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		db:       cfg.DB,
		tuning:   cfg.Tuning,
		metrics:  cfg.Metrics,
		gather:   cfg.Gatherer,
		clock:    cfg.Clock,
		sessions: make(map[string]*liveSession),
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/exercises", s.listExercises)
	mux.HandleFunc("GET /api/sessions", s.listSessions)
	mux.HandleFunc("POST /api/sessions", s.createSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.deleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/start", s.startSession)
	mux.HandleFunc("POST /api/sessions/{id}/frames", s.postFrames)
	mux.HandleFunc("GET /api/sessions/{id}/frames", s.getFrames)
	mux.HandleFunc("POST /api/sessions/{id}/reset", s.resetSession)
	mux.HandleFunc("GET /api/sessions/{id}/summary", s.getSummary)
	mux.HandleFunc("POST /api/sessions/{id}/finish", s.finishSession)
	mux.HandleFunc("GET /api/sessions/{id}/chart", s.getChart)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))
	return mux
}

// Handler is ServeMux wrapped in the request metrics and logging
// middleware.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.ServeMux()
	if s.metrics != nil {
		h = RequestMetrics(s.metrics)(h)
	}
	return LoggingMiddleware(h)
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) newEvaluator() *evaluator.Evaluator {
	cfg := evaluator.Config{
		Clock:               s.clock,
		VisibilityThreshold: s.tuning.GetVisibilityThreshold(),
		HistoryLimit:        s.tuning.GetSessionHistoryLimit(),
	}
	if s.metrics != nil {
		cfg.Metrics = s.metrics
	}
	return evaluator.New(cfg)
}

func (s *Server) add(id string, ev *evaluator.Evaluator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &liveSession{ev: ev, lastSeen: s.clock.Now()}
}

func (s *Server) live(id string) (*liveSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls, ok := s.sessions[id]
	return ls, ok
}

// remove drops a live session. A session still running is ended and, with
// store set and storage configured, persisted.
func (s *Server) remove(id string, store bool) bool {
	s.mu.Lock()
	ls, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if !ls.ev.Started() {
		return true
	}
	if err := ls.ev.EndSession(); err != nil {
		monitoring.Sessionf(id, "failed to end session: %v", err)
	}
	if store && s.db != nil {
		if _, err := s.persist(id, ls.ev); err != nil {
			monitoring.Sessionf(id, "failed to persist session: %v", err)
		}
	}
	return true
}

// persist stores the session summary and frame trace under the server id.
// Storing again replaces the earlier copy.
func (s *Server) persist(id string, ev *evaluator.Evaluator) (evaluator.Summary, error) {
	_, cfg := ev.Exercise()
	sum := ev.Summary()
	sum.SessionID = id
	if err := s.db.InsertSession(sum, cfg); err != nil {
		return sum, err
	}
	if err := s.db.InsertFrames(id, ev.Frames()); err != nil {
		return sum, err
	}
	return sum, nil
}

// withSession runs fn holding the session's lock. It returns false when no
// live session has that id.
func (s *Server) withSession(id string, fn func(ev *evaluator.Evaluator)) bool {
	ls, ok := s.live(id)
	if !ok {
		return false
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.lastSeen = s.clock.Now()
	fn(ls.ev)
	return true
}

// sweep ends, stores and drops sessions idle for at least timeout.
func (s *Server) sweep(now time.Time, timeout time.Duration) int {
	s.mu.Lock()
	var idle []string
	for id, ls := range s.sessions {
		ls.mu.Lock()
		if now.Sub(ls.lastSeen) >= timeout {
			idle = append(idle, id)
		}
		ls.mu.Unlock()
	}
	s.mu.Unlock()

	n := 0
	for _, id := range idle {
		if s.remove(id, true) {
			monitoring.Sessionf(id, "dropped after %s idle", timeout)
			n++
		}
	}
	return n
}

// RunSweeper drops idle sessions until ctx is cancelled. It returns
// immediately when the configured idle timeout is zero.
func (s *Server) RunSweeper(ctx context.Context) {
	timeout := s.tuning.GetIdleTimeout()
	if timeout <= 0 {
		return
	}
	interval := timeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			if n := s.sweep(now, timeout); n > 0 {
				monitoring.Logf("idle sweep removed %d session(s)", n)
			}
		}
	}
}

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, evaluator.ErrInvalidState):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, exercise.ErrUnknownExercise), errors.Is(err, exercise.ErrInvalidConfiguration):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, db.ErrNotFound):
		httputil.NotFound(w, err.Error())
	default:
		monitoring.Logf("request failed: %v", err)
		httputil.InternalServerError(w, err.Error())
	}
}
