package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/rehab.report/internal/evaluator"
	"github.com/banshee-data/rehab.report/internal/exercise"
)

// Session is a stored session summary plus the configuration it ran with.
type Session struct {
	evaluator.Summary
	Config    exercise.Config `json:"config"`
	CreatedAt time.Time       `json:"created_at"`
}

func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// InsertSession stores a session summary. Storing the same session id
// again replaces the earlier row and drops its stored frames.
func (db *DB) InsertSession(s evaluator.Summary, cfg exercise.Config) error {
	if s.SessionID == "" {
		return fmt.Errorf("failed to insert session: empty session id")
	}
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode session config: %w", err)
	}

	tx, err := db.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM rehab_frames WHERE session_id = ?`, s.SessionID); err != nil {
		return fmt.Errorf("failed to clear session frames: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO rehab_sessions (
			session_id, exercise, kind, side,
			total_repetitions, target_repetitions, average_score, duration_ns,
			completed, frames_evaluated, error_frames, started_at_unix_nanos,
			config_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(
		query,
		s.SessionID,
		s.Exercise,
		string(s.Kind),
		string(s.Side),
		s.TotalRepetitions,
		s.TargetRepetitions,
		s.AverageScore,
		int64(s.Duration),
		boolInt(s.Completed),
		s.FramesEvaluated,
		s.ErrorFrames,
		unixNanos(s.StartedAt),
		string(configJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

const sessionColumns = `
	session_id, exercise, kind, side,
	total_repetitions, target_repetitions, average_score, duration_ns,
	completed, frames_evaluated, error_frames, started_at_unix_nanos,
	config_json, created_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		s            Session
		kind, side   string
		configJSON   string
		durationNs   int64
		startedNanos int64
		completedInt int64
		createdUnix  int64
	)
	err := row.Scan(
		&s.SessionID,
		&s.Exercise,
		&kind,
		&side,
		&s.TotalRepetitions,
		&s.TargetRepetitions,
		&s.AverageScore,
		&durationNs,
		&completedInt,
		&s.FramesEvaluated,
		&s.ErrorFrames,
		&startedNanos,
		&configJSON,
		&createdUnix,
	)
	if err != nil {
		return nil, err
	}
	s.Kind = exercise.Kind(kind)
	s.Side = exercise.Side(side)
	s.Duration = time.Duration(durationNs)
	s.Completed = completedInt == 1
	s.StartedAt = fromUnixNanos(startedNanos)
	s.CreatedAt = time.Unix(createdUnix, 0).UTC()
	if err := json.Unmarshal([]byte(configJSON), &s.Config); err != nil {
		return nil, fmt.Errorf("failed to decode session config: %w", err)
	}
	return &s, nil
}

// GetSession retrieves a session by id.
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.DB.QueryRow(`SELECT `+sessionColumns+` FROM rehab_sessions WHERE session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// ListSessions returns stored sessions, most recently started first. An
// empty kind matches every exercise; limit <= 0 returns all.
func (db *DB) ListSessions(kind exercise.Kind, limit int) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM rehab_sessions`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY started_at_unix_nanos DESC, session_id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session and, by cascade, its frames.
func (db *DB) DeleteSession(id string) error {
	result, err := db.DB.Exec(`DELETE FROM rehab_sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}
