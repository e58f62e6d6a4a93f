package db

import (
	"fmt"

	"github.com/banshee-data/rehab.report/internal/evaluator"
	"github.com/banshee-data/rehab.report/internal/feedback"
)

// InsertFrames stores a session's frame trace in one transaction. The
// session must already be stored.
func (db *DB) InsertFrames(sessionID string, frames []evaluator.FrameRecord) error {
	tx, err := db.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO rehab_frames (
			session_id, frame_index, timestamp_unix_nanos,
			level, score, angle, is_correct, repetitions
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare frame insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range frames {
		if _, err := stmt.Exec(
			sessionID,
			f.Index,
			unixNanos(f.Timestamp),
			f.Level.String(),
			f.Score,
			f.Angle,
			boolInt(f.Correct),
			f.Repetitions,
		); err != nil {
			return fmt.Errorf("failed to insert frame %d: %w", f.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit frames: %w", err)
	}
	return nil
}

// ListFrames returns a session's frames in index order.
func (db *DB) ListFrames(sessionID string) ([]evaluator.FrameRecord, error) {
	rows, err := db.DB.Query(`
		SELECT frame_index, timestamp_unix_nanos, level, score, angle, is_correct, repetitions
		FROM rehab_frames
		WHERE session_id = ?
		ORDER BY frame_index
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}
	defer rows.Close()

	var frames []evaluator.FrameRecord
	for rows.Next() {
		var (
			f          evaluator.FrameRecord
			tsNanos    int64
			level      string
			correctInt int
		)
		if err := rows.Scan(&f.Index, &tsNanos, &level, &f.Score, &f.Angle, &correctInt, &f.Repetitions); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		f.Level, err = feedback.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", f.Index, err)
		}
		f.Timestamp = fromUnixNanos(tsNanos)
		f.Correct = correctInt == 1
		frames = append(frames, f)
	}
	return frames, rows.Err()
}
