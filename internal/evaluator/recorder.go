package evaluator

import (
	"time"

	"github.com/banshee-data/rehab.report/internal/feedback"
)

// FrameRecord is the per-frame trace kept for charts and persistence.
type FrameRecord struct {
	Index       int            `json:"index"`
	Timestamp   time.Time      `json:"timestamp"`
	Level       feedback.Level `json:"level"`
	Score       float64        `json:"score"`
	Angle       float64        `json:"angle"`
	Correct     bool           `json:"is_correct"`
	Repetitions int            `json:"repetitions"`
}

// Recorder keeps the most recent frame records in a ring buffer. A
// capacity below one keeps every frame.
type Recorder struct {
	frames   []FrameRecord
	capacity int
	head     int // next write position once full
	size     int
}

// NewRecorder creates a recorder holding at most capacity frames.
func NewRecorder(capacity int) *Recorder {
	r := &Recorder{capacity: capacity}
	if capacity > 0 {
		r.frames = make([]FrameRecord, capacity)
	}
	return r
}

// Add stores a record, overwriting the oldest if at capacity.
func (r *Recorder) Add(rec FrameRecord) {
	if r.capacity < 1 {
		r.frames = append(r.frames, rec)
		r.size++
		return
	}
	r.frames[r.head] = rec
	r.head = (r.head + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	}
}

// Len returns the number of records held.
func (r *Recorder) Len() int { return r.size }

// All returns the held records from oldest to newest.
func (r *Recorder) All() []FrameRecord {
	if r.size == 0 {
		return nil
	}
	out := make([]FrameRecord, r.size)
	if r.capacity < 1 {
		copy(out, r.frames)
		return out
	}
	for i := 0; i < r.size; i++ {
		out[i] = r.frames[(r.head-r.size+i+r.capacity)%r.capacity]
	}
	return out
}
