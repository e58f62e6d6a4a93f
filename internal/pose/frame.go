package pose

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Frame is the JSON form of one extractor output. Landmarks may be given by
// name, or as the raw MediaPipe array in Points (index order), or both; named
// entries win on conflict.
type Frame struct {
	TimestampMs int64                     `json:"timestamp_ms,omitempty"`
	Landmarks   map[LandmarkName]Landmark `json:"landmarks,omitempty"`
	Points      []Landmark                `json:"points,omitempty"`
}

// LandmarkSet validates the frame and converts it to an immutable set.
func (f *Frame) LandmarkSet() (*LandmarkSet, error) {
	if len(f.Points) > NumLandmarks {
		return nil, fmt.Errorf("frame has %d points, at most %d expected", len(f.Points), NumLandmarks)
	}

	merged := make(map[LandmarkName]Landmark, len(f.Points)+len(f.Landmarks))
	for i, lm := range f.Points {
		name, _ := NameAt(i)
		merged[name] = lm
	}
	for name, lm := range f.Landmarks {
		if !Known(name) {
			return nil, fmt.Errorf("unknown landmark %q", name)
		}
		merged[name] = lm
	}
	for name, lm := range merged {
		if lm.Visibility < 0 || lm.Visibility > 1 {
			return nil, fmt.Errorf("landmark %s visibility %f outside [0,1]", name, lm.Visibility)
		}
	}

	var ts time.Time
	if f.TimestampMs > 0 {
		ts = time.UnixMilli(f.TimestampMs)
	}
	return NewLandmarkSet(merged, ts), nil
}

// FrameReader decodes frames stored one JSON object per line. Blank lines and
// lines starting with '#' are skipped.
type FrameReader struct {
	scanner *bufio.Scanner
	line    int
}

// NewFrameReader wraps r.
func NewFrameReader(r io.Reader) *FrameReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &FrameReader{scanner: sc}
}

// Next returns the next landmark set, or io.EOF when the input is exhausted.
func (fr *FrameReader) Next() (*LandmarkSet, error) {
	for fr.scanner.Scan() {
		fr.line++
		text := strings.TrimSpace(fr.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var f Frame
		if err := json.Unmarshal([]byte(text), &f); err != nil {
			return nil, fmt.Errorf("line %d: failed to parse frame JSON: %w", fr.line, err)
		}
		set, err := f.LandmarkSet()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", fr.line, err)
		}
		return set, nil
	}
	if err := fr.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read frames: %w", err)
	}
	return nil, io.EOF
}

// ReadAll decodes every remaining frame.
func (fr *FrameReader) ReadAll() ([]*LandmarkSet, error) {
	var sets []*LandmarkSet
	for {
		set, err := fr.Next()
		if errors.Is(err, io.EOF) {
			return sets, nil
		}
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
}

// ToFrame converts a set back to its named JSON form.
func (s *LandmarkSet) ToFrame() Frame {
	f := Frame{Landmarks: make(map[LandmarkName]Landmark, s.Len())}
	for _, name := range s.Names() {
		f.Landmarks[name], _ = s.Get(name)
	}
	if ts := s.Timestamp(); !ts.IsZero() {
		f.TimestampMs = ts.UnixMilli()
	}
	return f
}
