// Package transcript mirrors the conversation transcript held by the scribe
// service.
package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"
)

// Speakers.
const (
	SpeakerUser      = "user"
	SpeakerAssistant = "assistant"
)

// SegmentID identifies a segment. The service may send a JSON string or
// number; it is held as a string.
type SegmentID string

func (id *SegmentID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = SegmentID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("transcript: invalid segment id %s", data)
	}
	*id = SegmentID(n.String())
	return nil
}

// Segment is one utterance.
type Segment struct {
	ID      SegmentID `json:"id"`
	Text    string    `json:"text"`
	Speaker string    `json:"speaker"`
	// Timestamp is milliseconds since the Unix epoch, possibly fractional.
	Timestamp float64 `json:"timestamp"`
}

// Time returns the segment timestamp at microsecond precision.
func (s Segment) Time() time.Time {
	return time.UnixMicro(int64(math.Round(s.Timestamp * 1000)))
}

// IsAssistant reports whether the agent spoke the segment.
func (s Segment) IsAssistant() bool { return s.Speaker == SpeakerAssistant }

// Mirror is the local copy of the transcript. Each fetch replaces it
// wholesale.
type Mirror struct {
	mu       sync.RWMutex
	segments []Segment
}

// Replace swaps in segments and reports whether the content changed.
func (m *Mirror) Replace(segments []Segment) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.Equal(m.segments, segments) {
		return false
	}
	m.segments = slices.Clone(segments)
	return true
}

// Snapshot returns a copy of the current segments. It is never nil.
func (m *Mirror) Snapshot() []Segment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Segment, len(m.segments))
	copy(out, m.segments)
	return out
}

func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.segments)
}

// Reset empties the mirror.
func (m *Mirror) Reset() {
	m.mu.Lock()
	m.segments = nil
	m.mu.Unlock()
}
