package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Infrastructure event types. Domain events are named by the publisher.
const (
	EventTypeConnected = "connected"
	EventTypeError     = "error"
)

// Event is a named SSE event whose data is JSON encoded.
type Event struct {
	Type string
	Data any
}

// Encode renders e in the text/event-stream wire format.
func (e Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("sse: encode %s event: %w", e.Type, err)
	}
	var buf bytes.Buffer
	if e.Type != "" {
		fmt.Fprintf(&buf, "event: %s\n", e.Type)
	}
	fmt.Fprintf(&buf, "data: %s\n\n", data)
	return buf.Bytes(), nil
}
