package sse

// Broadcaster publishes events without exposing the Hub.
type Broadcaster interface {
	// Publish sends an event to every connected client.
	Publish(eventType string, data any)
	// PublishTo sends an event to clients whose ID matches pattern
	// (path.Match syntax, e.g. "console:*").
	PublishTo(pattern, eventType string, data any)
}

// Ensure Hub implements Broadcaster.
var _ Broadcaster = (*Hub)(nil)
