package sse

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/medscribe/logger"
)

// DefaultKeepAlive is the interval between keep-alive comments.
const DefaultKeepAlive = 30 * time.Second

// StreamOptions tune a single stream.
type StreamOptions struct {
	// KeepAlive overrides DefaultKeepAlive when positive.
	KeepAlive time.Duration
	// Initial events are written right after the connected event, before
	// anything published by the hub.
	Initial []Event
	Client  []ClientOption
}

// ServeSSE streams events for clientID until the request context ends or the
// hub stops.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, clientID string, opts StreamOptions) {
	log := hub.log.WithContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("streaming not supported", logger.Fields("client_id", clientID))
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && err != http.ErrNotSupported {
		log.Warn("could not disable write deadline", logger.Fields("client_id", clientID, logger.FieldError, err.Error()))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := NewClient(clientID, opts.Client...)
	if !hub.Register(client) {
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	initial := append([]Event{{Type: EventTypeConnected, Data: map[string]string{"client_id": clientID}}}, opts.Initial...)
	for _, ev := range initial {
		frame, err := ev.Encode()
		if err != nil {
			log.Error("encode initial event", logger.Fields("client_id", clientID, logger.FieldError, err.Error()))
			continue
		}
		_, _ = w.Write(frame)
	}
	flusher.Flush()

	interval := opts.KeepAlive
	if interval <= 0 {
		interval = DefaultKeepAlive
	}
	keepAlive := time.NewTicker(interval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-client.Events():
			if !ok {
				return
			}
			_, _ = w.Write(frame)
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}
