package rtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kbukum/medscribe/logger"
	"github.com/kbukum/medscribe/util"
)

// ErrMediaDevices reports that the microphone could not be acquired or was
// lost.
var ErrMediaDevices = errors.New("rtc: media devices unavailable")

// ErrNotConnected is returned by operations that need an open room.
var ErrNotConnected = errors.New("rtc: room not connected")

// EventKind classifies room events.
type EventKind int

const (
	// EventDisconnected means the signalling connection dropped without a
	// call to Disconnect.
	EventDisconnected EventKind = iota + 1
	// EventMediaDevicesError means the capture failed mid-session.
	EventMediaDevicesError
)

func (k EventKind) String() string {
	switch k {
	case EventDisconnected:
		return "disconnected"
	case EventMediaDevicesError:
		return "media_devices_error"
	default:
		return "unknown"
	}
}

// Event is an asynchronous room notification.
type Event struct {
	Kind EventKind
	Err  error
}

const closeGrace = time.Second

// Room is a single conferencing session.
type Room struct {
	dialer   *websocket.Dialer
	capturer Capturer
	audio    AudioConfig
	tap      Tap
	log      *logger.Logger
	events   chan Event

	mu            sync.Mutex
	conn          *websocket.Conn
	capture       CaptureSession
	cancelCapture context.CancelFunc
	closing       bool
	wg            sync.WaitGroup
}

// RoomOption configures a Room.
type RoomOption func(*Room)

func WithDialer(d *websocket.Dialer) RoomOption {
	return func(r *Room) { r.dialer = d }
}

func WithCapturer(c Capturer) RoomOption {
	return func(r *Room) { r.capturer = c }
}

func WithTap(t Tap) RoomOption {
	return func(r *Room) { r.tap = t }
}

func WithLogger(l *logger.Logger) RoomOption {
	return func(r *Room) { r.log = l }
}

// NewRoom creates a disconnected room.
func NewRoom(audio AudioConfig, opts ...RoomOption) *Room {
	audio.ApplyDefaults()
	r := &Room{
		dialer:   websocket.DefaultDialer,
		capturer: FFmpegCapture{},
		audio:    audio,
		tap:      &MeterTap{},
		log:      logger.Get("rtc"),
		events:   make(chan Event, 8),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Events delivers asynchronous failures. Events are dropped when the
// buffer is full.
func (r *Room) Events() <-chan Event { return r.events }

// Connected reports whether the signalling socket is open.
func (r *Room) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn != nil && !r.closing
}

// SignalURL derives the signalling endpoint from a server URL.
func SignalURL(serverURL, token string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("rtc: invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("rtc: unsupported server url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("rtc: server url has no host")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/rtc"
	q := url.Values{}
	q.Set("access_token", token)
	q.Set("auto_subscribe", "1")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect opens the room. It fails if the room is already connected.
func (r *Room) Connect(ctx context.Context, serverURL, token string) error {
	target, err := SignalURL(serverURL, token)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		return errors.New("rtc: room already connected")
	}

	conn, _, err := r.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("rtc: connect: %w", err)
	}
	r.conn = conn
	r.closing = false

	r.wg.Add(1)
	go r.readLoop(conn)

	r.log.Info("room connected", logger.Fields("server", redact(target)))
	return nil
}

// EnableMicrophone starts capturing audio. Errors wrap ErrMediaDevices.
func (r *Room) EnableMicrophone(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil || r.closing {
		return ErrNotConnected
	}
	if r.capture != nil {
		return nil
	}

	captureCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	session, err := r.capturer.Start(captureCtx, r.audio)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %v", ErrMediaDevices, err)
	}
	r.capture = session
	r.cancelCapture = cancel

	r.wg.Add(1)
	go r.pump(session)

	r.log.Info("microphone enabled", logger.Fields(
		"input_format", r.audio.InputFormat,
		"input_device", r.audio.InputDevice,
	))
	return nil
}

// Disconnect stops capture and closes the room. It is safe to call on a
// disconnected room.
func (r *Room) Disconnect(ctx context.Context) error {
	r.mu.Lock()
	if r.conn == nil {
		r.mu.Unlock()
		return nil
	}
	r.closing = true
	conn, capture, cancel := r.conn, r.capture, r.cancelCapture
	r.mu.Unlock()

	var errs []error
	if capture != nil {
		if err := capture.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop capture: %w", err))
		}
		cancel()
	}

	deadline := time.Now().Add(closeGrace)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		r.log.Debug("close frame not sent", logger.Fields(logger.FieldError, err.Error()))
	}
	if err := conn.Close(); err != nil {
		errs = append(errs, err)
	}
	r.wg.Wait()

	r.mu.Lock()
	r.conn, r.capture, r.cancelCapture = nil, nil, nil
	r.closing = false
	r.mu.Unlock()

	r.log.Info("room disconnected")
	return errors.Join(errs...)
}

func (r *Room) readLoop(conn *websocket.Conn) {
	defer r.wg.Done()
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if r.isClosing() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			r.emit(Event{Kind: EventDisconnected, Err: err})
			return
		}
		r.log.Debug("signal message", logger.Fields("bytes", len(payload)))
	}
}

func (r *Room) pump(session CaptureSession) {
	defer r.wg.Done()
	buf := make([]byte, r.audio.FrameSize())
	for {
		n, err := session.Read(buf)
		if n > 0 {
			if tapErr := r.tap.WriteAudio(buf[:n]); tapErr != nil {
				r.log.Debug("tap rejected frame", logger.Fields(logger.FieldError, tapErr.Error()))
			}
		}
		if err != nil {
			if r.isClosing() {
				return
			}
			if err == io.EOF {
				err = errors.New("capture ended")
			}
			r.emit(Event{Kind: EventMediaDevicesError, Err: fmt.Errorf("%w: %v", ErrMediaDevices, err)})
			return
		}
	}
}

func (r *Room) isClosing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closing
}

func (r *Room) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		r.log.Warn("room event dropped", logger.Fields("event", ev.Kind.String()))
	}
}

// redact masks the access token in a signalling URL.
func redact(signalURL string) string {
	u, err := url.Parse(signalURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	if token := q.Get("access_token"); token != "" {
		q.Set("access_token", util.Mask(token, 6))
		u.RawQuery = q.Encode()
	}
	return u.String()
}
