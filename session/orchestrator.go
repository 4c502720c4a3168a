// Package session drives a consultation: it connects the realtime room,
// polls the scribe service for transcripts and extracted prescription
// fields, and owns the in-progress form and the saved-prescription list.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/kbukum/medscribe/errors"
	"github.com/kbukum/medscribe/httpclient"
	"github.com/kbukum/medscribe/logger"
	"github.com/kbukum/medscribe/observability"
	"github.com/kbukum/medscribe/periodic"
	"github.com/kbukum/medscribe/prescription"
	"github.com/kbukum/medscribe/rtc"
	"github.com/kbukum/medscribe/transcript"
)

const (
	taskExtraction  = "extraction"
	taskTranscripts = "transcripts"
)

// Orchestrator is safe for concurrent use.
//
// Lifecycle operations (Start, Disconnect, device failure handling) are
// serialized by opMu. State is guarded by mu. Poller Start/Stop must never
// be called with mu held: a poller commit takes mu while holding the
// task's own lock.
type Orchestrator struct {
	cfg     Config
	scribe  Scribe
	creds   Credentials
	room    Room
	pub     Publisher
	log     *logger.Logger
	metrics *observability.Metrics
	now     func() time.Time

	opMu sync.Mutex

	mu             sync.Mutex
	base           context.Context
	status         Status
	conn           *Connection
	form           prescription.Record
	saved          []prescription.Saved
	mirror         transcript.Mirror
	saving         bool
	lastExtraction time.Time
	notice         *Notice
	gen            uint64
	cancel         context.CancelFunc
	tasks          []*periodic.Task
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.pub = p }
}

func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an idle orchestrator.
func New(cfg Config, sc Scribe, creds Credentials, room Room, opts ...Option) (*Orchestrator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sc == nil || creds == nil || room == nil {
		return nil, errors.New("session: scribe, credentials and room are required")
	}
	o := &Orchestrator{
		cfg:     cfg,
		scribe:  sc,
		creds:   creds,
		room:    room,
		pub:     nopPublisher{},
		log:     logger.Get("session"),
		metrics: observability.DefaultMetrics(),
		now:     time.Now,
		base:    context.Background(),
		status:  StatusIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Start opens a new session. An active session is torn down first.
func (o *Orchestrator) Start(ctx context.Context) (err error) {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	ctx, span := observability.StartSpan(ctx, "session.start")
	defer func() {
		observability.EndSpan(span, err)
		o.metrics.SessionStarted(ctx, err)
	}()

	if o.active() {
		o.teardown(ctx, "restart")
	}

	o.mu.Lock()
	o.status = StatusConnecting
	o.notice = nil
	o.mu.Unlock()
	o.publishState()

	if err := o.scribe.Clear(ctx); err != nil {
		o.log.WithContext(ctx).Warn("failed to clear remote session state", logger.ErrorFields("clear", err))
	}

	details, err := o.creds.Fetch(ctx)
	if err != nil {
		return o.startFailed(ctx, "fetch connection details", err)
	}
	// Events left over from an earlier session are dropped; anything the
	// room raises from here on belongs to this one.
	o.drainRoomEvents()
	if err := o.room.Connect(ctx, details.ServerURL, details.ParticipantToken); err != nil {
		return o.startFailed(ctx, "connect room", err)
	}
	if err := o.room.EnableMicrophone(ctx); err != nil {
		if derr := o.room.Disconnect(ctx); derr != nil {
			o.log.WithContext(ctx).Warn("failed to disconnect room", logger.ErrorFields("disconnect", derr))
		}
		if errors.Is(err, rtc.ErrMediaDevices) {
			o.raiseDeviceNotice(ctx, err)
			return apperrors.MediaDevices(DeviceFailureMessage, err)
		}
		return o.startFailed(ctx, "enable microphone", err)
	}

	o.mu.Lock()
	o.gen++
	gen := o.gen
	sessionCtx, cancel := context.WithCancel(o.base)
	o.cancel = cancel
	o.conn = &Connection{
		ServerURL:       details.ServerURL,
		RoomName:        details.RoomName,
		ParticipantName: details.ParticipantName,
	}
	o.status = StatusConnected
	tasks := []*periodic.Task{
		periodic.New(taskExtraction, o.cfg.ExtractInterval, o.extractCycle,
			periodic.WithLogger(o.log), periodic.WithMetrics(o.metrics)),
		periodic.New(taskTranscripts, o.cfg.TranscriptInterval, o.transcriptCycle,
			periodic.WithLogger(o.log), periodic.WithMetrics(o.metrics)),
	}
	o.tasks = tasks
	o.mu.Unlock()

	go o.watchRoom(sessionCtx, gen)
	for _, t := range tasks {
		if err := t.Start(sessionCtx); err != nil {
			o.log.Error("failed to start poller", logger.ErrorFields(t.Name(), err))
		}
	}

	o.log.WithContext(ctx).Info("session started", logger.Fields(
		logger.FieldRoom, details.RoomName,
		logger.FieldParticipant, details.ParticipantName,
	))
	o.publishState()
	return nil
}

func (o *Orchestrator) startFailed(ctx context.Context, op string, err error) error {
	o.log.WithContext(ctx).Error("session start failed", logger.ErrorFields(op, err))

	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = remoteError(err)
	}
	o.mu.Lock()
	o.status = StatusIdle
	o.conn = nil
	o.notice = &Notice{Kind: NoticeError, Message: appErr.Message}
	o.mu.Unlock()
	o.publishState()
	o.pub.Publish(EventNotice, o.currentNotice())
	return appErr
}

// Disconnect ends the active session. Without a session it still clears
// the remote state and resets the local form and transcripts.
func (o *Orchestrator) Disconnect(ctx context.Context) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	ctx, span := observability.StartSpan(ctx, "session.disconnect")
	o.teardown(ctx, "disconnect")
	observability.EndSpan(span, nil)
	o.metrics.Operation(ctx, "disconnect", nil)
	return nil
}

// ClearAll discards the in-progress consultation.
func (o *Orchestrator) ClearAll(ctx context.Context) error {
	return o.Disconnect(ctx)
}

// Shutdown tears down the active session, if any. Used on process exit.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.opMu.Lock()
	defer o.opMu.Unlock()
	if o.active() {
		o.teardown(ctx, "shutdown")
	}
}

// teardown must be called with opMu held and mu released.
func (o *Orchestrator) teardown(ctx context.Context, reason string) {
	o.mu.Lock()
	tasks := o.tasks
	cancel := o.cancel
	wasActive := o.status == StatusConnected
	o.tasks = nil
	o.cancel = nil
	if wasActive {
		o.status = StatusDisconnecting
	}
	o.mu.Unlock()

	if wasActive {
		o.publishState()
	}
	for _, t := range tasks {
		t.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if wasActive {
		if err := o.room.Disconnect(ctx); err != nil {
			o.log.WithContext(ctx).Warn("failed to disconnect room", logger.ErrorFields("disconnect", err))
		}
	}
	if err := o.scribe.Clear(ctx); err != nil {
		o.log.WithContext(ctx).Warn("failed to clear remote session state", logger.ErrorFields("clear", err))
	}

	o.mu.Lock()
	o.status = StatusIdle
	o.conn = nil
	o.form = prescription.Record{}
	o.lastExtraction = time.Time{}
	o.mirror.Reset()
	form := o.form
	o.mu.Unlock()

	o.log.WithContext(ctx).Info("session ended", logger.Fields("reason", reason))
	o.publishState()
	o.pub.Publish(EventForm, form)
	o.pub.Publish(EventTranscripts, []transcript.Segment{})

	if _, err := o.RefreshSaved(ctx); err != nil {
		o.log.WithContext(ctx).Debug("saved list not refreshed after teardown", logger.ErrorFields("refresh_saved", err))
	}
}

func (o *Orchestrator) active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status == StatusConnected
}

func (o *Orchestrator) drainRoomEvents() {
	for {
		select {
		case _, ok := <-o.room.Events():
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (o *Orchestrator) watchRoom(ctx context.Context, gen uint64) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-o.room.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case rtc.EventMediaDevicesError:
				go o.endSession(gen, ev.Err, true)
				return
			case rtc.EventDisconnected:
				go o.endSession(gen, ev.Err, false)
				return
			}
		}
	}
}

// endSession reacts to a room event for session gen. Events from an
// earlier session are ignored.
func (o *Orchestrator) endSession(gen uint64, cause error, deviceFailure bool) {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	o.mu.Lock()
	current := o.gen == gen && o.status == StatusConnected
	ctx := o.base
	o.mu.Unlock()
	if !current {
		return
	}

	if deviceFailure {
		o.log.Error("media device failure, ending session", logger.ErrorFields("media_devices", cause))
		o.teardown(ctx, "media devices")
		o.raiseDeviceNotice(ctx, cause)
		return
	}

	o.log.Warn("room disconnected unexpectedly", logger.ErrorFields("room", cause))
	o.teardown(ctx, "room disconnected")
	o.setNotice(&Notice{Kind: NoticeDisconnected, Message: "The conversation was disconnected."})
}

func (o *Orchestrator) raiseDeviceNotice(ctx context.Context, cause error) {
	o.log.WithContext(ctx).Error("media devices unavailable", logger.ErrorFields("enable_microphone", cause))
	o.mu.Lock()
	o.status = StatusIdle
	o.conn = nil
	o.mu.Unlock()
	o.setNotice(&Notice{Kind: NoticeDevice, Message: DeviceFailureMessage, Blocking: true})
}

func (o *Orchestrator) setNotice(n *Notice) {
	o.mu.Lock()
	o.notice = n
	o.mu.Unlock()
	o.publishState()
	o.pub.Publish(EventNotice, n)
}

func (o *Orchestrator) currentNotice() *Notice {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.notice
}

func (o *Orchestrator) extractCycle(ctx context.Context) (func(), error) {
	res, err := o.scribe.ExtractFromConversation(ctx)
	if err != nil {
		return nil, err
	}
	if res == nil || !res.Success || res.Data == nil {
		return nil, nil
	}
	candidate := *res.Data
	return func() { o.applyExtraction(ctx, candidate) }, nil
}

func (o *Orchestrator) applyExtraction(ctx context.Context, candidate prescription.Extracted) {
	o.mu.Lock()
	if o.saving {
		o.mu.Unlock()
		o.log.Debug("save in flight, extraction result discarded")
		return
	}
	merged, changed := prescription.MergeExtracted(o.form, candidate)
	o.form = merged
	o.lastExtraction = o.now()
	o.mu.Unlock()

	if len(changed) == 0 {
		return
	}
	o.log.Info("merged extracted fields", logger.Fields("fields", changed))
	o.metrics.FieldsMerged(ctx, len(changed))
	o.pub.Publish(EventForm, merged)
	o.publishState()
}

func (o *Orchestrator) transcriptCycle(ctx context.Context) (func(), error) {
	segs, err := o.scribe.Transcriptions(ctx)
	if err != nil {
		return nil, err
	}
	return func() {
		o.mu.Lock()
		changed := o.mirror.Replace(segs)
		snapshot := o.mirror.Snapshot()
		o.mu.Unlock()
		if changed {
			o.pub.Publish(EventTranscripts, snapshot)
		}
	}, nil
}

// SetField edits one field of the in-progress form.
func (o *Orchestrator) SetField(name, value string) (prescription.Record, error) {
	o.mu.Lock()
	if err := o.form.Set(name, value); err != nil {
		o.mu.Unlock()
		return prescription.Record{}, err
	}
	form := o.form
	o.mu.Unlock()

	o.pub.Publish(EventForm, form)
	return form, nil
}

// ClearForm resets the in-progress form.
func (o *Orchestrator) ClearForm() {
	o.mu.Lock()
	o.form = prescription.Record{}
	o.mu.Unlock()
	o.pub.Publish(EventForm, prescription.Record{})
}

// Save submits the form. An incomplete form is rejected without a network
// call. On success the form is reset and the entry is appended to the
// saved list.
func (o *Orchestrator) Save(ctx context.Context) (saved prescription.Saved, err error) {
	ctx, span := observability.StartSpan(ctx, "session.save")
	defer func() {
		observability.EndSpan(span, err)
		o.metrics.Operation(ctx, "save", err)
	}()

	o.mu.Lock()
	if o.saving {
		o.mu.Unlock()
		return prescription.Saved{}, apperrors.Conflict("a save is already in progress")
	}
	form := o.form
	if err := form.Validate(); err != nil {
		o.mu.Unlock()
		return prescription.Saved{}, err
	}
	o.saving = true
	o.mu.Unlock()
	o.publishState()

	id, err := o.scribe.SavePrescription(ctx, form)

	o.mu.Lock()
	o.saving = false
	if err != nil {
		o.mu.Unlock()
		o.publishState()
		o.log.WithContext(ctx).Error("failed to save prescription", logger.ErrorFields("save", err))
		return prescription.Saved{}, remoteError(err)
	}
	saved = prescription.NewSaved(id, form, o.now())
	o.saved = append(o.saved, saved)
	o.form = prescription.Record{}
	list := cloneSaved(o.saved)
	o.mu.Unlock()

	o.log.WithContext(ctx).Info("prescription saved", logger.Fields("id", string(id)))
	o.publishState()
	o.pub.Publish(EventForm, prescription.Record{})
	o.pub.Publish(EventSaved, list)
	return saved, nil
}

// Delete removes a saved prescription remotely and then locally.
func (o *Orchestrator) Delete(ctx context.Context, id prescription.ID) (err error) {
	ctx, span := observability.StartSpan(ctx, "session.delete")
	defer func() {
		observability.EndSpan(span, err)
		o.metrics.Operation(ctx, "delete", err)
	}()

	if id == "" {
		return apperrors.MissingField("id")
	}
	if err := o.scribe.DeleteSavedPrescription(ctx, id); err != nil {
		o.log.WithContext(ctx).Error("failed to delete prescription", logger.ErrorFields("delete", err))
		if httpclient.IsNotFound(err) {
			return apperrors.NotFound("prescription", string(id)).WithCause(err)
		}
		return remoteError(err)
	}

	o.mu.Lock()
	kept := o.saved[:0]
	for _, s := range o.saved {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	o.saved = kept
	list := cloneSaved(o.saved)
	o.mu.Unlock()

	o.pub.Publish(EventSaved, list)
	return nil
}

// RefreshSaved reloads the saved list from the scribe service.
func (o *Orchestrator) RefreshSaved(ctx context.Context) ([]prescription.Saved, error) {
	list, err := o.scribe.SavedPrescriptions(ctx)
	if err != nil {
		o.log.WithContext(ctx).Warn("failed to load saved prescriptions", logger.ErrorFields("saved", err))
		return nil, remoteError(err)
	}
	o.mu.Lock()
	o.saved = cloneSaved(list)
	out := cloneSaved(o.saved)
	o.mu.Unlock()

	o.pub.Publish(EventSaved, out)
	return out, nil
}

// Saved returns the local saved list.
func (o *Orchestrator) Saved() []prescription.Saved {
	o.mu.Lock()
	defer o.mu.Unlock()
	return cloneSaved(o.saved)
}

// State returns a snapshot of the orchestrator.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return State{
		StatusView:  o.statusViewLocked(),
		Form:        o.form,
		Transcripts: o.mirror.Snapshot(),
		Saved:       cloneSaved(o.saved),
	}
}

// Status returns the current lifecycle phase.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Orchestrator) statusViewLocked() StatusView {
	v := StatusView{Status: o.status, Saving: o.saving, Notice: o.notice}
	if o.conn != nil {
		c := *o.conn
		v.Connection = &c
	}
	if !o.lastExtraction.IsZero() {
		t := o.lastExtraction
		v.LastExtraction = &t
	}
	return v
}

func (o *Orchestrator) publishState() {
	o.mu.Lock()
	v := o.statusViewLocked()
	o.mu.Unlock()
	o.pub.Publish(EventState, v)
}

func remoteError(err error) *apperrors.AppError {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	var he *httpclient.Error
	if errors.As(err, &he) {
		return he.AppError("scribe")
	}
	return apperrors.ExternalServiceError("scribe", err)
}

func cloneSaved(in []prescription.Saved) []prescription.Saved {
	out := make([]prescription.Saved, len(in))
	copy(out, in)
	return out
}
