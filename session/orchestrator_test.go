package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/medscribe/connection"
	apperrors "github.com/kbukum/medscribe/errors"
	"github.com/kbukum/medscribe/logger"
	"github.com/kbukum/medscribe/prescription"
	"github.com/kbukum/medscribe/rtc"
	"github.com/kbukum/medscribe/scribe"
	"github.com/kbukum/medscribe/transcript"
)

type fakeScribe struct {
	mu          sync.Mutex
	clears      int
	clearErr    error
	saves       []prescription.Record
	deleted     []prescription.ID
	saved       []prescription.Saved
	extracted   *prescription.Extracted
	segments    []transcript.Segment
	saveErr     error
	deleteErr   error
	savedErr    error
	saveRelease chan struct{}
}

func (f *fakeScribe) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return f.clearErr
}

func (f *fakeScribe) SavePrescription(_ context.Context, r prescription.Record) (prescription.ID, error) {
	if f.saveRelease != nil {
		<-f.saveRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, r)
	if f.saveErr != nil {
		return "", f.saveErr
	}
	return prescription.ID(fmt.Sprintf("rx-%d", len(f.saves))), nil
}

func (f *fakeScribe) SavedPrescriptions(context.Context) ([]prescription.Saved, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved, f.savedErr
}

func (f *fakeScribe) DeleteSavedPrescription(_ context.Context, id prescription.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *fakeScribe) ExtractFromConversation(context.Context) (*scribe.ExtractResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.extracted == nil {
		return &scribe.ExtractResult{Success: false}, nil
	}
	data := *f.extracted
	return &scribe.ExtractResult{Success: true, Data: &data}, nil
}

func (f *fakeScribe) Transcriptions(context.Context) ([]transcript.Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.segments, nil
}

func (f *fakeScribe) clearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}

func (f *fakeScribe) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

type fakeCreds struct {
	err error
}

func (f *fakeCreds) Fetch(context.Context) (*connection.Details, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &connection.Details{
		ServerURL:        "wss://rtc.example.com",
		RoomName:         "web-agent",
		ParticipantName:  "user-42",
		ParticipantToken: "token-42",
	}, nil
}

type fakeRoom struct {
	mu          sync.Mutex
	token       string
	connected   bool
	disconnects int
	enableErr   error
	// enableEvent is raised while the microphone is being enabled.
	enableEvent *rtc.Event
	events      chan rtc.Event
}

func newFakeRoom() *fakeRoom {
	return &fakeRoom{events: make(chan rtc.Event, 4)}
}

func (r *fakeRoom) Connect(_ context.Context, _, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = token
	r.connected = true
	return nil
}

func (r *fakeRoom) EnableMicrophone(context.Context) error {
	if r.enableEvent != nil {
		r.events <- *r.enableEvent
	}
	return r.enableErr
}

func (r *fakeRoom) Disconnect(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = false
	r.disconnects++
	return nil
}

func (r *fakeRoom) Events() <-chan rtc.Event { return r.events }

func (r *fakeRoom) state() (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected, r.disconnects
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(eventType string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == eventType {
			n++
		}
	}
	return n
}

func newTestOrchestrator(t *testing.T, sc *fakeScribe, creds *fakeCreds, room *fakeRoom, opts ...Option) *Orchestrator {
	t.Helper()
	cfg := Config{ExtractInterval: 10 * time.Millisecond, TranscriptInterval: 10 * time.Millisecond}
	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	o, err := New(cfg, sc, creds, room, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { o.Shutdown(context.Background()) })
	return o
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func completeForm() prescription.Record {
	return prescription.Record{
		DoctorName:   "Dr. Ada",
		PatientName:  "Grace",
		PatientID:    "P-1",
		PharmacyName: "Central",
		Medicine:     "Amoxicillin",
		Dosage:       "500mg",
	}
}

func fillForm(t *testing.T, o *Orchestrator, r prescription.Record) {
	t.Helper()
	for _, name := range prescription.Fields {
		v, _ := r.Get(name)
		if _, err := o.SetField(name, v); err != nil {
			t.Fatalf("SetField(%s): %v", name, err)
		}
	}
}

func TestNewRequiresPorts(t *testing.T) {
	if _, err := New(Config{}, nil, &fakeCreds{}, newFakeRoom()); err == nil {
		t.Fatal("expected error without scribe")
	}
	if _, err := New(Config{ExtractInterval: -1}, &fakeScribe{}, &fakeCreds{}, newFakeRoom()); err == nil {
		t.Fatal("expected error for negative interval")
	}
}

func TestStartPollsAndDisconnectResets(t *testing.T) {
	sc := &fakeScribe{
		extracted: &prescription.Extracted{Medicine: "Amoxicillin"},
		segments:  []transcript.Segment{{ID: "1", Text: "hello", Speaker: transcript.SpeakerUser, Timestamp: 1000}},
	}
	room := newFakeRoom()
	pub := &recordingPublisher{}
	o := newTestOrchestrator(t, sc, &fakeCreds{}, room, WithPublisher(pub))

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := o.State()
	if st.Status != StatusConnected || st.Connection == nil || st.Connection.RoomName != "web-agent" {
		t.Fatalf("unexpected state after start: %+v", st.StatusView)
	}
	if connected, _ := room.state(); !connected || room.token != "token-42" {
		t.Fatalf("room connected=%v token=%q", connected, room.token)
	}
	if sc.clearCount() != 1 {
		t.Errorf("expected clear before connecting, got %d", sc.clearCount())
	}

	eventually(t, "extracted medicine", func() bool { return o.State().Form.Medicine == "Amoxicillin" })
	eventually(t, "transcripts", func() bool { return len(o.State().Transcripts) == 1 })
	if o.State().LastExtraction == nil {
		t.Error("expected last extraction time")
	}

	if err := o.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	st = o.State()
	if st.Status != StatusIdle || st.Connection != nil {
		t.Errorf("unexpected state after disconnect: %+v", st.StatusView)
	}
	if !st.Form.IsEmpty() || len(st.Transcripts) != 0 {
		t.Errorf("expected local reset, got form=%+v transcripts=%d", st.Form, len(st.Transcripts))
	}
	if connected, n := room.state(); connected || n != 1 {
		t.Errorf("room connected=%v disconnects=%d", connected, n)
	}
	if sc.clearCount() != 2 {
		t.Errorf("expected clear on teardown, got %d", sc.clearCount())
	}
	if pub.count(EventForm) == 0 || pub.count(EventTranscripts) == 0 || pub.count(EventState) == 0 {
		t.Errorf("expected published events, got %v", pub.events)
	}

	// Pollers are stopped: later remote changes are not mirrored.
	sc.mu.Lock()
	sc.extracted = &prescription.Extracted{Dosage: "1g"}
	sc.mu.Unlock()
	time.Sleep(40 * time.Millisecond)
	if o.State().Form.Dosage != "" {
		t.Error("extraction applied after disconnect")
	}
}

func TestExtractionFillsOnlyBlankFields(t *testing.T) {
	sc := &fakeScribe{extracted: &prescription.Extracted{Medicine: "Ibuprofen", Dosage: "200mg"}}
	o := newTestOrchestrator(t, sc, &fakeCreds{}, newFakeRoom())

	if _, err := o.SetField(prescription.FieldMedicine, "Paracetamol"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	eventually(t, "dosage", func() bool { return o.State().Form.Dosage == "200mg" })
	if got := o.State().Form.Medicine; got != "Paracetamol" {
		t.Errorf("user edit overwritten: %q", got)
	}
}

func TestApplyExtractionDiscardedWhileSaving(t *testing.T) {
	o := newTestOrchestrator(t, &fakeScribe{}, &fakeCreds{}, newFakeRoom())
	o.saving = true
	o.applyExtraction(context.Background(), prescription.Extracted{Medicine: "Aspirin"})
	if o.State().Form.Medicine != "" {
		t.Error("extraction applied during save")
	}

	o.saving = false
	o.applyExtraction(context.Background(), prescription.Extracted{Medicine: "Aspirin"})
	if o.State().Form.Medicine != "Aspirin" {
		t.Error("extraction not applied after save")
	}
}

func TestStartFetchFailure(t *testing.T) {
	room := newFakeRoom()
	pub := &recordingPublisher{}
	o := newTestOrchestrator(t, &fakeScribe{}, &fakeCreds{err: apperrors.Configuration("LIVEKIT_URL is not defined")}, room, WithPublisher(pub))

	err := o.Start(context.Background())
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Message != "LIVEKIT_URL is not defined" {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if connected, _ := room.state(); connected {
		t.Error("room should not be connected")
	}
	st := o.State()
	if st.Status != StatusIdle || st.Notice == nil || st.Notice.Kind != NoticeError || st.Notice.Blocking {
		t.Errorf("unexpected state %+v notice %+v", st.StatusView, st.Notice)
	}
	if pub.count(EventNotice) != 1 {
		t.Errorf("expected one notice event, got %d", pub.count(EventNotice))
	}
}

func TestStartMicrophoneFailure(t *testing.T) {
	room := newFakeRoom()
	room.enableErr = fmt.Errorf("%w: no input device", rtc.ErrMediaDevices)
	o := newTestOrchestrator(t, &fakeScribe{}, &fakeCreds{}, room)

	err := o.Start(context.Background())
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeMediaDevices {
		t.Fatalf("expected media devices error, got %v", err)
	}
	if connected, n := room.state(); connected || n != 1 {
		t.Errorf("expected room disconnected after failure, connected=%v disconnects=%d", connected, n)
	}
	st := o.State()
	if st.Notice == nil || !st.Notice.Blocking || st.Notice.Message != DeviceFailureMessage {
		t.Errorf("unexpected notice %+v", st.Notice)
	}
}

func TestDeviceFailureDuringSessionEndsIt(t *testing.T) {
	sc := &fakeScribe{}
	room := newFakeRoom()
	o := newTestOrchestrator(t, sc, &fakeCreds{}, room)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	room.events <- rtc.Event{Kind: rtc.EventMediaDevicesError, Err: rtc.ErrMediaDevices}

	eventually(t, "device notice", func() bool {
		st := o.State()
		return st.Status == StatusIdle && st.Notice != nil && st.Notice.Kind == NoticeDevice
	})
	if connected, _ := room.state(); connected {
		t.Error("room still connected")
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("restart after device failure: %v", err)
	}
	if o.State().Notice != nil {
		t.Error("expected notice cleared by a new start")
	}
}

func TestRemoteDisconnectEndsSession(t *testing.T) {
	room := newFakeRoom()
	o := newTestOrchestrator(t, &fakeScribe{}, &fakeCreds{}, room)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	room.events <- rtc.Event{Kind: rtc.EventDisconnected}

	eventually(t, "idle", func() bool { return o.Status() == StatusIdle })
	if n := o.State().Notice; n == nil || n.Kind != NoticeDisconnected {
		t.Errorf("unexpected notice %+v", n)
	}
}

func TestEventDuringMicrophoneSetupIsHandled(t *testing.T) {
	room := newFakeRoom()
	room.enableEvent = &rtc.Event{Kind: rtc.EventDisconnected}
	o := newTestOrchestrator(t, &fakeScribe{}, &fakeCreds{}, room)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	eventually(t, "idle", func() bool { return o.Status() == StatusIdle })
	if n := o.State().Notice; n == nil || n.Kind != NoticeDisconnected {
		t.Errorf("unexpected notice %+v", n)
	}
}

func TestStaleEventIgnoredOnStart(t *testing.T) {
	room := newFakeRoom()
	room.events <- rtc.Event{Kind: rtc.EventDisconnected}
	o := newTestOrchestrator(t, &fakeScribe{}, &fakeCreds{}, room)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if o.Status() != StatusConnected {
		t.Errorf("status = %s, want connected", o.Status())
	}
}

func TestClearFailureIsBestEffort(t *testing.T) {
	sc := &fakeScribe{
		clearErr:  errors.New("scribe unavailable"),
		extracted: &prescription.Extracted{Medicine: "Amoxicillin"},
		segments:  []transcript.Segment{{ID: "1", Text: "hello", Speaker: transcript.SpeakerUser}},
	}
	room := newFakeRoom()
	o := newTestOrchestrator(t, sc, &fakeCreds{}, room)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if o.Status() != StatusConnected {
		t.Fatalf("status = %s, want connected", o.Status())
	}
	eventually(t, "extracted medicine", func() bool { return o.State().Form.Medicine == "Amoxicillin" })
	eventually(t, "transcripts", func() bool { return len(o.State().Transcripts) == 1 })

	if err := o.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	st := o.State()
	if st.Status != StatusIdle || !st.Form.IsEmpty() || len(st.Transcripts) != 0 {
		t.Errorf("expected reset despite clear failure: status=%s form=%+v transcripts=%d",
			st.Status, st.Form, len(st.Transcripts))
	}
	if connected, n := room.state(); connected || n != 1 {
		t.Errorf("room connected=%v disconnects=%d", connected, n)
	}
	if sc.clearCount() != 2 {
		t.Errorf("clear calls = %d, want 2", sc.clearCount())
	}
}

func TestStartTearsDownActiveSession(t *testing.T) {
	room := newFakeRoom()
	o := newTestOrchestrator(t, &fakeScribe{}, &fakeCreds{}, room)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if connected, n := room.state(); !connected || n != 1 {
		t.Errorf("connected=%v disconnects=%d", connected, n)
	}
}

func TestSaveRejectsIncompleteForm(t *testing.T) {
	sc := &fakeScribe{}
	o := newTestOrchestrator(t, sc, &fakeCreds{}, newFakeRoom())
	o.SetField(prescription.FieldMedicine, "Amoxicillin")
	o.SetField(prescription.FieldDosage, "   ")

	_, err := o.Save(context.Background())
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeInvalidInput {
		t.Fatalf("expected validation error, got %v", err)
	}
	if sc.saveCount() != 0 {
		t.Error("incomplete form reached the scribe service")
	}
	if o.State().Form.Medicine != "Amoxicillin" {
		t.Error("form should be kept after rejection")
	}
}

func TestSaveSuccess(t *testing.T) {
	sc := &fakeScribe{}
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	pub := &recordingPublisher{}
	o := newTestOrchestrator(t, sc, &fakeCreds{}, newFakeRoom(), WithClock(func() time.Time { return at }), WithPublisher(pub))
	fillForm(t, o, completeForm())

	saved, err := o.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID != "rx-1" || saved.Medicine != "Amoxicillin" || saved.Timestamp != "2026-03-01T09:30:00Z" {
		t.Errorf("unexpected saved entry %+v", saved)
	}
	st := o.State()
	if !st.Form.IsEmpty() {
		t.Errorf("expected form reset, got %+v", st.Form)
	}
	if len(st.Saved) != 1 || st.Saved[0].ID != "rx-1" {
		t.Errorf("saved list = %+v", st.Saved)
	}
	if pub.count(EventSaved) != 1 {
		t.Errorf("expected saved event, got %d", pub.count(EventSaved))
	}
}

func TestSaveFailureKeepsForm(t *testing.T) {
	sc := &fakeScribe{saveErr: fmt.Errorf("connection refused")}
	o := newTestOrchestrator(t, sc, &fakeCreds{}, newFakeRoom())
	fillForm(t, o, completeForm())

	_, err := o.Save(context.Background())
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeExternalService {
		t.Fatalf("expected external service error, got %v", err)
	}
	st := o.State()
	if st.Form != completeForm() || len(st.Saved) != 0 || st.Saving {
		t.Errorf("unexpected state after failed save: %+v", st)
	}
}

func TestConcurrentSaveConflicts(t *testing.T) {
	sc := &fakeScribe{saveRelease: make(chan struct{})}
	o := newTestOrchestrator(t, sc, &fakeCreds{}, newFakeRoom())
	fillForm(t, o, completeForm())

	done := make(chan error, 1)
	go func() {
		_, err := o.Save(context.Background())
		done <- err
	}()
	eventually(t, "saving flag", func() bool { return o.State().Saving })

	_, err := o.Save(context.Background())
	if appErr, ok := apperrors.AsAppError(err); !ok || appErr.Code != apperrors.ErrCodeConflict {
		t.Errorf("expected conflict, got %v", err)
	}
	close(sc.saveRelease)
	if err := <-done; err != nil {
		t.Fatalf("first save: %v", err)
	}
}

func TestDelete(t *testing.T) {
	sc := &fakeScribe{saved: []prescription.Saved{
		prescription.NewSaved("a", completeForm(), time.Now()),
		prescription.NewSaved("b", completeForm(), time.Now()),
	}}
	o := newTestOrchestrator(t, sc, &fakeCreds{}, newFakeRoom())
	if _, err := o.RefreshSaved(context.Background()); err != nil {
		t.Fatalf("RefreshSaved: %v", err)
	}

	if err := o.Delete(context.Background(), "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := o.Saved(); len(got) != 1 || got[0].ID != "b" {
		t.Errorf("saved after delete = %+v", got)
	}

	sc.deleteErr = fmt.Errorf("boom")
	if err := o.Delete(context.Background(), "b"); err == nil {
		t.Fatal("expected delete error")
	}
	if got := o.Saved(); len(got) != 1 {
		t.Errorf("failed delete changed the list: %+v", got)
	}

	if err := o.Delete(context.Background(), ""); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestRefreshSavedFailureKeepsList(t *testing.T) {
	sc := &fakeScribe{saved: []prescription.Saved{prescription.NewSaved("a", completeForm(), time.Now())}}
	o := newTestOrchestrator(t, sc, &fakeCreds{}, newFakeRoom())
	o.RefreshSaved(context.Background())

	sc.savedErr = fmt.Errorf("unavailable")
	if _, err := o.RefreshSaved(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(o.Saved()) != 1 {
		t.Error("list should be kept on refresh failure")
	}
}

func TestSetFieldUnknown(t *testing.T) {
	o := newTestOrchestrator(t, &fakeScribe{}, &fakeCreds{}, newFakeRoom())
	if _, err := o.SetField("frequency", "daily"); err == nil {
		t.Fatal("expected error for unknown field")
	}
	o.SetField(prescription.FieldDosage, "5ml")
	o.ClearForm()
	if !o.State().Form.IsEmpty() {
		t.Error("ClearForm left values behind")
	}
}

func TestComponentLifecycle(t *testing.T) {
	sc := &fakeScribe{saved: []prescription.Saved{prescription.NewSaved("a", completeForm(), time.Now())}}
	room := newFakeRoom()
	o := newTestOrchestrator(t, sc, &fakeCreds{}, room)
	c := NewComponent(o)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(o.Saved()) != 1 {
		t.Error("expected saved list loaded on start")
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("session Start: %v", err)
	}
	if h := c.Health(context.Background()); h.Message != string(StatusConnected) {
		t.Errorf("health = %+v", h)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if connected, _ := room.state(); connected {
		t.Error("expected room disconnected on stop")
	}
}
