package session

import (
	"time"

	"github.com/kbukum/medscribe/prescription"
	"github.com/kbukum/medscribe/transcript"
)

// Status is the lifecycle phase of the orchestrator.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusConnecting    Status = "connecting"
	StatusConnected     Status = "connected"
	StatusDisconnecting Status = "disconnecting"
)

// Event types published by the orchestrator.
const (
	EventState       = "state"
	EventForm        = "form"
	EventTranscripts = "transcripts"
	EventSaved       = "saved"
	EventNotice      = "notice"
)

// DeviceFailureMessage is shown when the microphone cannot be acquired.
const DeviceFailureMessage = "Error acquiring camera or microphone permissions. " +
	"Please make sure you grant the necessary permissions in your browser and reload the tab"

// NoticeKind classifies user-facing notices.
type NoticeKind string

const (
	NoticeError        NoticeKind = "error"
	NoticeDevice       NoticeKind = "device"
	NoticeDisconnected NoticeKind = "disconnected"
)

// Notice is a message for the user. A blocking notice stays in the state
// until the next successful Start.
type Notice struct {
	Kind     NoticeKind `json:"kind"`
	Message  string     `json:"message"`
	Blocking bool       `json:"blocking"`
}

// Connection describes the joined room.
type Connection struct {
	ServerURL       string `json:"serverUrl"`
	RoomName        string `json:"roomName"`
	ParticipantName string `json:"participantName"`
}

// StatusView is the payload of the state event.
type StatusView struct {
	Status         Status      `json:"status"`
	Connection     *Connection `json:"connection,omitempty"`
	Saving         bool        `json:"saving"`
	LastExtraction *time.Time  `json:"lastExtraction,omitempty"`
	Notice         *Notice     `json:"notice,omitempty"`
}

// State is a full snapshot of the orchestrator.
type State struct {
	StatusView
	Form        prescription.Record  `json:"form"`
	Transcripts []transcript.Segment `json:"transcripts"`
	Saved       []prescription.Saved `json:"saved"`
}
