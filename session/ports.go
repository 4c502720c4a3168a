package session

import (
	"context"

	"github.com/kbukum/medscribe/connection"
	"github.com/kbukum/medscribe/prescription"
	"github.com/kbukum/medscribe/rtc"
	"github.com/kbukum/medscribe/scribe"
	"github.com/kbukum/medscribe/transcript"
)

// Scribe is the remote transcription and prescription service.
type Scribe interface {
	Clear(ctx context.Context) error
	SavePrescription(ctx context.Context, r prescription.Record) (prescription.ID, error)
	SavedPrescriptions(ctx context.Context) ([]prescription.Saved, error)
	DeleteSavedPrescription(ctx context.Context, id prescription.ID) error
	ExtractFromConversation(ctx context.Context) (*scribe.ExtractResult, error)
	Transcriptions(ctx context.Context) ([]transcript.Segment, error)
}

// Credentials supplies connection details for a new session.
type Credentials interface {
	Fetch(ctx context.Context) (*connection.Details, error)
}

// Room is the realtime conferencing session.
type Room interface {
	Connect(ctx context.Context, serverURL, token string) error
	EnableMicrophone(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Events() <-chan rtc.Event
}

// Publisher broadcasts orchestrator events to observers.
type Publisher interface {
	Publish(eventType string, data any)
}

var (
	_ Scribe      = (*scribe.Client)(nil)
	_ Credentials = (*connection.Client)(nil)
	_ Credentials = (*connection.Issuer)(nil)
	_ Room        = (*rtc.Room)(nil)
)

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}
