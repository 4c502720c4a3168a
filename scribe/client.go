// Package scribe is the client for the remote transcription and
// prescription service.
package scribe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kbukum/medscribe/httpclient"
	"github.com/kbukum/medscribe/logger"
	"github.com/kbukum/medscribe/prescription"
	"github.com/kbukum/medscribe/transcript"
)

// ServiceName identifies the scribe service in errors and logs.
const ServiceName = "scribe"

// Client calls the scribe service. Errors wrap *httpclient.Error.
type Client struct {
	http   *httpclient.Client
	roomID string
}

// New creates a client from cfg.
func New(cfg Config, opts ...httpclient.Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hc, err := httpclient.New(httpclient.Config{
		Name:    ServiceName,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Headers: map[string]string{"Content-Type": "application/json"},
	}, append([]httpclient.Option{httpclient.WithLogger(logger.WithComponent(ServiceName))}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Client{http: hc, roomID: cfg.RoomID}, nil
}

// ExtractResult is the outcome of a conversation analysis.
type ExtractResult struct {
	Success bool                    `json:"success"`
	Data    *prescription.Extracted `json:"extracted_data"`
}

type savedResponse struct {
	ID prescription.ID `json:"id"`
}

type savedList struct {
	SavedPrescriptions []prescription.Saved `json:"saved_prescriptions"`
}

type transcriptList struct {
	Transcriptions []transcript.Segment `json:"transcriptions"`
}

type extractRequest struct {
	RoomID string `json:"room_id"`
}

// Clear discards all server-side conversation state. Any 2xx body is
// accepted.
func (c *Client) Clear(ctx context.Context) error {
	if _, err := c.http.Do(ctx, httpclient.Request{Method: http.MethodPost, Path: "/clear"}); err != nil {
		return fmt.Errorf("scribe: clear: %w", err)
	}
	return nil
}

// SavePrescription persists r and returns the assigned id.
func (c *Client) SavePrescription(ctx context.Context, r prescription.Record) (prescription.ID, error) {
	resp, err := httpclient.Post[savedResponse](c.http, ctx, "/save-prescription", r)
	if err != nil {
		return "", fmt.Errorf("scribe: save prescription: %w", err)
	}
	return resp.Data.ID, nil
}

// SavedPrescriptions lists persisted records.
func (c *Client) SavedPrescriptions(ctx context.Context) ([]prescription.Saved, error) {
	resp, err := httpclient.Get[savedList](c.http, ctx, "/saved-info")
	if err != nil {
		return nil, fmt.Errorf("scribe: list saved prescriptions: %w", err)
	}
	if resp.Data.SavedPrescriptions == nil {
		return []prescription.Saved{}, nil
	}
	return resp.Data.SavedPrescriptions, nil
}

// DeleteSavedPrescription removes the record with id.
func (c *Client) DeleteSavedPrescription(ctx context.Context, id prescription.ID) error {
	path := "/saved-info/" + url.PathEscape(string(id))
	if _, err := c.http.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: path}); err != nil {
		return fmt.Errorf("scribe: delete saved prescription %s: %w", id, err)
	}
	return nil
}

// ExtractFromConversation asks the service to analyse the configured room.
func (c *Client) ExtractFromConversation(ctx context.Context) (*ExtractResult, error) {
	resp, err := httpclient.Post[ExtractResult](c.http, ctx, "/extract-from-conversation", extractRequest{RoomID: c.roomID})
	if err != nil {
		return nil, fmt.Errorf("scribe: extract from conversation: %w", err)
	}
	return &resp.Data, nil
}

// Transcriptions returns the full transcript so far.
func (c *Client) Transcriptions(ctx context.Context) ([]transcript.Segment, error) {
	resp, err := httpclient.Get[transcriptList](c.http, ctx, "/transcriptions")
	if err != nil {
		return nil, fmt.Errorf("scribe: transcriptions: %w", err)
	}
	return resp.Data.Transcriptions, nil
}
