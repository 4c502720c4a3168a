package connection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/kbukum/medscribe/errors"
	"github.com/kbukum/medscribe/httpclient"
)

// Client fetches details from a remote connection-details endpoint.
type Client struct {
	http     *httpclient.Client
	endpoint string
	room     string
}

// NewClient creates a client for endpoint, which may be absolute or
// relative to the http client's base URL.
func NewClient(hc *httpclient.Client, endpoint string) *Client {
	if endpoint == "" {
		endpoint = Path
	}
	return &Client{http: hc, endpoint: endpoint}
}

// ForRoom returns a copy of c that requests room instead of the
// endpoint's default.
func (c *Client) ForRoom(room string) *Client {
	cp := *c
	cp.room = room
	return &cp
}

// Fetch requests fresh details. Every response carries a new token, so
// caches are bypassed.
func (c *Client) Fetch(ctx context.Context) (*Details, error) {
	opts := []httpclient.RequestOption{httpclient.WithHeader("Cache-Control", "no-cache")}
	if c.room != "" {
		opts = append(opts, httpclient.WithQueryParam("roomName", c.room))
	}
	resp, err := httpclient.Get[Details](c.http, ctx, c.endpoint, opts...)
	if err != nil {
		appErr := apperrors.ExternalServiceError("connection-details", err)
		var e *httpclient.Error
		if errors.As(err, &e) && len(e.Body) > 0 {
			appErr = appErr.WithDetail("reason", strings.TrimSpace(string(e.Body)))
		}
		return nil, appErr
	}
	d := resp.Data
	if d.ServerURL == "" || d.ParticipantToken == "" {
		return nil, apperrors.ExternalServiceError("connection-details",
			fmt.Errorf("incomplete connection details for room %q", d.RoomName))
	}
	return &d, nil
}
