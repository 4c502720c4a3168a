package livekit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kbukum/medscribe/auth/jwt"
)

// isoMillis matches the browser's Date.toISOString output.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type dispatchMetadata struct {
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

// TokenIssuer mints participant tokens that also dispatch an agent.
type TokenIssuer struct {
	svc       *jwt.Service[*AccessClaims]
	agentName string
	now       func() time.Time
}

// IssuerOption configures a TokenIssuer.
type IssuerOption func(*issuerOptions)

type issuerOptions struct {
	now func() time.Time
}

// WithClock overrides time.Now for token timestamps.
func WithClock(now func() time.Time) IssuerOption {
	return func(o *issuerOptions) { o.now = now }
}

// NewTokenIssuer creates an issuer from cfg. The API key and secret must be
// set.
func NewTokenIssuer(cfg Config, opts ...IssuerOption) (*TokenIssuer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := issuerOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	svc, err := jwt.NewService(jwt.Config{
		Secret: cfg.APISecret,
		Method: jwt.HS256,
		Issuer: cfg.APIKey,
		TTL:    cfg.TokenTTL,
	}, newClaims, jwt.WithClock(o.now))
	if err != nil {
		return nil, fmt.Errorf("livekit: %w", err)
	}
	return &TokenIssuer{svc: svc, agentName: cfg.AgentName, now: o.now}, nil
}

// Issue returns a signed token for identity to join room.
func (i *TokenIssuer) Issue(identity, room string) (string, error) {
	metadata, err := json.Marshal(dispatchMetadata{
		Source:    "web-frontend",
		Timestamp: i.now().UTC().Format(isoMillis),
	})
	if err != nil {
		return "", fmt.Errorf("livekit: encode dispatch metadata: %w", err)
	}

	claims := &AccessClaims{
		Video: JoinGrant(room),
		RoomConfig: &RoomConfiguration{
			Agents: []RoomAgentDispatch{{AgentName: i.agentName, Metadata: string(metadata)}},
		},
	}
	claims.Subject = identity
	claims.ID = identity

	token, err := i.svc.Issue(claims)
	if err != nil {
		return "", fmt.Errorf("livekit: %w", err)
	}
	return token, nil
}

func newClaims() *AccessClaims { return &AccessClaims{} }
