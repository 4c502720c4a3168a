package livekit

import (
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// VideoGrant is the room permission set carried in the "video" claim.
type VideoGrant struct {
	Room           string `json:"room,omitempty"`
	RoomJoin       bool   `json:"roomJoin,omitempty"`
	CanPublish     *bool  `json:"canPublish,omitempty"`
	CanPublishData *bool  `json:"canPublishData,omitempty"`
	CanSubscribe   *bool  `json:"canSubscribe,omitempty"`
}

// RoomAgentDispatch requests that an agent join the room on creation.
type RoomAgentDispatch struct {
	AgentName string `json:"agentName,omitempty"`
	Metadata  string `json:"metadata,omitempty"`
}

// RoomConfiguration is carried in the "roomConfig" claim.
type RoomConfiguration struct {
	Agents []RoomAgentDispatch `json:"agents,omitempty"`
}

// AccessClaims is the full claim set of an access token.
type AccessClaims struct {
	gojwt.RegisteredClaims
	Video      *VideoGrant        `json:"video,omitempty"`
	RoomConfig *RoomConfiguration `json:"roomConfig,omitempty"`
}

// SetDefaults applies the signing window: nbf is now and exp is now+ttl.
func (c *AccessClaims) SetDefaults(now time.Time, ttl time.Duration, issuer string) {
	c.Issuer = issuer
	c.NotBefore = gojwt.NewNumericDate(now)
	c.ExpiresAt = gojwt.NewNumericDate(now.Add(ttl))
}

// Identity returns the participant identity.
func (c *AccessClaims) Identity() string { return c.Subject }

// JoinGrant returns the full publish/subscribe grant for room.
func JoinGrant(room string) *VideoGrant {
	yes := true
	return &VideoGrant{
		Room:           room,
		RoomJoin:       true,
		CanPublish:     &yes,
		CanPublishData: &yes,
		CanSubscribe:   &yes,
	}
}
