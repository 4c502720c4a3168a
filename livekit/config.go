package livekit

import (
	"fmt"
	"time"

	apperrors "github.com/kbukum/medscribe/errors"
	"github.com/kbukum/medscribe/validation"
)

const (
	DefaultAgentName         = "web-agent"
	DefaultRoom              = "web-agent"
	DefaultParticipantPrefix = "voice_assistant_user_"
	DefaultTokenTTL          = 15 * time.Minute
)

// Config holds conferencing server credentials and token settings. The
// credential fields bind to LIVEKIT_URL, LIVEKIT_API_KEY and
// LIVEKIT_API_SECRET.
type Config struct {
	URL               string        `yaml:"url" mapstructure:"url"`
	APIKey            string        `yaml:"api_key" mapstructure:"api_key"`
	APISecret         string        `yaml:"api_secret" mapstructure:"api_secret"`
	AgentName         string        `yaml:"agent_name" mapstructure:"agent_name"`
	TokenTTL          time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
	DefaultRoom       string        `yaml:"default_room" mapstructure:"default_room"`
	ParticipantPrefix string        `yaml:"participant_prefix" mapstructure:"participant_prefix"`
}

// ApplyDefaults fills token settings. Credentials are never defaulted.
func (c *Config) ApplyDefaults() {
	if c.AgentName == "" {
		c.AgentName = DefaultAgentName
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = DefaultTokenTTL
	}
	if c.DefaultRoom == "" {
		c.DefaultRoom = DefaultRoom
	}
	if c.ParticipantPrefix == "" {
		c.ParticipantPrefix = DefaultParticipantPrefix
	}
}

// Validate checks token settings. Issued tokens never outlive
// DefaultTokenTTL. Missing credentials are not a startup error; they are
// reported per request by CheckCredentials.
func (c *Config) Validate() error {
	return validation.New().
		Positive("livekit.token_ttl", int64(c.TokenTTL)).
		Custom(c.TokenTTL <= DefaultTokenTTL, "livekit.token_ttl",
			fmt.Sprintf("must not exceed %s (got: %s)", DefaultTokenTTL, c.TokenTTL)).
		Required("livekit.agent_name", c.AgentName).
		Required("livekit.default_room", c.DefaultRoom).
		Err()
}

// CheckCredentials reports the first missing credential, in the order
// URL, API key, API secret.
func (c *Config) CheckCredentials() error {
	switch {
	case c.URL == "":
		return apperrors.Configuration("LIVEKIT_URL is not defined")
	case c.APIKey == "":
		return apperrors.Configuration("LIVEKIT_API_KEY is not defined")
	case c.APISecret == "":
		return apperrors.Configuration("LIVEKIT_API_SECRET is not defined")
	}
	return nil
}
