package session

import (
	"time"

	"github.com/kbukum/medscribe/validation"
)

const defaultPollInterval = 2 * time.Second

// Config controls the orchestrator's pollers and credential source.
type Config struct {
	// ConnectionEndpoint is the URL of the connection-details endpoint.
	// Empty means the in-process issuer is used.
	ConnectionEndpoint string        `yaml:"connection_endpoint" mapstructure:"connection_endpoint"`
	ExtractInterval    time.Duration `yaml:"extract_interval" mapstructure:"extract_interval"`
	TranscriptInterval time.Duration `yaml:"transcript_interval" mapstructure:"transcript_interval"`
}

func (c *Config) ApplyDefaults() {
	if c.ExtractInterval == 0 {
		c.ExtractInterval = defaultPollInterval
	}
	if c.TranscriptInterval == 0 {
		c.TranscriptInterval = defaultPollInterval
	}
}

// Validate runs after ApplyDefaults; a zero interval is never valid here.
func (c *Config) Validate() error {
	return validation.New().
		Positive("session.extract_interval", int64(c.ExtractInterval)).
		Positive("session.transcript_interval", int64(c.TranscriptInterval)).
		Err()
}
