package scribe

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kbukum/medscribe/validation"
)

const (
	DefaultBaseURL = "https://inextlabs-demo-medical-transcription-bot-as.azurewebsites.net"
	DefaultRoomID  = "default-room"
)

// Config locates the scribe service.
type Config struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// RoomID is sent with extraction requests.
	RoomID string `yaml:"room_id" mapstructure:"room_id"`
}

func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RoomID == "" {
		c.RoomID = DefaultRoomID
	}
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	absolute := err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	return validation.New().
		Custom(absolute, "scribe.base_url", fmt.Sprintf("must be an absolute http(s) URL (got: %q)", c.BaseURL)).
		Positive("scribe.timeout", int64(c.Timeout)).
		Required("scribe.room_id", c.RoomID).
		Err()
}
