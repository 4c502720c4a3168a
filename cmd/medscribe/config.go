package main

import (
	"fmt"

	"github.com/kbukum/medscribe/config"
	"github.com/kbukum/medscribe/livekit"
	"github.com/kbukum/medscribe/observability"
	"github.com/kbukum/medscribe/rtc"
	"github.com/kbukum/medscribe/scribe"
	"github.com/kbukum/medscribe/server"
	"github.com/kbukum/medscribe/session"
)

// Config is the medscribe service configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	LiveKit       livekit.Config       `yaml:"livekit" mapstructure:"livekit"`
	Scribe        scribe.Config        `yaml:"scribe" mapstructure:"scribe"`
	Session       session.Config       `yaml:"session" mapstructure:"session"`
	Audio         rtc.AudioConfig      `yaml:"audio" mapstructure:"audio"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.LiveKit.ApplyDefaults()
	c.Scribe.ApplyDefaults()
	c.Session.ApplyDefaults()
	c.Audio.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	checks := []struct {
		name string
		fn   func() error
	}{
		{"server", c.Server.Validate},
		{"livekit", c.LiveKit.Validate},
		{"scribe", c.Scribe.Validate},
		{"session", c.Session.Validate},
		{"observability", c.Observability.Validate},
	}
	for _, check := range checks {
		if err := check.fn(); err != nil {
			return fmt.Errorf("config.%s: %w", check.name, err)
		}
	}
	return nil
}
