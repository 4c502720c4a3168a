package main

import (
	"strings"
	"testing"
	"time"

	"github.com/kbukum/medscribe/config"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Name != serviceName {
		t.Errorf("name = %q", cfg.Name)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Session.ExtractInterval != 2*time.Second || cfg.Session.TranscriptInterval != 2*time.Second {
		t.Errorf("intervals = %v %v", cfg.Session.ExtractInterval, cfg.Session.TranscriptInterval)
	}
	if cfg.LiveKit.AgentName != "web-agent" {
		t.Errorf("agent = %q", cfg.LiveKit.AgentName)
	}
}

func TestConfigValidateWrapsSection(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	cfg.Scribe.BaseURL = "not-a-url"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "config.scribe") {
		t.Fatalf("expected scribe section error, got %v", err)
	}
}

func TestConfigLoadsCredentialsFromEnvironment(t *testing.T) {
	t.Setenv("LIVEKIT_URL", "wss://rtc.example.com")
	t.Setenv("LIVEKIT_API_KEY", "key")
	t.Setenv("LIVEKIT_API_SECRET", "secret")

	var cfg Config
	if err := config.LoadConfig(serviceName, &cfg, config.WithConfigFile("config.yml"), config.WithEnvFile("missing.env")); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.LiveKit.CheckCredentials(); err != nil {
		t.Fatalf("credentials not bound: %v", err)
	}
	if cfg.LiveKit.URL != "wss://rtc.example.com" {
		t.Errorf("url = %q", cfg.LiveKit.URL)
	}
	if cfg.Scribe.RoomID != "default-room" {
		t.Errorf("room id = %q", cfg.Scribe.RoomID)
	}
}
