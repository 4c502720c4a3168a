// Command medscribe serves conferencing connection details and runs the
// consultation session orchestrator behind an operator console API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kbukum/medscribe/bootstrap"
	"github.com/kbukum/medscribe/config"
	"github.com/kbukum/medscribe/connection"
	"github.com/kbukum/medscribe/console"
	"github.com/kbukum/medscribe/httpclient"
	"github.com/kbukum/medscribe/livekit"
	"github.com/kbukum/medscribe/logger"
	"github.com/kbukum/medscribe/observability"
	"github.com/kbukum/medscribe/rtc"
	"github.com/kbukum/medscribe/scribe"
	"github.com/kbukum/medscribe/server"
	"github.com/kbukum/medscribe/session"
	"github.com/kbukum/medscribe/sse"
	"github.com/kbukum/medscribe/version"
)

const serviceName = "medscribe"

// componentLoggers are registered from the app logger so every component
// carries the service fields.
var componentLoggers = []string{"connection", "console", "rtc", "session", "sse"}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg Config
	if err := config.LoadConfig(serviceName, &cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = version.Get().Short()
	}

	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		return err
	}

	for _, name := range componentLoggers {
		logger.Register(name, app.Logger.WithComponent(name))
	}

	telemetry, err := observability.Init(ctx, cfg.Observability, app.Name, app.Version)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := telemetry.Shutdown(context.WithoutCancel(ctx)); err != nil {
			app.Logger.Warn("telemetry shutdown", logger.ErrorFields("shutdown", err))
		}
	}()
	metrics := observability.DefaultMetrics()

	srv := server.New(cfg.Server, app.Logger)
	srv.ApplyMiddleware()
	srv.RegisterDefaultEndpoints(app.Name, app.Components.HealthAll)

	issuer := connection.NewIssuer(cfg.LiveKit,
		connection.WithMetrics(metrics),
		connection.WithLogger(logger.Get("connection")),
	)
	connection.NewHandler(issuer, nil).Register(srv.GinEngine())

	scribeClient, err := scribe.New(cfg.Scribe)
	if err != nil {
		return fmt.Errorf("scribe client: %w", err)
	}

	creds, err := credentialSource(cfg, issuer)
	if err != nil {
		return err
	}

	room := rtc.NewRoom(cfg.Audio,
		rtc.WithTap(&rtc.MeterTap{}),
		rtc.WithLogger(logger.Get("rtc")),
	)

	events := sse.NewComponent(logger.Get("sse"))
	orch, err := session.New(cfg.Session, scribeClient, creds, room,
		session.WithPublisher(console.Broadcaster{Hub: events.Hub()}),
		session.WithMetrics(metrics),
		session.WithLogger(logger.Get("session")),
	)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	consoleHandler := console.NewHandler(orch, events.Hub(), logger.Get("console"))
	if cfg.LiveKit.APIKey != "" && cfg.LiveKit.APISecret != "" {
		verifier, err := livekit.NewVerifier(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, nil)
		if err != nil {
			return err
		}
		consoleHandler.WithVerifier(verifier)
	}
	consoleHandler.Register(srv.GinEngine())

	// Components stop in reverse order: the server drains first, then the
	// session is torn down while the event hub can still deliver.
	if err := app.RegisterComponent(events); err != nil {
		return err
	}
	if err := app.RegisterComponent(session.NewComponent(orch)); err != nil {
		return err
	}
	if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
		return err
	}

	app.OnReady(func(ctx context.Context) error {
		app.Logger.Info("listening", logger.Fields("addr", cfg.Server.Addr()))
		return nil
	})
	return app.Run(ctx)
}

// credentialSource returns the in-process issuer unless a remote
// connection-details endpoint is configured.
func credentialSource(cfg Config, issuer *connection.Issuer) (session.Credentials, error) {
	if cfg.Session.ConnectionEndpoint == "" {
		return issuer, nil
	}
	hc, err := httpclient.New(httpclient.Config{Name: "connection-details", Timeout: cfg.Scribe.Timeout},
		httpclient.WithLogger(logger.Get("connection")))
	if err != nil {
		return nil, fmt.Errorf("connection client: %w", err)
	}
	return connection.NewClient(hc, cfg.Session.ConnectionEndpoint).ForRoom(cfg.LiveKit.DefaultRoom), nil
}
