// Package bootstrap runs a service's lifecycle: it validates the typed
// config, initializes logging, starts registered components, runs hooks and
// shuts everything down on SIGINT/SIGTERM or context cancellation.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(srv)
//	app.OnStop(func(ctx context.Context) error { return orchestrator.Close(ctx) })
//	err = app.Run(ctx)
package bootstrap
