// Package server hosts the HTTP surface: a Gin engine for routes, mounted on
// a ServeMux behind net/http middleware and wrapped for h2c.
//
// Middleware (server/middleware) runs at the handler level so it covers every
// mount: Recovery, RequestID, CORS, BodySizeLimit and RequestLogger.
// Endpoints (server/endpoint) provide /health and /info.
package server
