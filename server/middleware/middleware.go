package middleware

import (
	"net/http"
)

// Middleware wraps an http.Handler. It applies at the server handler level,
// so it covers Gin routes and anything else mounted on the mux.
type Middleware func(http.Handler) http.Handler

// Chain composes middleware; the first is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
