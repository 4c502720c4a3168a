// Package httpclient is a small JSON-over-HTTP client used for calls to
// external services.
//
//	c, err := httpclient.New(httpclient.Config{
//	    Name:    "scribe",
//	    BaseURL: "https://scribe.example.com",
//	    Timeout: 10 * time.Second,
//	})
//
//	resp, err := httpclient.Get[savedList](c, ctx, "/saved-info")
//
// Non-2xx responses are returned as *Error values classified by status code.
package httpclient
