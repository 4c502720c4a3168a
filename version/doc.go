// Package version exposes build metadata set through -ldflags or read from
// the embedded VCS build info.
package version
