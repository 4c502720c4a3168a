// Package errors defines the service's application error type.
//
// An AppError carries a machine-readable code, a user-facing message, the
// HTTP status it maps to and whether the caller may retry. Handlers render it
// through ToResponse as an RFC 7807 style body.
package errors
