// Package logger provides structured logging on top of zerolog.
//
// Loggers are component scoped and take structured fields as maps:
//
//	log := logger.Get("session")
//	log.Info("consultation started", logger.Fields(logger.FieldRoom, room))
//
// Output is either JSON or a compact console format selected by Config.Format.
package logger
