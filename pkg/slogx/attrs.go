package slogx

import (
	"fmt"
	"log/slog"
)

// Error returns a slog.Attr representing the provided error.
// The attribute key is "error" and the value is the error's message.
//
// Parameters:
//   - err: The error to be converted into a slog.Attr.
//
// Returns:
//   - slog.Attr: An attribute with the key "error" and the error's message as the value.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// ByteString creates a slog.Attr with the given key and a string representation
// of the byte slice value. Useful for logging raw wire frames without a copy at
// the call site.
func ByteString(key string, value []byte) slog.Attr {
	return slog.String(key, string(value))
}

// Stringer creates a slog.Attr with the provided key and the string
// representation of the given fmt.Stringer value.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

const (
	// KeyLoggerName is the attribute key identifying the component that
	// produced a log record.
	KeyLoggerName = "logger"
)

// LoggerName returns an attribute carrying the component name, so broker,
// server and service logs can be told apart in a shared output.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}
