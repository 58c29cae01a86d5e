// Package logging provides structured logging with secret masking helpers.
// Credential material (secret keys, session tokens) must never reach log
// output or chat responses in full; only masked forms are safe to display.
package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Field names whose values are credential material and must be masked.
var secretFieldNames = []string{
	"secretaccesskey",
	"secret_access_key",
	"secret_key",
	"secretkey",
	"sessiontoken",
	"session_token",
	"password",
	"db_password",
	"external_id",
	"externalid",
	"token",
	"secret",
}

// parseLevel maps a level string to a zerolog level, defaulting to info.
// ParseLevel accepts "" without error but yields NoLevel, which would
// silence the logger entirely, so that case defaults too.
func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewLogger creates a console logger writing to stderr.
func NewLogger(level, component string) zerolog.Logger {
	lvl := parseLevel(level)

	writer := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(writer).
		Level(lvl).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// NewJSONLogger creates a JSON-formatted logger for machine consumption.
func NewJSONLogger(w io.Writer, level, component string) zerolog.Logger {
	return zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// IsSecretField reports whether a field name carries credential material.
func IsSecretField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, secret := range secretFieldNames {
		if strings.Contains(lower, secret) {
			return true
		}
	}
	return false
}

// RedactValue replaces a secret value with a placeholder carrying a short
// hash prefix, enough to correlate log lines without exposing the value.
func RedactValue(value string) string {
	if value == "" {
		return ""
	}
	h := sha256.Sum256([]byte(value))
	return "[REDACTED:sha256:" + hex.EncodeToString(h[:])[:8] + "]"
}

// MaskAccessKeyID keeps the first four and last four characters of an
// access key id. Access key ids are not secret on their own but full
// values are still noise operators should not paste around.
func MaskAccessKeyID(keyID string) string {
	if len(keyID) <= 8 {
		return keyID
	}
	return keyID[:4] + strings.Repeat("*", len(keyID)-8) + keyID[len(keyID)-4:]
}
