package serialization

import (
	"os"

	"github.com/rs/zerolog"
)

// logger emits the non-fatal coercion warnings described in the escaping
// rules. It honors the consumer's global zerolog level.
var logger = zerolog.New(os.Stderr).With().Timestamp().Str("component", "serialization").Logger()

// SetLogger replaces the package logger. Useful for routing warnings into
// an application-wide log sink or silencing them in tests.
func SetLogger(l zerolog.Logger) {
	logger = l
}
