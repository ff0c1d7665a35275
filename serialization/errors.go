package serialization

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrMissingMeasurement is returned when neither the record nor the
	// caller supplies a measurement name.
	ErrMissingMeasurement = errors.New("missing measurement")

	// ErrNoFields is returned when every field of a record is nil or absent
	// after elision. A point must carry at least one field.
	ErrNoFields = errors.New("point has no fields")

	// ErrInvalidTimestamp is returned for a time value that cannot be
	// normalized to a nanosecond epoch.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrIndexType is returned when tabular input is not indexed by
	// timestamps.
	ErrIndexType = errors.New("table index is not timestamp-typed")

	// ErrInvalidInput is returned when the serializer cannot route an input
	// value by type.
	ErrInvalidInput = errors.New("invalid input type")
)

// SchemaError reports a violated schema cardinality invariant. Reason names
// the specific constraint that failed.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "invalid schema: " + e.Reason
}

func schemaErrorf(format string, args ...interface{}) *SchemaError {
	return &SchemaError{Reason: fmt.Sprintf(format, args...)}
}

// QueryError is a server-reported error found in a query response, either
// at the top level or inside a statement block.
type QueryError struct {
	// StatementID is the index of the failing statement, or -1 when the
	// error was reported at the top level of the response.
	StatementID int
	Message     string
}

func (e *QueryError) Error() string {
	if e.StatementID < 0 {
		return "query error: " + e.Message
	}
	return fmt.Sprintf("query error in statement %d: %s", e.StatementID, e.Message)
}
