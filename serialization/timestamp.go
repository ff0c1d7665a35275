package serialization

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/edgeflux/influxline/models"
)

// Accepted string layouts, strict ISO-8601 plus the common space-separated
// variant produced by the query API.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// NormalizeTimestamp converts a heterogeneous time value into a nanosecond
// epoch. Accepted inputs: integers (already nanoseconds, passed through),
// strings (ISO-8601; timezone-naive strings are interpreted as UTC, not
// local time), and time.Time values. ok is false when the input denotes an
// absent timestamp (nil, zero integer, empty string, zero time.Time), in
// which case the timestamp segment is omitted from the serialized line.
func NormalizeTimestamp(v interface{}) (ns int64, ok bool, err error) {
	switch t := v.(type) {
	case nil:
		return 0, false, nil
	case int64:
		return checkNano(t)
	case int:
		return checkNano(int64(t))
	case uint64:
		return checkNano(int64(t))
	case json.Number:
		iv, perr := t.Int64()
		if perr != nil {
			return 0, false, errors.Wrapf(ErrInvalidTimestamp, "non-integer number %q", t.String())
		}
		return checkNano(iv)
	case string:
		if t == "" {
			return 0, false, nil
		}
		dt, perr := parseTimeString(t)
		if perr != nil {
			return 0, false, perr
		}
		return checkNano(dt.UnixNano())
	case []byte:
		return NormalizeTimestamp(string(t))
	case time.Time:
		if t.IsZero() {
			return 0, false, nil
		}
		// range-check before UnixNano, which silently overflows
		if cerr := models.CheckTime(t); cerr != nil {
			return 0, false, errors.Wrap(ErrInvalidTimestamp, cerr.Error())
		}
		return checkNano(t.UnixNano())
	case *time.Time:
		if t == nil {
			return 0, false, nil
		}
		return NormalizeTimestamp(*t)
	default:
		return 0, false, errors.Wrapf(ErrInvalidTimestamp, "unsupported type %T", v)
	}
}

func checkNano(ns int64) (int64, bool, error) {
	if ns == 0 {
		return 0, false, nil
	}
	if err := models.CheckNano(ns); err != nil {
		return 0, false, errors.Wrap(ErrInvalidTimestamp, err.Error())
	}
	return ns, true, nil
}

// parseTimeString parses an ISO-8601 time string. time.Parse already treats
// layouts without zone designators as UTC, which is the behavior we want
// for timezone-naive input.
func parseTimeString(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if dt, err := time.Parse(layout, s); err == nil {
			return dt, nil
		}
	}
	return time.Time{}, errors.Wrapf(ErrInvalidTimestamp, "unparseable time string %q", s)
}
