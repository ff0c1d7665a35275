package serialization

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/edgeflux/influxline/pkg/escape"
)

// Point is the atomic write unit: one measurement event with optional tags,
// at least one field, and an optional timestamp.
//
// Time accepts any value understood by NormalizeTimestamp: a nanosecond
// integer, an ISO-8601 string, or a time.Time.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]interface{}
	Time        interface{}
}

// MarshalPoint serializes a single point into one line-protocol line.
//
// The measurement is taken from the point when non-empty, falling back to
// defaultMeasurement. Tags from the point take precedence over extraTags
// when keys collide. Tag and field keys are emitted in sorted order so the
// same point always produces the same bytes. Tags whose escaped value is
// blank and fields whose value is nil are dropped; if no field survives,
// ErrNoFields is returned.
func MarshalPoint(p *Point, defaultMeasurement string, extraTags map[string]string) ([]byte, error) {
	return AppendPoint(nil, p, defaultMeasurement, extraTags)
}

// AppendPoint appends the serialized form of p to dst.
func AppendPoint(dst []byte, p *Point, defaultMeasurement string, extraTags map[string]string) ([]byte, error) {
	name := p.Measurement
	if name == "" {
		name = defaultMeasurement
	}
	name = escape.Measurement(name)
	if name == "" {
		return nil, ErrMissingMeasurement
	}
	dst = append(dst, name...)

	dst = appendTags(dst, mergeTags(p.Tags, extraTags))

	fields, err := appendFieldSet(nil, p.Fields)
	if err != nil {
		return nil, err
	}
	dst = append(dst, ' ')
	dst = append(dst, fields...)

	ns, ok, err := NormalizeTimestamp(p.Time)
	if err != nil {
		return nil, err
	}
	if ok {
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, ns, 10)
	}
	return dst, nil
}

// mergeTags merges point tags over extra tags. Point-supplied tags win on
// key collision.
func mergeTags(pointTags, extraTags map[string]string) map[string]string {
	if len(extraTags) == 0 {
		return pointTags
	}
	merged := make(map[string]string, len(pointTags)+len(extraTags))
	for k, v := range extraTags {
		merged[k] = v
	}
	for k, v := range pointTags {
		merged[k] = v
	}
	return merged
}

func appendTags(dst []byte, tags map[string]string) []byte {
	if len(tags) == 0 {
		return dst
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := escape.Tag(tags[k])
		if v == "" {
			// blank/null string tags are not written
			continue
		}
		dst = append(dst, ',')
		dst = append(dst, escape.Key(k)...)
		dst = append(dst, '=')
		dst = append(dst, v...)
	}
	return dst
}

func appendFieldSet(dst []byte, fields map[string]interface{}) ([]byte, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	n := 0
	for _, k := range keys {
		v := fields[k]
		if v == nil {
			continue
		}
		if n > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, escape.Key(k)...)
		dst = append(dst, '=')
		dst = appendFieldValue(dst, v)
		n++
	}
	if n == 0 {
		return nil, ErrNoFields
	}
	return dst, nil
}

// appendFieldValue appends a field value with its wire suffix: booleans
// bare, integers with a trailing 'i', floats and decimals bare, strings
// double-quoted and escaped. Unknown types are stringified with a warning
// rather than rejected.
func appendFieldValue(b []byte, v interface{}) []byte {
	switch v := v.(type) {
	case float64:
		return strconv.AppendFloat(b, v, 'f', -1, 64)
	case float32:
		return strconv.AppendFloat(b, float64(v), 'f', -1, 32)
	case int64:
		b = strconv.AppendInt(b, v, 10)
		return append(b, 'i')
	case int:
		b = strconv.AppendInt(b, int64(v), 10)
		return append(b, 'i')
	case int32:
		b = strconv.AppendInt(b, int64(v), 10)
		return append(b, 'i')
	case int16:
		b = strconv.AppendInt(b, int64(v), 10)
		return append(b, 'i')
	case int8:
		b = strconv.AppendInt(b, int64(v), 10)
		return append(b, 'i')
	case uint:
		b = strconv.AppendUint(b, uint64(v), 10)
		return append(b, 'i')
	case uint32:
		b = strconv.AppendUint(b, uint64(v), 10)
		return append(b, 'i')
	case uint16:
		b = strconv.AppendUint(b, uint64(v), 10)
		return append(b, 'i')
	case uint8:
		b = strconv.AppendUint(b, uint64(v), 10)
		return append(b, 'i')
	case uint64:
		if v <= math.MaxInt64 {
			b = strconv.AppendUint(b, v, 10)
			return append(b, 'i')
		}
		// the server's integer fields are int64, ship the overflow as a string
		logger.Warn().Uint64("value", v).
			Msg("uint64 field exceeds the integer field range, converting to string")
		b = append(b, '"')
		b = strconv.AppendUint(b, v, 10)
		return append(b, '"')
	case bool:
		return strconv.AppendBool(b, v)
	case string:
		b = append(b, '"')
		b = append(b, escape.StringField(v)...)
		return append(b, '"')
	case decimal.Decimal:
		return append(b, v.String()...)
	case json.Number:
		// values that round-tripped through a query response
		if _, err := v.Int64(); err == nil {
			b = append(b, v.String()...)
			return append(b, 'i')
		}
		return append(b, v.String()...)
	default:
		logger.Warn().Str("type", fmt.Sprintf("%T", v)).
			Msg("non-scalar field value, converting to string")
		b = append(b, '"')
		b = append(b, escape.StringField(fmt.Sprintf("%v", v))...)
		return append(b, '"')
	}
}

// coerceTagValue turns an arbitrary tag value into its escaped string form.
// Non-string values are tolerated with a warning: numeric tag values are
// common in practice.
func coerceTagValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return escape.Tag(v)
	case fmt.Stringer:
		return escape.Tag(v.String())
	default:
		logger.Warn().Str("type", fmt.Sprintf("%T", v)).
			Msg("non-string tag value, converting to string")
		return escape.Tag(fmt.Sprintf("%v", v))
	}
}
