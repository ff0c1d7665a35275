// Package serialization converts in-memory data representations into the
// InfluxDB line protocol and parses query-response JSON back into point
// sequences or tabular structures.
//
// Three write paths are supported: single associative records (Point),
// time-indexed columnar tables (Table), and schema-compiled records
// (Schema/Serializer). Serialize routes heterogeneous input to the right
// path. The inverse direction is covered by ParseResponse, Points and
// ResponseTables.
//
// The engine is synchronous and stateless per call; the only shared state
// is the compiled-serializer cache and the optional TagCache, both
// read-mostly and safe for concurrent use.
package serialization

import (
	"reflect"

	"github.com/pkg/errors"
)

// LineMarshaler is implemented by values that can render themselves as one
// or more line-protocol lines. Records bound to a compiled Serializer
// typically implement it by delegation.
type LineMarshaler interface {
	MarshalLineProtocol() ([]byte, error)
}

// Serialize converts input data into line-protocol bytes. Accepted inputs:
//
//   - []byte or string: passed through unmodified (assumed pre-formatted)
//   - LineMarshaler: delegated
//   - Point, *Point or a point-shaped map (measurement/tags/fields/time keys)
//   - *Table
//   - a slice or array of any of the above, newline-joined in order
//
// Anything else fails with ErrInvalidInput.
func Serialize(data interface{}, measurement string, tagColumns []string, extraTags map[string]string) ([]byte, error) {
	switch d := data.(type) {
	case nil:
		return nil, errors.Wrap(ErrInvalidInput, "nil input")
	case []byte:
		return d, nil
	case string:
		return []byte(d), nil
	case LineMarshaler:
		return d.MarshalLineProtocol()
	case *Point:
		return MarshalPoint(d, measurement, extraTags)
	case Point:
		return MarshalPoint(&d, measurement, extraTags)
	case map[string]interface{}:
		p, err := pointFromMap(d)
		if err != nil {
			return nil, err
		}
		return MarshalPoint(p, measurement, extraTags)
	case *Table:
		return MarshalTable(d, measurement, tagColumns, extraTags)
	case Table:
		return MarshalTable(&d, measurement, tagColumns, extraTags)
	}

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		var out []byte
		for i := 0; i < v.Len(); i++ {
			line, err := Serialize(v.Index(i).Interface(), measurement, tagColumns, extraTags)
			if err != nil {
				return nil, err
			}
			if i > 0 {
				out = append(out, '\n')
			}
			out = append(out, line...)
		}
		return out, nil
	}
	return nil, errors.Wrapf(ErrInvalidInput, "cannot serialize %T", data)
}

// pointFromMap interprets an associative record with the canonical
// measurement/tags/fields/time keys.
func pointFromMap(m map[string]interface{}) (*Point, error) {
	p := &Point{}
	if v, ok := m["measurement"]; ok {
		p.Measurement = stringValue(v)
	}
	if v, ok := m["time"]; ok {
		p.Time = v
	}
	switch tags := m["tags"].(type) {
	case nil:
	case map[string]string:
		p.Tags = tags
	case map[string]interface{}:
		p.Tags = make(map[string]string, len(tags))
		for k, tv := range tags {
			if tv == nil {
				continue
			}
			p.Tags[k] = stringValue(tv)
		}
	default:
		return nil, errors.Wrapf(ErrInvalidInput, "tags must be a map, got %T", m["tags"])
	}
	switch fields := m["fields"].(type) {
	case nil:
		return nil, ErrNoFields
	case map[string]interface{}:
		p.Fields = fields
	default:
		return nil, errors.Wrapf(ErrInvalidInput, "fields must be a map, got %T", m["fields"])
	}
	return p, nil
}
