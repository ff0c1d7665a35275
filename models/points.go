package models

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/edgeflux/influxline/pkg/escape"
)

// Point is a single decoded line-protocol entry.
type Point struct {
	Name   string
	Tags   map[string]string
	Fields map[string]interface{}

	// Time is the nanosecond epoch timestamp. HasTime is false when the
	// line carried no timestamp segment.
	Time    int64
	HasTime bool
}

var (
	// ErrPointMustHaveAField is returned for a line with an empty field set.
	ErrPointMustHaveAField = errors.New("point without fields is unsupported")

	// ErrInvalidPoint is returned for a line that cannot be decoded.
	ErrInvalidPoint = errors.New("point is invalid")
)

// ParsePoints decodes a newline-separated line-protocol payload. Empty
// lines and lines containing only whitespace are skipped.
func ParsePoints(buf []byte) ([]Point, error) {
	var points []Point
	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		p, err := parseLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to parse %q", line)
		}
		points = append(points, p)
	}
	return points, nil
}

// ParsePointsString is the string form of ParsePoints.
func ParsePointsString(buf string) ([]Point, error) {
	return ParsePoints([]byte(buf))
}

func parseLine(line string) (Point, error) {
	p := Point{Tags: map[string]string{}, Fields: map[string]interface{}{}}

	keyEnd := scanToUnescaped(line, 0, ' ', false)
	if keyEnd >= len(line) {
		return p, errors.Wrap(ErrInvalidPoint, "missing fields")
	}

	key := line[:keyEnd]
	nameEnd := scanToUnescaped(key, 0, ',', false)
	p.Name = escape.UnescapeMeasurement(key[:nameEnd])
	if p.Name == "" {
		return p, errors.Wrap(ErrInvalidPoint, "missing measurement")
	}

	// tag pairs
	i := nameEnd
	for i < len(key) {
		i++ // consume ','
		eq := scanToUnescaped(key, i, '=', false)
		if eq >= len(key) {
			return p, errors.Wrap(ErrInvalidPoint, "malformed tag")
		}
		end := scanToUnescaped(key, eq+1, ',', false)
		k := escape.UnescapeKey(key[i:eq])
		v := escape.UnescapeKey(key[eq+1 : end])
		if k == "" || v == "" {
			return p, errors.Wrap(ErrInvalidPoint, "empty tag key or value")
		}
		p.Tags[k] = v
		i = end
	}

	// fields
	i = keyEnd + 1
	fieldsEnd := scanToUnescaped(line, i, ' ', true)
	fields := line[i:fieldsEnd]
	if fields == "" {
		return p, ErrPointMustHaveAField
	}
	j := 0
	for j < len(fields) {
		eq := scanToUnescaped(fields, j, '=', false)
		if eq >= len(fields) {
			return p, errors.Wrap(ErrInvalidPoint, "malformed field")
		}
		end := scanToUnescaped(fields, eq+1, ',', true)
		k := escape.UnescapeKey(fields[j:eq])
		v, err := parseFieldValue(fields[eq+1 : end])
		if err != nil {
			return p, err
		}
		p.Fields[k] = v
		j = end + 1
	}
	if len(p.Fields) == 0 {
		return p, ErrPointMustHaveAField
	}

	// optional timestamp
	if fieldsEnd < len(line) {
		ts := strings.TrimSpace(line[fieldsEnd+1:])
		if ts != "" {
			ns, err := strconv.ParseInt(ts, 10, 64)
			if err != nil {
				return p, errors.Wrapf(ErrInvalidPoint, "bad timestamp %q", ts)
			}
			if err := CheckNano(ns); err != nil {
				return p, err
			}
			p.Time = ns
			p.HasTime = true
		}
	}
	return p, nil
}

func parseFieldValue(s string) (interface{}, error) {
	if s == "" {
		return nil, errors.Wrap(ErrInvalidPoint, "empty field value")
	}
	if s[0] == '"' {
		if len(s) < 2 || s[len(s)-1] != '"' {
			return nil, errors.Wrap(ErrInvalidPoint, "unbalanced quotes")
		}
		return escape.UnescapeStringField(s[1 : len(s)-1]), nil
	}
	switch s {
	case "t", "T", "true", "True", "TRUE":
		return true, nil
	case "f", "F", "false", "False", "FALSE":
		return false, nil
	}
	if s[len(s)-1] == 'i' {
		iv, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidPoint, "bad integer %q", s)
		}
		return iv, nil
	}
	fv, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidPoint, "bad number %q", s)
	}
	return fv, nil
}

// scanToUnescaped returns the index of the first unescaped occurrence of
// stop at or after i, or len(s). When quotes is true, occurrences inside
// double-quoted strings are skipped.
func scanToUnescaped(s string, i int, stop byte, quotes bool) int {
	quoted := false
	for ; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			i++
			continue
		}
		if quotes && c == '"' {
			quoted = !quoted
			continue
		}
		if c == stop && !quoted {
			return i
		}
	}
	return i
}
