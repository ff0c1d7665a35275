// Package escape implements the character escaping rules of the InfluxDB
// line protocol. Each identifier class has its own rule set:
//
//	keys and tag values: backslash, comma, space, equals
//	measurements:        backslash, comma, space
//	string field values: backslash, double quote
//
// Newlines are stripped from every class rather than escaped; a literal
// newline would terminate the line early on the server side.
package escape

import "strings"

type escapeSet struct {
	k   [1]byte
	esc [2]byte
}

var (
	keyEscapeCodes = [...]escapeSet{
		{k: [1]byte{','}, esc: [2]byte{'\\', ','}},
		{k: [1]byte{' '}, esc: [2]byte{'\\', ' '}},
		{k: [1]byte{'='}, esc: [2]byte{'\\', '='}},
	}

	measurementEscapeCodes = [...]escapeSet{
		{k: [1]byte{','}, esc: [2]byte{'\\', ','}},
		{k: [1]byte{' '}, esc: [2]byte{'\\', ' '}},
	}
)

var stringFieldReplacer = strings.NewReplacer(`"`, `\"`, `\`, `\\`)

func stripNewlines(s string) string {
	if strings.IndexByte(s, '\n') == -1 && strings.IndexByte(s, '\r') == -1 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' || s[i] == '\r' {
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func escapeWith(s string, codes []escapeSet) string {
	s = stripNewlines(s)
	if strings.IndexByte(s, '\\') != -1 {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	for i := range codes {
		c := &codes[i]
		if strings.IndexByte(s, c.k[0]) != -1 {
			s = strings.ReplaceAll(s, string(c.k[:]), string(c.esc[:]))
		}
	}
	return s
}

func unescapeWith(s string, codes []escapeSet) string {
	if strings.IndexByte(s, '\\') == -1 {
		return s
	}
	for i := range codes {
		c := &codes[i]
		s = strings.ReplaceAll(s, string(c.esc[:]), string(c.k[:]))
	}
	return strings.ReplaceAll(s, `\\`, `\`)
}

// Key escapes a tag key, tag value or field key.
func Key(s string) string {
	return escapeWith(s, keyEscapeCodes[:])
}

// UnescapeKey is the inverse of Key.
func UnescapeKey(s string) string {
	return unescapeWith(s, keyEscapeCodes[:])
}

// Tag escapes a tag value. Tag values share the key rule set.
func Tag(s string) string {
	return escapeWith(s, keyEscapeCodes[:])
}

// Measurement escapes a measurement name. Unlike keys, an unescaped '='
// is legal inside a measurement.
func Measurement(s string) string {
	return escapeWith(s, measurementEscapeCodes[:])
}

// UnescapeMeasurement is the inverse of Measurement.
func UnescapeMeasurement(s string) string {
	return unescapeWith(s, measurementEscapeCodes[:])
}

// StringField escapes a string field value for inclusion between double
// quotes.
func StringField(s string) string {
	return stringFieldReplacer.Replace(stripNewlines(s))
}

// UnescapeStringField is the inverse of StringField.
func UnescapeStringField(s string) string {
	if strings.IndexByte(s, '\\') == -1 {
		return s
	}
	var out []byte
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '\\' || s[i+1] == '"') {
			out = append(out, s[i+1])
			i++
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
