package serialization

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/edgeflux/influxline/pkg/escape"
)

// Role assigns a line-protocol meaning to a schema attribute. Numeric
// values group the roles: 0 measurement, 10–19 timestamps, 20–29 tags,
// 30 and above fields. Attributes are serialized in role order.
type Role int

const (
	RoleMeasurement Role = 0

	RoleTimeInt    Role = 10 // nanosecond epoch integer
	RoleTimeString Role = 11 // ISO-8601 string
	RoleTimeTime   Role = 12 // time.Time

	RoleTag     Role = 20
	RoleTagEnum Role = 21 // serialized by name via fmt.Stringer

	RoleBool    Role = 30
	RoleInt     Role = 40
	RoleFloat   Role = 50
	RoleString  Role = 60
	RoleEnum    Role = 61 // serialized by name via fmt.Stringer
	RoleDecimal Role = 70 // shopspring decimal, emitted bare
)

func (r Role) isTime() bool  { return r >= 10 && r < 20 }
func (r Role) isTag() bool   { return r == RoleTag || r == RoleTagEnum }
func (r Role) isField() bool { return r >= 30 }

func (r Role) valid() bool {
	switch r {
	case RoleMeasurement, RoleTimeInt, RoleTimeString, RoleTimeTime,
		RoleTag, RoleTagEnum, RoleBool, RoleInt, RoleFloat, RoleString,
		RoleEnum, RoleDecimal:
		return true
	}
	return false
}

type attribute struct {
	name string
	role Role
}

// Schema is a static attribute-name to role declaration. Construction
// validates the cardinality invariants; a *SchemaError names the violated
// constraint.
type Schema struct {
	attrs       []attribute
	placeholder bool
}

// SchemaOption configures schema construction.
type SchemaOption func(*Schema)

// WithPlaceholder allows a schema with zero field-role attributes. Its
// compiled serializers emit a synthetic always-true boolean field so that
// tag/time-only records remain writable (the server requires at least one
// field per point).
func WithPlaceholder() SchemaOption {
	return func(s *Schema) { s.placeholder = true }
}

// NewSchema validates a declaration and returns a Schema. Constraints: at
// most one RoleMeasurement attribute, at most one time-role attribute, and
// at least one field-role attribute unless WithPlaceholder is given.
func NewSchema(spec map[string]Role, opts ...SchemaOption) (*Schema, error) {
	s := &Schema{}
	for _, opt := range opts {
		opt(s)
	}

	var measurements, times, fields int
	for name, role := range spec {
		if !role.valid() {
			return nil, schemaErrorf("attribute %q has unknown role %d", name, role)
		}
		switch {
		case role == RoleMeasurement:
			measurements++
		case role.isTime():
			times++
		case role.isField():
			fields++
		}
		s.attrs = append(s.attrs, attribute{name: name, role: role})
	}
	if measurements > 1 {
		return nil, schemaErrorf("%d measurement attributes, at most one allowed", measurements)
	}
	if times > 1 {
		return nil, schemaErrorf("%d timestamp attributes, at most one allowed", times)
	}
	if fields == 0 && !s.placeholder {
		return nil, schemaErrorf("no field attributes and placeholder mode disabled")
	}

	// Role order first, then name, so equal schemas always serialize
	// identically regardless of map iteration order.
	sort.Slice(s.attrs, func(i, j int) bool {
		if s.attrs[i].role != s.attrs[j].role {
			return s.attrs[i].role < s.attrs[j].role
		}
		return s.attrs[i].name < s.attrs[j].name
	})
	return s, nil
}

// fingerprint is the schema's cache identity.
func (s *Schema) fingerprint() string {
	var b strings.Builder
	for _, a := range s.attrs {
		fmt.Fprintf(&b, "%s:%d;", a.name, a.role)
	}
	if s.placeholder {
		b.WriteString("+placeholder")
	}
	return b.String()
}

// Serializer is a schema-compiled line-protocol formatter: a fixed
// instruction list walked per record, with no intermediate mapping
// representation. Serializers are reusable and safe for concurrent use.
type Serializer struct {
	measurement string
	measAttr    string // dynamic measurement attribute, "" when static
	tags        []attribute
	fields      []attribute
	timeAttr    *attribute
	extraTags   []byte // pre-escaped ",k=v" segment baked at compile time
	omitNil     bool
	placeholder bool
}

// CompileOption configures a compiled serializer.
type CompileOption func(*Serializer)

// WithOmitNil makes the serializer tolerate nil-valued optional fields and
// tags by eliding them, at the cost of per-call nil checks. Without it a
// nil attribute value is an error.
func WithOmitNil() CompileOption {
	return func(s *Serializer) { s.omitNil = true }
}

// WithExtraTags bakes a fixed tag set into the serializer, applied to every
// record it serializes.
func WithExtraTags(tags map[string]string) CompileOption {
	return func(s *Serializer) {
		s.extraTags = appendTags(nil, tags)
	}
}

var (
	serializerMu    sync.RWMutex
	serializerCache = map[string]*Serializer{}
)

// Compile builds (or returns a cached) Serializer for schema. measurement
// is the static measurement name, used when the schema has no
// RoleMeasurement attribute. Compiled serializers are cached by
// (schema, measurement, options) identity; cache entries are only ever
// replaced whole, so concurrent readers never observe partial state.
func Compile(schema *Schema, measurement string, opts ...CompileOption) (*Serializer, error) {
	s := &Serializer{measurement: measurement, placeholder: schema.placeholder}
	for _, opt := range opts {
		opt(s)
	}

	key := schema.fingerprint() + "|" + measurement + "|" +
		strconv.FormatBool(s.omitNil) + "|" + string(s.extraTags)
	serializerMu.RLock()
	cached, ok := serializerCache[key]
	serializerMu.RUnlock()
	if ok {
		return cached, nil
	}

	for _, a := range schema.attrs {
		a := a
		switch {
		case a.role == RoleMeasurement:
			s.measAttr = a.name
		case a.role.isTime():
			s.timeAttr = &a
		case a.role.isTag():
			s.tags = append(s.tags, a)
		default:
			s.fields = append(s.fields, a)
		}
	}
	if s.measAttr == "" && s.measurement == "" {
		return nil, ErrMissingMeasurement
	}

	serializerMu.Lock()
	serializerCache[key] = s
	serializerMu.Unlock()
	return s, nil
}

// Marshal serializes one record into a single line-protocol line.
func (s *Serializer) Marshal(rec interface{}) ([]byte, error) {
	return s.Append(nil, rec)
}

// Append appends the serialized form of rec to dst.
func (s *Serializer) Append(dst []byte, rec interface{}) ([]byte, error) {
	reader, err := readerFor(rec)
	if err != nil {
		return nil, err
	}

	// measurement
	name := s.measurement
	if s.measAttr != "" {
		v, ok := reader.Field(s.measAttr)
		if !ok {
			return nil, errors.Errorf("record has no attribute %q", s.measAttr)
		}
		name = stringValue(v)
	}
	name = escape.Measurement(name)
	if name == "" {
		return nil, ErrMissingMeasurement
	}
	dst = append(dst, name...)

	// tags
	for _, a := range s.tags {
		v, ok := reader.Field(a.name)
		if !ok {
			return nil, errors.Errorf("record has no attribute %q", a.name)
		}
		if v == nil {
			if s.omitNil {
				continue
			}
			return nil, errors.Errorf("attribute %q is nil; compile with WithOmitNil to elide", a.name)
		}
		tv := coerceTagValue(v)
		if tv == "" {
			continue
		}
		dst = append(dst, ',')
		dst = append(dst, escape.Key(a.name)...)
		dst = append(dst, '=')
		dst = append(dst, tv...)
	}
	dst = append(dst, s.extraTags...)
	dst = append(dst, ' ')

	// fields
	n := 0
	for _, a := range s.fields {
		v, ok := reader.Field(a.name)
		if !ok {
			return nil, errors.Errorf("record has no attribute %q", a.name)
		}
		if v == nil {
			if s.omitNil {
				continue
			}
			return nil, errors.Errorf("attribute %q is nil; compile with WithOmitNil to elide", a.name)
		}
		if n > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, escape.Key(a.name)...)
		dst = append(dst, '=')
		dst, err = appendRoleValue(dst, a, v)
		if err != nil {
			return nil, err
		}
		n++
	}
	if n == 0 {
		if !s.placeholder {
			return nil, ErrNoFields
		}
		dst = append(dst, "_placeholder=true"...)
	}

	// timestamp
	if s.timeAttr != nil {
		v, ok := reader.Field(s.timeAttr.name)
		if !ok {
			return nil, errors.Errorf("record has no attribute %q", s.timeAttr.name)
		}
		ns, present, err := NormalizeTimestamp(v)
		if err != nil {
			return nil, err
		}
		if present {
			dst = append(dst, ' ')
			dst = strconv.AppendInt(dst, ns, 10)
		}
	}
	return dst, nil
}

func appendRoleValue(dst []byte, a attribute, v interface{}) ([]byte, error) {
	mismatch := func() error {
		return errors.Errorf("attribute %q: unsupported value type %T for its role", a.name, v)
	}
	switch a.role {
	case RoleBool:
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch()
		}
		return strconv.AppendBool(dst, b), nil
	case RoleInt:
		switch iv := v.(type) {
		case int:
			dst = strconv.AppendInt(dst, int64(iv), 10)
		case int64:
			dst = strconv.AppendInt(dst, iv, 10)
		case int32:
			dst = strconv.AppendInt(dst, int64(iv), 10)
		default:
			return nil, mismatch()
		}
		return append(dst, 'i'), nil
	case RoleFloat:
		switch fv := v.(type) {
		case float64:
			dst = strconv.AppendFloat(dst, fv, 'f', -1, 64)
		case float32:
			dst = strconv.AppendFloat(dst, float64(fv), 'f', -1, 32)
		case int:
			dst = strconv.AppendInt(dst, int64(fv), 10)
		default:
			return nil, mismatch()
		}
		return dst, nil
	case RoleString:
		dst = append(dst, '"')
		dst = append(dst, escape.StringField(stringValue(v))...)
		return append(dst, '"'), nil
	case RoleEnum:
		name, err := enumName(a, v)
		if err != nil {
			return nil, err
		}
		dst = append(dst, '"')
		dst = append(dst, escape.StringField(name)...)
		return append(dst, '"'), nil
	case RoleDecimal:
		d, ok := v.(decimal.Decimal)
		if !ok {
			return nil, mismatch()
		}
		return append(dst, d.String()...), nil
	}
	return nil, mismatch()
}

// enumName resolves an enum value to its name. Enum attributes serialize by
// name, never by underlying value.
func enumName(a attribute, v interface{}) (string, error) {
	switch ev := v.(type) {
	case fmt.Stringer:
		return ev.String(), nil
	case string:
		return ev, nil
	}
	return "", errors.Errorf("attribute %q: enum value %T has no name", a.name, v)
}

func stringValue(v interface{}) string {
	switch sv := v.(type) {
	case string:
		return sv
	case fmt.Stringer:
		return sv.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", sv)
	}
}
