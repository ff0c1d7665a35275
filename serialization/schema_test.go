package serialization

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevCrit
)

func (s severity) String() string {
	switch s {
	case sevInfo:
		return "info"
	case sevWarn:
		return "warn"
	case sevCrit:
		return "crit"
	}
	return "unknown"
}

func trendSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema(map[string]Role{
		"time":  RoleTimeTime,
		"host":  RoleTag,
		"value": RoleFloat,
		"count": RoleInt,
		"up":    RoleBool,
		"note":  RoleString,
	})
	require.NoError(t, err)
	return s
}

func TestSchemaValidation(t *testing.T) {
	_, err := NewSchema(map[string]Role{
		"a": RoleMeasurement,
		"b": RoleMeasurement,
		"v": RoleFloat,
	})
	var serr *SchemaError
	require.ErrorAs(t, err, &serr)

	_, err = NewSchema(map[string]Role{
		"t1": RoleTimeInt,
		"t2": RoleTimeString,
		"v":  RoleFloat,
	})
	require.ErrorAs(t, err, &serr)

	_, err = NewSchema(map[string]Role{"host": RoleTag})
	require.ErrorAs(t, err, &serr)

	_, err = NewSchema(map[string]Role{"host": RoleTag}, WithPlaceholder())
	require.NoError(t, err)

	_, err = NewSchema(map[string]Role{"v": Role(99)})
	require.ErrorAs(t, err, &serr)
}

func TestSerializerMapRecord(t *testing.T) {
	ser, err := Compile(trendSchema(t), "cpu")
	require.NoError(t, err)

	out, err := ser.Marshal(map[string]interface{}{
		"time":  time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		"host":  "server01",
		"value": 0.5,
		"count": 7,
		"up":    true,
		"note":  "ok",
	})
	require.NoError(t, err)
	require.Equal(t,
		`cpu,host=server01 up=true,count=7i,value=0.5,note="ok" 1514764800000000000`,
		string(out))
}

func TestSerializerStructRecord(t *testing.T) {
	type sample struct {
		Time  time.Time `influx:"time"`
		Host  string    `influx:"host"`
		Value float64   `influx:"value"`
		Count int       `influx:"count"`
		Up    bool      `influx:"up"`
		Note  string    `influx:"note"`
	}
	ser, err := Compile(trendSchema(t), "cpu")
	require.NoError(t, err)

	out, err := ser.Marshal(&sample{
		Time:  time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		Host:  "server01",
		Value: 0.5,
		Count: 7,
		Up:    true,
		Note:  "ok",
	})
	require.NoError(t, err)
	require.Equal(t,
		`cpu,host=server01 up=true,count=7i,value=0.5,note="ok" 1514764800000000000`,
		string(out))
}

func TestSerializerDynamicMeasurement(t *testing.T) {
	s, err := NewSchema(map[string]Role{
		"name": RoleMeasurement,
		"v":    RoleFloat,
	})
	require.NoError(t, err)
	ser, err := Compile(s, "")
	require.NoError(t, err)

	out, err := ser.Marshal(map[string]interface{}{"name": "disk", "v": 1.0})
	require.NoError(t, err)
	require.Equal(t, "disk v=1", string(out))
}

func TestCompileRequiresMeasurement(t *testing.T) {
	s, err := NewSchema(map[string]Role{"v": RoleFloat})
	require.NoError(t, err)
	_, err = Compile(s, "")
	require.ErrorIs(t, err, ErrMissingMeasurement)
}

func TestSerializerEnums(t *testing.T) {
	s, err := NewSchema(map[string]Role{
		"class": RoleTagEnum,
		"level": RoleEnum,
		"v":     RoleFloat,
	})
	require.NoError(t, err)
	ser, err := Compile(s, "events")
	require.NoError(t, err)

	out, err := ser.Marshal(map[string]interface{}{
		"class": sevWarn,
		"level": sevCrit,
		"v":     1.0,
	})
	require.NoError(t, err)
	require.Equal(t, `events,class=warn v=1,level="crit"`, string(out))
}

func TestSerializerDecimal(t *testing.T) {
	s, err := NewSchema(map[string]Role{
		"price": RoleDecimal,
	})
	require.NoError(t, err)
	ser, err := Compile(s, "trades")
	require.NoError(t, err)

	out, err := ser.Marshal(map[string]interface{}{
		"price": decimal.RequireFromString("19.99"),
	})
	require.NoError(t, err)
	require.Equal(t, "trades price=19.99", string(out))
}

func TestSerializerPlaceholder(t *testing.T) {
	s, err := NewSchema(map[string]Role{
		"host": RoleTag,
		"time": RoleTimeInt,
	}, WithPlaceholder())
	require.NoError(t, err)
	ser, err := Compile(s, "heartbeat")
	require.NoError(t, err)

	out, err := ser.Marshal(map[string]interface{}{
		"host": "a",
		"time": int64(100),
	})
	require.NoError(t, err)
	require.Equal(t, "heartbeat,host=a _placeholder=true 100", string(out))
}

func TestSerializerOmitNil(t *testing.T) {
	s, err := NewSchema(map[string]Role{
		"host": RoleTag,
		"a":    RoleFloat,
		"b":    RoleFloat,
	})
	require.NoError(t, err)

	strict, err := Compile(s, "m")
	require.NoError(t, err)
	_, err = strict.Marshal(map[string]interface{}{"host": "h", "a": 1.0, "b": nil})
	require.Error(t, err)

	lenient, err := Compile(s, "m", WithOmitNil())
	require.NoError(t, err)
	out, err := lenient.Marshal(map[string]interface{}{"host": "h", "a": 1.0, "b": nil})
	require.NoError(t, err)
	require.Equal(t, "m,host=h a=1", string(out))

	_, err = lenient.Marshal(map[string]interface{}{"host": "h", "a": nil, "b": nil})
	require.ErrorIs(t, err, ErrNoFields)
}

func TestSerializerExtraTags(t *testing.T) {
	s, err := NewSchema(map[string]Role{"v": RoleFloat})
	require.NoError(t, err)
	ser, err := Compile(s, "m", WithExtraTags(map[string]string{"env": "prod"}))
	require.NoError(t, err)

	out, err := ser.Marshal(map[string]interface{}{"v": 2.0})
	require.NoError(t, err)
	require.Equal(t, "m,env=prod v=2", string(out))
}

func TestSerializerRoleMismatch(t *testing.T) {
	s, err := NewSchema(map[string]Role{"v": RoleInt})
	require.NoError(t, err)
	ser, err := Compile(s, "m")
	require.NoError(t, err)

	_, err = ser.Marshal(map[string]interface{}{"v": "not an int"})
	require.Error(t, err)
}

func TestSerializerMissingAttribute(t *testing.T) {
	ser, err := Compile(trendSchema(t), "cpu")
	require.NoError(t, err)
	_, err = ser.Marshal(map[string]interface{}{"value": 1.0})
	require.Error(t, err)
}

func TestCompileCaching(t *testing.T) {
	s, err := NewSchema(map[string]Role{"v": RoleFloat})
	require.NoError(t, err)

	a, err := Compile(s, "cached")
	require.NoError(t, err)
	b, err := Compile(s, "cached")
	require.NoError(t, err)
	require.Same(t, a, b)

	c, err := Compile(s, "cached", WithOmitNil())
	require.NoError(t, err)
	require.NotSame(t, a, c)
}

func TestSerializerRejectsNonRecord(t *testing.T) {
	ser, err := Compile(trendSchema(t), "cpu")
	require.NoError(t, err)
	_, err = ser.Marshal(42)
	require.ErrorIs(t, err, ErrInvalidInput)
}
