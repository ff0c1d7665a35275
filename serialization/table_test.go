package serialization

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable([]time.Time{
		time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2018, 1, 1, 0, 0, 1, 0, time.UTC),
		time.Date(2018, 1, 1, 0, 0, 2, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("host", KindCategorical,
		[]interface{}{"a", "a", "b"}))
	require.NoError(t, tbl.AddColumn("value", KindFloat,
		[]interface{}{1.5, 2.5, 3.5}))
	require.NoError(t, tbl.AddColumn("count", KindInteger,
		[]interface{}{int64(1), int64(2), int64(3)}))
	return tbl
}

func TestMarshalTableBasic(t *testing.T) {
	out, err := MarshalTable(testTable(t), "cpu", nil, nil)
	require.NoError(t, err)

	lines := strings.Split(string(out), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "cpu,host=a count=1i,value=1.5 1514764800000000000", lines[0])
	require.Equal(t, "cpu,host=a count=2i,value=2.5 1514764801000000000", lines[1])
	require.Equal(t, "cpu,host=b count=3i,value=3.5 1514764802000000000", lines[2])
}

func TestMarshalTableExplicitTagColumn(t *testing.T) {
	tbl, err := NewTable([]int64{100, 200})
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("region", KindString,
		[]interface{}{"us", "eu"}))
	require.NoError(t, tbl.AddColumn("v", KindFloat,
		[]interface{}{1.0, 2.0}))

	out, err := MarshalTable(tbl, "m", []string{"region"}, nil)
	require.NoError(t, err)
	require.Equal(t, "m,region=us v=1 100\nm,region=eu v=2 200", string(out))
}

func TestMarshalTableExtraTags(t *testing.T) {
	out, err := MarshalTable(testTable(t), "cpu", nil, map[string]string{"env": "prod"})
	require.NoError(t, err)
	lines := strings.Split(string(out), "\n")
	for _, line := range lines {
		require.True(t, strings.HasPrefix(line, "cpu,env=prod,host="), line)
	}
}

func TestMarshalTableExtraTagCollision(t *testing.T) {
	// per-row tag columns win over extra tags on key collision
	out, err := MarshalTable(testTable(t), "cpu", nil,
		map[string]string{"host": "x", "env": "prod"})
	require.NoError(t, err)

	lines := strings.Split(string(out), "\n")
	require.Equal(t, "cpu,env=prod,host=a count=1i,value=1.5 1514764800000000000", lines[0])
	require.Equal(t, "cpu,env=prod,host=b count=3i,value=3.5 1514764802000000000", lines[2])
}

func TestMarshalTableNullCellsElided(t *testing.T) {
	tbl, err := NewTable([]int64{100, 200})
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("a", KindFloat, []interface{}{1.0, nil}))
	require.NoError(t, tbl.AddColumn("b", KindInteger, []interface{}{nil, int64(2)}))

	out, err := MarshalTable(tbl, "m", nil, nil)
	require.NoError(t, err)
	require.Equal(t, "m a=1 100\nm b=2i 200", string(out))
}

func TestMarshalTableAllNullRow(t *testing.T) {
	tbl, err := NewTable([]int64{100})
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("a", KindFloat, []interface{}{nil}))

	_, err = MarshalTable(tbl, "m", nil, nil)
	require.ErrorIs(t, err, ErrNoFields)
}

func TestMarshalTableUnknownTagColumn(t *testing.T) {
	_, err := MarshalTable(testTable(t), "cpu", []string{"nonexistent"}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nonexistent")
}

func TestMarshalTableMissingMeasurement(t *testing.T) {
	_, err := MarshalTable(testTable(t), "", nil, nil)
	require.ErrorIs(t, err, ErrMissingMeasurement)
}

func TestNewTableIndexType(t *testing.T) {
	_, err := NewTable([]string{"not", "times"})
	require.ErrorIs(t, err, ErrIndexType)

	_, err = NewTable(42)
	require.ErrorIs(t, err, ErrIndexType)
}

func TestMarshalTablePositional(t *testing.T) {
	tbl := newPositionalTable(2)
	require.NoError(t, tbl.AddColumn("v", KindFloat, []interface{}{1.0, 2.0}))

	_, err := MarshalTable(tbl, "m", nil, nil)
	require.ErrorIs(t, err, ErrIndexType)

	_, ok := tbl.Timestamps()
	require.False(t, ok)
}

func TestAddColumnLengthMismatch(t *testing.T) {
	tbl, err := NewTable([]int64{100, 200})
	require.NoError(t, err)
	require.Error(t, tbl.AddColumn("v", KindFloat, []interface{}{1.0}))
}
