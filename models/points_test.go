package models

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParsePointsBasic(t *testing.T) {
	pts, err := ParsePointsString(
		`cpu,host=server01,region=us-west value=0.5,count=2i,ok=true,msg="hello" 1434055562000000000`)
	require.NoError(t, err)
	require.Len(t, pts, 1)

	p := pts[0]
	require.Equal(t, "cpu", p.Name)
	require.Empty(t, cmp.Diff(map[string]string{"host": "server01", "region": "us-west"}, p.Tags))
	require.Empty(t, cmp.Diff(map[string]interface{}{
		"value": 0.5,
		"count": int64(2),
		"ok":    true,
		"msg":   "hello",
	}, p.Fields))
	require.True(t, p.HasTime)
	require.Equal(t, int64(1434055562000000000), p.Time)
}

func TestParsePointsNoTimestamp(t *testing.T) {
	pts, err := ParsePointsString("mem used=12i")
	require.NoError(t, err)
	require.Len(t, pts, 1)
	require.False(t, pts[0].HasTime)
	require.Empty(t, pts[0].Tags)
}

func TestParsePointsEscapedDelimiters(t *testing.T) {
	pts, err := ParsePointsString(`disk\ usage,path=/var\,log free\ space=1i`)
	require.NoError(t, err)
	require.Len(t, pts, 1)
	require.Equal(t, "disk usage", pts[0].Name)
	require.Equal(t, "/var,log", pts[0].Tags["path"])
	require.Equal(t, int64(1), pts[0].Fields["free space"])
}

func TestParsePointsQuotedFieldWithSpecials(t *testing.T) {
	pts, err := ParsePointsString(`log msg="a=b, c d \"quoted\""`)
	require.NoError(t, err)
	require.Equal(t, `a=b, c d "quoted"`, pts[0].Fields["msg"])
}

func TestParsePointsMultiLine(t *testing.T) {
	pts, err := ParsePointsString("cpu v=1i\n\ncpu v=2i\n")
	require.NoError(t, err)
	require.Len(t, pts, 2)
}

func TestParsePointsErrors(t *testing.T) {
	_, err := ParsePointsString("cpu")
	require.Error(t, err)

	_, err = ParsePointsString("cpu v=abc")
	require.Error(t, err)

	_, err = ParsePointsString("cpu v=1i notanumber")
	require.Error(t, err)
}

func TestRowSameSeries(t *testing.T) {
	a := &Row{Name: "m", Tags: map[string]string{"host": "a", "dc": "1"}}
	b := &Row{Name: "m", Tags: map[string]string{"dc": "1", "host": "a"}}
	c := &Row{Name: "m", Tags: map[string]string{"host": "b", "dc": "1"}}
	d := &Row{Name: "n", Tags: map[string]string{"host": "a", "dc": "1"}}

	require.True(t, a.SameSeries(b))
	require.False(t, a.SameSeries(c))
	require.False(t, a.SameSeries(d))
}

func TestResponseError(t *testing.T) {
	clean := &Response{Results: []Result{{StatementID: 0}}}
	require.NoError(t, clean.Error())

	top := &Response{Err: "boom"}
	require.EqualError(t, top.Error(), "boom")

	stmt := &Response{Results: []Result{{StatementID: 0}, {StatementID: 1, Err: "bad"}}}
	require.EqualError(t, stmt.Error(), "bad")
}
