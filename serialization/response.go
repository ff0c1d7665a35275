package serialization

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/edgeflux/influxline/models"
)

// ParseResponse decodes a query-response JSON payload. Numbers are kept as
// json.Number so integer fields survive the round trip undamaged. A
// server-reported error, top-level or per-statement, fails with *QueryError
// rather than returning partial data.
func ParseResponse(data []byte) (*models.Response, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var resp models.Response
	if err := dec.Decode(&resp); err != nil {
		return nil, errors.Wrap(err, "unable to decode response json")
	}
	if err := ResponseError(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResponseError surfaces error keys of an already-decoded response as a
// *QueryError, or nil when the response is clean.
func ResponseError(resp *models.Response) error {
	if resp.Err != "" {
		return &QueryError{StatementID: -1, Message: resp.Err}
	}
	for i := range resp.Results {
		if resp.Results[i].Err != "" {
			return &QueryError{StatementID: resp.Results[i].StatementID, Message: resp.Results[i].Err}
		}
	}
	return nil
}

// TableSet holds reconstructed tables keyed by series identity
// (name plus sorted tag items), in first-seen order.
type TableSet struct {
	keys   []string
	tables map[string]*Table
}

// Keys returns the identity keys in first-seen order.
func (ts *TableSet) Keys() []string { return ts.keys }

// Get returns the table for an identity key.
func (ts *TableSet) Get(key string) *Table { return ts.tables[key] }

// Len returns the number of distinct series identities.
func (ts *TableSet) Len() int { return len(ts.keys) }

// Single returns the only table in the set. ok is false unless exactly one
// series identity is present.
func (ts *TableSet) Single() (*Table, bool) {
	if len(ts.keys) != 1 {
		return nil, false
	}
	return ts.tables[ts.keys[0]], true
}

// Tables returns the tables in first-seen key order.
func (ts *TableSet) Tables() []*Table {
	out := make([]*Table, 0, len(ts.keys))
	for _, k := range ts.keys {
		out = append(out, ts.tables[k])
	}
	return out
}

// seriesKey builds the identity key for concatenation: the series name
// joined with its sorted tag items.
func seriesKey(row *models.Row) string {
	var b bytes.Buffer
	b.WriteString(row.Name)
	for _, k := range sortedTagKeys(row.Tags) {
		b.WriteByte(',')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(row.Tags[k])
	}
	return b.String()
}

func sortedTagKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResponseTables reconstructs a response into tables grouped by series
// identity. Same-identity series found across multiple statements are
// concatenated in statement-then-series order. Series-level tags become
// constant Categorical columns. When every timestamp of a table is exactly
// zero (aggregate queries without a natural time axis) the index collapses
// to a plain positional one. A non-nil TagCache marks value columns that
// are known tag keys of the measurement as Categorical; this is an
// optional enrichment, not required for correctness.
func ResponseTables(resp *models.Response, cache *TagCache) (*TableSet, error) {
	if err := ResponseError(resp); err != nil {
		return nil, err
	}
	ts := &TableSet{tables: map[string]*Table{}}
	for ri := range resp.Results {
		result := &resp.Results[ri]
		for si := range result.Series {
			row := &result.Series[si]
			key := seriesKey(row)
			tbl, ok := ts.tables[key]
			if !ok {
				tbl = &Table{Name: row.Name, Tags: copyTags(row.Tags)}
				initTableColumns(tbl, row, cache)
				ts.tables[key] = tbl
				ts.keys = append(ts.keys, key)
			}
			if err := appendSeriesRows(tbl, row); err != nil {
				return nil, err
			}
		}
	}
	for _, key := range ts.keys {
		dropZeroIndex(ts.tables[key])
	}
	return ts, nil
}

func copyTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

// initTableColumns sets up the table's column layout from the first series
// carrying the identity: one column per non-time response column, plus one
// constant Categorical column per series-level tag.
func initTableColumns(tbl *Table, row *models.Row, cache *TagCache) {
	for _, col := range row.Columns {
		if col == "time" {
			continue
		}
		kind := KindString
		if cache != nil && cache.IsTagKey(row.Name, col) {
			kind = KindCategorical
		}
		tbl.columns = append(tbl.columns, Column{Name: col, Kind: kind})
	}
	for _, k := range sortedTagKeys(row.Tags) {
		tbl.columns = append(tbl.columns, Column{Name: k, Kind: KindCategorical})
	}
}

// appendSeriesRows concatenates one series' value matrix onto the table.
func appendSeriesRows(tbl *Table, row *models.Row) error {
	timeIdx := -1
	for i, col := range row.Columns {
		if col == "time" {
			timeIdx = i
			break
		}
	}

	// column positions in the table for each response column
	colPos := make([]int, len(row.Columns))
	for i, col := range row.Columns {
		colPos[i] = -1
		if i == timeIdx {
			continue
		}
		found := false
		for j := range tbl.columns {
			if tbl.columns[j].Name == col {
				colPos[i] = j
				found = true
				break
			}
		}
		if !found {
			return errors.Errorf("series %q: column %q not present in earlier same-identity series",
				row.Name, col)
		}
	}

	for _, values := range row.Values {
		var ns int64
		if timeIdx >= 0 && timeIdx < len(values) {
			v, _, err := NormalizeTimestamp(values[timeIdx])
			if err != nil {
				return errors.Wrapf(err, "series %q", row.Name)
			}
			ns = v
		} else {
			tbl.positional = true
		}
		tbl.index = append(tbl.index, ns)

		appended := make([]bool, len(tbl.columns))
		for i, v := range values {
			if colPos[i] < 0 {
				continue
			}
			c := &tbl.columns[colPos[i]]
			c.Values = append(c.Values, refineValue(c, v))
			appended[colPos[i]] = true
		}
		// constant tag columns and any response column absent from this row
		for j := range tbl.columns {
			if appended[j] {
				continue
			}
			c := &tbl.columns[j]
			if tv, ok := tbl.Tags[c.Name]; ok && c.Kind == KindCategorical {
				c.Values = append(c.Values, tv)
			} else {
				c.Values = append(c.Values, nil)
			}
		}
	}
	return nil
}

// refineValue upgrades a decoded cell to a kind-appropriate Go value and
// settles the column kind on first contact with real data.
func refineValue(c *Column, v interface{}) interface{} {
	switch tv := v.(type) {
	case nil:
		return nil
	case bool:
		c.Kind = KindBool
		return tv
	case json.Number:
		if iv, err := tv.Int64(); err == nil {
			if c.Kind == KindFloat {
				// column already settled on float, keep it uniform
				return float64(iv)
			}
			c.Kind = KindInteger
			return iv
		}
		if c.Kind == KindInteger {
			// settled too early on integral-looking cells, upgrade them
			for i, prev := range c.Values {
				if pv, ok := prev.(int64); ok {
					c.Values[i] = float64(pv)
				}
			}
		}
		c.Kind = KindFloat
		fv, _ := tv.Float64()
		return fv
	case string:
		return tv
	default:
		return tv
	}
}

// dropZeroIndex resets a table to a positional index when every row's
// timestamp is exactly zero.
func dropZeroIndex(tbl *Table) {
	if len(tbl.index) == 0 || tbl.positional {
		return
	}
	for _, ns := range tbl.index {
		if ns != 0 {
			return
		}
	}
	tbl.positional = true
}
