package serialization

import (
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/edgeflux/influxline/pkg/escape"
)

// ColumnKind classifies a table column. Categorical columns are treated as
// tag columns during serialization; every other kind is a field column.
type ColumnKind int

const (
	KindFloat ColumnKind = iota
	KindInteger
	KindBool
	KindString
	KindCategorical
)

func (k ColumnKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInteger:
		return "integer"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindCategorical:
		return "categorical"
	}
	return "unknown"
}

// Column is a named, typed column. A nil cell is a null and is elided
// during serialization.
type Column struct {
	Name   string
	Kind   ColumnKind
	Values []interface{}
}

// Table is a time-indexed sequence of rows with named, typed columns.
// Tables are produced by callers for writes and reconstructed from query
// responses by ResponseTables.
type Table struct {
	// Name and Tags carry series identity on tables reconstructed from a
	// query response. They are ignored during serialization.
	Name string
	Tags map[string]string

	index      []int64 // nanosecond epochs, row-aligned
	positional bool    // true when the natural time axis was dropped
	columns    []Column
}

// NewTable creates a table from a timestamp row index. The index must be a
// []time.Time or a []int64 of nanosecond epochs; any other type fails with
// ErrIndexType.
func NewTable(index interface{}) (*Table, error) {
	switch idx := index.(type) {
	case []time.Time:
		ns := make([]int64, len(idx))
		for i, t := range idx {
			ns[i] = t.UnixNano()
		}
		return &Table{index: ns}, nil
	case []int64:
		ns := make([]int64, len(idx))
		copy(ns, idx)
		return &Table{index: ns}, nil
	default:
		return nil, errors.Wrapf(ErrIndexType, "got %T", index)
	}
}

// newPositionalTable creates a table without a time axis. Such tables come
// from aggregate queries and cannot be serialized back into line protocol.
func newPositionalTable(rows int) *Table {
	return &Table{index: make([]int64, rows), positional: true}
}

// AddColumn appends a column. The column length must match the row index.
func (t *Table) AddColumn(name string, kind ColumnKind, values []interface{}) error {
	if len(values) != len(t.index) {
		return errors.Errorf("column %q has %d values, index has %d rows",
			name, len(values), len(t.index))
	}
	t.columns = append(t.columns, Column{Name: name, Kind: kind, Values: values})
	return nil
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.index) }

// Columns returns the columns in declaration order.
func (t *Table) Columns() []Column { return t.columns }

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.columns {
		if t.columns[i].Name == name {
			return &t.columns[i]
		}
	}
	return nil
}

// Timestamps returns the nanosecond row index. ok is false for positional
// tables, which have no natural time axis.
func (t *Table) Timestamps() (ns []int64, ok bool) {
	return t.index, !t.positional
}

// MarshalTable serializes a table into line protocol, one line per row in
// row order. Tag columns are the explicitly named ones plus every
// Categorical column; naming a column that does not exist fails fast.
// Null cells are skipped while the line is built, so a row with partial
// nulls serializes cleanly; a row whose fields all elide fails with
// ErrNoFields.
func MarshalTable(t *Table, measurement string, tagColumns []string, extraTags map[string]string) ([]byte, error) {
	if t.positional {
		return nil, errors.Wrap(ErrIndexType, "table has a positional index")
	}
	name := escape.Measurement(measurement)
	if name == "" {
		return nil, ErrMissingMeasurement
	}

	isTag := make(map[string]bool, len(tagColumns))
	for _, tc := range tagColumns {
		if t.Column(tc) == nil {
			return nil, errors.Errorf("tag column %q not in table", tc)
		}
		isTag[tc] = true
	}
	var tagCols, fieldCols []*Column
	for i := range t.columns {
		c := &t.columns[i]
		if isTag[c.Name] || c.Kind == KindCategorical {
			tagCols = append(tagCols, c)
		} else {
			fieldCols = append(fieldCols, c)
		}
	}
	sort.Slice(tagCols, func(i, j int) bool { return tagCols[i].Name < tagCols[j].Name })
	sort.Slice(fieldCols, func(i, j int) bool { return fieldCols[i].Name < fieldCols[j].Name })

	// Constant tag segment shared by every row. Tag columns win over
	// extraTags on key collision, as record tags do on the point path.
	constExtra := extraTags
	if len(extraTags) > 0 {
		constExtra = make(map[string]string, len(extraTags))
		for k, v := range extraTags {
			constExtra[k] = v
		}
		for _, c := range tagCols {
			delete(constExtra, c.Name)
		}
	}
	var constTags []byte
	constTags = appendTags(constTags, constExtra)

	var out []byte
	for row := 0; row < len(t.index); row++ {
		if row > 0 {
			out = append(out, '\n')
		}
		out = append(out, name...)
		out = append(out, constTags...)
		for _, c := range tagCols {
			v := coerceTagValue(c.Values[row])
			if v == "" {
				continue
			}
			out = append(out, ',')
			out = append(out, escape.Key(c.Name)...)
			out = append(out, '=')
			out = append(out, v...)
		}
		out = append(out, ' ')

		n := 0
		for _, c := range fieldCols {
			v := c.Values[row]
			if v == nil {
				continue
			}
			if n > 0 {
				out = append(out, ',')
			}
			out = append(out, escape.Key(c.Name)...)
			out = append(out, '=')
			out = appendFieldValue(out, v)
			n++
		}
		if n == 0 {
			return nil, errors.Wrapf(ErrNoFields, "row %d", row)
		}

		out = append(out, ' ')
		out = strconv.AppendInt(out, t.index[row], 10)
	}
	return out, nil
}
