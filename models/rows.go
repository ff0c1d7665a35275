package models

import (
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Row represents a single series returned by a query. It mirrors the
// "series" object of the InfluxDB response JSON.
type Row struct {
	Name    string            `json:"name,omitempty"`
	Tags    map[string]string `json:"tags,omitempty"`
	Columns []string          `json:"columns,omitempty"`
	Values  [][]interface{}   `json:"values,omitempty"`
	Partial bool              `json:"partial,omitempty"`
}

// SameSeries reports whether r and o belong to the same series: identical
// name and identical tag set.
func (r *Row) SameSeries(o *Row) bool {
	return r.Name == o.Name && r.tagsHash() == o.tagsHash()
}

func (r *Row) tagsHash() uint64 {
	h := xxhash.New()
	for _, k := range r.tagsKeys() {
		h.WriteString(k)
		h.WriteString(r.Tags[k])
	}
	return h.Sum64()
}

func (r *Row) tagsKeys() []string {
	a := make([]string, 0, len(r.Tags))
	for k := range r.Tags {
		a = append(a, k)
	}
	sort.Strings(a)
	return a
}
