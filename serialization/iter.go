package serialization

import (
	"io"

	"github.com/edgeflux/influxline/models"
)

// Meta describes the series a point was read from.
type Meta struct {
	Columns     []string
	Name        string
	Tags        map[string]string
	StatementID int
}

// PointIterator is a lazy, single-pass, non-restartable walk over the
// points of one or more responses. It flattens across every series of
// every statement, in statement-then-series order; empty statements
// contribute nothing.
//
//	it := serialization.Points(resp)
//	for it.Next() {
//	    values, meta := it.Values(), it.Meta()
//	    ...
//	}
//	if err := it.Err(); err != nil { ... }
type PointIterator struct {
	next func() (*models.Response, error)

	resp   *models.Response
	stmt   int
	series int
	row    int

	values []interface{}
	meta   Meta
	err    error
	done   bool
}

// Points iterates a single parsed response.
func Points(resp *models.Response) *PointIterator {
	return &PointIterator{resp: resp}
}

// StreamPoints iterates a sequence of chunked responses without buffering
// them. next is called whenever the current chunk is exhausted; it returns
// io.EOF (or a nil response) when the stream ends. Each chunk is checked
// for server-reported errors before its points are surfaced.
func StreamPoints(next func() (*models.Response, error)) *PointIterator {
	return &PointIterator{next: next}
}

// Next advances to the next point. It returns false at the end of the data
// or on error; consult Err afterwards.
func (it *PointIterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	for {
		if it.resp == nil {
			if !it.pull() {
				return false
			}
		}
		for it.stmt < len(it.resp.Results) {
			result := &it.resp.Results[it.stmt]
			for it.series < len(result.Series) {
				s := &result.Series[it.series]
				if it.row < len(s.Values) {
					it.values = s.Values[it.row]
					it.meta = Meta{
						Columns:     s.Columns,
						Name:        s.Name,
						Tags:        s.Tags,
						StatementID: result.StatementID,
					}
					it.row++
					return true
				}
				it.series++
				it.row = 0
			}
			it.stmt++
			it.series = 0
			it.row = 0
		}
		// current response exhausted
		it.resp = nil
		it.stmt = 0
		if it.next == nil {
			it.done = true
			return false
		}
	}
}

// pull fetches the next chunk in streaming mode.
func (it *PointIterator) pull() bool {
	if it.next == nil {
		it.done = true
		return false
	}
	resp, err := it.next()
	if err == io.EOF || (err == nil && resp == nil) {
		it.done = true
		return false
	}
	if err != nil {
		it.err = err
		return false
	}
	if qerr := ResponseError(resp); qerr != nil {
		it.err = qerr
		return false
	}
	it.resp = resp
	return true
}

// Values returns the current point's raw value tuple, column-aligned with
// Meta().Columns.
func (it *PointIterator) Values() []interface{} { return it.values }

// Meta returns the current point's series metadata.
func (it *PointIterator) Meta() Meta { return it.meta }

// Err returns the first error encountered while iterating.
func (it *PointIterator) Err() error { return it.err }

// Each applies fn to every remaining point. Iteration stops at the first
// error, either fn's or the stream's.
func (it *PointIterator) Each(fn func(values []interface{}, meta Meta) error) error {
	for it.Next() {
		if err := fn(it.values, it.meta); err != nil {
			return err
		}
	}
	return it.err
}
