package models

import "github.com/pkg/errors"

// Message is an informational note attached to a query result.
type Message struct {
	Level string `json:"level,omitempty"`
	Text  string `json:"text,omitempty"`
}

// Result is one statement's block within a query response.
type Result struct {
	StatementID int        `json:"statement_id"`
	Series      []Row      `json:"series,omitempty"`
	Messages    []*Message `json:"messages,omitempty"`
	Partial     bool       `json:"partial,omitempty"`
	Err         string     `json:"error,omitempty"`
}

// Response is the top-level query response shape:
//
//	{"results": [{"statement_id": 0, "series": [...]}], "error": "..."}
type Response struct {
	Results []Result `json:"results,omitempty"`
	Err     string   `json:"error,omitempty"`
}

// Error returns the first error reported by the response, top-level first,
// then per-statement. A nil return means the server reported success.
func (r *Response) Error() error {
	if r.Err != "" {
		return errors.New(r.Err)
	}
	for _, result := range r.Results {
		if result.Err != "" {
			return errors.New(result.Err)
		}
	}
	return nil
}
