package client

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"

	"github.com/edgeflux/influxline/serialization"
)

// WriteParams shapes one write request. Database is required; everything
// else is optional. Measurement, TagColumns and ExtraTags are forwarded to
// the serialization router for inputs that need them.
type WriteParams struct {
	Database        string
	RetentionPolicy string
	// Precision of the payload timestamps ("ns" if empty).
	Precision   string
	Consistency string

	Measurement string
	TagColumns  []string
	ExtraTags   map[string]string
}

// WriteError is a failed write as reported by the server, distinct from
// query errors. Body carries the server's error detail and ErrHeader the
// X-Influxdb-Error header when present.
type WriteError struct {
	StatusCode int
	Body       string
	ErrHeader  string
}

func (e *WriteError) Error() string {
	msg := fmt.Sprintf("write failed: status code %d", e.StatusCode)
	if e.ErrHeader != "" {
		msg += ": " + e.ErrHeader
	} else if e.Body != "" {
		msg += ": " + strings.TrimSpace(e.Body)
	}
	return msg
}

// Write serializes data and posts it to the /write endpoint. data may be
// anything the serialization router accepts: raw bytes or strings, Point
// values, point-shaped maps, Tables, compiled-schema records, or slices of
// any of these. The call is synchronous and never retried.
func (c *Client) Write(data interface{}, p WriteParams) error {
	body, err := serialization.Serialize(data, p.Measurement, p.TagColumns, p.ExtraTags)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errors.Wrap(serialization.ErrInvalidInput, "empty write body")
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.writeURI(p))
	req.Header.SetUserAgent(c.useragent)
	if c.username != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.password))
		req.Header.Set("Authorization", "Basic "+cred)
	}

	if c.encoding == GzipEncoding {
		req.Header.Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(req.BodyWriter())
		if _, err := zw.Write(body); err != nil {
			return errors.Wrap(err, "compressing write body")
		}
		if err := zw.Close(); err != nil {
			return errors.Wrap(err, "compressing write body")
		}
	} else {
		req.SetBody(body)
	}

	if c.timeout > 0 {
		err = c.fastClient.DoTimeout(req, resp, c.timeout)
	} else {
		err = c.fastClient.Do(req, resp)
	}
	if err != nil {
		return errors.Wrap(err, "write request failed")
	}

	status := resp.StatusCode()
	if status != fasthttp.StatusNoContent && status != fasthttp.StatusOK {
		return &WriteError{
			StatusCode: status,
			Body:       string(resp.Body()),
			ErrHeader:  string(resp.Header.Peek("X-Influxdb-Error")),
		}
	}
	c.log.Debug().Int("bytes", len(body)).Str("db", p.Database).Msg("write ok")
	return nil
}

func (c *Client) writeURI(p WriteParams) string {
	u := c.url
	u.Path = path.Join(u.Path, "write")

	params := url.Values{}
	params.Set("db", p.Database)
	if p.RetentionPolicy != "" {
		params.Set("rp", p.RetentionPolicy)
	}
	if p.Precision != "" {
		params.Set("precision", p.Precision)
	}
	if p.Consistency != "" {
		params.Set("consistency", p.Consistency)
	}
	u.RawQuery = params.Encode()
	return u.String()
}
