// Package client is the thin HTTP plumbing around the serialization
// engine: it ships line-protocol bytes to the /write endpoint and hands
// query-response JSON to the deserializer. Retry, backoff and pooling
// policy deliberately live outside this package.
package client

import (
	"crypto/tls"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/influxql"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/edgeflux/influxline/models"
	"github.com/edgeflux/influxline/serialization"
)

// ContentEncoding selects the write-body encoding.
type ContentEncoding string

const (
	DefaultEncoding ContentEncoding = ""
	GzipEncoding    ContentEncoding = "gzip"
)

// HTTPConfig configures a Client.
type HTTPConfig struct {
	// Addr must be of the form "http://host:port".
	Addr string

	Username string
	Password string

	// UserAgent sent with every request. Defaults to "influxline".
	UserAgent string

	// Timeout for requests. Zero means no timeout.
	Timeout time.Duration

	InsecureSkipVerify bool

	TLSConfig *tls.Config

	Proxy func(req *http.Request) (*url.URL, error)

	// WriteEncoding selects the encoding of write bodies.
	WriteEncoding ContentEncoding

	// ValidateQueries parses each query statement client-side before it is
	// sent, turning server round trips for syntax errors into local ones.
	ValidateQueries bool
}

// Client talks to a single InfluxDB-compatible HTTP endpoint.
type Client struct {
	url        url.URL
	username   string
	password   string
	useragent  string
	httpClient *http.Client
	fastClient *fasthttp.Client
	transport  *http.Transport
	encoding   ContentEncoding
	validate   bool
	timeout    time.Duration
	log        zerolog.Logger
}

// NewHTTPClient builds a Client from config. The address scheme must be
// http or https.
func NewHTTPClient(conf HTTPConfig) (*Client, error) {
	if conf.UserAgent == "" {
		conf.UserAgent = "influxline"
	}

	u, err := url.Parse(conf.Addr)
	if err != nil {
		return nil, errors.Wrap(err, "invalid address")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf(
			"unsupported protocol scheme %q: address must start with http:// or https://", u.Scheme)
	}

	switch conf.WriteEncoding {
	case DefaultEncoding, GzipEncoding:
	default:
		return nil, errors.Errorf("unsupported write encoding %q", conf.WriteEncoding)
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: conf.InsecureSkipVerify}
	if conf.TLSConfig != nil {
		tlsConfig = conf.TLSConfig
	}
	tr := &http.Transport{
		TLSClientConfig: tlsConfig,
		Proxy:           conf.Proxy,
	}
	return &Client{
		url:       *u,
		username:  conf.Username,
		password:  conf.Password,
		useragent: conf.UserAgent,
		httpClient: &http.Client{
			Timeout:   conf.Timeout,
			Transport: tr,
		},
		fastClient: &fasthttp.Client{
			Name:      conf.UserAgent,
			TLSConfig: tlsConfig,
		},
		transport: tr,
		encoding:  conf.WriteEncoding,
		validate:  conf.ValidateQueries,
		timeout:   conf.Timeout,
		log:       zerolog.New(os.Stderr).With().Timestamp().Str("component", "client").Logger(),
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.transport.CloseIdleConnections()
	c.fastClient.CloseIdleConnections()
	return nil
}

// Ping checks connectivity. It returns the observed round-trip latency and
// the server version header. A non-zero timeout is passed to the server as
// wait_for_leader.
func (c *Client) Ping(timeout time.Duration) (time.Duration, string, error) {
	now := time.Now()

	u := c.url
	u.Path = path.Join(u.Path, "ping")

	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("User-Agent", c.useragent)
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	if timeout > 0 {
		params := req.URL.Query()
		params.Set("wait_for_leader", strconv.FormatFloat(timeout.Seconds(), 'f', 0, 64)+"s")
		req.URL.RawQuery = params.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", err
	}
	if resp.StatusCode != http.StatusNoContent {
		return 0, "", errors.New(string(body))
	}
	version := resp.Header.Get("X-Influxdb-Version")
	return time.Since(now), version, nil
}

// Query describes one query request.
type Query struct {
	Command         string
	Database        string
	RetentionPolicy string
	// Precision is the epoch precision of response timestamps
	// ("ns", "u", "ms", "s", "m", "h"). Empty means RFC3339 strings.
	Precision  string
	Chunked    bool
	ChunkSize  int
	Parameters map[string]interface{}
}

// NewQuery builds a Query against a database with the given epoch
// precision.
func NewQuery(command, database, precision string) Query {
	return Query{
		Command:    command,
		Database:   database,
		Precision:  precision,
		Parameters: make(map[string]interface{}),
	}
}

// ValidateQuery parses a query command client-side and returns the syntax
// error the server would have reported.
func ValidateQuery(command string) error {
	_, err := influxql.ParseQuery(command)
	return errors.Wrap(err, "invalid query")
}

// Query executes a query and returns the fully-decoded response. A
// server-reported error inside an HTTP 200 response is surfaced through
// serialization.ResponseError on the returned response by Tables/Points
// consumers; callers inspecting the raw response can use Response.Error.
func (c *Client) Query(q Query) (*models.Response, error) {
	if c.validate {
		if err := ValidateQuery(q.Command); err != nil {
			return nil, err
		}
	}
	req, err := c.createQueryRequest(q)
	if err != nil {
		return nil, err
	}
	params := req.URL.Query()
	if q.Chunked {
		params.Set("chunked", "true")
		if q.ChunkSize > 0 {
			params.Set("chunk_size", strconv.Itoa(q.ChunkSize))
		}
		req.URL.RawQuery = params.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var response models.Response
	if q.Chunked {
		cr := NewChunkedResponse(resp.Body)
		for {
			r, err := cr.NextResponse()
			if err != nil {
				if err == io.EOF {
					break
				}
				return nil, err
			}
			if r == nil {
				break
			}
			response.Results = append(response.Results, r.Results...)
			if r.Err != "" {
				response.Err = r.Err
				break
			}
		}
	} else {
		dec := json.NewDecoder(resp.Body)
		dec.UseNumber()
		decErr := dec.Decode(&response)
		if decErr != nil && decErr.Error() == "EOF" && resp.StatusCode != http.StatusOK {
			decErr = nil
		}
		if decErr != nil {
			return nil, errors.Wrapf(decErr, "unable to decode json: received status code %d", resp.StatusCode)
		}
	}

	if resp.StatusCode != http.StatusOK && response.Error() == nil {
		return &response, errors.Errorf("received status code %d from server", resp.StatusCode)
	}
	return &response, nil
}

// QueryAsChunk executes a chunked query and returns the undrained stream.
func (c *Client) QueryAsChunk(q Query) (*ChunkedResponse, error) {
	if c.validate {
		if err := ValidateQuery(q.Command); err != nil {
			return nil, err
		}
	}
	req, err := c.createQueryRequest(q)
	if err != nil {
		return nil, err
	}
	params := req.URL.Query()
	params.Set("chunked", "true")
	if q.ChunkSize > 0 {
		params.Set("chunk_size", strconv.Itoa(q.ChunkSize))
	}
	req.URL.RawQuery = params.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return NewChunkedResponse(resp.Body), nil
}

// StreamPoints executes a chunked query and returns a lazy point iterator
// over the stream. The iterator owns the response body; draining it
// releases the connection.
func (c *Client) StreamPoints(q Query) (*serialization.PointIterator, error) {
	cr, err := c.QueryAsChunk(q)
	if err != nil {
		return nil, err
	}
	return serialization.StreamPoints(cr.NextResponse), nil
}

// checkResponse rejects responses that evidently did not come from an
// InfluxDB-compatible server, such as proxy error pages.
func checkResponse(resp *http.Response) error {
	if resp.Header.Get("X-Influxdb-Version") == "" && resp.StatusCode >= http.StatusInternalServerError {
		body, err := io.ReadAll(resp.Body)
		if err != nil || len(body) == 0 {
			return errors.Errorf("received status code %d from downstream server", resp.StatusCode)
		}
		return errors.Errorf("received status code %d from downstream server, with response body: %q",
			resp.StatusCode, body)
	}
	if cType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); cType != "application/json" {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if err != nil || len(body) == 0 {
			return errors.Errorf("expected json response, got empty body, with status: %v", resp.StatusCode)
		}
		return errors.Errorf("expected json response, got %q, with status: %v and response body: %q",
			cType, resp.StatusCode, body)
	}
	return nil
}

func (c *Client) createQueryRequest(q Query) (*http.Request, error) {
	u := c.url
	u.Path = path.Join(u.Path, "query")

	jsonParameters, err := json.Marshal(q.Parameters)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "")
	req.Header.Set("User-Agent", c.useragent)
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	params := req.URL.Query()
	params.Set("q", q.Command)
	params.Set("db", q.Database)
	if q.RetentionPolicy != "" {
		params.Set("rp", q.RetentionPolicy)
	}
	if len(q.Parameters) > 0 {
		params.Set("params", string(jsonParameters))
	}
	if q.Precision != "" {
		params.Set("epoch", q.Precision)
	}
	req.URL.RawQuery = params.Encode()
	return req, nil
}

// ChunkedResponse decodes a streamed query response chunk by chunk. Each
// chunk is a complete, independently-parseable JSON object.
type ChunkedResponse struct {
	dec  *json.Decoder
	body io.Closer
	buf  *strings.Builder
}

// NewChunkedResponse wraps a response body stream.
func NewChunkedResponse(r io.Reader) *ChunkedResponse {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	buf := &strings.Builder{}
	dec := json.NewDecoder(io.TeeReader(rc, buf))
	dec.UseNumber()
	return &ChunkedResponse{dec: dec, body: rc, buf: buf}
}

// NextResponse decodes the next chunk. It returns io.EOF at the end of the
// stream. On a malformed chunk the raw bytes read so far are surfaced in
// the error, since proxies are known to inject plain-text bodies.
func (r *ChunkedResponse) NextResponse() (*models.Response, error) {
	var response models.Response
	if err := r.dec.Decode(&response); err != nil {
		if err == io.EOF {
			return nil, err
		}
		io.Copy(io.Discard, r.dec.Buffered())
		return nil, errors.New(strings.TrimSpace(r.buf.String()))
	}
	r.buf.Reset()
	return &response, nil
}

// Close releases the underlying response body.
func (r *ChunkedResponse) Close() error {
	return r.body.Close()
}
