// Package feed downloads supplier feeds and decodes them into generic
// documents: JSON objects, XML (elements as keys, attributes prefixed with
// "-", element text under "#text"), and spreadsheet or CSV rows keyed by
// their header row.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Format selects the feed decoder.
type Format string

const (
	FormatAuto Format = ""
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

const (
	defaultTimeout = 2 * time.Minute
	// defaultMaxBody bounds a feed download. The largest supplier feeds are a few hundred MB.
	defaultMaxBody = 512 << 20
)

var (
	// ErrFetch wraps transport failures and non-2xx responses.
	ErrFetch = errors.New("feed: fetch failed")
	// ErrParse wraps decoding failures.
	ErrParse = errors.New("feed: parse failed")
)

// Request describes one feed download.
type Request struct {
	Format   Format
	Method   string
	Headers  map[string]string
	Query    url.Values
	Username string
	Password string
	// Body is sent as is for POST feeds.
	Body    string
	Timeout time.Duration
}

// Client downloads and decodes supplier feeds.
type Client struct {
	httpClient *http.Client
	maxBody    int64
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithMaxBodySize bounds the accepted response size.
func WithMaxBodySize(n int64) ClientOption {
	return func(cl *Client) {
		cl.maxBody = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(cl *Client) {
		cl.logger = l
	}
}

// NewClient creates a feed client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxBody:    defaultMaxBody,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads rawURL and decodes it. The format comes from the request,
// then the response content type, then the URL extension, then the body.
func (c *Client) Fetch(ctx context.Context, rawURL string, req Request) (any, error) {
	body, contentType, err := c.download(ctx, rawURL, req)
	if err != nil {
		return nil, err
	}

	format := req.Format
	if format == FormatAuto {
		format = detectFormat(contentType, rawURL, body)
	}

	start := time.Now()
	doc, err := Decode(body, format)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("feed decoded",
		zap.String("url", redact(rawURL)),
		zap.String("format", string(format)),
		zap.Int("bytes", len(body)),
		zap.Duration("decode_time", time.Since(start)),
	)
	return doc, nil
}

// Decode decodes body in the given format.
func Decode(body []byte, format Format) (any, error) {
	var (
		doc any
		err error
	)
	switch format {
	case FormatJSON:
		doc, err = decodeJSON(body)
	case FormatXML:
		doc, err = decodeXML(body)
	case FormatXLSX:
		doc, err = decodeXLSX(body)
	case FormatCSV:
		doc, err = decodeCSV(body)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrParse, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, format, err)
	}
	return doc, nil
}

func (c *Client) download(ctx context.Context, rawURL string, req Request) ([]byte, string, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid url: %v", ErrFetch, err)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var reqBody io.Reader
	if req.Body != "" {
		reqBody = strings.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	httpReq.Header.Set("User-Agent", "eshop-importer/1.0")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Username != "" || req.Password != "" {
		httpReq.SetBasicAuth(req.Username, req.Password)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, "", fmt.Errorf("%w: HTTP %d", ErrFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, "", fmt.Errorf("%w: response exceeds %d bytes", ErrFetch, c.maxBody)
	}

	c.logger.Info("feed downloaded",
		zap.String("url", redact(rawURL)),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)
	return body, resp.Header.Get("Content-Type"), nil
}

func detectFormat(contentType, rawURL string, body []byte) Format {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case strings.Contains(mt, "json"):
			return FormatJSON
		case strings.Contains(mt, "spreadsheetml"):
			return FormatXLSX
		case strings.Contains(mt, "xml"):
			return FormatXML
		case mt == "text/csv":
			return FormatCSV
		}
	}

	if u, err := url.Parse(rawURL); err == nil {
		switch strings.ToLower(path.Ext(u.Path)) {
		case ".json":
			return FormatJSON
		case ".xml":
			return FormatXML
		case ".xlsx":
			return FormatXLSX
		case ".csv":
			return FormatCSV
		}
	}

	// XLSX files are zip archives.
	if len(body) > 4 && string(body[:4]) == "PK\x03\x04" {
		return FormatXLSX
	}
	trimmed := strings.TrimLeft(string(body[:min(len(body), 512)]), " \t\r\n\ufeff")
	switch {
	case strings.HasPrefix(trimmed, "{"), strings.HasPrefix(trimmed, "["):
		return FormatJSON
	case strings.HasPrefix(trimmed, "<"):
		return FormatXML
	}
	return FormatCSV
}

// redact drops credentials that suppliers put in feed query strings.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.User = nil
	q := u.Query()
	for k := range q {
		switch strings.ToLower(k) {
		case "key", "apikey", "api_key", "token", "password", "pass", "pwd":
			q.Set(k, "***")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
