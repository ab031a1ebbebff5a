// Package elink is a client for the OSTI ELINK 2416 record API.
//
// Records travel as XML (see package codec) with HTTP basic authentication
// supplied on every call. A 200 response is decoded and returned even when
// the service reports a business failure; callers must check the record's
// "status" and "status_message" fields. Every other outcome is an *APIError.
package elink

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/elink/pkg/codec"
	"github.com/samvad-hq/elink/pkg/httpclient"
	"github.com/samvad-hq/elink/pkg/record"
)

const (
	// ProductionURL is the default ELINK endpoint.
	ProductionURL = "https://www.osti.gov/elink/"
	// TestURL is the endpoint selected by TestMode.
	TestURL = "https://www.osti.gov/elinktest/"

	// PlaceholderTitle is sent by Reserve when the record has no title.
	PlaceholderTitle = "Placeholder Dataset Title"

	// StatusSuccess is the "status" value of an accepted record.
	StatusSuccess = "SUCCESS"

	// DefaultTimeout bounds each request unless WithTimeout says otherwise.
	DefaultTimeout = 30 * time.Second

	recordPath = "2416api"
)

// Client talks to one ELINK deployment. It is safe for concurrent use.
type Client struct {
	http    httpclient.Client
	timeout time.Duration
	log     Logger
	encode  []codec.EncoderOption

	mu      sync.RWMutex
	baseURL string
	testURL string
	// startInTest is applied after all options so option order does not matter.
	startInTest bool
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the endpoint used until TestMode is called.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithEndpoints sets both the production and the test endpoint.
func WithEndpoints(production, test string) Option {
	return func(c *Client) {
		c.baseURL = production
		c.testURL = test
	}
}

// WithTestMode starts the client on the test endpoint.
func WithTestMode() Option {
	return func(c *Client) { c.startInTest = true }
}

// WithHTTPClient replaces the default resty transport.
func WithHTTPClient(hc httpclient.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each request made through the default transport.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger routes request logs to log.
func WithLogger(log Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithSequenceWrapper makes outgoing sequences use a wrapper element per field.
func WithSequenceWrapper() Option {
	return func(c *Client) { c.encode = append(c.encode, codec.WithSequenceWrapper()) }
}

// New builds a client pointed at the production endpoint unless options say otherwise.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: ProductionURL,
		testURL: TestURL,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.startInTest {
		c.baseURL = c.testURL
	}
	c.baseURL = normalizeBase(c.baseURL)
	c.testURL = normalizeBase(c.testURL)
	if c.http == nil {
		c.http = httpclient.NewRestyClient(c.timeout)
	}
	c.log = ensureLogger(c.log)
	return c
}

// TestMode points every later call at the test endpoint. Calls already in
// flight keep the endpoint they started with.
func (c *Client) TestMode() {
	c.mu.Lock()
	c.baseURL = c.testURL
	c.mu.Unlock()
	c.log.InfoObj("elink test mode enabled", "elink_endpoint", c.testURL)
}

// BaseURL returns the endpoint new calls will use.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Reserve asks the service for a DOI without publishing the record. A
// placeholder title is supplied when rec has none. rec itself is not modified.
func (c *Client) Reserve(ctx context.Context, rec *record.Record, username, password string) (*record.Record, error) {
	data := rec.Clone()
	if !data.Has("title") {
		data.SetText("title", PlaceholderTitle)
	}
	data.SetText("set_reserved", "true")
	return c.Post(ctx, data, username, password)
}

// Post submits rec and returns the decoded "records" element of the response.
func (c *Client) Post(ctx context.Context, rec *record.Record, username, password string) (*record.Record, error) {
	body, err := codec.MarshalRecord(rec, c.encode...)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	endpoint := c.BaseURL() + recordPath
	resp, err := c.do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		URL:     endpoint,
		Headers: map[string]string{"Content-Type": codec.ContentType},
		Body:    body,
		Auth:    &httpclient.BasicAuth{Username: username, Password: password},
	})
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return decodeRecords(resp.Body())
	case http.StatusUnauthorized:
		return nil, statusError(KindUnauthorized, resp, "no user account information supplied")
	case http.StatusForbidden:
		return nil, statusError(KindForbidden, resp, "user account failed login or authentication")
	default:
		return nil, statusError(KindServer, resp,
			fmt.Sprintf("service unavailable or unknown connection error (status %d)", resp.StatusCode()))
	}
}

// Get fetches a single record by OSTI identifier.
func (c *Client) Get(ctx context.Context, id, username, password string) (*record.Record, error) {
	endpoint := c.BaseURL() + recordPath + "?osti_id=" + url.QueryEscape(strings.TrimSpace(id))
	resp, err := c.do(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    endpoint,
		Auth:   &httpclient.BasicAuth{Username: username, Password: password},
	})
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return decodeRecords(resp.Body())
	case http.StatusForbidden:
		return nil, statusError(KindForbidden, resp, "user does not have access to this record")
	case http.StatusNotFound:
		return nil, statusError(KindNotFound, resp, "record is not on file")
	default:
		return nil, statusError(KindServer, resp, fmt.Sprintf("unknown http status code: %d", resp.StatusCode()))
	}
}

func (c *Client) do(ctx context.Context, req httpclient.Request) (httpclient.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.log.WarnObj("elink request failed", "elink_request", map[string]any{
			"method": req.Method,
			"url":    req.URL,
			"error":  err.Error(),
		})
		return nil, &APIError{
			Kind:    KindServer,
			Message: "service unavailable or unknown connection error",
			Err:     err,
		}
	}
	c.log.DebugObj("elink request completed", "elink_request", map[string]any{
		"method":     req.Method,
		"url":        req.URL,
		"status":     resp.StatusCode(),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return resp, nil
}

func statusError(kind Kind, resp httpclient.Response, msg string) error {
	return &APIError{
		Kind:       kind,
		StatusCode: resp.StatusCode(),
		Message:    msg,
		Body:       responseSnippet(resp.Body()),
	}
}

// decodeRecords returns the contents of the <records> root element.
func decodeRecords(body []byte) (*record.Record, error) {
	doc, err := codec.Unmarshal(body)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	v, ok := doc.Get(codec.RootTag)
	if !ok {
		root := ""
		if keys := doc.Keys(); len(keys) > 0 {
			root = keys[0]
		}
		return nil, fmt.Errorf("decode response: %w: expected <%s> root, got <%s>", codec.ErrMalformed, codec.RootTag, root)
	}
	switch v.Kind() {
	case record.KindRecord:
		return v.Record(), nil
	case record.KindNull:
		return record.New(), nil
	default:
		return nil, fmt.Errorf("decode response: %w: <%s> holds text, not records", codec.ErrMalformed, codec.RootTag)
	}
}

func normalizeBase(u string) string {
	u = strings.TrimSpace(u)
	if u != "" && !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}

// Item returns the first <record> of a decoded response, or nil when there is none.
func Item(resp *record.Record) *record.Record {
	v, ok := resp.Get("record")
	if !ok {
		return nil
	}
	if v.Kind() == record.KindSequence {
		for _, it := range v.Items() {
			if r := it.Record(); r != nil {
				return r
			}
		}
		return nil
	}
	return v.Record()
}

// Succeeded reports whether the first record of resp has status SUCCESS.
func Succeeded(resp *record.Record) bool {
	return Item(resp).Text("status") == StatusSuccess
}
