package elink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/elink/pkg/codec"
	"github.com/samvad-hq/elink/pkg/httpclient"
	"github.com/samvad-hq/elink/pkg/record"
)

const reservedResponse = `<?xml version="1.0" encoding="UTF-8"?>
<records><record><osti_id>9999</osti_id><doi>10.5072/9999</doi><status>SUCCESS</status><doi_status>RESERVED</doi_status><status_message/></record></records>`

// fakeELINK records what it receives and replies with a fixed status/body.
type fakeELINK struct {
	mu     sync.Mutex
	status int
	body   string
	calls  []capturedRequest
}

type capturedRequest struct {
	method string
	path   string
	query  string
	user   string
	pass   string
	ctype  string
	body   string
}

func (f *fakeELINK) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	user, pass, _ := r.BasicAuth()
	f.mu.Lock()
	f.calls = append(f.calls, capturedRequest{
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.RawQuery,
		user:   user,
		pass:   pass,
		ctype:  r.Header.Get("Content-Type"),
		body:   string(body),
	})
	status, respBody := f.status, f.body
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, respBody)
}

func (f *fakeELINK) last(t *testing.T) capturedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatalf("server received no requests")
	}
	return f.calls[len(f.calls)-1]
}

func newTestClient(t *testing.T, fake *fakeELINK) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return New(WithEndpoints(srv.URL+"/elink/", srv.URL+"/elinktest/"), WithTimeout(2*time.Second)), srv
}

func TestReserveDecodesResponse(t *testing.T) {
	fake := &fakeELINK{body: reservedResponse}
	client, _ := newTestClient(t, fake)

	in := record.New().
		SetText("title", "My upcoming dataset").
		SetText("accession_num", "sample-ds-0001")

	got, err := client.Reserve(context.Background(), in, "user", "pass")
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	b, _ := json.Marshal(got)
	want := `{"record":{"osti_id":"9999","doi":"10.5072/9999","status":"SUCCESS","doi_status":"RESERVED","status_message":null}}`
	if string(b) != want {
		t.Fatalf("decoded %s\nwant    %s", b, want)
	}

	req := fake.last(t)
	if req.method != http.MethodPost || req.path != "/elink/2416api" {
		t.Fatalf("request = %s %s", req.method, req.path)
	}
	if req.user != "user" || req.pass != "pass" {
		t.Fatalf("basic auth = %q/%q", req.user, req.pass)
	}
	if req.ctype != codec.ContentType {
		t.Fatalf("content type = %q", req.ctype)
	}
	for _, frag := range []string{
		"<records><record>",
		"<title>My upcoming dataset</title>",
		"<accession_num>sample-ds-0001</accession_num>",
		"<set_reserved>true</set_reserved>",
	} {
		if !strings.Contains(req.body, frag) {
			t.Errorf("request body missing %s: %s", frag, req.body)
		}
	}
	if in.Has("set_reserved") {
		t.Fatalf("Reserve must not modify the caller's record")
	}
}

func TestReserveAddsPlaceholderTitle(t *testing.T) {
	fake := &fakeELINK{body: reservedResponse}
	client, _ := newTestClient(t, fake)

	if _, err := client.Reserve(context.Background(), record.New().SetText("accession_num", "x"), "u", "p"); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	body := fake.last(t).body
	if !strings.Contains(body, "<title>Placeholder Dataset Title</title>") {
		t.Fatalf("placeholder title missing: %s", body)
	}
	if !strings.Contains(body, "<set_reserved>true</set_reserved>") {
		t.Fatalf("set_reserved missing: %s", body)
	}
}

func TestPostReturnsBusinessFailureAsData(t *testing.T) {
	fake := &fakeELINK{body: `<records><record><status>FAILURE</status><status_message>Title is required.</status_message></record></records>`}
	client, _ := newTestClient(t, fake)

	got, err := client.Post(context.Background(), record.New(), "u", "p")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	item := got.Sub("record")
	if item.Text("status") != "FAILURE" || item.Text("status_message") != "Title is required." {
		t.Fatalf("unexpected record %v", got)
	}
}

func TestPostStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		target error
		kind   Kind
	}{
		{http.StatusUnauthorized, ErrUnauthorized, KindUnauthorized},
		{http.StatusForbidden, ErrForbidden, KindForbidden},
		{http.StatusNotFound, ErrServer, KindServer},
		{http.StatusInternalServerError, ErrServer, KindServer},
		{http.StatusBadGateway, ErrServer, KindServer},
	}
	for _, tc := range cases {
		fake := &fakeELINK{status: tc.status, body: "nope"}
		client, _ := newTestClient(t, fake)

		_, err := client.Post(context.Background(), record.New().SetText("title", "t"), "u", "p")
		if !errors.Is(err, tc.target) || !errors.Is(err, ErrAPI) {
			t.Errorf("status %d: got %v, want %v", tc.status, err, tc.target)
			continue
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Kind != tc.kind || apiErr.StatusCode != tc.status {
			t.Errorf("status %d: unexpected error %#v", tc.status, apiErr)
		}
	}
}

func TestGetStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		target error
	}{
		{http.StatusUnauthorized, ErrServer},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusServiceUnavailable, ErrServer},
	}
	for _, tc := range cases {
		fake := &fakeELINK{status: tc.status}
		client, _ := newTestClient(t, fake)

		_, err := client.Get(context.Background(), "9999", "u", "p")
		if !errors.Is(err, tc.target) {
			t.Errorf("status %d: got %v, want %v", tc.status, err, tc.target)
		}
	}
}

func TestGetServerErrorIncludesStatusCode(t *testing.T) {
	fake := &fakeELINK{status: http.StatusInternalServerError}
	client, _ := newTestClient(t, fake)

	_, err := client.Get(context.Background(), "9999", "u", "p")
	if !errors.Is(err, ErrServer) {
		t.Fatalf("expected server error, got %v", err)
	}
	if !strings.Contains(err.Error(), "500") {
		t.Fatalf("error should mention status code: %v", err)
	}
	if StatusCode(err) != http.StatusInternalServerError {
		t.Fatalf("StatusCode = %d", StatusCode(err))
	}
}

func TestGetSendsOSTIIDQuery(t *testing.T) {
	fake := &fakeELINK{body: reservedResponse}
	client, _ := newTestClient(t, fake)

	got, err := client.Get(context.Background(), " 9999 ", "u", "p")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Sub("record").Text("doi") != "10.5072/9999" {
		t.Fatalf("unexpected record %v", got)
	}

	req := fake.last(t)
	if req.method != http.MethodGet || req.path != "/elink/2416api" || req.query != "osti_id=9999" {
		t.Fatalf("request = %s %s?%s", req.method, req.path, req.query)
	}
	if req.user != "u" || req.pass != "p" {
		t.Fatalf("basic auth = %q/%q", req.user, req.pass)
	}
}

func TestTestModeSwitchesLaterCalls(t *testing.T) {
	fake := &fakeELINK{body: reservedResponse}
	client, srv := newTestClient(t, fake)

	if got := client.BaseURL(); got != srv.URL+"/elink/" {
		t.Fatalf("BaseURL = %s", got)
	}
	if _, err := client.Get(context.Background(), "1", "u", "p"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p := fake.last(t).path; p != "/elink/2416api" {
		t.Fatalf("production path = %s", p)
	}

	client.TestMode()

	if _, err := client.Get(context.Background(), "1", "u", "p"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p := fake.last(t).path; p != "/elinktest/2416api" {
		t.Fatalf("test path = %s", p)
	}
	if got := client.BaseURL(); got != srv.URL+"/elinktest/" {
		t.Fatalf("BaseURL after TestMode = %s", got)
	}
}

func TestTestModeLeavesInFlightCallsOnTheirEndpoint(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var (
		mu    sync.Mutex
		paths []string
		first = true
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		block := first
		first = false
		mu.Unlock()
		if block {
			close(started)
			<-release
		}
		_, _ = io.WriteString(w, reservedResponse)
	}))
	defer srv.Close()

	client := New(WithEndpoints(srv.URL+"/elink/", srv.URL+"/elinktest/"), WithTimeout(5*time.Second))

	done := make(chan error, 1)
	go func() {
		_, err := client.Get(context.Background(), "1", "u", "p")
		done <- err
	}()

	<-started
	client.TestMode()
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("in-flight Get: %v", err)
	}
	if _, err := client.Get(context.Background(), "2", "u", "p"); err != nil {
		t.Fatalf("later Get: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 2 || paths[0] != "/elink/2416api" || paths[1] != "/elinktest/2416api" {
		t.Fatalf("unexpected request paths %v", paths)
	}
}

func TestWithTestModeIgnoresOptionOrder(t *testing.T) {
	c := New(WithTestMode(), WithEndpoints("http://prod", "http://test"))
	if got := c.BaseURL(); got != "http://test/" {
		t.Fatalf("BaseURL = %s", got)
	}
	if got := New().BaseURL(); got != ProductionURL {
		t.Fatalf("default BaseURL = %s", got)
	}
}

func TestMalformedSuccessBody(t *testing.T) {
	for _, body := range []string{"<html><body>maintenance</body></html>", "not xml", "<records>text</records>"} {
		fake := &fakeELINK{body: body}
		client, _ := newTestClient(t, fake)

		_, err := client.Get(context.Background(), "1", "u", "p")
		if !errors.Is(err, codec.ErrMalformed) {
			t.Errorf("%q: expected ErrMalformed, got %v", body, err)
		}
		if errors.Is(err, ErrAPI) {
			t.Errorf("%q: decode failures are not transport errors", body)
		}
	}
}

func TestEmptyRecordsElement(t *testing.T) {
	fake := &fakeELINK{body: "<records/>"}
	client, _ := newTestClient(t, fake)

	got, err := client.Get(context.Background(), "1", "u", "p")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Len() != 0 {
		t.Fatalf("expected empty record, got %v", got)
	}
}

type failingHTTP struct{ err error }

func (f failingHTTP) Do(context.Context, httpclient.Request) (httpclient.Response, error) {
	return nil, f.err
}

func TestTransportFailureIsServerError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	client := New(WithHTTPClient(failingHTTP{err: cause}))

	_, err := client.Post(context.Background(), record.New(), "u", "p")
	if !errors.Is(err, ErrServer) || !errors.Is(err, cause) {
		t.Fatalf("expected server error wrapping cause, got %v", err)
	}
	if StatusCode(err) != 0 {
		t.Fatalf("StatusCode = %d", StatusCode(err))
	}
}

func TestSequenceWrapperOption(t *testing.T) {
	fake := &fakeELINK{body: reservedResponse}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	client := New(WithBaseURL(srv.URL), WithSequenceWrapper())

	rec := record.New().Set("authors", record.Seq(record.Text("Doe, Jane")))
	if _, err := client.Post(context.Background(), rec, "u", "p"); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if body := fake.last(t).body; !strings.Contains(body, "<authors><author>Doe, Jane</author></authors>") {
		t.Fatalf("wrapper missing: %s", body)
	}
}

func TestItemPicksFirstRecord(t *testing.T) {
	first := record.New().SetText("status", StatusSuccess)
	second := record.New().SetText("status", "FAILURE")

	single := record.New().Set("record", record.Nested(first))
	if !Succeeded(single) {
		t.Fatalf("expected single record to succeed")
	}

	many := record.New().Set("record", record.Seq(record.Nested(second), record.Nested(first)))
	if Item(many) != second || Succeeded(many) {
		t.Fatalf("expected first record of sequence")
	}

	if Item(record.New()) != nil || Succeeded(nil) {
		t.Fatalf("expected empty response to have no item")
	}
}
