// Package pulp implements the client and orchestration primitives for the
// Pulp content-repository REST API: a resource client with retrying HTTP,
// an asynchronous task poller, and idempotent repository/distribution
// provisioning.
package pulp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"pulptool/internal/metrics"
	"pulptool/pkg/logger"
)

// Retry tunables, variables so tests can shrink them.
var (
	retryMax     = 3
	retryWaitMin = 1 * time.Second
	retryWaitMax = 30 * time.Second
)

const defaultRequestTimeout = 120 * time.Second

// inFilterChunkSize bounds how many values go into one __in filter query,
// to keep URLs under proxy length limits.
const inFilterChunkSize = 20

// Client is an HTTP client for the Pulp API. The underlying connection
// pool is shared and safe for concurrent use; workers must not mutate the
// client's configuration after construction.
type Client struct {
	baseURL      string
	apiRoot      string
	domain       string
	http         *retryablehttp.Client
	metrics      metrics.Recorder
	strictLookup bool
}

// Option configures the Client.
type Option func(*Client)

// New creates a Pulp API client for the given base URL, API root path and
// domain (e.g. "https://pulp.example.com", "/pulp/", "build-team").
func New(baseURL, apiRoot, domain string, opts ...Option) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	apiRoot = "/" + strings.Trim(apiRoot, "/") + "/"

	h := retryablehttp.NewClient()
	h.RetryMax = retryMax
	h.RetryWaitMin = retryWaitMin
	h.RetryWaitMax = retryWaitMax
	h.Logger = nil
	h.HTTPClient.Timeout = defaultRequestTimeout

	c := &Client{
		baseURL: baseURL,
		apiRoot: apiRoot,
		domain:  domain,
		http:    h,
		metrics: metrics.Nop{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithHTTPClient sets a custom HTTP client under the retry layer.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http.HTTPClient = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http.HTTPClient.Timeout = timeout
	}
}

// WithAuth attaches an OAuth2 client-credentials token source. Tokens are
// refreshed transparently; all requests carry the resulting bearer token.
func WithAuth(clientID, clientSecret, tokenURL string) Option {
	return func(c *Client) {
		cc := &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
		}
		base := c.http.HTTPClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Transport: base})
		c.http.HTTPClient.Transport = &oauth2.Transport{
			Source: cc.TokenSource(tokenCtx),
			Base:   base,
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(rec metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = rec
	}
}

// WithStrictLookup makes name lookups propagate every failure instead of
// treating unclassifiable ones as "not found".
func WithStrictLookup() Option {
	return func(c *Client) {
		c.strictLookup = true
	}
}

// endpointURL builds the URL for a domain-scoped endpoint like
// "api/v3/repositories/rpm/rpm/".
func (c *Client) endpointURL(endpoint string) string {
	return c.baseURL + c.apiRoot + c.domain + "/" + endpoint
}

// hrefURL builds the URL for an absolute resource href returned by the API.
func (c *Client) hrefURL(href string) string {
	return c.baseURL + href
}

func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

// checkResponse drains the response, records the request metric, and
// converts non-2xx statuses into StatusError.
func (c *Client) checkResponse(resp *http.Response, op string) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response body: %w", op, err)
	}

	c.metrics.RecordRequest(op, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		truncated := truncate(string(body), bodyLogLimit)
		logger.Error("Pulp API request failed", "operation", op, "status", resp.StatusCode, "body", truncated)
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Body: truncated}
	}

	return body, nil
}

func (c *Client) decode(body []byte, out any, op string) error {
	if err := json.Unmarshal(body, out); err != nil {
		truncated := truncate(string(body), bodyLogLimit)
		logger.Error("Failed to parse Pulp API response", "operation", op, "body", truncated)
		return &ResponseError{Op: op, Body: truncated, Err: err}
	}
	return nil
}

// Get fetches a resource by its href and decodes it into out.
func (c *Client) Get(ctx context.Context, href string, out any) error {
	op := "get " + href
	resp, err := c.do(ctx, http.MethodGet, c.hrefURL(href), nil, "")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	body, err := c.checkResponse(resp, op)
	if err != nil {
		return err
	}
	return c.decode(body, out, op)
}

// List fetches one page of a list endpoint with the given query filters.
// The returned Page carries the raw next/previous cursors.
func List[T any](ctx context.Context, c *Client, endpoint string, query url.Values) ([]T, Page, error) {
	op := "list " + endpoint
	rawURL := c.endpointURL(endpoint)
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, rawURL, nil, "")
	if err != nil {
		return nil, Page{}, fmt.Errorf("%s: %w", op, err)
	}
	body, err := c.checkResponse(resp, op)
	if err != nil {
		return nil, Page{}, err
	}

	var envelope struct {
		Results  []T     `json:"results"`
		Next     *string `json:"next"`
		Previous *string `json:"previous"`
		Count    int     `json:"count"`
	}
	if err := c.decode(body, &envelope, op); err != nil {
		return nil, Page{}, err
	}

	page := Page{Count: envelope.Count}
	if envelope.Next != nil {
		page.Next = *envelope.Next
	}
	if envelope.Previous != nil {
		page.Previous = *envelope.Previous
	}
	return envelope.Results, page, nil
}

// ListChunked runs an __in-style filter query in chunks of at most 20
// values per request and concatenates the results.
func ListChunked[T any](ctx context.Context, c *Client, endpoint, param string, values []string) ([]T, error) {
	var all []T
	for start := 0; start < len(values); start += inFilterChunkSize {
		end := min(start+inFilterChunkSize, len(values))
		query := url.Values{}
		query.Set(param, strings.Join(values[start:end], ","))
		items, _, err := List[T](ctx, c, endpoint, query)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	return all, nil
}

// Post issues a JSON POST to a domain-scoped endpoint. When the response
// body carries a task href the operation is asynchronous and the href is
// returned for polling; a body without one (including a non-JSON body)
// signals synchronous completion.
func (c *Client) Post(ctx context.Context, endpoint string, payload any) (body []byte, task string, err error) {
	return c.postURL(ctx, c.endpointURL(endpoint), payload, "create "+endpoint)
}

// PostHref issues a JSON POST to an absolute href (e.g. "{repo}modify/").
func (c *Client) PostHref(ctx context.Context, href string, payload any) (body []byte, task string, err error) {
	return c.postURL(ctx, c.hrefURL(href), payload, "post "+href)
}

func (c *Client) postURL(ctx context.Context, rawURL string, payload any, op string) ([]byte, string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%s: failed to marshal request body: %w", op, err)
	}

	resp, err := c.do(ctx, http.MethodPost, rawURL, bytes.NewReader(data), "application/json")
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	body, err := c.checkResponse(resp, op)
	if err != nil {
		return nil, "", err
	}

	return body, taskHref(body), nil
}

// Update issues a PATCH against a resource href and decodes the response.
func (c *Client) Update(ctx context.Context, href string, payload, out any) error {
	op := "update " + href
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal request body: %w", op, err)
	}

	resp, err := c.do(ctx, http.MethodPatch, c.hrefURL(href), bytes.NewReader(data), "application/json")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	body, err := c.checkResponse(resp, op)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return c.decode(body, out, op)
}

// Delete removes a resource by href.
func (c *Client) Delete(ctx context.Context, href string) error {
	op := "delete " + href
	resp, err := c.do(ctx, http.MethodDelete, c.hrefURL(href), nil, "")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = c.checkResponse(resp, op)
	return err
}

// taskHref extracts the task field from an async mutation response. A
// malformed or taskless body is a synchronous-completion signal, not an
// error.
func taskHref(body []byte) string {
	var probe struct {
		Task string `json:"task"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.Task
}

// FileSource is the payload of a multipart upload: either an on-disk file
// or in-memory content with an explicit filename.
type FileSource struct {
	Path     string
	Content  []byte
	Filename string
}

func (s FileSource) name() (string, error) {
	if s.Path != "" {
		return filepath.Base(s.Path), nil
	}
	if s.Filename == "" {
		return "", fmt.Errorf("filename is required when providing in-memory content")
	}
	return s.Filename, nil
}

func (s FileSource) open() (io.ReadCloser, error) {
	if s.Path != "" {
		return os.Open(s.Path)
	}
	return io.NopCloser(bytes.NewReader(s.Content)), nil
}

// postMultipart uploads a file with accompanying form fields and returns
// the response body.
func (c *Client) postMultipart(ctx context.Context, rawURL string, fields map[string]string, src FileSource, op string) ([]byte, error) {
	name, err := src.name()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("%s: failed to write form field: %w", op, err)
		}
	}

	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create form file: %w", op, err)
	}
	rc, err := src.open()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := io.Copy(part, rc); err != nil {
		rc.Close()
		return nil, fmt.Errorf("%s: failed to read %s: %w", op, name, err)
	}
	rc.Close()
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.do(ctx, http.MethodPost, rawURL, &buf, w.FormDataContentType())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c.checkResponse(resp, op)
}
