// Package cloud is the client side of the remote table routes. It mirrors the
// table service operations one request at a time; nothing is cached or queued.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound matches *HTTPError values with status 404 via errors.Is.
var ErrNotFound = errors.New("not found")

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("table service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("table service returned %d: %s", e.StatusCode, e.Message)
}

// Is reports 404 responses as ErrNotFound.
func (e *HTTPError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

const (
	apiVersionHeader = "ZUMO-API-VERSION"
	apiVersion       = "2.0.0"
	authHeader       = "X-ZUMO-AUTH"
	defaultTimeout   = 30 * time.Second
)

// Client talks to a table service rooted at a base URL.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient validates baseURL. A nil httpClient uses a client with a 30s timeout.
func NewClient(baseURL, token string, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{base: base, token: token, http: httpClient}, nil
}

func (c *Client) endpoint(query url.Values, segments ...string) string {
	u := *c.base
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u.Path = c.base.Path + "/" + strings.Join(segments, "/")
	u.RawPath = c.base.EscapedPath() + "/" + strings.Join(escaped, "/")
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(apiVersionHeader, apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(authHeader, c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	httpErr := &HTTPError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		httpErr.Message = body.Error
	} else {
		httpErr.Message = strings.TrimSpace(string(raw))
	}
	return httpErr
}

// DefaultPageSize is the $top used by Table.ReadAll.
const DefaultPageSize = 50

// Table issues requests against one remote table. T is the JSON shape of its
// rows, typically a struct embedding domain.EntityData.
type Table[T any] struct {
	client   *Client
	name     string
	pageSize int
}

// NewTable binds a table name to client.
func NewTable[T any](client *Client, name string) *Table[T] {
	return &Table[T]{client: client, name: name, pageSize: DefaultPageSize}
}

// Name returns the remote table name.
func (t *Table[T]) Name() string { return t.name }

// ReadAll pages through the table until a short page is returned.
func (t *Table[T]) ReadAll(ctx context.Context) ([]T, error) {
	var all []T
	for skip := 0; ; skip += t.pageSize {
		page, err := t.Query(ctx, t.pageSize, skip)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < t.pageSize {
			return all, nil
		}
	}
}

// Query fetches one page. Zero top uses the service default.
func (t *Table[T]) Query(ctx context.Context, top, skip int) ([]T, error) {
	query := url.Values{}
	if top > 0 {
		query.Set("$top", strconv.Itoa(top))
	}
	if skip > 0 {
		query.Set("$skip", strconv.Itoa(skip))
	}
	var page []T
	if err := t.client.do(ctx, http.MethodGet, t.client.endpoint(query, "tables", t.name), nil, &page); err != nil {
		return nil, err
	}
	return page, nil
}

// Lookup fetches one row by id.
func (t *Table[T]) Lookup(ctx context.Context, id string) (T, error) {
	var item T
	err := t.client.do(ctx, http.MethodGet, t.client.endpoint(nil, "tables", t.name, id), nil, &item)
	return item, err
}

// Insert posts item and returns the stored row with its system fields.
func (t *Table[T]) Insert(ctx context.Context, item T) (T, error) {
	var created T
	err := t.client.do(ctx, http.MethodPost, t.client.endpoint(nil, "tables", t.name), item, &created)
	return created, err
}

// Update patches the row with id using the fields of item.
func (t *Table[T]) Update(ctx context.Context, id string, item T) (T, error) {
	var updated T
	err := t.client.do(ctx, http.MethodPatch, t.client.endpoint(nil, "tables", t.name, id), item, &updated)
	return updated, err
}

// Delete removes the row with id.
func (t *Table[T]) Delete(ctx context.Context, id string) error {
	return t.client.do(ctx, http.MethodDelete, t.client.endpoint(nil, "tables", t.name, id), nil, nil)
}
