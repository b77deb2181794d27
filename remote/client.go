// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package remote is the REST client for the server collaborator that
// supplies the authoritative event snapshot and receives attendance.
package remote

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

	"github.com/blinklabs-io/eventlog/attendance"
	"github.com/blinklabs-io/eventlog/schedule"
)

const (
	DefaultTimeout = 30 * time.Second

	eventsPath     = "/events/approved"
	attendancePath = "/attendance"
)

var (
	// ErrFetch means the snapshot could not be obtained. It never means
	// "zero events".
	ErrFetch = errors.New("event snapshot fetch failed")
	ErrPush  = errors.New("attendance push failed")
)

// Client is an HTTP client for the event server REST API.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
	timeout    time.Duration
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom *http.Client.
// Note: the default client enforces HTTPS-only redirects via
// httpsOnlyRedirect. A custom client bypasses this protection.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithToken sets the bearer token sent with every request
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout sets the request timeout. A client passed to WithHTTPClient
// is copied rather than modified.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a new API client for the server at baseURL
// (e.g., "https://events.example.edu/api").
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:       DefaultTimeout,
			CheckRedirect: httpsOnlyRedirect,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 && c.httpClient.Timeout != c.timeout {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// httpsOnlyRedirect rejects redirects to non-HTTPS URLs to prevent
// downgrade attacks
func httpsOnlyRedirect(
	req *http.Request,
	via []*http.Request,
) error {
	if len(via) >= 10 {
		return errors.New("too many redirects")
	}
	if req.URL.Scheme != "https" {
		return fmt.Errorf(
			"redirect to non-HTTPS URL blocked: %s",
			req.URL,
		)
	}
	return nil
}

// FetchEvents returns the authoritative snapshot of approved events for a
// group. A groupID of 0 requests every event the session may see. Any
// failure, including a response with success=false, wraps ErrFetch.
func (c *Client) FetchEvents(
	ctx context.Context,
	groupID int64,
) ([]schedule.Event, error) {
	reqURL := c.baseURL + eventsPath
	if groupID > 0 {
		reqURL += "?" + url.Values{
			"group_id": []string{strconv.FormatInt(groupID, 10)},
		}.Encode()
	}
	body, err := c.do(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer body.Close()

	var resp FetchResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: decoding snapshot: %w", ErrFetch, err)
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "server reported failure"
		}
		return nil, fmt.Errorf("%w: %s", ErrFetch, msg)
	}
	ret := make([]schedule.Event, 0, len(resp.Events))
	for _, p := range resp.Events {
		ev, err := p.Event()
		if err != nil {
			// A partial snapshot would purge good events
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		ret = append(ret, ev)
	}
	return ret, nil
}

// PushAttendance delivers one mark. A conflict response means the server
// already holds the mark and counts as success.
func (c *Client) PushAttendance(ctx context.Context, m attendance.Mark) error {
	payload, err := json.Marshal(NewMarkPayload(m))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPush, err)
	}
	body, err := c.do(
		ctx,
		http.MethodPost,
		c.baseURL+attendancePath,
		payload,
	)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrPush, err)
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// StatusError is returned for unexpected HTTP status codes
type StatusError struct {
	Body       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// do performs an HTTP request and returns the response body.
// The caller is responsible for closing the returned ReadCloser.
func (c *Client) do(
	ctx context.Context,
	method string,
	reqURL string,
	payload []byte,
) (io.ReadCloser, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do( //nolint:gosec // URL is built from the configured base; HTTPS-only redirect policy prevents downgrade
		req,
	)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	if resp == nil || resp.Body == nil {
		return nil, errors.New("nil response from server")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(
			io.LimitReader(resp.Body, 1024),
		)
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(bodyBytes),
		}
	}

	return &limitedReadCloser{
		Reader: io.LimitReader(resp.Body, maxResponseBytes),
		Closer: resp.Body,
	}, nil
}

// maxResponseBytes limits JSON API responses to 10 MiB
const maxResponseBytes = 10 << 20

// limitedReadCloser wraps a size-limited Reader with the
// underlying connection's Closer.
type limitedReadCloser struct {
	io.Reader
	io.Closer
}
