// Package gateway implements the forwarding gateway: the /gateway/books
// surface that relays every call to the resource store and translates the
// store's outcome for the caller.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds one upstream call, including reading its body.
	DefaultTimeout = 5 * time.Second
	// MaxBodySize is the largest upstream body the gateway will buffer (10MB).
	MaxBodySize = 10 * 1024 * 1024
	// RequestIDHeader carries the request id to the store.
	RequestIDHeader = "X-Request-Id"
)

// Op names a gateway operation in logs, metrics and error messages.
type Op string

const (
	OpCreate  Op = "create"
	OpGetAll  Op = "getAll"
	OpGetByID Op = "getById"
	OpUpdate  Op = "update"
	OpDelete  Op = "delete"
)

// Kind classifies a transport failure.
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindUnreachable Kind = "unreachable"
	KindMalformed   Kind = "malformed"
	KindTooLarge    Kind = "too_large"
	KindOther       Kind = "other"
)

// Reason is the short description of k shown to callers.
func (k Kind) Reason() string {
	switch k {
	case KindTimeout:
		return "upstream timeout"
	case KindUnreachable:
		return "upstream unreachable"
	case KindMalformed:
		return "malformed upstream response"
	case KindTooLarge:
		return "upstream response too large"
	default:
		return "upstream request failed"
	}
}

// TransportError reports that no interpretable response was obtained from
// the store.
type TransportError struct {
	Op   Op
	Kind Kind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway %s: %s: %v", e.Op, e.Kind.Reason(), e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Response is a fully read upstream HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Success reports whether the store answered with a 2xx status.
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client performs exactly one request against the store per call. It never
// retries and never caches.
type Client struct {
	baseURL string
	timeout time.Duration
	maxBody int64
	http    *http.Client
}

// NewClient creates a client for the store's /books root at baseURL. A
// non-positive timeout selects DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		maxBody: MaxBodySize,
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the configured store address.
func (c *Client) BaseURL() string { return c.baseURL }

// Timeout returns the per-call upstream timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Create forwards a create call with the given JSON payload.
func (c *Client) Create(ctx context.Context, body []byte) (*Response, error) {
	return c.do(ctx, OpCreate, http.MethodPost, "", body)
}

// List forwards a list call.
func (c *Client) List(ctx context.Context) (*Response, error) {
	return c.do(ctx, OpGetAll, http.MethodGet, "", nil)
}

// Get forwards a get call for id.
func (c *Client) Get(ctx context.Context, id string) (*Response, error) {
	return c.do(ctx, OpGetByID, http.MethodGet, "/"+url.PathEscape(id), nil)
}

// Update forwards an update call for id with the given JSON payload.
func (c *Client) Update(ctx context.Context, id string, body []byte) (*Response, error) {
	return c.do(ctx, OpUpdate, http.MethodPut, "/"+url.PathEscape(id), body)
}

// Delete forwards a delete call for id.
func (c *Client) Delete(ctx context.Context, id string) (*Response, error) {
	return c.do(ctx, OpDelete, http.MethodDelete, "/"+url.PathEscape(id), nil)
}

func (c *Client) do(ctx context.Context, op Op, method, path string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &TransportError{Op: op, Kind: KindOther, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID(ctx))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Kind: classify(err), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &TransportError{Op: op, Kind: classify(err), Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(respBody)) > c.maxBody {
		return nil, &TransportError{
			Op:   op,
			Kind: KindTooLarge,
			Err:  fmt.Errorf("status %d body exceeds %d bytes", resp.StatusCode, c.maxBody),
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       respBody,
	}, nil
}

// requestID returns the inbound chi request id, or a fresh one.
func requestID(ctx context.Context) string {
	if id := chimw.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindUnreachable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindUnreachable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindUnreachable
	}
	return KindOther
}
