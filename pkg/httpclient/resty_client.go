package httpclient

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// RestyClient adapts resty.Client to the httpclient.Client interface.
type RestyClient struct {
	client *resty.Client
}

// Option customizes the underlying resty client.
type Option func(*options)

type options struct {
	log Logger
}

// WithLogger routes request/response hook logging to log.
func WithLogger(log Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// NewRestyClient creates a new RestyClient with the specified timeout.
func NewRestyClient(timeout time.Duration, opts ...Option) *RestyClient {
	return &RestyClient{client: newRestyBaseClient(timeout, opts...)}
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration, opts ...Option) *resty.Client {
	return newRestyBaseClient(timeout, opts...)
}

// newRestyBaseClient creates a new resty.Client with the specified timeout and
// pass-through hooks. The hooks never touch bodies or errors.
func newRestyBaseClient(timeout time.Duration, opts ...Option) *resty.Client {
	o := options{log: noopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	c := resty.New()
	c.SetTimeout(timeout)
	c.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if req.Header.Get(RequestIDHeader) == "" {
			req.SetHeader(RequestIDHeader, uuid.NewString())
		}
		o.log.DebugObj("http request", "http_request", map[string]any{
			"method":     req.Method,
			"url":        req.URL,
			"request_id": req.Header.Get(RequestIDHeader),
		})
		return nil
	})
	c.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		o.log.DebugObj("http response", "http_response", map[string]any{
			"method":     resp.Request.Method,
			"url":        resp.Request.URL,
			"status":     resp.StatusCode(),
			"elapsed_ms": resp.Time().Milliseconds(),
			"request_id": resp.Request.Header.Get(RequestIDHeader),
		})
		return nil
	})
	return c
}

// Timeout returns the per-request timeout applied to every call.
func (r *RestyClient) Timeout() time.Duration {
	return r.client.GetClient().Timeout
}

// Get performs an HTTP GET request with the specified context, URL, and headers.
func (r *RestyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	req := r.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	resp, err := req.Get(url)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// Post performs an HTTP POST with body encoded as JSON.
func (r *RestyClient) Post(ctx context.Context, url string, body any, headers map[string]string) (Response, error) {
	req := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	resp, err := req.Post(url)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte    { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int { return r.resp.StatusCode() }
