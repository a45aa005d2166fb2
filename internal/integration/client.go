// Package integration wraps outbound HTTP calls to external services and
// payment gateways: fixed timeout, exponential retry and uniform error
// normalisation into *Error.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-sales-orders/internal/config"
	"github.com/ariefcatur/go-sales-orders/internal/observability"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRetries   = 3
	DefaultRetryBase = time.Second

	maxBodyBytes = 1 << 20
)

type Options struct {
	Service   string
	Gateway   string
	Config    config.GatewayConfig
	Timeout   time.Duration
	Retries   int
	RetryBase time.Duration

	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// Client is bound to one service/gateway base URL.
type Client struct {
	service   string
	gateway   string
	baseURL   string
	headers   map[string]string
	ctype     string
	retries   int
	retryBase time.Duration

	http    *http.Client
	log     *zap.Logger
	metrics *observability.Metrics
}

// Response is a successful (2xx) upstream answer.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals a JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(strings.TrimSpace(string(r.Body))) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}
	base := opts.RetryBase
	if base <= 0 {
		base = DefaultRetryBase
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctype := opts.Config.ContentType
	if ctype == "" {
		ctype = contentJSON
	}

	return &Client{
		service:   opts.Service,
		gateway:   opts.Gateway,
		baseURL:   strings.TrimRight(opts.Config.BaseURL, "/"),
		headers:   opts.Config.Headers,
		ctype:     ctype,
		retries:   retries,
		retryBase: base,
		http:      hc,
		log:       logger.With(zap.String("integration_service", opts.Service), zap.String("gateway", opts.Gateway)),
		metrics:   opts.Metrics,
	}
}

func (c *Client) Gateway() string { return c.gateway }

func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Do sends the request, retrying any failure up to the configured number of
// attempts with delays of base*2^attempt. The last attempt's error is returned as is.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	started := time.Now()
	attempt := 0

	var resp *Response
	op := func() error {
		attempt++
		r, err := c.send(ctx, method, path, body)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}
	notify := func(err error, delay time.Duration) {
		c.log.Warn("retrying gateway request",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", c.retries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(op, c.policy(ctx), notify)
	c.metrics.ObserveGatewayCall(c.service, c.gateway, started, err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Probe sends a single GET with no retry.
func (c *Client) Probe(ctx context.Context, path string) (*Response, error) {
	started := time.Now()
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	c.metrics.ObserveGatewayCall(c.service, c.gateway, started, err)
	return resp, err
}

func (c *Client) policy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryBase
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = c.retryBase << uint(c.retries)
	eb.MaxElapsedTime = 0
	eb.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.retries-1)), ctx)
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*Response, error) {
	url := c.baseURL + path
	c.metrics.ObserveGatewayAttempt(c.service, c.gateway)
	c.log.Info(fmt.Sprintf("making %s request to %s", method, url),
		zap.String("method", method),
		zap.String("url", path),
	)

	reader, err := encodeBody(c.ctype, body)
	if err != nil {
		return nil, c.fail(method, path, 0, nil, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, c.fail(method, path, 0, nil, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", c.ctype)
	}
	req.Header.Set("Accept", contentJSON)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(method, path, 0, nil, err)
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, c.fail(method, path, res.StatusCode, nil, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, c.fail(method, path, res.StatusCode, payload, nil)
	}

	c.log.Info("response received from "+c.service,
		zap.Int("status", res.StatusCode),
		zap.String("status_text", http.StatusText(res.StatusCode)),
	)
	return &Response{Status: res.StatusCode, Header: res.Header, Body: payload}, nil
}

func (c *Client) fail(method, path string, status int, upstream []byte, cause error) *Error {
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("url", path),
	}
	if status != 0 {
		fields = append(fields, zap.Int("status", status))
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	c.log.Error("integration error with "+c.service, fields...)

	if status == 0 {
		status = http.StatusBadRequest
	}
	return &Error{
		Status:   status,
		Service:  c.service,
		Gateway:  c.gateway,
		Method:   method,
		URL:      path,
		Upstream: upstream,
		Err:      cause,
	}
}
