// Package as3client delivers declarative configuration documents to a
// device's task-oriented configuration endpoint over HTTP, handling
// synchronous and asynchronous completion and per-operation metrics.
package as3client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sapcc/f5agent/internal/as3"
	"github.com/sapcc/f5agent/internal/credentials"
	"github.com/sapcc/f5agent/internal/observability"
)

// Declaration endpoints, relative to the resolved authority.
const (
	// DeclarePath accepts declaration documents.
	DeclarePath = "/mgmt/shared/appsvcs/declare"

	// InfoPath reports the device's declaration-service version.
	InfoPath = "/mgmt/shared/appsvcs/info"

	// taskPathPrefix addresses a submitted async task.
	taskPathPrefix = DeclarePath + "/task/"
)

// Default delivery settings.
const (
	// DefaultRequestTimeout bounds a single HTTP round trip.
	DefaultRequestTimeout = 60 * time.Second

	// DefaultPollInterval is the interval between task status polls.
	DefaultPollInterval = 5 * time.Second

	// DefaultAsyncTimeout bounds the caller's wait for an async task.
	DefaultAsyncTimeout = 90 * time.Second
)

// tracer is the OTEL tracer for delivery operations.
var tracer = otel.Tracer("f5agent/as3client")

// Target describes one device endpoint. It is immutable after
// construction and owned by exactly one Client.
type Target struct {
	// URL is the device base URL. Userinfo, if present, is stripped
	// before any request and never logged.
	URL *url.URL

	// VerifyTLS enables certificate verification towards the device.
	VerifyTLS bool
}

// Client delivers declarations to a single device or its external
// processor. Safe for concurrent use; async submissions serialize
// through a single poll worker.
type Client struct {
	target   Target
	hostname string
	http     *http.Client
	strategy endpointStrategy
	creds    credentials.Provider
	logger   observability.Logger
	breaker  *gobreaker.CircuitBreaker

	debug        bool
	pollInterval time.Duration
	asyncTimeout time.Duration

	// poller is non-nil when the client was constructed for async
	// completion.
	poller *taskPoller
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithLogger sets the logger for the client.
func WithLogger(logger observability.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the HTTP client, discarding the default
// transport built from the target's verification policy.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

// WithAsync enables asynchronous submission: declarations are accepted
// by the device as tasks and polled to a terminal state.
func WithAsync() Option {
	return func(c *Client) {
		c.poller = &taskPoller{}
	}
}

// WithExternalProcessor redirects declaration traffic to the processor
// at the given URL and re-expresses PATCH and DELETE as POST.
func WithExternalProcessor(processor *url.URL) Option {
	return func(c *Client) {
		c.strategy = &externalStrategy{external: processor}
	}
}

// WithDebugLogging enables request/response debug logging with
// redacted URLs.
func WithDebugLogging() Option {
	return func(c *Client) {
		c.debug = true
	}
}

// WithPollInterval sets the task poll interval.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = interval
	}
}

// WithAsyncTimeout sets the caller's wait bound for async tasks.
func WithAsyncTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.asyncTimeout = timeout
	}
}

// WithCircuitBreaker guards delivery operations with a circuit
// breaker. The breaker fails fast while the device is unreachable; it
// never retries.
func WithCircuitBreaker(threshold uint32, timeout time.Duration) Option {
	return func(c *Client) {
		settings := gobreaker.Settings{
			Name:     c.hostname,
			Interval: timeout,
			Timeout:  timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= threshold && failureRatio >= 0.5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Info("circuit breaker state change",
					observability.String("device", name),
					observability.String("from", from.String()),
					observability.String("to", to.String()),
				)
			},
		}
		c.breaker = gobreaker.NewCircuitBreaker(settings)
	}
}

// New creates a delivery client for the given target.
func New(target Target, creds credentials.Provider, opts ...Option) (*Client, error) {
	if target.URL == nil {
		return nil, NewClientError("new", "", 0, ErrRequestFailed)
	}
	if creds == nil {
		creds = &credentials.NopProvider{}
	}

	c := &Client{
		target:       target,
		hostname:     target.URL.Hostname(),
		creds:        creds,
		logger:       observability.NopLogger(),
		pollInterval: DefaultPollInterval,
		asyncTimeout: DefaultAsyncTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With(observability.String("device", c.hostname))

	if c.http == nil {
		c.http = &http.Client{
			Timeout: DefaultRequestTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !target.VerifyTLS, //nolint:gosec // verification policy is operator-controlled
				},
			},
		}
	}

	switch s := c.strategy.(type) {
	case nil:
		c.strategy = &directStrategy{device: target.URL}
	case *externalStrategy:
		s.device = target.URL
		s.creds = c.creds
	}

	if c.poller != nil {
		c.poller.init(c)
	}

	return c, nil
}

// Hostname returns the device hostname.
func (c *Client) Hostname() string {
	return c.hostname
}

// Async reports whether the client polls submissions to completion.
func (c *Client) Async() bool {
	return c.poller != nil
}

// Close stops the poll worker, if any, and releases the credentials.
func (c *Client) Close() error {
	if c.poller != nil {
		c.poller.stop()
	}
	return c.creds.Close()
}

// Post delivers a declaration for the given tenant scopes.
//
// Without async mode the raw device response is returned as soon as
// the request completes. With async mode the submission is polled to a
// terminal task state; the caller blocks until then or until the async
// timeout, whichever comes first. Request failures are surfaced
// without polling.
func (c *Client) Post(ctx context.Context, tenants []string, decl *as3.Declaration) (resp *Response, err error) {
	ctx, span := tracer.Start(ctx, "as3client.Post", trace.WithAttributes(
		attribute.String("device", c.hostname),
		attribute.StringSlice("tenants", tenants),
	))
	defer span.End()

	start := time.Now()
	defer func() { recordOperation("post", start, err) }()

	if err = c.strategy.prepareDeclaration(ctx, decl); err != nil {
		return nil, err
	}

	body, err := json.Marshal(decl)
	if err != nil {
		return nil, NewClientError("post", "", 0, err)
	}

	rawURL := c.strategy.resolve(declareTenantsPath(tenants), classDeclaration)

	if c.poller == nil {
		return c.do(ctx, "post", http.MethodPost, rawURL, body)
	}

	resp, err = c.do(ctx, "post", http.MethodPost, withAsyncParam(rawURL), body)
	if err != nil || !resp.OK() {
		return resp, err
	}

	var task Task
	if jsonErr := resp.JSON(&task); jsonErr != nil || task.ID == "" {
		err = NewClientError("post", redactURL(rawURL), resp.StatusCode, ErrMissingTaskID)
		return nil, err
	}

	resp, err = c.poller.await(ctx, task.ID)
	return resp, err
}

// Patch applies a patch body to the device's declaration. Always
// synchronous at this layer. With an external processor the operation
// is re-expressed as a POST of a patch-action declaration.
func (c *Client) Patch(ctx context.Context, patchBody []as3.PatchOperation) (resp *Response, err error) {
	if c.strategy.reexpressVerbs() {
		return c.Post(ctx, nil, as3.NewPatchDeclaration(patchBody))
	}

	ctx, span := tracer.Start(ctx, "as3client.Patch", trace.WithAttributes(
		attribute.String("device", c.hostname),
	))
	defer span.End()

	start := time.Now()
	defer func() { recordOperation("patch", start, err) }()

	body, err := json.Marshal(patchBody)
	if err != nil {
		return nil, NewClientError("patch", "", 0, err)
	}

	rawURL := c.strategy.resolve(DeclarePath, classDeclaration)
	return c.do(ctx, "patch", http.MethodPatch, rawURL, body)
}

// Delete removes the given tenant scopes. An empty scope list fails
// with ErrDeleteAllTenants before any network call: the appliance
// would interpret it as wiping every declaration. With an external
// processor the operation is re-expressed as a POST of a remove-action
// declaration.
func (c *Client) Delete(ctx context.Context, tenants []string) (resp *Response, err error) {
	if len(tenants) == 0 {
		return nil, ErrDeleteAllTenants
	}

	if c.strategy.reexpressVerbs() {
		return c.Post(ctx, tenants, as3.NewRemoveDeclaration())
	}

	ctx, span := tracer.Start(ctx, "as3client.Delete", trace.WithAttributes(
		attribute.String("device", c.hostname),
		attribute.StringSlice("tenants", tenants),
	))
	defer span.End()

	start := time.Now()
	defer func() { recordOperation("delete", start, err) }()

	rawURL := c.strategy.resolve(declareTenantsPath(tenants), classDeclaration)
	return c.do(ctx, "delete", http.MethodDelete, rawURL, nil)
}

// Info returns the device's declaration-service version merged with
// the locally known hostname. Unlike the delivery operations it
// converts non-success statuses to errors eagerly.
func (c *Client) Info(ctx context.Context) (*DeviceInfo, error) {
	ctx, span := tracer.Start(ctx, "as3client.Info", trace.WithAttributes(
		attribute.String("device", c.hostname),
	))
	defer span.End()

	rawURL := c.strategy.resolve(InfoPath, classManagement)

	resp, err := c.do(ctx, "info", http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, NewClientError("info", redactURL(rawURL), resp.StatusCode, ErrRequestFailed)
	}

	info := &DeviceInfo{Hostname: c.hostname}
	if err := resp.JSON(info); err != nil {
		return nil, NewClientError("info", redactURL(rawURL), resp.StatusCode, err)
	}
	return info, nil
}

// do performs one HTTP round trip, re-authorizing once on 401 when the
// credential mechanism supports refresh.
func (c *Client) do(ctx context.Context, op, method, rawURL string, body []byte) (*Response, error) {
	resp, err := c.send(ctx, op, method, rawURL, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.creds.Kind() == credentials.KindToken {
		if err := c.creds.Refresh(ctx); err != nil {
			return nil, err
		}
		return c.send(ctx, op, method, rawURL, body)
	}

	return resp, nil
}

// send executes a single request through the breaker, if any.
func (c *Client) send(ctx context.Context, op, method, rawURL string, body []byte) (*Response, error) {
	if c.breaker == nil {
		return c.roundTrip(ctx, op, method, rawURL, body)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.roundTrip(ctx, op, method, rawURL, body)
		if err != nil {
			return nil, err
		}
		// Server errors count against the breaker, client errors and
		// successes do not.
		if resp.StatusCode >= 500 {
			return resp, NewClientError(op, redactURL(rawURL), resp.StatusCode, ErrRequestFailed)
		}
		return resp, nil
	})
	if err != nil {
		if resp, ok := result.(*Response); ok {
			return resp, nil
		}
		return nil, err
	}
	return result.(*Response), nil
}

// roundTrip builds, authenticates, sends and reads one request.
func (c *Client) roundTrip(ctx context.Context, op, method, rawURL string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, NewClientError(op, redactURL(rawURL), 0, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := c.creds.Apply(ctx, req); err != nil {
		return nil, err
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, NewClientError(op, redactURL(rawURL), 0, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewClientError(op, redactURL(rawURL), httpResp.StatusCode, err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
	}

	if c.debug {
		c.logExchange(method, rawURL, body, resp)
	}

	return resp, nil
}

// declareTenantsPath joins the declare path with a comma-joined tenant
// list. An empty list addresses the whole declaration.
func declareTenantsPath(tenants []string) string {
	if len(tenants) == 0 {
		return DeclarePath
	}
	return DeclarePath + "/" + strings.Join(tenants, ",")
}

// withAsyncParam appends the async submission query parameter.
func withAsyncParam(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("async", "true")
	u.RawQuery = q.Encode()
	return u.String()
}

// redactURL strips userinfo from a URL for logs and errors.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.User = nil
	return u.String()
}
