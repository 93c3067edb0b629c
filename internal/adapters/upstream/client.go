// Package upstream calls the service's own streaming endpoint over HTTP.
//
// The client is shared by all requests. Trace context is propagated through
// an otelhttp transport so the called endpoint continues the caller's trace.
package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/pricetrace/internal/domain/model"
	"github.com/okian/pricetrace/internal/stream"
	"github.com/okian/pricetrace/pkg/logger"
	"github.com/okian/pricetrace/pkg/metrics"
	"github.com/okian/pricetrace/pkg/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client defaults and wire constants.
const (
	defaultTimeout  = 30 * time.Second
	byPricePath     = "/byPriceReactive"
	mediaNDJSON     = "application/x-ndjson"
	HeaderChainedBy = "X-Chained-By"

	// SpanChaining names the client span around one upstream call.
	SpanChaining = "chainingPriceReactive"
)

// Client issues GET /byPriceReactive against a fixed base URL.
type Client struct {
	baseURL   *url.URL
	timeout   time.Duration
	transport http.RoundTripper
	chainedBy string
	http      *http.Client
	logger    logger.Logger
}

// New creates a client bound to baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBadBaseURL, baseURL)
	}
	c := &Client{
		baseURL:   u,
		timeout:   defaultTimeout,
		transport: http.DefaultTransport,
		chainedBy: "/chaining",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Named("upstream")
	}
	c.http = &http.Client{
		Timeout:   c.timeout,
		Transport: otelhttp.NewTransport(c.transport),
	}
	return c, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ByPriceReactive returns a lazy stream over the upstream response body.
// The request is sent on subscription; each element is emitted as soon as
// it is decoded. Transport failures and non-2xx statuses end the stream
// with an error wrapping ErrUpstream.
func (c *Client) ByPriceReactive(maxPrice float64) *stream.Stream[model.Restaurant] {
	return stream.Create(func(ctx context.Context, emit stream.EmitFunc[model.Restaurant]) error {
		ctx, span := tracing.Tracer().Start(ctx, SpanChaining, trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		err := c.fetch(ctx, maxPrice, emit)
		if err != nil && ctx.Err() == nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	})
}

func (c *Client) fetch(ctx context.Context, maxPrice float64, emit stream.EmitFunc[model.Restaurant]) error {
	target := c.baseURL.JoinPath(byPricePath)
	q := target.Query()
	q.Set("maxPrice", strconv.FormatFloat(maxPrice, 'f', -1, 64))
	target.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrUpstream, err)
	}
	req.Header.Set("Accept", mediaNDJSON+", application/json")
	req.Header.Set(HeaderChainedBy, c.chainedBy)

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("upstream.url", target.String()))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.RecordUpstreamRequest("transport_error")
		metrics.RecordErrorByComponent("upstream", "transport")
		c.logger.Debug(ctx, "upstream call failed", logger.String("url", target.String()), logger.Error(err))
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.RecordUpstreamLatency(float64(time.Since(start).Milliseconds()))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.RecordUpstreamRequest("bad_status")
		metrics.RecordErrorByComponent("upstream", "status_"+strconv.Itoa(resp.StatusCode))
		c.logger.Debug(ctx, "upstream returned error status",
			logger.Int("status", resp.StatusCode),
			logger.String("body", strings.TrimSpace(string(body))))
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	if err := decode(ctx, resp.Body, emit); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.RecordUpstreamRequest("decode_error")
		metrics.RecordErrorByComponent("upstream", "decode")
		return fmt.Errorf("%w: decode: %w", ErrUpstream, err)
	}
	metrics.RecordUpstreamRequest("ok")
	return nil
}

// decode reads either a JSON array or newline-delimited JSON objects and
// emits each restaurant as soon as it is complete.
func decode(ctx context.Context, body io.Reader, emit stream.EmitFunc[model.Restaurant]) error {
	br := bufio.NewReader(body)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		if _, err := dec.Token(); err != nil {
			return err
		}
		for dec.More() {
			var r model.Restaurant
			if err := dec.Decode(&r); err != nil {
				return err
			}
			if !emit(r) {
				return ctx.Err()
			}
		}
		_, err := dec.Token()
		return err
	}

	for {
		var r model.Restaurant
		err := dec.Decode(&r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if !emit(r) {
			return ctx.Err()
		}
	}
}

// peekNonSpace returns the first non-whitespace byte without consuming it.
func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		if len(bytes.TrimSpace(b)) != 0 {
			return b[0], nil
		}
		if _, err := br.ReadByte(); err != nil {
			return 0, err
		}
	}
}
