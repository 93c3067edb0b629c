package upstream

import (
	"net/http"
	"time"

	"github.com/okian/pricetrace/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithTimeout bounds a whole call, including the streamed body.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithTransport replaces the base round tripper wrapped by otelhttp.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.transport = rt
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithChainedBy sets the X-Chained-By header value sent on every call.
func WithChainedBy(route string) Option {
	return func(c *Client) {
		if route != "" {
			c.chainedBy = route
		}
	}
}
