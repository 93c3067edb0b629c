package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/okian/pricetrace/internal/domain/model"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPClient wraps http.Client with a timeout and trace propagation.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Get performs a GET request asking for a JSON body.
func (c *HTTPClient) Get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.client.Do(req)
}

func routeURL(base, route string, maxPrice *float64) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: base url: %w", ErrBadConfig, err)
	}
	u = u.JoinPath(route)
	if maxPrice != nil {
		q := u.Query()
		q.Set("maxPrice", strconv.FormatFloat(*maxPrice, 'f', -1, 64))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// fetch calls target and decodes a JSON array of restaurants. Elapsed covers
// the whole body so streamed routes report their full duration.
func fetch(ctx context.Context, c *HTTPClient, route, target string) Result {
	res := Result{Route: route}
	start := time.Now()

	resp, err := c.Get(ctx, target)
	if err != nil {
		res.Err = err
		res.Elapsed = time.Since(start)
		return res
	}
	defer func() { _ = resp.Body.Close() }()
	res.Status = resp.StatusCode

	body, err := io.ReadAll(resp.Body)
	res.Elapsed = time.Since(start)
	if err != nil {
		res.Err = fmt.Errorf("read body: %w", err)
		return res
	}
	if resp.StatusCode != http.StatusOK {
		res.Err = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
		return res
	}

	var out []model.Restaurant
	if err := json.Unmarshal(body, &out); err != nil {
		res.Err = fmt.Errorf("decode body: %w", err)
		return res
	}
	res.Restaurants = out
	return res
}

// fetchConcurrently issues n identical calls from a fixed set of workers.
func fetchConcurrently(ctx context.Context, c *HTTPClient, route, target string, n int) []Result {
	results := make([]Result, n)
	jobs := make(chan int, n)
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < n; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					results[i] = Result{Route: route, Err: ctx.Err()}
					continue
				}
				results[i] = fetch(ctx, c, route, target)
			}
		}()
	}
	wg.Wait()
	return results
}
