package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/resaleops/flipscan/internal/proxy"
)

// ErrFetchExhausted is returned once every attempt of a fetch has failed.
var ErrFetchExhausted = errors.New("fetch attempts exhausted")

const maxRedirects = 5

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// DefaultPenalizedStatuses are the anti-automation and overload statuses that
// count against the proxy that served the attempt. Any other non-accepted
// status fails the attempt without penalizing the proxy.
var DefaultPenalizedStatuses = []int{403, 412, 429, 503, 520, 521}

// Options tune a single Fetch call. Zero values fall back to the client
// defaults.
type Options struct {
	MaxRetries   int
	Timeout      time.Duration
	Headers      map[string]string
	AcceptStatus func(code int) bool
}

// Client performs HTTP GETs with retry, backoff, identity randomization and
// proxy rotation. A nil registry or a registry with every endpoint quarantined
// means direct connections.
type Client struct {
	registry   *proxy.Registry
	logger     *slog.Logger
	maxRetries int
	timeout    time.Duration
	penalized  map[int]struct{}

	// sleep is swapped out in tests to avoid real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(registry *proxy.Registry, cfg Config, logger *slog.Logger) *Client {
	c := &Client{
		registry:   registry,
		logger:     logger.With("component", "fetch"),
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.Timeout,
		penalized:  make(map[int]struct{}),
		sleep:      sleepCtx,
	}
	statuses := cfg.PenalizedStatuses
	if len(statuses) == 0 {
		statuses = DefaultPenalizedStatuses
	}
	for _, s := range statuses {
		c.penalized[s] = struct{}{}
	}
	return c
}

// Config carries the client-wide defaults.
type Config struct {
	MaxRetries        int
	Timeout           time.Duration
	PenalizedStatuses []int
}

// Fetch GETs the URL and returns the response body. It tries up to
// maxRetries+1 times, rotating proxies and backing off between attempts, and
// returns an error wrapping ErrFetchExhausted once every attempt has failed.
func (c *Client) Fetch(ctx context.Context, url string, opts Options) (string, error) {
	maxRetries := c.maxRetries
	if opts.MaxRetries > 0 {
		maxRetries = opts.MaxRetries
	}
	timeout := c.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	accept := opts.AcceptStatus
	if accept == nil {
		accept = func(code int) bool { return code >= 200 && code < 300 }
	}

	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		var ep *proxy.Endpoint
		if c.registry != nil {
			ep = c.registry.Pick()
		}

		body, status, err := c.attempt(ctx, url, ep, timeout, opts.Headers)
		if err != nil {
			// Transport-level failure: timeout, DNS, connection reset.
			if ep != nil {
				c.registry.RecordFailure(*ep, attempt)
			}
			lastErr = err
		} else if accept(status) {
			if ep != nil {
				c.registry.RecordSuccess(*ep)
			}
			return body, nil
		} else {
			if _, blocked := c.penalized[status]; blocked && ep != nil {
				c.registry.RecordFailure(*ep, attempt)
			}
			lastErr = fmt.Errorf("http status %d", status)
		}

		c.logger.Warn("fetch attempt failed",
			"url", url,
			"attempt", attempt,
			"proxy", proxyLabel(ep),
			"error", lastErr,
		)

		if attempt < maxRetries {
			if err := c.sleep(ctx, BackoffDelay(attempt)+jitter()); err != nil {
				return "", err
			}
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrFetchExhausted, maxRetries+1, lastErr)
}

func (c *Client) attempt(ctx context.Context, url string, ep *proxy.Endpoint, timeout time.Duration, headers map[string]string) (string, int, error) {
	transport := &http.Transport{}
	if ep != nil {
		transport.Proxy = http.ProxyURL(ep.URL())
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	defer transport.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, err
	}

	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}

	return string(body), resp.StatusCode, nil
}

func proxyLabel(ep *proxy.Endpoint) string {
	if ep == nil {
		return "direct"
	}
	return ep.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
