package worker

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/resaleops/flipscan/internal/comps"
	"github.com/resaleops/flipscan/internal/events"
	"github.com/resaleops/flipscan/internal/profit"
	"github.com/resaleops/flipscan/internal/queue"
	"github.com/resaleops/flipscan/internal/retailer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	fn func(ctx context.Context, url string) (*retailer.Product, error)
}

func (s *stubExtractor) Extract(ctx context.Context, url string) (*retailer.Product, error) {
	return s.fn(ctx, url)
}

type stubComper struct {
	fn func(ctx context.Context, p *retailer.Product) (*comps.Estimate, error)
}

func (s *stubComper) Estimate(ctx context.Context, p *retailer.Product) (*comps.Estimate, error) {
	return s.fn(ctx, p)
}

type capturePublisher struct {
	mu      sync.Mutex
	results []*events.Result
	ch      chan *events.Result
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{ch: make(chan *events.Result, 16)}
}

func (p *capturePublisher) Publish(ctx context.Context, result *events.Result) error {
	p.mu.Lock()
	p.results = append(p.results, result)
	p.mu.Unlock()
	p.ch <- result
	return nil
}

func (p *capturePublisher) all() []*events.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*events.Result(nil), p.results...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func testConfig() Config {
	return Config{
		Concurrency: 1,
		Thresholds: profit.Thresholds{
			MinProfit:     30,
			MinSoldWindow: 5,
		},
		ShipEstimate: 12,
		FeePct:       0.13,
		FeeFixed:     0.3,
	}
}

func goodProduct(url string) *retailer.Product {
	buy := 100.0
	return &retailer.Product{URL: url, Title: "Widget Pro", Retailer: "example.com", Price: &buy}
}

func goodEstimate() *comps.Estimate {
	return &comps.Estimate{Median: 200, Low: 150, High: 260, SampleCount: 12}
}

func runPool(t *testing.T, pool *Pool) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go pool.Run(ctx)
	return cancel
}

func awaitResult(t *testing.T, pub *capturePublisher) *events.Result {
	t.Helper()
	select {
	case r := <-pub.ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a published result")
		return nil
	}
}

func TestJobReported(t *testing.T) {
	q := queue.NewMemoryQueue()
	pub := newCapturePublisher()

	extractor := &stubExtractor{fn: func(ctx context.Context, url string) (*retailer.Product, error) {
		return goodProduct(url), nil
	}}
	comper := &stubComper{fn: func(ctx context.Context, p *retailer.Product) (*comps.Estimate, error) {
		return goodEstimate(), nil
	}}

	pool := NewPool(q, extractor, comper, pub, nil, testConfig(), testLogger())
	cancel := runPool(t, pool)
	defer cancel()

	require.NoError(t, q.Enqueue(context.Background(), &queue.Job{ID: "j1", URL: "https://example.com/widget", ChannelID: "c1", MessageID: "m1"}))

	result := awaitResult(t, pub)
	assert.False(t, result.Suppressed)
	assert.Empty(t, result.Reason)
	assert.Equal(t, "c1", result.ChannelID)
	assert.InDelta(t, 61.7, result.Net.Profit, 1e-9)
}

func TestJobSuppressedBelowThreshold(t *testing.T) {
	q := queue.NewMemoryQueue()
	pub := newCapturePublisher()

	extractor := &stubExtractor{fn: func(ctx context.Context, url string) (*retailer.Product, error) {
		return goodProduct(url), nil
	}}
	comper := &stubComper{fn: func(ctx context.Context, p *retailer.Product) (*comps.Estimate, error) {
		return &comps.Estimate{Median: 100, Low: 80, High: 120, SampleCount: 12}, nil
	}}

	pool := NewPool(q, extractor, comper, pub, nil, testConfig(), testLogger())
	cancel := runPool(t, pool)
	defer cancel()

	require.NoError(t, q.Enqueue(context.Background(), &queue.Job{ID: "j1", URL: "https://example.com/widget"}))

	result := awaitResult(t, pub)
	assert.True(t, result.Suppressed)
	assert.Equal(t, "Below threshold", result.Reason)
	assert.InDelta(t, -25.3, result.Net.Profit, 1e-9)
}

func TestJobSuppressedThinSample(t *testing.T) {
	q := queue.NewMemoryQueue()
	pub := newCapturePublisher()

	extractor := &stubExtractor{fn: func(ctx context.Context, url string) (*retailer.Product, error) {
		return goodProduct(url), nil
	}}
	comper := &stubComper{fn: func(ctx context.Context, p *retailer.Product) (*comps.Estimate, error) {
		return &comps.Estimate{Median: 200, Low: 150, High: 260, SampleCount: 3}, nil
	}}

	pool := NewPool(q, extractor, comper, pub, nil, testConfig(), testLogger())
	cancel := runPool(t, pool)
	defer cancel()

	require.NoError(t, q.Enqueue(context.Background(), &queue.Job{ID: "j1", URL: "https://example.com/widget"}))

	result := awaitResult(t, pub)
	assert.True(t, result.Suppressed, "sample below window must suppress even when profitable")
}

func TestJobDroppedSilently(t *testing.T) {
	q := queue.NewMemoryQueue()
	pub := newCapturePublisher()

	extractor := &stubExtractor{fn: func(ctx context.Context, url string) (*retailer.Product, error) {
		if url == "https://example.com/dead" {
			return nil, comps.ErrNoComps
		}
		return goodProduct(url), nil
	}}
	comper := &stubComper{fn: func(ctx context.Context, p *retailer.Product) (*comps.Estimate, error) {
		if p.URL == "https://example.com/nocomps" {
			return nil, comps.ErrNoComps
		}
		if p.URL == "https://example.com/zeromedian" {
			return &comps.Estimate{Median: 0, SampleCount: 4}, nil
		}
		return goodEstimate(), nil
	}}

	pool := NewPool(q, extractor, comper, pub, nil, testConfig(), testLogger())
	cancel := runPool(t, pool)
	defer cancel()

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, &queue.Job{ID: "j1", URL: "https://example.com/dead"}))
	require.NoError(t, q.Enqueue(ctx, &queue.Job{ID: "j2", URL: "https://example.com/nocomps"}))
	require.NoError(t, q.Enqueue(ctx, &queue.Job{ID: "j3", URL: "https://example.com/zeromedian"}))
	require.NoError(t, q.Enqueue(ctx, &queue.Job{ID: "j4", URL: "https://example.com/ok"}))

	// Concurrency is 1, so the surviving job completes only after the three
	// dropped ones have been consumed.
	result := awaitResult(t, pub)
	assert.Equal(t, "j4", result.JobID)
	assert.Len(t, pub.all(), 1, "dropped jobs must emit nothing")
}

func TestJobPanicDoesNotKillPool(t *testing.T) {
	q := queue.NewMemoryQueue()
	pub := newCapturePublisher()

	extractor := &stubExtractor{fn: func(ctx context.Context, url string) (*retailer.Product, error) {
		if url == "https://example.com/boom" {
			panic("extractor exploded")
		}
		return goodProduct(url), nil
	}}
	comper := &stubComper{fn: func(ctx context.Context, p *retailer.Product) (*comps.Estimate, error) {
		return goodEstimate(), nil
	}}

	pool := NewPool(q, extractor, comper, pub, nil, testConfig(), testLogger())
	cancel := runPool(t, pool)
	defer cancel()

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, &queue.Job{ID: "j1", URL: "https://example.com/boom"}))
	require.NoError(t, q.Enqueue(ctx, &queue.Job{ID: "j2", URL: "https://example.com/ok"}))

	result := awaitResult(t, pub)
	assert.Equal(t, "j2", result.JobID, "pool must survive a panicking job")
}

func TestConcurrentJobs(t *testing.T) {
	q := queue.NewMemoryQueue()
	pub := newCapturePublisher()

	extractor := &stubExtractor{fn: func(ctx context.Context, url string) (*retailer.Product, error) {
		return goodProduct(url), nil
	}}
	comper := &stubComper{fn: func(ctx context.Context, p *retailer.Product) (*comps.Estimate, error) {
		return goodEstimate(), nil
	}}

	cfg := testConfig()
	cfg.Concurrency = 4

	pool := NewPool(q, extractor, comper, pub, nil, cfg, testLogger())
	cancel := runPool(t, pool)
	defer cancel()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(ctx, &queue.Job{ID: "job", URL: "https://example.com/widget"}))
	}

	for i := 0; i < 10; i++ {
		awaitResult(t, pub)
	}
	assert.Len(t, pub.all(), 10)
}
