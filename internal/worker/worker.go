package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/resaleops/flipscan/internal/comps"
	"github.com/resaleops/flipscan/internal/database"
	"github.com/resaleops/flipscan/internal/events"
	"github.com/resaleops/flipscan/internal/profit"
	"github.com/resaleops/flipscan/internal/queue"
	"github.com/resaleops/flipscan/internal/retailer"
)

// Extractor resolves a product URL into a product, or fails when the page is
// unreachable or unrecognized.
type Extractor interface {
	Extract(ctx context.Context, url string) (*retailer.Product, error)
}

// Comper produces a comparable-price estimate for a product.
type Comper interface {
	Estimate(ctx context.Context, product *retailer.Product) (*comps.Estimate, error)
}

// History records emitted results. Writes are best-effort.
type History interface {
	Insert(ctx context.Context, res *database.FlipResult) error
}

// Config tunes one pool. Concurrency is a hard upper bound on simultaneous
// in-flight jobs, which exists to bound load against rate-limited upstreams.
type Config struct {
	Concurrency  int
	Thresholds   profit.Thresholds
	ShipEstimate float64
	FeePct       float64
	FeeFixed     float64
	TaxPct       float64
}

// Pool pulls jobs from the queue and runs each through extract, comp and
// decide, emitting a result event for everything that survives. A job failure
// terminates only that job.
type Pool struct {
	queue     queue.Queue
	extractor Extractor
	comper    Comper
	publisher events.Publisher
	history   History
	cfg       Config
	logger    *slog.Logger
}

func NewPool(q queue.Queue, ex Extractor, cp Comper, pub events.Publisher, hist History, cfg Config, logger *slog.Logger) *Pool {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Pool{
		queue:     q,
		extractor: ex,
		comper:    cp,
		publisher: pub,
		history:   hist,
		cfg:       cfg,
		logger:    logger.With("component", "worker"),
	}
}

// Run blocks until the context is cancelled or the queue closes, processing up
// to Concurrency jobs in parallel.
func (p *Pool) Run(ctx context.Context) {
	p.logger.Info("worker pool started", "concurrency", p.cfg.Concurrency)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	wg.Wait()

	p.logger.Info("worker pool stopped")
}

func (p *Pool) loop(ctx context.Context, id int) {
	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, queue.ErrQueueClosed) {
				return
			}
			p.logger.Error("dequeue failed", "worker", id, "error", err)
			continue
		}
		p.runJob(ctx, id, job)
	}
}

// runJob shields the pool from anything a single job does, including panics.
// A failed job is logged and dropped; it never aborts other in-flight jobs.
func (p *Pool) runJob(ctx context.Context, id int, job *queue.Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked, dropping", "worker", id, "job_id", job.ID, "panic", r)
		}
	}()
	p.process(ctx, job)
}

func (p *Pool) process(ctx context.Context, job *queue.Job) {
	log := p.logger.With("job_id", job.ID, "url", job.URL)
	log.Info("job received")

	product, err := p.extractor.Extract(ctx, job.URL)
	if err != nil || product == nil || product.Title == "" {
		log.Warn("no product extracted, dropping job", "error", err)
		return
	}
	log.Info("product extracted", "title", product.Title, "retailer", product.Retailer, "price", product.Price)

	estimate, err := p.comper.Estimate(ctx, product)
	if err != nil {
		if errors.Is(err, comps.ErrNoComps) {
			log.Info("no comps found, dropping job")
		} else {
			log.Warn("comp estimation failed, dropping job", "error", err)
		}
		return
	}
	if estimate == nil || estimate.Median == 0 || estimate.SampleCount == 0 {
		log.Info("insufficient comp data, dropping job")
		return
	}
	log.Info("comps estimated", "median", estimate.Median, "count", estimate.SampleCount)

	shipCost := p.cfg.ShipEstimate
	if product.ShipEstimate != nil {
		shipCost = *product.ShipEstimate
	}

	net := profit.Decide(profit.Inputs{
		BuyPrice:   product.Price,
		SoldMedian: estimate.Median,
		ShipCost:   shipCost,
		FeePct:     p.cfg.FeePct,
		FeeFixed:   p.cfg.FeeFixed,
		TaxPct:     p.cfg.TaxPct,
	})

	suppressed, reason := p.cfg.Thresholds.Evaluate(net, estimate.SampleCount)
	if suppressed {
		log.Info("result below threshold", "profit", net.Profit, "count", estimate.SampleCount)
	}

	result := &events.Result{
		JobID:      job.ID,
		ChannelID:  job.ChannelID,
		MessageID:  job.MessageID,
		GuildID:    job.GuildID,
		Product:    product,
		Comps:      estimate,
		Net:        net,
		Suppressed: suppressed,
		Reason:     reason,
		Timestamp:  time.Now(),
	}

	if err := p.publisher.Publish(ctx, result); err != nil {
		log.Error("failed to publish result", "error", err)
		return
	}

	p.record(ctx, result)
	log.Info("job completed", "profit", net.Profit, "suppressed", suppressed)
}

func (p *Pool) record(ctx context.Context, result *events.Result) {
	if p.history == nil {
		return
	}

	err := p.history.Insert(ctx, &database.FlipResult{
		ID:          uuid.New().String(),
		JobID:       result.JobID,
		URL:         result.Product.URL,
		Title:       result.Product.Title,
		Retailer:    result.Product.Retailer,
		BuyPrice:    result.Product.Price,
		SoldMedian:  result.Comps.Median,
		SoldLow:     result.Comps.Low,
		SoldHigh:    result.Comps.High,
		SampleCount: result.Comps.SampleCount,
		Net:         result.Net.Net,
		Profit:      result.Net.Profit,
		Margin:      result.Net.Margin,
		Suppressed:  result.Suppressed,
		Reason:      result.Reason,
		CreatedAt:   result.Timestamp,
	})
	if err != nil {
		p.logger.Warn("failed to record result history", "job_id", result.JobID, "error", err)
	}
}
