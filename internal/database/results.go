package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// FlipResult is one row of result history. History is a convenience for the
// API; writes are best-effort and never fail a job.
type FlipResult struct {
	ID          string    `json:"id"`
	JobID       string    `json:"job_id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Retailer    string    `json:"retailer"`
	BuyPrice    *float64  `json:"buy_price,omitempty"`
	SoldMedian  float64   `json:"sold_median"`
	SoldLow     float64   `json:"sold_low"`
	SoldHigh    float64   `json:"sold_high"`
	SampleCount int       `json:"sample_count"`
	Net         float64   `json:"net"`
	Profit      float64   `json:"profit"`
	Margin      float64   `json:"margin"`
	Suppressed  bool      `json:"suppressed"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type ResultRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewResultRepository(db *DB, logger *slog.Logger) *ResultRepository {
	return &ResultRepository{
		db:     db,
		logger: logger.With("component", "results"),
	}
}

func (r *ResultRepository) Insert(ctx context.Context, res *FlipResult) error {
	query := `
		INSERT INTO flip_results
		(id, job_id, url, title, retailer, buy_price, sold_median, sold_low, sold_high,
		 sample_count, net, profit, margin, suppressed, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.db.Exec(ctx, query,
		res.ID, res.JobID, res.URL, res.Title, res.Retailer, res.BuyPrice,
		res.SoldMedian, res.SoldLow, res.SoldHigh, res.SampleCount,
		res.Net, res.Profit, res.Margin, res.Suppressed, res.Reason, res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}

func (r *ResultRepository) ListRecent(ctx context.Context, limit int) ([]*FlipResult, error) {
	query := `
		SELECT id, job_id, url, title, retailer, buy_price, sold_median, sold_low, sold_high,
		       sample_count, net, profit, margin, suppressed, reason, created_at
		FROM flip_results
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []*FlipResult
	for rows.Next() {
		res := &FlipResult{}
		err := rows.Scan(
			&res.ID, &res.JobID, &res.URL, &res.Title, &res.Retailer, &res.BuyPrice,
			&res.SoldMedian, &res.SoldLow, &res.SoldHigh, &res.SampleCount,
			&res.Net, &res.Profit, &res.Margin, &res.Suppressed, &res.Reason, &res.CreatedAt,
		)
		if err != nil {
			r.logger.Warn("skipping unreadable result row", "error", err)
			continue
		}
		results = append(results, res)
	}

	return results, nil
}
