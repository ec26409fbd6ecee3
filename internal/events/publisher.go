package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/resaleops/flipscan/internal/comps"
	"github.com/resaleops/flipscan/internal/profit"
	"github.com/resaleops/flipscan/internal/retailer"
)

// Result is the outbound event consumed by the chat transport's posting
// function. Suppressed results carry the gate's reason and are marked
// low-confidence; they are still posted.
type Result struct {
	JobID      string            `json:"job_id"`
	ChannelID  string            `json:"channelId"`
	MessageID  string            `json:"messageId"`
	GuildID    string            `json:"guildId,omitempty"`
	Product    *retailer.Product `json:"product"`
	Comps      *comps.Estimate   `json:"comps"`
	Net        profit.Result     `json:"net"`
	Suppressed bool              `json:"suppressed,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Publisher hands finished results to the external transport.
type Publisher interface {
	Publish(ctx context.Context, result *Result) error
}

// StreamPublisher appends results to a Redis stream. The transport consumes
// the stream and posts replies; this process never talks to the chat platform
// directly.
type StreamPublisher struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewStreamPublisher(client *redis.Client, stream string, logger *slog.Logger) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *StreamPublisher) Publish(ctx context.Context, result *Result) error {
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now()
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{"payload": data},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}

	p.logger.Info("result published",
		"job_id", result.JobID,
		"url", result.Product.URL,
		"profit", result.Net.Profit,
		"suppressed", result.Suppressed,
	)
	return nil
}
