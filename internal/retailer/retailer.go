package retailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/resaleops/flipscan/internal/fetch"
)

// Product is what an extractor pulls off a retail product page. Price and
// ShipEstimate stay nil when the page does not expose them; a missing price is
// not fatal downstream.
type Product struct {
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	SKU          string   `json:"sku,omitempty"`
	UPC          string   `json:"upc,omitempty"`
	Model        string   `json:"model,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	ShipEstimate *float64 `json:"ship_estimate,omitempty"`
	Image        string   `json:"image,omitempty"`
	Retailer     string   `json:"retailer"`
}

// Extractor turns a product URL into a Product by fetching the page through
// the rotating client and applying per-retailer extraction rules.
type Extractor struct {
	client *fetch.Client
	logger *slog.Logger
}

func NewExtractor(client *fetch.Client, logger *slog.Logger) *Extractor {
	return &Extractor{
		client: client,
		logger: logger.With("component", "retailer"),
	}
}

// Extract dispatches on the URL's hostname. Unknown retailers fall back to the
// generic schema.org extraction.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Product, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid product url: %w", err)
	}

	domain := strings.TrimPrefix(u.Hostname(), "www.")

	html, err := e.client.Fetch(ctx, rawURL, fetch.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product page: %w", err)
	}

	switch {
	case strings.Contains(domain, "walmart.com"):
		return e.parseWalmart(rawURL, html)
	case strings.Contains(domain, "bestbuy.com"):
		return e.parseBestBuy(rawURL, html)
	default:
		return e.parseGeneric(rawURL, domain, html)
	}
}
