package comps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/resaleops/flipscan/internal/fetch"
	"github.com/resaleops/flipscan/internal/retailer"
)

// ErrNoComps means the sold-listings search produced no usable prices. Callers
// treat it as "cannot evaluate", not as a failure.
var ErrNoComps = errors.New("no comparable prices found")

// sampleCap bounds the working sample; listings past the first 30 valid prices
// are ignored for latency reasons.
const sampleCap = 30

const searchBaseURL = "https://www.ebay.com/sch/i.html"

// Estimate is a robust point estimate over recently sold comparable listings.
// It is deliberately biased toward first-listed results; callers must not
// assume unbiasedness.
type Estimate struct {
	Median      float64 `json:"median"`
	Low         float64 `json:"low"`
	High        float64 `json:"high"`
	SampleCount int     `json:"count30d"`
}

// Aggregator turns a product into a comp estimate by scraping the sold
// listings search and computing median and range over a capped sample.
type Aggregator struct {
	client    *fetch.Client
	logger    *slog.Logger
	overrides []Override
}

func NewAggregator(client *fetch.Client, overrides []Override, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		client:    client,
		logger:    logger.With("component", "comps"),
		overrides: overrides,
	}
}

// Estimate scrapes sold listings for the product and aggregates their prices.
// Returns ErrNoComps when no valid price survives filtering.
func (a *Aggregator) Estimate(ctx context.Context, product *retailer.Product) (*Estimate, error) {
	query, band := a.buildQuery(product)
	if query == "" {
		return nil, ErrNoComps
	}

	searchURL := fmt.Sprintf("%s?_nkw=%s&LH_Sold=1&LH_Complete=1", searchBaseURL, url.QueryEscape(query))

	html, err := a.client.Fetch(ctx, searchURL, fetch.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sold listings: %w", err)
	}

	prices, err := a.extractPrices(html, band)
	if err != nil {
		return nil, err
	}

	return Aggregate(prices), nil
}

func (a *Aggregator) buildQuery(product *retailer.Product) (string, *PriceBand) {
	for _, o := range a.overrides {
		if o.matches(product.Title) {
			a.logger.Debug("using category override", "query", o.Query, "title", product.Title)
			return o.Query, o.Band
		}
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{product.Title, product.Model, product.UPC} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	query := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	return query, nil
}

func (a *Aggregator) extractPrices(html string, band *PriceBand) ([]float64, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search page: %w", err)
	}

	var prices []float64
	doc.Find("li.s-item").Each(func(_ int, item *goquery.Selection) {
		token := item.Find(".s-item__price").First().Text()
		price, ok := ParsePrice(token)
		if !ok {
			return
		}
		if band != nil && !band.contains(price) {
			return
		}
		prices = append(prices, price)
	})

	if len(prices) == 0 {
		return nil, ErrNoComps
	}
	return prices, nil
}

var priceToken = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParsePrice parses one currency-formatted token: an optional leading symbol
// and thousands separators are tolerated. Non-finite and non-positive values
// are rejected.
func ParsePrice(token string) (float64, bool) {
	m := priceToken.FindString(strings.ReplaceAll(token, ",", ""))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, false
	}
	return f, true
}

// Aggregate computes the estimate over the first sampleCap prices in encounter
// order. The retained sample is sorted ascending; median follows the standard
// odd/even rule, low and high are the min and max of the retained sample.
func Aggregate(prices []float64) *Estimate {
	if len(prices) == 0 {
		return nil
	}

	sample := prices
	if len(sample) > sampleCap {
		sample = sample[:sampleCap]
	}

	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	return &Estimate{
		Median:      median,
		Low:         sorted[0],
		High:        sorted[len(sorted)-1],
		SampleCount: len(sorted),
	}
}
