package comps

import "strings"

// PriceBand is an optional sanity range for a product category. Zero Max means
// unbounded above.
type PriceBand struct {
	Min float64
	Max float64
}

func (b PriceBand) contains(price float64) bool {
	if price < b.Min {
		return false
	}
	if b.Max > 0 && price > b.Max {
		return false
	}
	return true
}

// Override replaces the default title-derived search query for known noisy
// categories. Overrides are data: add a row instead of a conditional.
type Override struct {
	// Keywords all have to appear in the product title (case-insensitive).
	Keywords []string
	// Query is the canonical search query used instead of the raw title.
	Query string
	// Band discards scraped prices outside the sanity range when set.
	Band *PriceBand
}

func (o Override) matches(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range o.Keywords {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	return len(o.Keywords) > 0
}

// DefaultOverrides covers product lines whose full titles pull in unrelated
// listings (accessories, bundles, parts).
func DefaultOverrides() []Override {
	return []Override{
		{
			Keywords: []string{"macbook air", "m2"},
			Query:    "macbook air m2 laptop",
			Band:     &PriceBand{Min: 300, Max: 2500},
		},
		{
			Keywords: []string{"playstation 5"},
			Query:    "playstation 5 console",
			Band:     &PriceBand{Min: 200, Max: 1200},
		},
	}
}
