package retailer

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var skuPattern = regexp.MustCompile(`(?i)SKU:\s*(\d+)`)

func (e *Extractor) parseGeneric(rawURL, domain, html string) (*Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	product := &Product{
		URL:      rawURL,
		Title:    extractTitle(doc),
		Image:    metaContent(doc, "og:image"),
		Retailer: domain,
	}

	if ld := findProductLD(doc); ld != nil {
		product.Price = digFloat(ld, "offers", "price")
		product.SKU = digString(ld, "sku")
		product.Model = digString(ld, "mpn")
		if upc := digString(ld, "gtin13"); upc != "" {
			product.UPC = upc
		} else {
			product.UPC = digString(ld, "gtin12")
		}
	}

	return product, nil
}

func (e *Extractor) parseBestBuy(rawURL, html string) (*Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	product := &Product{
		URL:      rawURL,
		Title:    extractTitle(doc),
		Image:    metaContent(doc, "og:image"),
		Retailer: "bestbuy.com",
	}

	if ld := findProductLD(doc); ld != nil {
		product.Price = digFloat(ld, "offers", "price")
		product.SKU = digString(ld, "sku")
		product.Model = digString(ld, "mpn")
	}

	// Best Buy renders the SKU as visible "SKU: nnn" text as well.
	if m := skuPattern.FindStringSubmatch(doc.Text()); m != nil {
		product.SKU = m[1]
	}

	return product, nil
}

func (e *Extractor) parseWalmart(rawURL, html string) (*Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	product := &Product{
		URL:      rawURL,
		Title:    extractTitle(doc),
		Retailer: "walmart.com",
	}

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if text == "" {
			return
		}
		id, _ := s.Attr("id")
		if id != "__NEXT_DATA__" &&
			!strings.Contains(text, "__NEXT_DATA__") &&
			!strings.Contains(text, "productInfo") &&
			!strings.Contains(text, `product":{"itemId"`) {
			return
		}

		start := strings.Index(text, "{")
		if start < 0 {
			return
		}
		var blob map[string]any
		if err := json.Unmarshal([]byte(text[start:]), &blob); err != nil {
			return
		}

		prod := dig(blob, "props", "pageProps", "initialData", "data", "product")
		if prod == nil {
			prod = dig(blob, "productInfo")
		}
		if prod == nil {
			prod = dig(blob, "product")
		}
		if prod == nil {
			return
		}

		if p := digFloat(prod, "priceInfo", "currentPrice", "price"); p != nil {
			product.Price = p
		}
		if sku := digString(prod, "usItemId"); sku != "" {
			product.SKU = sku
		} else if sku := digString(prod, "itemId"); sku != "" {
			product.SKU = sku
		}
		if upc := digString(prod, "upc"); upc != "" {
			product.UPC = upc
		}
		if model := digString(prod, "model"); model != "" {
			product.Model = model
		}
		if img := digString(prod, "imageInfo", "thumbnailUrl"); img != "" {
			product.Image = img
		}
	})

	return product, nil
}

func extractTitle(doc *goquery.Document) string {
	if title := metaContent(doc, "og:title"); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func metaContent(doc *goquery.Document, property string) string {
	content, _ := doc.Find(`meta[property="` + property + `"]`).Attr("content")
	return content
}

// findProductLD returns the first ld+json block describing a schema.org
// Product, unwrapping top-level arrays. Malformed blocks are skipped.
func findProductLD(doc *goquery.Document) map[string]any {
	var found map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return true
		}
		candidates := []any{raw}
		if arr, ok := raw.([]any); ok {
			candidates = arr
		}
		for _, c := range candidates {
			if obj, ok := c.(map[string]any); ok && obj["@type"] == "Product" {
				found = obj
				return false
			}
		}
		return true
	})
	return found
}

func dig(obj any, path ...string) map[string]any {
	current, ok := obj.(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range path {
		next, ok := current[key].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return current
}

func digString(obj map[string]any, path ...string) string {
	parent := obj
	if len(path) > 1 {
		parent = dig(obj, path[:len(path)-1]...)
	}
	if parent == nil {
		return ""
	}
	if s, ok := parent[path[len(path)-1]].(string); ok {
		return s
	}
	return ""
}

func digFloat(obj map[string]any, path ...string) *float64 {
	parent := obj
	if len(path) > 1 {
		parent = dig(obj, path[:len(path)-1]...)
	}
	if parent == nil {
		return nil
	}
	switch v := parent[path[len(path)-1]].(type) {
	case float64:
		if v > 0 {
			return &v
		}
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return &f
		}
	}
	return nil
}
