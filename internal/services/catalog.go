package services

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"product-relay/internal/models"
)

// CatalogWriter persists one scraped product and its Amazon matches.
type CatalogWriter interface {
	Write(ctx context.Context, productData, amazonData json.RawMessage) error
}

// NopCatalogWriter accepts every payload and stores nothing.
type NopCatalogWriter struct{}

func (NopCatalogWriter) Write(ctx context.Context, productData, amazonData json.RawMessage) error {
	return nil
}

type catalogStore interface {
	SaveEntry(ctx context.Context, entry *models.CatalogEntry) error
}

// CatalogService parses insert payloads and hands them to a store, which is
// either the Postgres repository or the Redis queue in front of it.
type CatalogService struct {
	store  catalogStore
	logger *zap.Logger
}

func NewCatalogService(store catalogStore, logger *zap.Logger) *CatalogService {
	return &CatalogService{store: store, logger: logger}
}

func (s *CatalogService) Write(ctx context.Context, productData, amazonData json.RawMessage) error {
	entry, err := ParseCatalogEntry(productData, amazonData)
	if err != nil {
		return err
	}

	s.logger.Debug("saving catalog entry",
		zap.String("product_url", entry.Product.ProductURL),
		zap.Int("match_count", len(entry.Matches)),
	)
	return s.store.SaveEntry(ctx, entry)
}

const defaultSource = "walgreens"

type scrapedProduct struct {
	Title        string   `json:"title"`
	ProductURL   string   `json:"product_url"`
	ImageURLs    []string `json:"image_urls"`
	Source       string   `json:"source"`
	RegularPrice string   `json:"regular_price"`
	SalesPrice   string   `json:"sales_price"`
	InStock      bool     `json:"in_stock"`
}

type scrapedListing struct {
	ASIN     string `json:"asin"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
}

// ParseCatalogEntry turns the loosely shaped extension payload into a
// CatalogEntry. amazonData may be a single listing or an array of them;
// listings whose ASIN cannot be determined are dropped.
func ParseCatalogEntry(productData, amazonData json.RawMessage) (*models.CatalogEntry, error) {
	fieldErrors := make(map[string]string)

	var product scrapedProduct
	if isNull(productData) {
		fieldErrors["productData"] = "Product data is required"
	} else if err := json.Unmarshal(productData, &product); err != nil {
		fieldErrors["productData"] = "Product data must be an object"
	} else {
		if strings.TrimSpace(product.Title) == "" {
			fieldErrors["productData.title"] = "Title is required"
		}
		if strings.TrimSpace(product.ProductURL) == "" {
			fieldErrors["productData.product_url"] = "Product URL is required"
		}
	}

	listings, err := decodeListings(amazonData)
	if err != nil {
		fieldErrors["amazonData"] = "Amazon data must be an object or an array of objects"
	}

	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	entry := &models.CatalogEntry{
		Product: models.Product{
			Title:      strings.TrimSpace(product.Title),
			ProductURL: strings.TrimSpace(product.ProductURL),
			ImageURLs:  product.ImageURLs,
			Source:     product.Source,
			InStock:    product.InStock,
		},
	}
	if entry.Product.Source == "" {
		entry.Product.Source = defaultSource
	}
	if entry.Product.ImageURLs == nil {
		entry.Product.ImageURLs = []string{}
	}
	if price := firstNonEmpty(product.SalesPrice, product.RegularPrice); price != "" {
		entry.Product.LastSeenPrice = &price
	}

	seen := make(map[string]bool)
	for _, l := range listings {
		asin := strings.ToUpper(strings.TrimSpace(l.ASIN))
		if asin == "" {
			asin = ExtractASIN(l.URL)
		}
		if asin == "" || seen[asin] {
			continue
		}
		seen[asin] = true
		entry.Matches = append(entry.Matches, models.AmazonProduct{
			ASIN:       asin,
			Title:      l.Title,
			ProductURL: l.URL,
			ImageURL:   l.ImageURL,
		})
	}

	return entry, nil
}

var asinPattern = regexp.MustCompile(`/([A-Z0-9]{10})(?:[/?]|$)`)

// ExtractASIN returns the ten character Amazon identifier embedded in a
// product URL, or "" when there is none.
func ExtractASIN(url string) string {
	m := asinPattern.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

func decodeListings(raw json.RawMessage) ([]scrapedListing, error) {
	if isNull(raw) {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] == '[' {
		var listings []scrapedListing
		if err := json.Unmarshal(trimmed, &listings); err != nil {
			return nil, err
		}
		return listings, nil
	}
	var single scrapedListing
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, err
	}
	return []scrapedListing{single}, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
