package models

import (
	"encoding/json"
	"time"
)

// InsertRequest is the payload sent to the /insert route. Both fields are
// kept raw; only a configured catalog store gives them a shape.
type InsertRequest struct {
	ProductData json.RawMessage `json:"productData"`
	AmazonData  json.RawMessage `json:"amazonData"`
}

// Product is a retailer listing scraped by the extension.
type Product struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	ProductURL    string    `json:"product_url"`
	ImageURLs     []string  `json:"image_urls"`
	Source        string    `json:"source"`
	LastSeenPrice *string   `json:"last_seen_price"`
	InStock       bool      `json:"in_stock"`
	CreatedDate   time.Time `json:"created_date"`
	UpdatedDate   time.Time `json:"updated_date"`
}

type AmazonProduct struct {
	ID          int64     `json:"id"`
	ASIN        string    `json:"asin"`
	Title       string    `json:"title"`
	ProductURL  string    `json:"product_url"`
	ImageURL    string    `json:"image_url"`
	CreatedDate time.Time `json:"created_date"`
	UpdatedDate time.Time `json:"updated_date"`
}

// CatalogEntry is one product together with the Amazon listings it matched.
type CatalogEntry struct {
	Product Product         `json:"product"`
	Matches []AmazonProduct `json:"matches"`
}
