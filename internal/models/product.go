// Package models defines the catalog domain types shared across layers.
package models

import (
	"fmt"
	"strings"
)

// SortKey selects the ordering of a product listing.
type SortKey string

// Supported sort keys. SortNone means the canonical catalog order (ascending id).
const (
	SortNone      SortKey = ""
	SortPriceAsc  SortKey = "price_asc"
	SortPriceDesc SortKey = "price_desc"
)

// ParseSortKey validates a raw sort parameter. The empty string maps to SortNone.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(strings.TrimSpace(s)) {
	case SortNone:
		return SortNone, nil
	case SortPriceAsc:
		return SortPriceAsc, nil
	case SortPriceDesc:
		return SortPriceDesc, nil
	default:
		return SortNone, fmt.Errorf("unknown sort key %q", s)
	}
}

// Product is a single catalog record. Embedding is nil until the record has
// been embedded; when present its length equals the configured dimension.
type Product struct {
	ID        string    `json:"product_id"`
	Name      string    `json:"product_name"`
	Brand     string    `json:"brand"`
	Category  string    `json:"category"`
	Price     float64   `json:"price"`
	Quantity  int       `json:"quantity"`
	Image     string    `json:"product_image"`
	Embedding []float32 `json:"-"`
}

// RawProduct is the ingestion wire format (one entry of the raw catalog JSON).
// It mirrors Product but keeps the optional embedding visible for fixtures.
type RawProduct struct {
	ID        string    `json:"product_id"`
	Name      string    `json:"product_name"`
	Brand     string    `json:"brand"`
	Category  string    `json:"category"`
	Price     float64   `json:"price"`
	Quantity  int       `json:"quantity"`
	Image     string    `json:"product_image"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Product converts the raw record into the domain type.
func (r RawProduct) Product() Product {
	return Product{
		ID:        r.ID,
		Name:      r.Name,
		Brand:     r.Brand,
		Category:  r.Category,
		Price:     r.Price,
		Quantity:  r.Quantity,
		Image:     r.Image,
		Embedding: r.Embedding,
	}
}

// ListParams is the already-validated input to a catalog listing: an optional
// category filter, a sort key, and the page window. Offset is never negative.
type ListParams struct {
	Categories []string
	Sort       SortKey
	Offset     int
	Limit      int
}

// ProductPage is one window of a filtered listing plus the filtered total.
type ProductPage struct {
	Items []Product
	Total int
}
