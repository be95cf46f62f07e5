// Package service holds the application services composing the catalog
// backend, the embedding provider, and the text-generation capability.
package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/AndreiKevin/omniquest-api/internal/catalog"
	"github.com/AndreiKevin/omniquest-api/internal/models"
	"github.com/AndreiKevin/omniquest-api/internal/oqerrors"
)

// Page size bounds for product listings.
const (
	DefaultPageSize = 24
	MinPageSize     = 1
	MaxPageSize     = 100
)

// ProductsService is the catalog query engine: exact-match category
// filtering, price sorting, and page windowing over whichever catalog
// backend is active. It validates caller input; the stores assume
// validated params.
type ProductsService struct {
	store catalog.Store
}

// NewProductsService creates a products service over the given backend.
func NewProductsService(store catalog.Store) *ProductsService {
	return &ProductsService{store: store}
}

// ProductListing is one page of a filtered catalog listing.
type ProductListing struct {
	Items    []models.Product
	Page     int
	PageSize int
	Total    int
	HasNext  bool
}

// List validates the query parameters and returns the requested page.
// Behavior is identical across flat and persistent backends.
func (s *ProductsService) List(
	ctx context.Context, categories []string, sortRaw string, page, pageSize int,
) (ProductListing, error) {
	if page < 1 {
		return ProductListing{}, oqerrors.NewValidationError("page", "page must be >= 1")
	}

	if pageSize < MinPageSize || pageSize > MaxPageSize {
		return ProductListing{}, oqerrors.NewValidationError("page_size",
			"page_size must be between "+strconv.Itoa(MinPageSize)+" and "+strconv.Itoa(MaxPageSize))
	}

	sortKey, err := models.ParseSortKey(sortRaw)
	if err != nil {
		return ProductListing{}, oqerrors.NewValidationError("sort", err.Error())
	}

	offset := (page - 1) * pageSize

	result, err := s.store.List(ctx, models.ListParams{
		Categories: categories,
		Sort:       sortKey,
		Offset:     offset,
		Limit:      pageSize,
	})
	if err != nil {
		return ProductListing{}, fmt.Errorf("list products: %w", err)
	}

	return ProductListing{
		Items:    result.Items,
		Page:     page,
		PageSize: pageSize,
		Total:    result.Total,
		HasNext:  offset+pageSize < result.Total,
	}, nil
}

// Get returns the single product with the given id.
func (s *ProductsService) Get(ctx context.Context, id string) (models.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Product{}, oqerrors.NewValidationError("id", "id must be non-empty")
	}

	products, err := s.store.GetByIDs(ctx, []string{id})
	if err != nil {
		return models.Product{}, fmt.Errorf("get product: %w", err)
	}

	if len(products) == 0 {
		return models.Product{}, oqerrors.NewNotFoundError("product", fmt.Sprintf("product %q not found", id))
	}

	return products[0], nil
}

// Categories returns the sorted distinct category strings of the catalog.
func (s *ProductsService) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.store.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	return categories, nil
}
