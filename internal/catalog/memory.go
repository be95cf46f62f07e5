package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/AndreiKevin/omniquest-api/internal/models"
)

// MemoryStore is the flat catalog backend: the whole catalog in one slice,
// loaded once at startup and immutable afterwards, so reads take no locks.
// Similarity search is a full scan, acceptable at flat-mode catalog sizes.
type MemoryStore struct {
	products  []models.Product // canonical order: ascending id
	byID      map[string]models.Product
	dimension int
}

// NewMemoryStore builds a flat store from the given products. Duplicate ids
// and embeddings that do not match the configured dimension are configuration
// errors and fail startup.
func NewMemoryStore(products []models.Product, dimension int) (*MemoryStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("memory store: dimension must be positive, got %d", dimension)
	}

	byID := make(map[string]models.Product, len(products))
	ordered := make([]models.Product, 0, len(products))

	for _, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("memory store: product %q has empty id", p.Name)
		}

		if _, ok := byID[p.ID]; ok {
			return nil, fmt.Errorf("memory store: duplicate product id %q", p.ID)
		}

		if p.Embedding != nil && len(p.Embedding) != dimension {
			return nil, fmt.Errorf("memory store: product %q embedding has %d dimensions, want %d",
				p.ID, len(p.Embedding), dimension)
		}

		byID[p.ID] = p
		ordered = append(ordered, p)
	}

	// Canonical catalog order is ascending id so flat and persistent modes
	// return identical sequences for every filter/sort/page combination.
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	return &MemoryStore{products: ordered, byID: byID, dimension: dimension}, nil
}

// LoadFile parses a raw catalog JSON file (an array of raw product records)
// and builds a MemoryStore from it.
func LoadFile(path string, dimension int) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog data: %w", err)
	}

	var raw []models.RawProduct
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog data %s: %w", path, err)
	}

	products := make([]models.Product, 0, len(raw))
	for _, r := range raw {
		products = append(products, r.Product())
	}

	return NewMemoryStore(products, dimension)
}

// Len returns the number of products held.
func (s *MemoryStore) Len() int {
	return len(s.products)
}

// List filters, sorts, and windows the in-memory catalog.
func (s *MemoryStore) List(ctx context.Context, params models.ListParams) (models.ProductPage, error) {
	filtered := s.products

	if len(params.Categories) > 0 {
		allowed := make(map[string]struct{}, len(params.Categories))
		for _, c := range params.Categories {
			allowed[c] = struct{}{}
		}

		filtered = make([]models.Product, 0, len(s.products))

		for _, p := range s.products {
			if _, ok := allowed[p.Category]; ok {
				filtered = append(filtered, p)
			}
		}
	}

	switch params.Sort {
	case models.SortPriceAsc, models.SortPriceDesc:
		sorted := make([]models.Product, len(filtered))
		copy(sorted, filtered)

		asc := params.Sort == models.SortPriceAsc
		sort.Slice(sorted, func(i, j int) bool {
			if sorted[i].Price != sorted[j].Price {
				if asc {
					return sorted[i].Price < sorted[j].Price
				}

				return sorted[i].Price > sorted[j].Price
			}

			return sorted[i].ID < sorted[j].ID
		})

		filtered = sorted
	case models.SortNone:
		// already in canonical id order
	}

	total := len(filtered)

	start := params.Offset
	if start > total {
		start = total
	}

	end := start + params.Limit
	if end > total {
		end = total
	}

	items := make([]models.Product, end-start)
	copy(items, filtered[start:end])

	return models.ProductPage{Items: items, Total: total}, nil
}

// Categories returns the sorted distinct category strings.
func (s *MemoryStore) Categories(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	for _, p := range s.products {
		seen[p.Category] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}

	sort.Strings(out)

	return out, nil
}

// GetByIDs returns records in the order of the given ids, skipping unknown ids.
func (s *MemoryStore) GetByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	out := make([]models.Product, 0, len(ids))

	for _, id := range ids {
		if p, ok := s.byID[id]; ok {
			out = append(out, p)
		}
	}

	return out, nil
}

// SearchNearest scans every embedded product, ranks by cosine distance to the
// query, and returns the k nearest ids. O(n*d) per query.
func (s *MemoryStore) SearchNearest(ctx context.Context, query []float32, k int) ([]string, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("memory store: query embedding has %d dimensions, want %d", len(query), s.dimension)
	}

	if k <= 0 {
		return []string{}, nil
	}

	type candidate struct {
		id       string
		distance float64
	}

	candidates := make([]candidate, 0, len(s.products))

	for _, p := range s.products {
		if p.Embedding == nil {
			continue
		}

		candidates = append(candidates, candidate{
			id:       p.ID,
			distance: CosineDistance(query, p.Embedding),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}

		return candidates[i].id < candidates[j].id
	})

	if k > len(candidates) {
		k = len(candidates)
	}

	ids := make([]string, k)
	for i := 0; i < k; i++ {
		ids[i] = candidates[i].id
	}

	return ids, nil
}

// ExistingIDs returns the set of ids already present in the catalog.
func (s *MemoryStore) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(s.byID))
	for id := range s.byID {
		out[id] = struct{}{}
	}

	return out, nil
}

// InsertWithEmbeddings appends new records. The flat store is normally
// immutable after load; this path exists for ingestion runs and tests and
// must not race with concurrent readers.
func (s *MemoryStore) InsertWithEmbeddings(ctx context.Context, products []models.Product) error {
	for _, p := range products {
		if p.ID == "" {
			return fmt.Errorf("memory store: insert with empty id")
		}

		if _, ok := s.byID[p.ID]; ok {
			return fmt.Errorf("memory store: insert duplicate id %q", p.ID)
		}

		if p.Embedding != nil && len(p.Embedding) != s.dimension {
			return fmt.Errorf("memory store: product %q embedding has %d dimensions, want %d",
				p.ID, len(p.Embedding), s.dimension)
		}
	}

	for _, p := range products {
		s.byID[p.ID] = p
		s.products = append(s.products, p)
	}

	sort.Slice(s.products, func(i, j int) bool { return s.products[i].ID < s.products[j].ID })

	return nil
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Writer = (*MemoryStore)(nil)
)
