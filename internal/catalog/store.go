// Package catalog defines the catalog backend contract and the flat
// in-memory implementation. The Postgres implementation lives in
// internal/repository; both satisfy the same interfaces so callers never
// branch on the active mode.
package catalog

import (
	"context"
	"math"

	"github.com/AndreiKevin/omniquest-api/internal/models"
)

// Store is the read-only catalog contract shared by both backends.
type Store interface {
	// List returns one window of the filtered, sorted catalog plus the
	// filtered total. Params are assumed validated (non-negative offset,
	// positive limit). The backend pushes filter, sort, and window down to
	// its storage; no full materialization in persistent mode.
	List(ctx context.Context, params models.ListParams) (models.ProductPage, error)

	// Categories returns the sorted set of distinct category strings.
	Categories(ctx context.Context) ([]string, error)

	// GetByIDs returns the records for the given ids, preserving the order
	// of ids. Unknown ids are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]models.Product, error)

	// SearchNearest returns up to k product ids ranked by ascending cosine
	// distance to the query vector. Records without an embedding are never
	// candidates; distance ties break by ascending id. k <= 0 or an empty
	// candidate set yield an empty result, not an error.
	SearchNearest(ctx context.Context, query []float32, k int) ([]string, error)
}

// Writer is the ingestion-side contract. Reads and writes are split so the
// serving path stays read-only.
type Writer interface {
	// ExistingIDs returns the set of ids already present in the catalog.
	ExistingIDs(ctx context.Context) (map[string]struct{}, error)

	// InsertWithEmbeddings inserts records paired with their embeddings,
	// all-or-nothing.
	InsertWithEmbeddings(ctx context.Context, products []models.Product) error
}

// CosineDistance returns 1 minus the cosine similarity of a and b; lower
// means more similar. A zero-magnitude vector has no direction and is
// treated as maximally dissimilar-neutral (distance 1). Accumulates in
// float64 to keep the ranking stable for high-dimensional vectors.
func CosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64

	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
