package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreiKevin/omniquest-api/internal/models"
)

func groceryFixture(t *testing.T) *MemoryStore {
	t.Helper()

	store, err := NewMemoryStore([]models.Product{
		{ID: "a", Name: "Milk", Brand: "Dale", Category: "Dairy", Price: 3, Embedding: []float32{1, 0}},
		{ID: "b", Name: "Butter", Brand: "Dale", Category: "Dairy", Price: 1, Embedding: []float32{0, 1}},
		{ID: "c", Name: "Apples", Brand: "Grove", Category: "Produce", Price: 2, Embedding: []float32{0.9, 0.1}},
	}, 2)
	require.NoError(t, err)

	return store
}

func TestNewMemoryStore_Validation(t *testing.T) {
	t.Run("rejects duplicate ids", func(t *testing.T) {
		_, err := NewMemoryStore([]models.Product{{ID: "a"}, {ID: "a"}}, 2)
		assert.Error(t, err)
	})

	t.Run("rejects embedding dimension mismatch", func(t *testing.T) {
		_, err := NewMemoryStore([]models.Product{{ID: "a", Embedding: []float32{1, 0, 0}}}, 2)
		assert.Error(t, err)
	})

	t.Run("rejects empty id", func(t *testing.T) {
		_, err := NewMemoryStore([]models.Product{{Name: "unnamed"}}, 2)
		assert.Error(t, err)
	})

	t.Run("accepts nil embeddings", func(t *testing.T) {
		_, err := NewMemoryStore([]models.Product{{ID: "a"}}, 2)
		assert.NoError(t, err)
	})
}

func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	store := groceryFixture(t)

	t.Run("category filter with price_asc sort", func(t *testing.T) {
		page, err := store.List(ctx, models.ListParams{
			Categories: []string{"Dairy"},
			Sort:       models.SortPriceAsc,
			Offset:     0,
			Limit:      10,
		})
		require.NoError(t, err)

		assert.Equal(t, 2, page.Total)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "b", page.Items[0].ID)
		assert.Equal(t, "a", page.Items[1].ID)
	})

	t.Run("no filter no sort returns canonical order", func(t *testing.T) {
		page, err := store.List(ctx, models.ListParams{Offset: 0, Limit: 2})
		require.NoError(t, err)

		assert.Equal(t, 3, page.Total)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "a", page.Items[0].ID)
		assert.Equal(t, "b", page.Items[1].ID)
	})

	t.Run("price_desc sorts descending", func(t *testing.T) {
		page, err := store.List(ctx, models.ListParams{Sort: models.SortPriceDesc, Offset: 0, Limit: 10})
		require.NoError(t, err)

		ids := idsOf(page.Items)
		assert.Equal(t, []string{"a", "c", "b"}, ids)
	})

	t.Run("price ties break by ascending id", func(t *testing.T) {
		tied, err := NewMemoryStore([]models.Product{
			{ID: "z", Category: "X", Price: 5},
			{ID: "m", Category: "X", Price: 5},
			{ID: "q", Category: "X", Price: 5},
		}, 2)
		require.NoError(t, err)

		page, err := tied.List(ctx, models.ListParams{Sort: models.SortPriceAsc, Offset: 0, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"m", "q", "z"}, idsOf(page.Items))
	})

	t.Run("case-sensitive exact category match", func(t *testing.T) {
		page, err := store.List(ctx, models.ListParams{Categories: []string{"dairy"}, Offset: 0, Limit: 10})
		require.NoError(t, err)

		assert.Equal(t, 0, page.Total)
		assert.Empty(t, page.Items)
	})

	t.Run("offset beyond total returns empty page with total", func(t *testing.T) {
		page, err := store.List(ctx, models.ListParams{Offset: 10, Limit: 5})
		require.NoError(t, err)

		assert.Equal(t, 3, page.Total)
		assert.Empty(t, page.Items)
	})
}

func TestMemoryStore_PaginationReproducesSequence(t *testing.T) {
	ctx := context.Background()

	products := make([]models.Product, 0, 27)
	for i := 0; i < 27; i++ {
		products = append(products, models.Product{
			ID:       string(rune('a'+i%26)) + string(rune('a'+i/26)),
			Category: "Bulk",
			Price:    float64(i % 7),
		})
	}

	store, err := NewMemoryStore(products, 2)
	require.NoError(t, err)

	full, err := store.List(ctx, models.ListParams{Sort: models.SortPriceAsc, Offset: 0, Limit: 27})
	require.NoError(t, err)
	require.Len(t, full.Items, 27)

	// Concatenating all pages with a fixed page size must reproduce the full
	// sequence exactly once, no gaps or duplicates.
	const pageSize = 4

	var concatenated []string

	for page := 1; (page-1)*pageSize < full.Total; page++ {
		window, err := store.List(ctx, models.ListParams{
			Sort:   models.SortPriceAsc,
			Offset: (page - 1) * pageSize,
			Limit:  pageSize,
		})
		require.NoError(t, err)

		concatenated = append(concatenated, idsOf(window.Items)...)
	}

	assert.Equal(t, idsOf(full.Items), concatenated)
}

func TestMemoryStore_Categories(t *testing.T) {
	store := groceryFixture(t)

	cats, err := store.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Dairy", "Produce"}, cats)
}

func TestMemoryStore_GetByIDs(t *testing.T) {
	store := groceryFixture(t)

	t.Run("preserves requested order", func(t *testing.T) {
		got, err := store.GetByIDs(context.Background(), []string{"c", "a"})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a"}, idsOf(got))
	})

	t.Run("skips unknown ids", func(t *testing.T) {
		got, err := store.GetByIDs(context.Background(), []string{"b", "nope", "c"})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, idsOf(got))
	})
}

func TestMemoryStore_SearchNearest(t *testing.T) {
	ctx := context.Background()
	store := groceryFixture(t)

	t.Run("ranks by ascending cosine distance", func(t *testing.T) {
		ids, err := store.SearchNearest(ctx, []float32{1, 0}, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, ids)
	})

	t.Run("k larger than candidates returns all ranked", func(t *testing.T) {
		ids, err := store.SearchNearest(ctx, []float32{1, 0}, 50)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c", "b"}, ids)
	})

	t.Run("k zero returns empty", func(t *testing.T) {
		ids, err := store.SearchNearest(ctx, []float32{1, 0}, 0)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("excludes records without embeddings", func(t *testing.T) {
		mixed, err := NewMemoryStore([]models.Product{
			{ID: "embedded", Category: "X", Embedding: []float32{1, 0}},
			{ID: "bare", Category: "X"},
		}, 2)
		require.NoError(t, err)

		ids, err := mixed.SearchNearest(ctx, []float32{1, 0}, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"embedded"}, ids)
	})

	t.Run("zero embedded candidates returns empty, not error", func(t *testing.T) {
		bare, err := NewMemoryStore([]models.Product{{ID: "bare", Category: "X"}}, 2)
		require.NoError(t, err)

		ids, err := bare.SearchNearest(ctx, []float32{1, 0}, 10)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("distance ties break by ascending id", func(t *testing.T) {
		tied, err := NewMemoryStore([]models.Product{
			{ID: "y", Embedding: []float32{2, 0}},
			{ID: "x", Embedding: []float32{1, 0}},
		}, 2)
		require.NoError(t, err)

		// Cosine distance is scale-invariant, so both are exact ties.
		ids, err := tied.SearchNearest(ctx, []float32{1, 0}, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "y"}, ids)
	})

	t.Run("query dimension mismatch is an error", func(t *testing.T) {
		_, err := store.SearchNearest(ctx, []float32{1, 0, 0}, 2)
		assert.Error(t, err)
	})
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, CosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2, CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.InDelta(t, 1, CosineDistance([]float32{0, 0}, []float32{1, 0}), 1e-9)
}

func TestMemoryStore_InsertWithEmbeddings(t *testing.T) {
	ctx := context.Background()
	store := groceryFixture(t)

	err := store.InsertWithEmbeddings(ctx, []models.Product{
		{ID: "d", Category: "Bakery", Price: 4, Embedding: []float32{0.5, 0.5}},
	})
	require.NoError(t, err)

	page, err := store.List(ctx, models.ListParams{Offset: 0, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, idsOf(page.Items))

	t.Run("rejects duplicate id", func(t *testing.T) {
		err := store.InsertWithEmbeddings(ctx, []models.Product{{ID: "a"}})
		assert.Error(t, err)
	})
}

func TestLoadFile(t *testing.T) {
	store, err := LoadFile("testdata/catalog.json", 2)
	require.NoError(t, err)

	assert.Equal(t, 3, store.Len())

	// Records without an embedding load fine but are invisible to search.
	ids, err := store.SearchNearest(context.Background(), []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"gro-001", "gro-002"}, ids)

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile("testdata/absent.json", 2)
		assert.Error(t, err)
	})
}

func idsOf(products []models.Product) []string {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}

	return ids
}
