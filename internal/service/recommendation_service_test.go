package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreiKevin/omniquest-api/internal/catalog"
	"github.com/AndreiKevin/omniquest-api/internal/models"
	"github.com/AndreiKevin/omniquest-api/internal/oqerrors"
)

type mockEmbedder struct {
	calls     int
	embedding []float32
	err       error
}

func (m *mockEmbedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	m.calls++

	if m.err != nil {
		return nil, m.err
	}

	return m.embedding, nil
}

func (m *mockEmbedder) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		vec, err := m.GetEmbedding(ctx, texts[i])
		if err != nil {
			return nil, err
		}

		out[i] = vec
	}

	return out, nil
}

// ctxSensitiveEmbedder fails like a real provider client when its context is
// already cancelled.
type ctxSensitiveEmbedder struct {
	mockEmbedder
}

func (m *ctxSensitiveEmbedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return m.mockEmbedder.GetEmbedding(ctx, text)
}

type mockChat struct {
	message string
	err     error
	prompts []string
}

func (m *mockChat) Complete(ctx context.Context, systemMessage, userMessage string) (string, error) {
	m.prompts = append(m.prompts, userMessage)

	if m.err != nil {
		return "", m.err
	}

	return m.message, nil
}

func embeddedStore(t *testing.T) *catalog.MemoryStore {
	t.Helper()

	store, err := catalog.NewMemoryStore([]models.Product{
		{ID: "a", Name: "Whole Milk", Brand: "Dale", Category: "Dairy", Price: 3, Embedding: []float32{1, 0}},
		{ID: "b", Name: "Dark Chocolate", Brand: "Coco", Category: "Snacks", Price: 4, Embedding: []float32{0, 1}},
		{ID: "c", Name: "Oat Milk", Brand: "Grove", Category: "Dairy", Price: 2, Embedding: []float32{0.9, 0.1}},
	}, 2)
	require.NoError(t, err)

	return store
}

func TestRecommendationService_Recommend(t *testing.T) {
	ctx := context.Background()

	t.Run("returns chat message and products in rank order", func(t *testing.T) {
		chat := &mockChat{message: "Milk products match your dairy query."}
		svc := NewRecommendationService(RecommendationServiceParams{
			Store:    embeddedStore(t),
			Embedder: &mockEmbedder{embedding: []float32{1, 0}},
			Chat:     chat,
		})

		rec, err := svc.Recommend(ctx, "milk for breakfast", 2)
		require.NoError(t, err)

		assert.Equal(t, "Milk products match your dairy query.", rec.Message)
		require.Len(t, rec.Products, 2)
		assert.Equal(t, "a", rec.Products[0].ID)
		assert.Equal(t, "c", rec.Products[1].ID)

		require.Len(t, chat.prompts, 1)
		assert.Contains(t, chat.prompts[0], "milk for breakfast")
		assert.Contains(t, chat.prompts[0], "Whole Milk")
	})

	t.Run("chat failure falls back but keeps the products", func(t *testing.T) {
		svc := NewRecommendationService(RecommendationServiceParams{
			Store:    embeddedStore(t),
			Embedder: &mockEmbedder{embedding: []float32{1, 0}},
			Chat:     &mockChat{err: errors.New("model overloaded")},
		})

		rec, err := svc.Recommend(ctx, "milk", 2)
		require.NoError(t, err)

		assert.Equal(t, FallbackMessage, rec.Message)
		assert.Equal(t, []string{"a", "c"}, productIDs(rec.Products))
	})

	t.Run("nil chat client falls back deterministically", func(t *testing.T) {
		svc := NewRecommendationService(RecommendationServiceParams{
			Store:    embeddedStore(t),
			Embedder: &mockEmbedder{embedding: []float32{1, 0}},
		})

		rec, err := svc.Recommend(ctx, "milk", 2)
		require.NoError(t, err)

		assert.Equal(t, FallbackMessage, rec.Message)
		assert.Len(t, rec.Products, 2)
	})

	t.Run("embedding failure is a hard error", func(t *testing.T) {
		svc := NewRecommendationService(RecommendationServiceParams{
			Store:    embeddedStore(t),
			Embedder: &mockEmbedder{err: errors.New("provider down")},
			Chat:     &mockChat{message: "never used"},
		})

		_, err := svc.Recommend(ctx, "milk", 2)
		assert.Error(t, err)
	})

	t.Run("no embedder means unavailable", func(t *testing.T) {
		svc := NewRecommendationService(RecommendationServiceParams{Store: embeddedStore(t)})

		_, err := svc.Recommend(ctx, "milk", 2)
		assert.ErrorIs(t, err, oqerrors.ErrUnavailable)
	})

	t.Run("empty query is rejected", func(t *testing.T) {
		svc := NewRecommendationService(RecommendationServiceParams{
			Store:    embeddedStore(t),
			Embedder: &mockEmbedder{embedding: []float32{1, 0}},
		})

		_, err := svc.Recommend(ctx, "   ", 2)
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})

	t.Run("non-positive topK uses the default", func(t *testing.T) {
		svc := NewRecommendationService(RecommendationServiceParams{
			Store:    embeddedStore(t),
			Embedder: &mockEmbedder{embedding: []float32{1, 0}},
		})

		rec, err := svc.Recommend(ctx, "milk", 0)
		require.NoError(t, err)
		assert.Len(t, rec.Products, 3, "default topK exceeds catalog size, all candidates ranked")
	})

	t.Run("cancelled caller does not poison the shared embedding flight", func(t *testing.T) {
		cache, err := lru.New[string, []float32](8)
		require.NoError(t, err)

		embedder := &ctxSensitiveEmbedder{mockEmbedder{embedding: []float32{1, 0}}}
		svc := NewRecommendationService(RecommendationServiceParams{
			Store:      embeddedStore(t),
			Embedder:   embedder,
			QueryCache: cache,
		})

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		// The flight result is shared with collapsed callers and cached, so
		// the provider call must outlive the initiating request's context.
		rec, err := svc.Recommend(cancelled, "milk", 2)
		require.NoError(t, err)
		assert.Len(t, rec.Products, 2)

		_, ok := cache.Get("milk")
		assert.True(t, ok)
	})

	t.Run("query cache avoids repeat embedding calls", func(t *testing.T) {
		cache, err := lru.New[string, []float32](8)
		require.NoError(t, err)

		embedder := &mockEmbedder{embedding: []float32{1, 0}}
		svc := NewRecommendationService(RecommendationServiceParams{
			Store:      embeddedStore(t),
			Embedder:   embedder,
			QueryCache: cache,
		})

		_, err = svc.Recommend(ctx, "milk", 2)
		require.NoError(t, err)
		_, err = svc.Recommend(ctx, "milk", 2)
		require.NoError(t, err)

		assert.Equal(t, 1, embedder.calls)
	})
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt("cheap snacks", []models.Product{
		{Name: "Dark Chocolate", Brand: "Coco", Category: "Snacks", Price: 4},
	})

	assert.Contains(t, prompt, "Customer query: cheap snacks")
	assert.Contains(t, prompt, "1. Dark Chocolate (Coco, Snacks) - $4.00")
	assert.True(t, strings.Contains(prompt, "at most three sentences"))
}

func productIDs(products []models.Product) []string {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}

	return ids
}
