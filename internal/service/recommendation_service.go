package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/AndreiKevin/omniquest-api/internal/catalog"
	"github.com/AndreiKevin/omniquest-api/internal/embeddings"
	"github.com/AndreiKevin/omniquest-api/internal/models"
	"github.com/AndreiKevin/omniquest-api/internal/oqerrors"
)

// Sentinel errors for recommendation (used by handlers for status mapping).
var (
	ErrEmptyQuery = errors.New("query is required and must be non-empty")

	// ErrRecommendationUnavailable is returned when no embedding provider is
	// configured; decided once at startup, not re-detected per call.
	ErrRecommendationUnavailable = oqerrors.NewUnavailableError(
		"recommendation", "recommendation requires a configured embedding provider")
)

// Recommendation top-K bounds.
const (
	DefaultTopK = 8
	MaxTopK     = 50
)

// FallbackMessage is returned whenever text generation is unavailable or
// fails; the ranked products are returned regardless.
const FallbackMessage = "Based on your query and the retrieved products, these seem like strong matches."

const recommendSystemMessage = "You are a helpful grocery shopping assistant. " +
	"Given a customer query and a ranked list of matching products, explain briefly why they fit."

// ChatClient generates a short natural-language message. Implemented by the
// OpenAI wrapper; nil when text generation is not configured.
type ChatClient interface {
	Complete(ctx context.Context, systemMessage, userMessage string) (string, error)
}

// RecommendationService composes query embedding, similarity search, and an
// external text-generation call into a chat-style response.
type RecommendationService struct {
	store      catalog.Store
	embedder   embeddings.Client // nil when no provider is configured
	chat       ChatClient        // nil when text generation is unavailable
	queryCache *lru.Cache[string, []float32]
	queryGroup singleflight.Group
	logger     *slog.Logger
}

// RecommendationServiceParams configures RecommendationService. Embedder may
// be nil (recommendation unavailable), Chat may be nil (fallback message),
// QueryCache may be nil (no caching), Logger may be nil.
type RecommendationServiceParams struct {
	Store      catalog.Store
	Embedder   embeddings.Client
	Chat       ChatClient
	QueryCache *lru.Cache[string, []float32]
	Logger     *slog.Logger
}

// NewRecommendationService creates a RecommendationService.
func NewRecommendationService(p RecommendationServiceParams) *RecommendationService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RecommendationService{
		store:      p.Store,
		embedder:   p.Embedder,
		chat:       p.Chat,
		queryCache: p.QueryCache,
		logger:     logger,
	}
}

// Recommendation is a chat-style response: a message plus ranked products.
type Recommendation struct {
	Message  string
	Products []models.Product
}

// Recommend embeds the query, runs top-K similarity search, fetches the
// matched records in rank order, and asks the chat model for a short
// explanation. An embedding failure aborts the request; a chat failure (or
// absence of a chat client) degrades to FallbackMessage with the products
// intact — the product list is never lost to a text-generation failure.
func (s *RecommendationService) Recommend(ctx context.Context, query string, topK int) (Recommendation, error) {
	if s.embedder == nil {
		return Recommendation{}, ErrRecommendationUnavailable
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return Recommendation{}, ErrEmptyQuery
	}

	if topK <= 0 {
		topK = DefaultTopK
	}

	if topK > MaxTopK {
		topK = MaxTopK
	}

	embedding, err := s.queryEmbedding(ctx, query)
	if err != nil {
		s.logger.Error("recommend: create embedding failed", "error", err)

		return Recommendation{}, fmt.Errorf("create embedding: %w", err)
	}

	ids, err := s.store.SearchNearest(ctx, embedding, topK)
	if err != nil {
		s.logger.Error("recommend: similarity search failed", "error", err)

		return Recommendation{}, fmt.Errorf("similarity search: %w", err)
	}

	products, err := s.store.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("recommend: fetch products failed", "error", err)

		return Recommendation{}, fmt.Errorf("fetch products: %w", err)
	}

	return Recommendation{
		Message:  s.generateMessage(ctx, query, products),
		Products: products,
	}, nil
}

// queryEmbedding returns the embedding for a query, via the LRU cache when
// configured. singleflight collapses concurrent identical queries into one
// provider call.
func (s *RecommendationService) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if s.queryCache == nil {
		return s.embedder.GetEmbedding(ctx, query)
	}

	if cached, ok := s.queryCache.Get(query); ok {
		return cached, nil
	}

	result, err, _ := s.queryGroup.Do(query, func() (any, error) {
		if cached, ok := s.queryCache.Get(query); ok {
			return cached, nil
		}

		// The flight is shared: cancelling the first caller must not fail
		// the collapsed callers, and the result is cached either way.
		embedding, err := s.embedder.GetEmbedding(context.WithoutCancel(ctx), query)
		if err != nil {
			return nil, err
		}

		s.queryCache.Add(query, embedding)

		return embedding, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]float32), nil
}

// generateMessage calls the chat model; any failure is soft.
func (s *RecommendationService) generateMessage(ctx context.Context, query string, products []models.Product) string {
	if s.chat == nil || len(products) == 0 {
		return FallbackMessage
	}

	message, err := s.chat.Complete(ctx, recommendSystemMessage, buildPrompt(query, products))
	if err != nil || message == "" {
		s.logger.Warn("recommend: text generation failed, using fallback", "error", err)

		return FallbackMessage
	}

	return message
}

// buildPrompt serializes the ranked products and the query into a bounded
// prompt with an explicit length cap on the expected explanation.
func buildPrompt(query string, products []models.Product) string {
	var sb strings.Builder

	sb.WriteString("Customer query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nMatching products, nearest first:\n")

	for i, p := range products {
		fmt.Fprintf(&sb, "%d. %s (%s, %s) - $%.2f\n", i+1, p.Name, p.Brand, p.Category, p.Price)
	}

	sb.WriteString("\nIn at most three sentences, explain why these products match the query.")

	return sb.String()
}
