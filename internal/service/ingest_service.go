package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/AndreiKevin/omniquest-api/internal/catalog"
	"github.com/AndreiKevin/omniquest-api/internal/embeddings"
	"github.com/AndreiKevin/omniquest-api/internal/models"
)

// embeddingTextSeparator joins name, brand, and category into the embedding
// input text. Changing it invalidates stored embeddings.
const embeddingTextSeparator = " | "

// maxEmbedBatch caps how many texts go into one provider call. One ingestion
// run issues ceil(new/maxEmbedBatch) calls; providers reject larger batches.
const maxEmbedBatch = 256

// IngestService reads raw product records, skips ids already present in the
// store, batch-embeds the remaining texts, and inserts records with their
// embeddings. Re-running on the same input is idempotent: the pre-check
// against existing ids guarantees a second run inserts nothing.
type IngestService struct {
	store    catalog.Writer
	embedder embeddings.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewIngestService creates an ingestion service. limiter bounds embedding
// provider calls and may be nil (no limiting); logger may be nil.
func NewIngestService(store catalog.Writer, embedder embeddings.Client, limiter *rate.Limiter, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}

	return &IngestService{store: store, embedder: embedder, limiter: limiter, logger: logger}
}

// EmbeddingText builds the provider input for one product: name, brand, and
// category joined by a fixed separator.
func EmbeddingText(p models.Product) string {
	return strings.Join([]string{p.Name, p.Brand, p.Category}, embeddingTextSeparator)
}

// Ingest inserts all raw records whose id is non-empty and not yet stored,
// paired with freshly computed embeddings, and returns the inserted count.
// Records without a usable id are skipped, never an error. The insert is
// all-or-nothing per run.
func (s *IngestService) Ingest(ctx context.Context, raw []models.RawProduct) (int, error) {
	existing, err := s.store.ExistingIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("ingest: existing ids: %w", err)
	}

	var (
		fresh   []models.Product
		skipped int
	)

	seen := make(map[string]struct{}, len(raw))

	for _, r := range raw {
		if r.ID == "" {
			skipped++

			continue
		}

		if _, ok := existing[r.ID]; ok {
			skipped++

			continue
		}

		if _, ok := seen[r.ID]; ok {
			skipped++

			continue
		}

		seen[r.ID] = struct{}{}
		fresh = append(fresh, r.Product())
	}

	if len(fresh) == 0 {
		s.logger.Info("ingest: nothing to insert", "raw", len(raw), "skipped", skipped)

		return 0, nil
	}

	texts := make([]string, len(fresh))
	for i, p := range fresh {
		texts[i] = EmbeddingText(p)
	}

	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("ingest: embed products: %w", err)
	}

	for i := range fresh {
		fresh[i].Embedding = vectors[i]
	}

	if err := s.store.InsertWithEmbeddings(ctx, fresh); err != nil {
		return 0, fmt.Errorf("ingest: insert products: %w", err)
	}

	s.logger.Info("ingest: inserted products", "inserted", len(fresh), "skipped", skipped)

	return len(fresh), nil
}

// embedAll batch-embeds all texts, chunked at the provider batch limit.
func (s *IngestService) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := start + maxEmbedBatch
		if end > len(texts) {
			end = len(texts)
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		vectors, err := s.embedder.GetEmbeddings(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}

		out = append(out, vectors...)
	}

	return out, nil
}
