// ingest loads a raw catalog JSON file, embeds every new product, and writes
// products plus embeddings to Postgres. Records already present are skipped,
// so re-running against the same file is a no-op.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"golang.org/x/time/rate"

	"github.com/AndreiKevin/omniquest-api/internal/config"
	"github.com/AndreiKevin/omniquest-api/internal/embeddings"
	"github.com/AndreiKevin/omniquest-api/internal/googleai"
	"github.com/AndreiKevin/omniquest-api/internal/models"
	"github.com/AndreiKevin/omniquest-api/internal/openai"
	"github.com/AndreiKevin/omniquest-api/internal/repository"
	"github.com/AndreiKevin/omniquest-api/internal/service"
	"github.com/AndreiKevin/omniquest-api/pkg/database"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	filePath := flag.String("file", "", "path to the raw catalog JSON file (defaults to PRODUCTS_DATA_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return exitFailure
	}

	if !cfg.PersistentMode() {
		slog.Error("DATABASE_URL is required: ingestion only applies to the Postgres backend")

		return exitFailure
	}

	path := *filePath
	if path == "" {
		path = cfg.DataPath
	}

	raw, err := readRawCatalog(path)
	if err != nil {
		slog.Error("Failed to read catalog file", "path", path, "error", err)

		return exitFailure
	}

	embeddingClient, err := newEmbeddingClient(context.Background(), cfg)
	if err != nil {
		slog.Error("Failed to initialize embedding client", "error", err)

		return exitFailure
	}
	if embeddingClient == nil {
		slog.Error("An embedding provider key is required for ingestion",
			"provider", cfg.EmbeddingProvider,
		)

		return exitFailure
	}

	ctx := context.Background()

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL,
		database.WithAfterConnect(pgxvec.RegisterTypes),
		database.WithMaxConns(int32(cfg.DBMaxConns)),
		database.WithConnectTimeout(cfg.DBAcquireTimeout),
	)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return exitFailure
	}
	defer db.Close()

	repo := repository.NewProductsRepository(db, cfg.EmbeddingDimensions, cfg.DBAcquireTimeout)
	if err := repo.EnsureSchema(ctx); err != nil {
		slog.Error("Failed to ensure database schema", "error", err)

		return exitFailure
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.EmbeddingRateLimit), 1)
	ingestService := service.NewIngestService(repo, embeddingClient, limiter, slog.Default())

	inserted, err := ingestService.Ingest(ctx, raw)
	if err != nil {
		slog.Error("Ingestion failed", "error", err)

		return exitFailure
	}

	slog.Info("Ingestion complete", "inserted", inserted, "records", len(raw))

	fmt.Printf("Inserted %d of %d product(s).\n", inserted, len(raw))

	return exitSuccess
}

func readRawCatalog(path string) ([]models.RawProduct, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw []models.RawProduct
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return raw, nil
}

func newEmbeddingClient(ctx context.Context, cfg *config.Config) (embeddings.Client, error) {
	if cfg.EmbeddingAPIKey() == "" {
		return nil, nil
	}

	if cfg.EmbeddingProvider == config.ProviderGoogle {
		return googleai.NewClient(ctx, cfg.GeminiAPIKey, googleai.WithDimensions(cfg.EmbeddingDimensions))
	}

	return openai.NewClient(cfg.OpenAIAPIKey, openai.WithDimensions(cfg.EmbeddingDimensions)), nil
}
