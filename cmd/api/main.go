package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/AndreiKevin/omniquest-api/internal/api/handlers"
	"github.com/AndreiKevin/omniquest-api/internal/api/middleware"
	"github.com/AndreiKevin/omniquest-api/internal/catalog"
	"github.com/AndreiKevin/omniquest-api/internal/config"
	"github.com/AndreiKevin/omniquest-api/internal/embeddings"
	"github.com/AndreiKevin/omniquest-api/internal/googleai"
	"github.com/AndreiKevin/omniquest-api/internal/openai"
	"github.com/AndreiKevin/omniquest-api/internal/repository"
	"github.com/AndreiKevin/omniquest-api/internal/service"
	"github.com/AndreiKevin/omniquest-api/pkg/database"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Configure slog with the log level from config
	setupLogging(cfg.LogLevel)

	// Select the catalog backend. The mode is fixed for the lifetime of the
	// process: DATABASE_URL set means Postgres + pgvector, unset means the
	// flat JSON catalog loaded into memory.
	var store catalog.Store
	if cfg.PersistentMode() {
		db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL,
			database.WithAfterConnect(pgxvec.RegisterTypes),
			database.WithMaxConns(int32(cfg.DBMaxConns)),
			database.WithConnectTimeout(cfg.DBAcquireTimeout),
		)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		repo := repository.NewProductsRepository(db, cfg.EmbeddingDimensions, cfg.DBAcquireTimeout)
		if err := repo.EnsureSchema(ctx); err != nil {
			slog.Error("Failed to ensure database schema", "error", err)
			os.Exit(1)
		}

		store = repo
		slog.Info("Catalog backend: postgres", "max_conns", cfg.DBMaxConns)
	} else {
		memStore, err := catalog.LoadFile(cfg.DataPath, cfg.EmbeddingDimensions)
		if err != nil {
			slog.Error("Failed to load catalog data", "path", cfg.DataPath, "error", err)
			os.Exit(1)
		}

		store = memStore
		slog.Info("Catalog backend: in-memory", "path", cfg.DataPath, "products", memStore.Len())
	}

	// Initialize the embedding client if the selected provider has a key.
	// Without one the listing endpoints still work; /chat reports unavailable.
	embeddingClient, err := newEmbeddingClient(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize embedding client", "error", err)
		os.Exit(1)
	}
	if embeddingClient == nil {
		slog.Info("Recommendations disabled (no embedding provider key set)", "provider", cfg.EmbeddingProvider)
	} else {
		slog.Info("Recommendations enabled",
			"provider", cfg.EmbeddingProvider,
			"dimensions", cfg.EmbeddingDimensions,
		)
	}

	// Text generation runs on OpenAI only; without a key the recommendation
	// service degrades to its fixed fallback message.
	var chatClient service.ChatClient
	if cfg.OpenAIAPIKey != "" {
		chatClient = openai.NewClient(cfg.OpenAIAPIKey,
			openai.WithDimensions(cfg.EmbeddingDimensions),
			openai.WithChatModel(cfg.ChatModel),
		)
		slog.Info("Chat generation enabled", "model", cfg.ChatModel)
	} else {
		slog.Info("Chat generation disabled (OPENAI_API_KEY not set), using fallback messages")
	}

	var queryCache *lru.Cache[string, []float32]
	if cfg.QueryCacheSize > 0 {
		queryCache, err = lru.New[string, []float32](cfg.QueryCacheSize)
		if err != nil {
			slog.Error("Failed to create query embedding cache", "error", err)
			os.Exit(1)
		}
	}

	// Initialize services and handlers
	productsService := service.NewProductsService(store)
	productsHandler := handlers.NewProductsHandler(productsService)

	recommendationService := service.NewRecommendationService(service.RecommendationServiceParams{
		Store:      store,
		Embedder:   embeddingClient,
		Chat:       chatClient,
		QueryCache: queryCache,
	})
	chatHandler := handlers.NewChatHandler(recommendationService)

	healthHandler := handlers.NewHealthHandler()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthHandler.Check)
	mux.HandleFunc("GET /categories", productsHandler.Categories)
	mux.HandleFunc("GET /products", productsHandler.List)
	mux.HandleFunc("GET /products/{id}", productsHandler.Get)
	mux.HandleFunc("POST /chat", chatHandler.Chat)

	// Apply middleware. Order matters: RequestID must run first so the
	// logging middleware can read the id from the request context.
	var handler http.Handler = mux
	handler = middleware.Logging(handler)
	handler = middleware.CORS(cfg.CORSOrigins)(handler)
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

// newEmbeddingClient builds the embedding client for the configured provider,
// or nil when the provider's API key is not set.
func newEmbeddingClient(ctx context.Context, cfg *config.Config) (embeddings.Client, error) {
	if cfg.EmbeddingAPIKey() == "" {
		return nil, nil
	}

	if cfg.EmbeddingProvider == config.ProviderGoogle {
		return googleai.NewClient(ctx, cfg.GeminiAPIKey, googleai.WithDimensions(cfg.EmbeddingDimensions))
	}

	return openai.NewClient(cfg.OpenAIAPIKey, openai.WithDimensions(cfg.EmbeddingDimensions)), nil
}

// setupLogging configures slog with the specified log level
func setupLogging(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	slog.SetDefault(slog.New(handler))
}
