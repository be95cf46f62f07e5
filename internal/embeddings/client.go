// Package embeddings defines the embedding-provider contract shared by the
// query path and the ingestion pipeline.
package embeddings

import "context"

// Client defines the interface for generating text embeddings.
type Client interface {
	// GetEmbedding generates an embedding vector for the given text.
	GetEmbedding(ctx context.Context, text string) ([]float32, error)

	// GetEmbeddings generates embedding vectors for multiple texts in a batch.
	// More efficient than calling GetEmbedding per text; ingestion relies on it.
	GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}
