package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// MockClient implements the Client interface for testing purposes.
// It generates deterministic unit-length embeddings from the input text hash,
// so identical texts always embed to identical vectors.
type MockClient struct {
	dimensions int
}

// NewMockClient creates a mock embedding client with the given dimensions.
func NewMockClient(dimensions int) *MockClient {
	return &MockClient{dimensions: dimensions}
}

// GetEmbedding generates a deterministic embedding based on the text hash.
func (c *MockClient) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	return c.deterministicEmbedding(text), nil
}

// GetEmbeddings generates embeddings for multiple texts.
// Returns an error if any text is empty.
func (c *MockClient) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty")
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("text at index %d cannot be empty", i)
		}

		out[i] = c.deterministicEmbedding(text)
	}

	return out, nil
}

// deterministicEmbedding expands the sha256 of the text into a normalized vector.
func (c *MockClient) deterministicEmbedding(text string) []float32 {
	seed := sha256.Sum256([]byte(text))
	vec := make([]float32, c.dimensions)

	for i := range vec {
		// Four hash bytes per component, re-hashing the seed per 8-component block.
		block := i / 8
		if block > 0 && i%8 == 0 {
			seed = sha256.Sum256(seed[:])
		}

		off := (i % 8) * 4
		u := binary.BigEndian.Uint32(seed[off : off+4])
		vec[i] = float32(u)/float32(math.MaxUint32)*2 - 1
	}

	return normalize(vec)
}

// normalize scales a vector to unit length.
func normalize(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	magnitude := float32(math.Sqrt(sum))
	if magnitude == 0 {
		return v
	}

	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = val / magnitude
	}

	return out
}

// Ensure MockClient implements Client interface
var _ Client = (*MockClient)(nil)
