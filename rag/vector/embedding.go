package vector

import (
	"context"
	"fmt"
	"sync"

	"lodestone/rag"

	"github.com/cloudwego/eino/components/embedding"
)

// EmbeddingService wraps an embedding model for vector generation. A single
// instance must be shared between the build path and the query path:
// embedding a query with a different model than the corpus is a correctness
// bug, not a quality issue, and sharing the instance prevents it
// structurally.
type EmbeddingService struct {
	embedder embedding.Embedder
	mu       sync.Mutex
	dim      int
}

// NewEmbeddingService creates a new embedding service. dim may be zero, in
// which case the dimensionality is established by the first embedding the
// model returns.
func NewEmbeddingService(embedder embedding.Embedder, dim int) *EmbeddingService {
	if dim < 0 {
		dim = 0
	}
	return &EmbeddingService{
		embedder: embedder,
		dim:      dim,
	}
}

// EmbedText generates an embedding vector for a single text.
func (s *EmbeddingService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts generates one embedding vector per input text, order-preserving.
// Transport or quota failures surface as *rag.EmbeddingServiceError; a model
// returning vectors of inconsistent length is a *rag.DimensionMismatchError.
func (s *EmbeddingService) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty")
	}
	for _, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("text cannot be empty")
		}
	}

	vectors, err := s.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, &rag.EmbeddingServiceError{Err: err}
	}
	if len(vectors) != len(texts) {
		return nil, &rag.EmbeddingServiceError{
			Err: fmt.Errorf("got %d embeddings for %d texts", len(vectors), len(texts)),
		}
	}

	result := make([][]float32, len(vectors))
	for i, vec := range vectors {
		if err := s.checkDim(len(vec)); err != nil {
			return nil, err
		}
		result[i] = make([]float32, len(vec))
		for j, v := range vec {
			result[i][j] = float32(v)
		}
	}

	return result, nil
}

// checkDim establishes the dimensionality on first use and rejects any
// deviation afterwards.
func (s *EmbeddingService) checkDim(got int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if got == 0 {
		return &rag.EmbeddingServiceError{Err: fmt.Errorf("empty embedding returned")}
	}
	if s.dim == 0 {
		s.dim = got
		return nil
	}
	if got != s.dim {
		return &rag.DimensionMismatchError{Want: s.dim, Got: got}
	}
	return nil
}

// Dimension returns the embedding dimension, or zero if no embedding has
// been generated yet and none was configured.
func (s *EmbeddingService) Dimension() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dim
}

// GetEmbeddingDimFromEnv reads embedding dimension from environment variable
func GetEmbeddingDimFromEnv() int {
	if n := getEnvInt("VECTOR_DIM", 0); n > 0 {
		return n
	}
	return 1024 // Default dimension for many models
}
