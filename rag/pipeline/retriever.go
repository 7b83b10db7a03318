package pipeline

import (
	"context"
	"fmt"

	"lodestone/rag"
	"lodestone/rag/vector"
)

// Retriever turns a query into its top-k most relevant chunks: one embedding
// call through the shared embedding service, one index search, results
// returned unchanged. Re-ranking is a deliberate non-feature of the base
// design; wrap the Retriever to add it.
type Retriever struct {
	embedder *vector.EmbeddingService
	index    vector.Index
}

// NewRetriever creates a retriever over the given embedding service and
// index. The embedding service must be the same instance the index was built
// with, otherwise query vectors live in a different space than the corpus.
func NewRetriever(embedder *vector.EmbeddingService, index vector.Index) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedding service is required")
	}
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	return &Retriever{embedder: embedder, index: index}, nil
}

// Retrieve embeds the query text and returns the k nearest chunks, ascending
// by distance. Embedding and index errors propagate unchanged: an empty
// result always means "the index had nothing", never a swallowed failure.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]vector.Match, error) {
	if k <= 0 {
		return nil, &rag.ConfigurationError{Reason: "k must be positive"}
	}

	queryVector, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}

	return r.index.Search(ctx, queryVector, k)
}
