package pipeline

import (
	"context"
	"errors"
	"testing"

	"lodestone/rag"
	"lodestone/rag/vector"
)

// Every fact retrieved by its own text must come back as the top match at
// distance zero.
func TestRetrieverSelfRetrieval(t *testing.T) {
	embedder, index := buildPetIndex(t)
	retriever, err := NewRetriever(embedder, index)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for _, doc := range petCorpus() {
		matches, err := retriever.Retrieve(ctx, doc.RawText, 1)
		if err != nil {
			t.Fatalf("retrieve failed for %s: %v", doc.ID, err)
		}
		if len(matches) != 1 {
			t.Fatalf("got %d matches for %s", len(matches), doc.ID)
		}
		if got := matches[0].Entry.ChunkID; got != doc.ID+"#0" {
			t.Errorf("top match for %s = %s", doc.ID, got)
		}
		if matches[0].Distance > 1e-6 {
			t.Errorf("self-retrieval distance for %s = %v, want ~0", doc.ID, matches[0].Distance)
		}
	}
}

func TestRetrieverRanksByWordOverlap(t *testing.T) {
	embedder, index := buildPetIndex(t)
	retriever, err := NewRetriever(embedder, index)
	if err != nil {
		t.Fatal(err)
	}

	matches, err := retriever.Retrieve(context.Background(), "What type of animal is Estrella?", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	if matches[0].Entry.ChunkID != "pets/estrella#0" {
		t.Errorf("top match = %s, want pets/estrella#0", matches[0].Entry.ChunkID)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Distance < matches[i-1].Distance {
			t.Errorf("distances not ascending: %v then %v", matches[i-1].Distance, matches[i].Distance)
		}
	}
}

func TestRetrieverKValidation(t *testing.T) {
	embedder, index := buildPetIndex(t)
	retriever, err := NewRetriever(embedder, index)
	if err != nil {
		t.Fatal(err)
	}

	var cfgErr *rag.ConfigurationError
	if _, err := retriever.Retrieve(context.Background(), "query", 0); !errors.As(err, &cfgErr) {
		t.Errorf("k=0 error = %v, want *rag.ConfigurationError", err)
	}
}

func TestRetrieverPropagatesEmbeddingErrors(t *testing.T) {
	cause := errors.New("timeout")
	embedder := vector.NewEmbeddingService(failingEmbedder{err: cause}, 0)
	retriever, err := NewRetriever(embedder, vector.NewMemoryIndex())
	if err != nil {
		t.Fatal(err)
	}

	_, err = retriever.Retrieve(context.Background(), "query", 3)
	var svcErr *rag.EmbeddingServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("error = %v, want *rag.EmbeddingServiceError", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("cause lost in propagation: %v", err)
	}
}

func TestRetrieverEmptyIndex(t *testing.T) {
	embedder := vector.NewEmbeddingService(bagEmbedder{}, 0)
	retriever, err := NewRetriever(embedder, vector.NewMemoryIndex())
	if err != nil {
		t.Fatal(err)
	}

	matches, err := retriever.Retrieve(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("empty index retrieve failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("empty index returned %d matches", len(matches))
	}
}

func TestNewRetrieverValidation(t *testing.T) {
	embedder := vector.NewEmbeddingService(bagEmbedder{}, 0)
	if _, err := NewRetriever(nil, vector.NewMemoryIndex()); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewRetriever(embedder, nil); err == nil {
		t.Error("expected error for nil index")
	}
}
