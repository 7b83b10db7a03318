package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"lodestone/rag"
	"lodestone/rag/pipeline"
	"lodestone/rag/providers"
	"lodestone/rag/vector"

	"github.com/joho/godotenv"
)

func init() {
	// Load .env file if exists
	_ = godotenv.Load()
}

// petCareCorpus is a tiny demonstration knowledge base: five facts about two
// pets. Small enough to read, large enough to show grounding and the
// out-of-domain refusal.
var petCareCorpus = []rag.Document{
	{ID: "pets/estrella", RawText: "Estrella is a dog.", Metadata: map[string]string{"source": "pet-care-notes"}},
	{ID: "pets/finnegan", RawText: "Finnegan is a cat.", Metadata: map[string]string{"source": "pet-care-notes"}},
	{ID: "pets/feeding", RawText: "Feed both pets twice daily, once in the morning and once in the evening.", Metadata: map[string]string{"source": "pet-care-notes"}},
	{ID: "pets/walks", RawText: "Walk Estrella every morning for thirty minutes before breakfast.", Metadata: map[string]string{"source": "pet-care-notes"}},
	{ID: "pets/play", RawText: "Finnegan needs fifteen minutes of play with the feather wand after dinner.", Metadata: map[string]string{"source": "pet-care-notes"}},
}

func main() {
	ctx := context.Background()

	cleanup, err := providers.InitTracing(ctx)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer cleanup()

	embeddingModel, err := providers.CreateEmbeddingModel(ctx)
	if err != nil {
		log.Fatalf("failed to create embedding model: %v", err)
	}
	embedder := vector.NewEmbeddingService(embeddingModel, 0)

	chatModel, err := providers.CreateChatModel(ctx)
	if err != nil {
		log.Fatalf("failed to create chat model: %v", err)
	}
	generator, err := providers.NewGenerator(chatModel, providers.GeneratorConfig{
		MaxOutputTokens: 512,
	})
	if err != nil {
		log.Fatalf("failed to create generator: %v", err)
	}

	// The facts are short, so chunking is effectively one chunk per
	// document here; the same wiring handles book-length documents.
	index := vector.NewMemoryIndex()
	indexer, err := pipeline.NewIndexer(embedder, index, pipeline.IndexerConfig{
		Chunking: vector.ChunkConfig{ChunkSize: 400, Overlap: 50},
	})
	if err != nil {
		log.Fatalf("failed to create indexer: %v", err)
	}

	n, err := indexer.IndexDocuments(ctx, petCareCorpus)
	if err != nil {
		log.Fatalf("failed to index corpus: %v", err)
	}
	fmt.Printf("indexed %d chunks from %d documents\n\n", n, len(petCareCorpus))

	retriever, err := pipeline.NewRetriever(embedder, index)
	if err != nil {
		log.Fatalf("failed to create retriever: %v", err)
	}

	answerer, err := pipeline.New(retriever, generator, pipeline.Config{
		TopK:    3,
		Timeout: 60 * time.Second,
	})
	if err != nil {
		log.Fatalf("failed to create pipeline: %v", err)
	}

	queries := []string{
		"What type of animal is Estrella?",
		"What stock should I invest in this month?",
	}

	for _, query := range queries {
		answer, err := answerer.Answer(ctx, query)
		if err != nil {
			log.Fatalf("failed to answer %q: %v", query, err)
		}

		fmt.Printf("Q: %s\n", query)
		fmt.Printf("A: %s\n", answer.Text)
		fmt.Printf("Sources: %s\n\n", strings.Join(answer.Citations, ", "))
	}
}
