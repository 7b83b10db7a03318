package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"lodestone/rag"
	"lodestone/rag/vector"
)

// Config holds the answer pipeline knobs.
type Config struct {
	// TopK is how many chunks ground each answer.
	TopK int
	// MaxPromptLen bounds the assembled prompt in runes; 0 uses the default.
	MaxPromptLen int
	// Timeout caps the whole retrieve+generate request; 0 disables it. The
	// caller's context still applies either way, so external cancellation
	// works with or without a configured timeout.
	Timeout time.Duration
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		TopK:         5,
		MaxPromptLen: DefaultMaxPromptLen,
	}
}

// Pipeline sequences retrieval, prompt assembly and generation into a
// grounded answer with citations. It is a thin, fail-fast composition: no
// retries, no backoff, and a mechanical failure is never converted into an
// "I don't know" answer — that phrasing is reserved for the generator judging
// the retrieved context insufficient.
type Pipeline struct {
	retriever *Retriever
	assembler *PromptAssembler
	generator rag.Generator
	config    Config
}

// New creates an answer pipeline.
func New(retriever *Retriever, generator rag.Generator, cfg Config) (*Pipeline, error) {
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.TopK <= 0 {
		return nil, &rag.ConfigurationError{Reason: "top-k must be positive"}
	}

	return &Pipeline{
		retriever: retriever,
		assembler: NewPromptAssembler(cfg.MaxPromptLen),
		generator: generator,
		config:    cfg,
	}, nil
}

// Answer retrieves the chunks most relevant to the query, assembles a
// bounded grounded prompt, invokes the generation service and returns the
// response with the deduplicated source identifiers of the retrieved chunks.
func (p *Pipeline) Answer(ctx context.Context, query string) (rag.Answer, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	matches, err := p.retriever.Retrieve(ctx, query, p.config.TopK)
	if err != nil {
		return rag.Answer{}, err
	}

	contexts := make([]string, len(matches))
	for i, m := range matches {
		contexts[i] = m.Entry.Text
	}

	prompt := p.assembler.Assemble(query, contexts)

	text, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return rag.Answer{}, err
	}

	return rag.Answer{
		Text:      text,
		Citations: collectCitations(matches),
	}, nil
}

// collectCitations gathers the distinct source identifiers across the
// retrieved chunks, preferring the source metadata key and falling back to
// the document ID. The set is sorted so answers compare deterministically.
func collectCitations(matches []vector.Match) []string {
	seen := make(map[string]struct{}, len(matches))
	citations := make([]string, 0, len(matches))
	for _, m := range matches {
		source := m.Entry.Metadata[rag.MetadataSourceKey]
		if source == "" {
			source = m.Entry.Metadata[metadataDocumentIDKey]
		}
		if source == "" {
			continue
		}
		if _, ok := seen[source]; ok {
			continue
		}
		seen[source] = struct{}{}
		citations = append(citations, source)
	}

	sort.Strings(citations)
	return citations
}
