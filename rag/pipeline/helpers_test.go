package pipeline

import (
	"context"
	"strings"
	"unicode"

	"lodestone/rag"

	"github.com/cloudwego/eino/components/embedding"
)

// bagVocab is the fixed vocabulary of the test embedder. One dimension per
// word keeps retrieval behavior fully predictable: similarity is exactly
// word overlap.
var bagVocab = []string{
	"estrella", "finnegan", "dog", "cat", "is", "a",
	"feed", "both", "pets", "twice", "daily", "once", "in", "the",
	"morning", "and", "evening",
	"walk", "every", "for", "thirty", "minutes", "before", "breakfast",
	"needs", "fifteen", "of", "play", "with", "feather", "wand", "after", "dinner",
	"what", "type", "animal",
}

var bagVocabIndex = func() map[string]int {
	m := make(map[string]int, len(bagVocab))
	for i, w := range bagVocab {
		m[w] = i
	}
	return m
}()

// bagEmbedder embeds texts as bag-of-words counts over bagVocab. Texts with
// no vocabulary words embed to the zero vector, which the indexes treat as
// maximally distant.
type bagEmbedder struct{}

func (bagEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, len(bagVocab))
		tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r)
		})
		for _, tok := range tokens {
			if j, ok := bagVocabIndex[tok]; ok {
				vec[j]++
			}
		}
		out[i] = vec
	}
	return out, nil
}

// failingEmbedder fails every call with the given error.
type failingEmbedder struct {
	err error
}

func (f failingEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	return nil, f.err
}

// scriptedGenerator returns a fixed reply (or error) and records the last
// prompt it saw.
type scriptedGenerator struct {
	reply      string
	err        error
	lastPrompt string
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.lastPrompt = prompt
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

// petCorpus is the reference corpus used across the pipeline tests: five
// short facts about two pets.
func petCorpus() []rag.Document {
	return []rag.Document{
		{ID: "pets/estrella", RawText: "Estrella is a dog.", Metadata: map[string]string{rag.MetadataSourceKey: "notes/animals"}},
		{ID: "pets/finnegan", RawText: "Finnegan is a cat.", Metadata: map[string]string{rag.MetadataSourceKey: "notes/animals"}},
		{ID: "pets/feeding", RawText: "Feed both pets twice daily, once in the morning and once in the evening.", Metadata: map[string]string{rag.MetadataSourceKey: "notes/schedule"}},
		{ID: "pets/walks", RawText: "Walk Estrella every morning for thirty minutes before breakfast.", Metadata: map[string]string{rag.MetadataSourceKey: "notes/schedule"}},
		{ID: "pets/play", RawText: "Finnegan needs fifteen minutes of play with the feather wand after dinner.", Metadata: map[string]string{rag.MetadataSourceKey: "notes/schedule"}},
	}
}
