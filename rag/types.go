package rag

import "context"

// MetadataSourceKey is the metadata key carrying the identifier used for
// citations. Document sources must set it; additional keys are opaque
// pass-through.
const MetadataSourceKey = "source"

// Document is a unit of raw knowledge handed to the build path.
// Immutable once loaded.
type Document struct {
	ID       string            `json:"id"`
	RawText  string            `json:"raw_text"`
	Metadata map[string]string `json:"metadata"`
}

// Source returns the citation identifier for the document, falling back to
// the document ID when the source metadata key is missing.
func (d Document) Source() string {
	if s, ok := d.Metadata[MetadataSourceKey]; ok && s != "" {
		return s
	}
	return d.ID
}

// Chunk is a bounded-size segment of a document, the unit of retrieval.
// Offset is the rune offset of the chunk within the document text.
// Embedding is empty until the build path fills it in.
type Chunk struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	DocumentID string    `json:"document_id"`
	Offset     int       `json:"offset"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// Answer is the structured result of the answer pipeline: the generated text
// plus the deduplicated source identifiers of the chunks that grounded it.
type Answer struct {
	Text      string   `json:"text"`
	Citations []string `json:"citations"`
}

// Generator is the generation-service boundary: a blocking call producing a
// single completion for a fully assembled prompt, or a failure. Retry and
// backoff policy belongs to implementations, never to the pipeline.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
