package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"lodestone/pubsub"
	"lodestone/rag"
	"lodestone/rag/vector"
)

// Metadata keys stamped on every index entry by the build path.
const (
	metadataDocumentIDKey = "document_id"
	metadataChunkIndexKey = "chunk_index"
)

// IngestProgress is the payload published on the ingestion event broker.
type IngestProgress struct {
	DocumentID string // document currently processed, empty for run-level events
	Chunks     int    // chunks produced so far
	Documents  int    // documents processed so far
	Err        error  // set on FailedEvent only
}

// IndexerConfig configures the index build path.
type IndexerConfig struct {
	// Chunking controls how documents are split.
	Chunking vector.ChunkConfig
	// BatchSize is how many texts go into one embedding call.
	BatchSize int
	// Workers bounds concurrent embedding calls.
	Workers int
	// Events receives ingestion progress; nil disables publishing.
	Events *pubsub.Broker[IngestProgress]
}

// DefaultIndexerConfig returns the default build configuration.
func DefaultIndexerConfig() IndexerConfig {
	return IndexerConfig{
		Chunking:  vector.DefaultChunkConfig(),
		BatchSize: 16,
		Workers:   4,
	}
}

// Indexer is the build path: documents in, searchable index entries out.
// Chunk embedding calls are independent and run on a bounded worker pool;
// entries are inserted in chunk order afterwards, though insertion order
// only affects tie-breaking in search, never correctness.
type Indexer struct {
	embedder *vector.EmbeddingService
	index    vector.Index
	config   IndexerConfig
}

// NewIndexer creates an indexer. The embedding service must be the same
// instance the query path uses. Invalid chunk parameters are rejected here,
// before any document is touched.
func NewIndexer(embedder *vector.EmbeddingService, index vector.Index, cfg IndexerConfig) (*Indexer, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedding service is required")
	}
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if err := cfg.Chunking.Validate(); err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	return &Indexer{embedder: embedder, index: index, config: cfg}, nil
}

// IndexDocuments chunks, embeds and inserts the given documents, returning
// the number of entries added. The run is all-or-nothing up to the index
// insert: an embedding failure aborts before anything is stored.
func (ix *Indexer) IndexDocuments(ctx context.Context, docs []rag.Document) (int, error) {
	ix.publish(pubsub.StartedEvent, IngestProgress{})

	entries, err := ix.buildEntries(docs)
	if err != nil {
		ix.publish(pubsub.FailedEvent, IngestProgress{Err: err})
		return 0, err
	}
	if len(entries) == 0 {
		ix.publish(pubsub.FinishedEvent, IngestProgress{Documents: len(docs)})
		return 0, nil
	}

	if err := ix.embedEntries(ctx, entries); err != nil {
		ix.publish(pubsub.FailedEvent, IngestProgress{Err: err})
		return 0, err
	}

	if err := ix.index.Insert(ctx, entries); err != nil {
		ix.publish(pubsub.FailedEvent, IngestProgress{Err: err})
		return 0, err
	}

	ix.publish(pubsub.FinishedEvent, IngestProgress{
		Documents: len(docs),
		Chunks:    len(entries),
	})
	return len(entries), nil
}

// buildEntries chunks every document and prepares index entries whose
// vectors are filled in by embedEntries. Document metadata is copied onto
// each entry with the source, document ID and chunk index stamped on top.
func (ix *Indexer) buildEntries(docs []rag.Document) ([]vector.Entry, error) {
	var entries []vector.Entry

	for i, doc := range docs {
		chunks, err := vector.SplitDocument(doc, ix.config.Chunking)
		if err != nil {
			return nil, err
		}

		for n, chunk := range chunks {
			metadata := make(map[string]string, len(doc.Metadata)+3)
			for k, v := range doc.Metadata {
				metadata[k] = v
			}
			metadata[rag.MetadataSourceKey] = doc.Source()
			metadata[metadataDocumentIDKey] = doc.ID
			metadata[metadataChunkIndexKey] = strconv.Itoa(n)

			entries = append(entries, vector.Entry{
				ChunkID:  chunk.ID,
				Text:     chunk.Text,
				Metadata: metadata,
			})
		}

		ix.publish(pubsub.ProgressEvent, IngestProgress{
			DocumentID: doc.ID,
			Documents:  i + 1,
			Chunks:     len(entries),
		})
	}

	return entries, nil
}

// embedEntries fills in entry vectors batch by batch on a bounded worker
// pool. Batches are independent, so any completion order is fine; each batch
// writes only its own slice range. The first failure cancels the rest.
func (ix *Indexer) embedEntries(ctx context.Context, entries []vector.Entry) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, ix.config.Workers)

	for start := 0; start < len(entries); start += ix.config.BatchSize {
		end := start + ix.config.BatchSize
		if end > len(entries) {
			end = len(entries)
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(batch []vector.Entry) {
			defer wg.Done()
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			texts := make([]string, len(batch))
			for i, e := range batch {
				texts[i] = e.Text
			}

			vectors, err := ix.embedder.EmbedTexts(ctx, texts)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				cancel()
				return
			}

			for i := range batch {
				batch[i].Vector = vectors[i]
			}
		}(entries[start:end])
	}

	wg.Wait()
	return firstErr
}

func (ix *Indexer) publish(t pubsub.EventType, p IngestProgress) {
	if ix.config.Events != nil {
		ix.config.Events.Publish(t, p)
	}
}
