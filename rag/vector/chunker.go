package vector

import (
	"fmt"
	"os"
	"unicode"

	"lodestone/rag"
)

// ChunkConfig configures how documents are split into chunks.
type ChunkConfig struct {
	ChunkSize int // Maximum chunk size in runes
	Overlap   int // Runes shared between consecutive chunks
	Lookback  int // Window searched backwards for a natural boundary
}

// DefaultChunkConfig returns the default chunk configuration.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkSize: getEnvInt("CHUNK_SIZE", 1000),
		Overlap:   getEnvInt("CHUNK_OVERLAP", 200),
		Lookback:  getEnvInt("CHUNK_LOOKBACK", 0),
	}
}

// getEnvInt reads an integer from environment variable
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return defaultVal
}

// Validate rejects impossible window parameters before any work is done.
func (c ChunkConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return &rag.ConfigurationError{Reason: "chunk size must be positive"}
	}
	if c.Overlap < 0 || c.Overlap >= c.ChunkSize {
		return &rag.ConfigurationError{Reason: "overlap must be in [0, chunk size)"}
	}
	return nil
}

// lookback returns the effective boundary search window.
func (c ChunkConfig) lookback() int {
	if c.Lookback > 0 {
		return c.Lookback
	}
	return c.ChunkSize / 4
}

// SplitDocument walks the document text greedily, producing chunks of at
// most ChunkSize runes where consecutive chunks share exactly Overlap runes.
//
// Every chunk is a raw contiguous slice of the document: no trimming or
// normalization happens, so concatenating the chunks with the declared
// overlap removed reconstructs the document exactly. Chunk ends prefer a
// paragraph break, then a sentence end, then a word boundary within the
// lookback window, and fall back to a hard cut at ChunkSize so a chunk is
// never oversized.
//
// A document shorter than ChunkSize yields exactly one chunk equal to the
// whole text. An empty document yields no chunks.
func SplitDocument(doc rag.Document, cfg ChunkConfig) ([]rag.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(doc.RawText)
	if len(runes) == 0 {
		return nil, nil
	}

	var chunks []rag.Chunk
	start := 0
	for {
		end := start + cfg.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = adjustToBoundary(runes, start, end, cfg)
		}

		chunks = append(chunks, rag.Chunk{
			ID:         fmt.Sprintf("%s#%d", doc.ID, len(chunks)),
			Text:       string(runes[start:end]),
			DocumentID: doc.ID,
			Offset:     start,
		})

		if end == len(runes) {
			return chunks, nil
		}
		start = end - cfg.Overlap
	}
}

// adjustToBoundary searches backwards from the hard cut point for a natural
// break so tokens are not severed mid-word. The adjusted end must still make
// progress past the next chunk's start (end - overlap > start); when no
// boundary satisfies that within the lookback window, the hard cut stands.
func adjustToBoundary(runes []rune, start, end int, cfg ChunkConfig) int {
	low := end - cfg.lookback()
	if min := start + cfg.Overlap + 1; low < min {
		low = min
	}
	if low >= end {
		return end
	}

	best := -1
	bestRank := 0
	for i := end; i > low; i-- {
		rank := boundaryRank(runes, i)
		if rank > bestRank {
			best, bestRank = i, rank
		}
	}

	if best > 0 {
		return best
	}
	return end
}

// boundaryRank scores a cut position between runes[i-1] and runes[i]:
// paragraph > sentence > word, 0 for no boundary.
func boundaryRank(runes []rune, i int) int {
	prev := runes[i-1]
	switch {
	case prev == '\n' && i >= 2 && runes[i-2] == '\n':
		return 3
	case isSentenceEnd(prev):
		return 2
	case unicode.IsSpace(prev):
		return 1
	default:
		return 0
	}
}

// isSentenceEnd checks if a rune is a sentence ending punctuation
func isSentenceEnd(r rune) bool {
	return r == '。' || r == '！' || r == '？' || r == '.' || r == '!' || r == '?'
}
