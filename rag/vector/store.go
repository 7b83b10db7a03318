package vector

import (
	"context"
	"math"

	"lodestone/rag"
)

// MetricCosine identifies the cosine distance metric. It is the only metric
// the indexes implement and is recorded alongside persisted indexes so a
// store built under a different metric is rejected at load time.
const MetricCosine = "cosine"

// Entry is what an index stores and is the single source of truth for what
// is searchable: the chunk identifier, its embedding, the original text and
// opaque string metadata.
type Entry struct {
	ChunkID  string            `json:"chunk_id"`
	Vector   []float32         `json:"vector"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Match is a search hit: an entry plus its cosine distance from the query.
type Match struct {
	Entry    Entry
	Distance float32
}

// Index is the narrow contract shared by all vector index implementations,
// so the brute-force and indexed variants are drop-in replacements for one
// another.
//
// Insert appends entries to the searchable set and fails with
// *rag.DimensionMismatchError if any vector deviates from the index's
// established dimensionality; a rejected batch is never partially inserted.
//
// Search returns the k entries closest to the query vector, ascending by
// distance, ties broken by insertion order. Fewer than k entries in the
// index means all of them are returned; an empty index yields an empty,
// non-error result.
type Index interface {
	Insert(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, query []float32, k int) ([]Match, error)
}

// CosineDistance returns 1 - cosine similarity between a and b, in [0, 2]:
// 0 for identical direction, 2 for opposite. A zero vector has no direction
// and is treated as maximally distant rather than dividing by zero.
func CosineDistance(a, b []float32) float32 {
	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}

	if na == 0 || nb == 0 {
		return 2
	}

	d := 1 - dot/(float32(math.Sqrt(float64(na)))*float32(math.Sqrt(float64(nb))))
	// Float noise can push an exact match slightly below zero.
	if d < 0 {
		return 0
	}
	return d
}

// cloneEntry copies an entry so the index owns its data independently of the
// caller's slices and maps.
func cloneEntry(e Entry) Entry {
	c := Entry{
		ChunkID: e.ChunkID,
		Text:    e.Text,
		Vector:  make([]float32, len(e.Vector)),
	}
	copy(c.Vector, e.Vector)
	if e.Metadata != nil {
		c.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

// validateBatch checks every vector in a batch against the established
// dimensionality before anything is mutated. dim == 0 means the index is
// empty and the first entry establishes it.
func validateBatch(dim int, entries []Entry) (int, error) {
	for _, e := range entries {
		if dim == 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) == 0 || len(e.Vector) != dim {
			return 0, &rag.DimensionMismatchError{Want: dim, Got: len(e.Vector)}
		}
	}
	return dim, nil
}

func validateK(k int) error {
	if k <= 0 {
		return &rag.ConfigurationError{Reason: "k must be positive"}
	}
	return nil
}
