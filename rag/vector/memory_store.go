package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"lodestone/rag"
)

// MemoryIndex is the brute-force index: a mutex-guarded in-memory slice
// scanned linearly on every search. Exact, simple, and fine up to a few
// thousand entries; swap in IVFIndex or RedisIndex beyond that.
type MemoryIndex struct {
	mu      sync.RWMutex
	dim     int
	entries []Entry
}

// NewMemoryIndex creates an empty brute-force index. The dimensionality is
// established by the first inserted entry.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

// Insert appends entries to the searchable set. The whole batch is validated
// against the established dimensionality before anything is stored, so a
// rejected batch leaves the index untouched.
func (s *MemoryIndex) Insert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := validateBatch(s.dim, entries)
	if err != nil {
		return err
	}
	s.dim = dim

	for _, e := range entries {
		s.entries = append(s.entries, cloneEntry(e))
	}
	return nil
}

// Search linearly scans all stored entries and returns the k closest,
// ascending by cosine distance, ties broken by insertion order. An empty
// index is a valid "no knowledge yet" state and yields an empty result.
func (s *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	if err := validateK(k); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return []Match{}, nil
	}
	if len(query) != s.dim {
		return nil, &rag.DimensionMismatchError{Want: s.dim, Got: len(query)}
	}

	matches := make([]Match, 0, len(s.entries))
	for _, e := range s.entries {
		matches = append(matches, Match{
			Entry:    e,
			Distance: CosineDistance(query, e.Vector),
		})
	}

	// Stable sort over the insertion-ordered slice keeps ties in insertion
	// order.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// Len returns the number of stored entries.
func (s *MemoryIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Dimension returns the established vector dimensionality, zero when empty.
func (s *MemoryIndex) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// snapshotData is the JSON layout of a persisted index: the entries plus the
// declared dimensionality and distance metric, both validated on load.
type snapshotData struct {
	Version   string  `json:"version"`
	Metric    string  `json:"metric"`
	Dimension int     `json:"dimension"`
	CreatedAt string  `json:"created_at"`
	Entries   []Entry `json:"entries"`
}

// Save writes the index contents to a JSON snapshot file.
func (s *MemoryIndex) Save(path string) error {
	s.mu.RLock()
	snap := snapshotData{
		Version:   "1.0",
		Metric:    MetricCosine,
		Dimension: s.dim,
		CreatedAt: time.Now().Format(time.RFC3339),
		Entries:   s.entries,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// LoadMemoryIndex reads a JSON snapshot back into a fresh index, rejecting
// snapshots whose metric differs or whose entries do not match the declared
// dimensionality.
func LoadMemoryIndex(path string) (*MemoryIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap snapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if snap.Metric != "" && snap.Metric != MetricCosine {
		return nil, &rag.ConfigurationError{Reason: "snapshot uses metric " + snap.Metric}
	}
	for _, e := range snap.Entries {
		if len(e.Vector) != snap.Dimension {
			return nil, &rag.DimensionMismatchError{Want: snap.Dimension, Got: len(e.Vector)}
		}
	}

	idx := NewMemoryIndex()
	idx.dim = snap.Dimension
	idx.entries = snap.Entries
	return idx, nil
}
