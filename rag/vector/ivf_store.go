package vector

import (
	"context"
	"sort"
	"sync"

	"lodestone/rag"
)

// kmeansIterations bounds centroid training; assignments converge much
// earlier on realistic corpora.
const kmeansIterations = 10

// IVFConfig configures the partitioned index.
type IVFConfig struct {
	NLists int // Number of partitions (inverted lists)
	NProbe int // Partitions scanned per query; NProbe >= NLists is exact
}

// DefaultIVFConfig returns the default partitioning configuration.
func DefaultIVFConfig() IVFConfig {
	return IVFConfig{
		NLists: getEnvInt("IVF_NLISTS", 16),
		NProbe: getEnvInt("IVF_NPROBE", 4),
	}
}

// ivfEntry carries the global insertion sequence so tie-breaking stays by
// insertion order even though entries live in separate lists.
type ivfEntry struct {
	Entry
	seq int
}

// IVFIndex is the in-process indexed implementation: an inverted-file index
// that partitions vectors around k-means centroids and probes only the
// NProbe nearest partitions per query. It trades a small recall loss for
// sub-linear scan cost at large N while honoring the same Index contract as
// MemoryIndex.
//
// Centroids are trained once, on the first inserted batch, with
// deterministic seeding; later entries are assigned to the nearest existing
// centroid.
type IVFIndex struct {
	mu        sync.RWMutex
	cfg       IVFConfig
	dim       int
	seq       int
	centroids [][]float32
	lists     [][]ivfEntry
}

// NewIVFIndex creates an empty partitioned index.
func NewIVFIndex(cfg IVFConfig) (*IVFIndex, error) {
	if cfg.NLists <= 0 {
		return nil, &rag.ConfigurationError{Reason: "nlists must be positive"}
	}
	if cfg.NProbe <= 0 {
		return nil, &rag.ConfigurationError{Reason: "nprobe must be positive"}
	}
	return &IVFIndex{cfg: cfg}, nil
}

// Insert validates the whole batch, trains the centroids if this is the
// first batch, and assigns each entry to its nearest partition.
func (s *IVFIndex) Insert(ctx context.Context, entries []Entry) error {
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

	if s.centroids == nil {
		s.train(entries)
	}

	for _, e := range entries {
		list := s.nearestCentroid(e.Vector)
		s.lists[list] = append(s.lists[list], ivfEntry{Entry: cloneEntry(e), seq: s.seq})
		s.seq++
	}
	return nil
}

// train runs a bounded k-means over the first batch. Seeds are picked evenly
// spaced through the batch so rebuilding from the same inputs yields the
// same partitioning.
func (s *IVFIndex) train(entries []Entry) {
	n := s.cfg.NLists
	if n > len(entries) {
		n = len(entries)
	}

	centroids := make([][]float32, n)
	for i := range centroids {
		seed := entries[i*len(entries)/n].Vector
		centroids[i] = make([]float32, len(seed))
		copy(centroids[i], seed)
	}

	assignments := make([]int, len(entries))
	for iter := 0; iter < kmeansIterations; iter++ {
		changed := false
		for i, e := range entries {
			best := nearest(centroids, e.Vector)
			if best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		// Recompute each centroid as the mean of its members; a cluster
		// that lost all members keeps its previous centroid.
		sums := make([][]float32, n)
		counts := make([]int, n)
		for i := range sums {
			sums[i] = make([]float32, s.dim)
		}
		for i, e := range entries {
			c := assignments[i]
			counts[c]++
			for j, v := range e.Vector {
				sums[c][j] += v
			}
		}
		for i := range centroids {
			if counts[i] == 0 {
				continue
			}
			for j := range centroids[i] {
				centroids[i][j] = sums[i][j] / float32(counts[i])
			}
		}
	}

	s.centroids = centroids
	s.lists = make([][]ivfEntry, n)
}

func (s *IVFIndex) nearestCentroid(v []float32) int {
	return nearest(s.centroids, v)
}

func nearest(centroids [][]float32, v []float32) int {
	best := 0
	bestDist := CosineDistance(centroids[0], v)
	for i := 1; i < len(centroids); i++ {
		if d := CosineDistance(centroids[i], v); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Search ranks partitions by centroid distance, scans the NProbe nearest
// ones, and merges their candidates ascending by distance with insertion
// order breaking ties.
func (s *IVFIndex) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	if err := validateK(k); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.seq == 0 {
		return []Match{}, nil
	}
	if len(query) != s.dim {
		return nil, &rag.DimensionMismatchError{Want: s.dim, Got: len(query)}
	}

	order := make([]int, len(s.centroids))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return CosineDistance(s.centroids[order[i]], query) < CosineDistance(s.centroids[order[j]], query)
	})

	probe := s.cfg.NProbe
	if probe > len(order) {
		probe = len(order)
	}

	var candidates []ivfEntry
	for _, list := range order[:probe] {
		candidates = append(candidates, s.lists[list]...)
	}

	matches := make([]Match, 0, len(candidates))
	seqs := make([]int, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, Match{
			Entry:    c.Entry,
			Distance: CosineDistance(query, c.Vector),
		})
		seqs = append(seqs, c.seq)
	}

	sort.Stable(sortableMatches{matches, seqs})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// Len returns the number of stored entries.
func (s *IVFIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// sortableMatches sorts matches and their sequence numbers together:
// ascending distance, then ascending insertion sequence.
type sortableMatches struct {
	matches []Match
	seqs    []int
}

func (m sortableMatches) Len() int { return len(m.matches) }

func (m sortableMatches) Less(i, j int) bool {
	if m.matches[i].Distance != m.matches[j].Distance {
		return m.matches[i].Distance < m.matches[j].Distance
	}
	return m.seqs[i] < m.seqs[j]
}

func (m sortableMatches) Swap(i, j int) {
	m.matches[i], m.matches[j] = m.matches[j], m.matches[i]
	m.seqs[i], m.seqs[j] = m.seqs[j], m.seqs[i]
}
