package vector

import (
	"context"
	"errors"
	"testing"

	"lodestone/rag"
)

// corpus3d is a small deterministic corpus spread over three directions.
func corpus3d() []Entry {
	return []Entry{
		entry("x0", 1, 0, 0),
		entry("x1", 0.9, 0.1, 0),
		entry("x2", 0.95, 0, 0.05),
		entry("y0", 0, 1, 0),
		entry("y1", 0.1, 0.9, 0),
		entry("y2", 0, 0.95, 0.05),
		entry("z0", 0, 0, 1),
		entry("z1", 0.05, 0, 0.95),
		entry("z2", 0, 0.1, 0.9),
	}
}

func TestNewIVFIndexValidation(t *testing.T) {
	var cfgErr *rag.ConfigurationError
	if _, err := NewIVFIndex(IVFConfig{NLists: 0, NProbe: 1}); !errors.As(err, &cfgErr) {
		t.Errorf("nlists=0 error = %v, want *rag.ConfigurationError", err)
	}
	if _, err := NewIVFIndex(IVFConfig{NLists: 4, NProbe: 0}); !errors.As(err, &cfgErr) {
		t.Errorf("nprobe=0 error = %v, want *rag.ConfigurationError", err)
	}
	if _, err := NewIVFIndex(IVFConfig{NLists: 4, NProbe: 4}); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

// Probing every partition makes the partitioned index an exact search; its
// results must be indistinguishable from the brute-force index.
func TestIVFIndexMatchesBruteForceWhenProbingAll(t *testing.T) {
	ctx := context.Background()

	brute := NewMemoryIndex()
	ivf, err := NewIVFIndex(IVFConfig{NLists: 3, NProbe: 3})
	if err != nil {
		t.Fatal(err)
	}

	if err := brute.Insert(ctx, corpus3d()); err != nil {
		t.Fatal(err)
	}
	if err := ivf.Insert(ctx, corpus3d()); err != nil {
		t.Fatal(err)
	}

	queries := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.5, 0.5, 0},
		{0.2, 0.3, 0.9},
	}
	for _, q := range queries {
		want, err := brute.Search(ctx, q, 5)
		if err != nil {
			t.Fatal(err)
		}
		got, err := ivf.Search(ctx, q, 5)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(want) {
			t.Fatalf("query %v: got %d matches, want %d", q, len(got), len(want))
		}
		for i := range want {
			if got[i].Entry.ChunkID != want[i].Entry.ChunkID {
				t.Errorf("query %v: ordering %v, want %v", q, matchIDs(got), matchIDs(want))
				break
			}
			if got[i].Distance != want[i].Distance {
				t.Errorf("query %v: distance %v, want %v", q, got[i].Distance, want[i].Distance)
			}
		}
	}
}

func TestIVFIndexPartialProbeFindsNearest(t *testing.T) {
	ctx := context.Background()
	ivf, err := NewIVFIndex(IVFConfig{NLists: 3, NProbe: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := ivf.Insert(ctx, corpus3d()); err != nil {
		t.Fatal(err)
	}

	// A query deep inside one cluster must surface that cluster's entries
	// even when only one partition is scanned.
	matches, err := ivf.Search(ctx, []float32{1, 0.02, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Entry.ChunkID != "x0" {
		t.Errorf("top match = %v, want x0", matchIDs(matches))
	}
}

func TestIVFIndexRebuildIsDeterministic(t *testing.T) {
	ctx := context.Background()
	query := []float32{0.6, 0.4, 0.1}

	var results [][]string
	for run := 0; run < 2; run++ {
		ivf, err := NewIVFIndex(IVFConfig{NLists: 3, NProbe: 2})
		if err != nil {
			t.Fatal(err)
		}
		all := corpus3d()
		// Insert in two batches; training happens on the first.
		if err := ivf.Insert(ctx, all[:5]); err != nil {
			t.Fatal(err)
		}
		if err := ivf.Insert(ctx, all[5:]); err != nil {
			t.Fatal(err)
		}

		matches, err := ivf.Search(ctx, query, 4)
		if err != nil {
			t.Fatal(err)
		}
		results = append(results, matchIDs(matches))
	}

	if len(results[0]) != len(results[1]) {
		t.Fatalf("rebuild changed result count: %v vs %v", results[0], results[1])
	}
	for i := range results[0] {
		if results[0][i] != results[1][i] {
			t.Fatalf("rebuild changed results: %v vs %v", results[0], results[1])
		}
	}
}

func TestIVFIndexEmptyAndErrors(t *testing.T) {
	ctx := context.Background()
	ivf, err := NewIVFIndex(IVFConfig{NLists: 2, NProbe: 2})
	if err != nil {
		t.Fatal(err)
	}

	matches, err := ivf.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("empty index search failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("empty index returned %v", matches)
	}

	if err := ivf.Insert(ctx, []Entry{entry("a", 1, 0)}); err != nil {
		t.Fatal(err)
	}

	var dimErr *rag.DimensionMismatchError
	if err := ivf.Insert(ctx, []Entry{entry("bad", 1, 0, 0)}); !errors.As(err, &dimErr) {
		t.Errorf("insert error = %v, want *rag.DimensionMismatchError", err)
	}
	if ivf.Len() != 1 {
		t.Errorf("rejected batch changed size: %d", ivf.Len())
	}
	if _, err := ivf.Search(ctx, []float32{1, 0, 0}, 1); !errors.As(err, &dimErr) {
		t.Errorf("search error = %v, want *rag.DimensionMismatchError", err)
	}

	var cfgErr *rag.ConfigurationError
	if _, err := ivf.Search(ctx, []float32{1, 0}, -1); !errors.As(err, &cfgErr) {
		t.Errorf("k<=0 error = %v, want *rag.ConfigurationError", err)
	}
}
