package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lodestone/rag"
	"lodestone/rag/parser"

	"github.com/bmatcuk/doublestar/v4"
)

// FSSource loads documents from files under a root directory matching a
// doublestar glob pattern (e.g. "docs/**/*.md"). Files without a registered
// parser are skipped.
type FSSource struct {
	root     string
	pattern  string
	registry *parser.Registry
}

// NewFSSource creates a filesystem source. A nil registry selects the
// default parsers.
func NewFSSource(root, pattern string, registry *parser.Registry) (*FSSource, error) {
	if root == "" {
		root = "."
	}
	if pattern == "" {
		return nil, fmt.Errorf("glob pattern is required")
	}
	if registry == nil {
		registry = parser.DefaultRegistry()
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root directory not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	return &FSSource{root: root, pattern: pattern, registry: registry}, nil
}

// Load globs the root directory and parses every match into a document.
// Document IDs are root-relative paths, so rebuilding from the same tree
// produces the same IDs.
func (s *FSSource) Load(ctx context.Context) ([]rag.Document, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(s.root, s.pattern))
	if err != nil {
		return nil, fmt.Errorf("glob matching failed: %w", err)
	}
	sort.Strings(matches)

	var docs []rag.Document
	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if _, ok := s.registry.GetParserForPath(match); !ok {
			continue
		}

		doc, err := s.loadFile(ctx, match)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

func (s *FSSource) loadFile(ctx context.Context, path string) (rag.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return rag.Document{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	parsed, err := s.registry.Parse(ctx, path, f)
	if err != nil {
		return rag.Document{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		rel = path
	}

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	metadata := make(map[string]string, len(parsed.Metadata)+3)
	for k, v := range parsed.Metadata {
		metadata[k] = v
	}
	metadata[rag.MetadataSourceKey] = rel
	metadata[metadataFileTypeKey] = parser.FileTypeFromExt(ext).String()
	if parsed.Title != "" {
		metadata[metadataTitleKey] = parsed.Title
	}

	return rag.Document{
		ID:       rel,
		RawText:  parsed.Content,
		Metadata: metadata,
	}, nil
}
