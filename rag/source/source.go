// Package source implements document-source collaborators: finite producers
// of documents the build path consumes, agnostic to how they were obtained.
// Every produced document carries a source metadata entry usable for
// citations.
package source

import (
	"context"

	"lodestone/rag"
)

// Source produces a finite sequence of documents.
type Source interface {
	Load(ctx context.Context) ([]rag.Document, error)
}

// Metadata keys set by the sources in this package.
const (
	metadataTitleKey    = "title"
	metadataFileTypeKey = "file_type"
)
