package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lodestone/rag"
)

func TestWebSourceLoadHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Pet care</title></head>
<body><h1>Walking</h1><p>Walk the dog every morning.</p></body></html>`))
	}))
	defer server.Close()

	src, err := NewWebSource([]string{server.URL}, 0)
	if err != nil {
		t.Fatalf("failed to create source: %v", err)
	}

	docs, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("loaded %d documents, want 1", len(docs))
	}

	doc := docs[0]
	if doc.ID != server.URL || doc.Metadata[rag.MetadataSourceKey] != server.URL {
		t.Errorf("document not identified by URL: %+v", doc)
	}
	if doc.Metadata["title"] != "Pet care" {
		t.Errorf("title = %q", doc.Metadata["title"])
	}
	if !strings.Contains(doc.RawText, "Walking") || !strings.Contains(doc.RawText, "Walk the dog every morning.") {
		t.Errorf("converted content = %q", doc.RawText)
	}
	if strings.Contains(doc.RawText, "<p>") {
		t.Errorf("HTML tags survived conversion: %q", doc.RawText)
	}
}

func TestWebSourceLoadPlainText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("Estrella is a dog."))
	}))
	defer server.Close()

	src, err := NewWebSource([]string{server.URL}, 0)
	if err != nil {
		t.Fatal(err)
	}
	docs, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if docs[0].RawText != "Estrella is a dog." {
		t.Errorf("content = %q", docs[0].RawText)
	}
	if docs[0].Metadata["file_type"] != "txt" {
		t.Errorf("file_type = %q", docs[0].Metadata["file_type"])
	}
}

func TestWebSourceFailsOnBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	src, err := NewWebSource([]string{server.URL}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.Load(context.Background()); err == nil {
		t.Error("expected error for 404 response")
	}
}

func TestNewWebSourceValidation(t *testing.T) {
	if _, err := NewWebSource(nil, 0); err == nil {
		t.Error("expected error for empty URL list")
	}
	if _, err := NewWebSource([]string{"ftp://example.com"}, 0); err == nil {
		t.Error("expected error for non-HTTP scheme")
	}
}
