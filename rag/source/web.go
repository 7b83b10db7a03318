package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lodestone/rag"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const (
	// defaultFetchTimeout is the per-request timeout
	defaultFetchTimeout = 30 * time.Second
	// maxReadSize is the maximum response size (5MB)
	maxReadSize = int64(5 * 1024 * 1024)
)

// WebSource loads documents by fetching URLs. HTML responses are converted
// to markdown so headings and lists survive into the chunker; anything else
// is taken as plain text.
type WebSource struct {
	urls    []string
	client  *http.Client
	timeout time.Duration
}

// NewWebSource creates a web source for the given URLs. A non-positive
// timeout selects the default.
func NewWebSource(urls []string, timeout time.Duration) (*WebSource, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one URL is required")
	}
	for _, u := range urls {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return nil, fmt.Errorf("URL must start with http:// or https://: %s", u)
		}
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	return &WebSource{
		urls:    urls,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}, nil
}

// Load fetches every URL and returns one document per page. A failing fetch
// aborts the load; partial corpora are worse than loud failures here.
func (s *WebSource) Load(ctx context.Context) ([]rag.Document, error) {
	docs := make([]rag.Document, 0, len(s.urls))
	for _, url := range s.urls {
		doc, err := s.fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *WebSource) fetch(ctx context.Context, url string) (rag.Document, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return rag.Document{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "lodestone-loader/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return rag.Document{}, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return rag.Document{}, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxReadSize))
	if err != nil {
		return rag.Document{}, fmt.Errorf("failed to read response: %w", err)
	}

	content := string(bodyBytes)
	title := ""
	fileType := "txt"

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		title = extractHTMLTitle(content)
		content, err = convertHTMLToMarkdown(content)
		if err != nil {
			return rag.Document{}, fmt.Errorf("failed to convert %s: %w", url, err)
		}
		fileType = "html"
	}

	metadata := map[string]string{
		rag.MetadataSourceKey: url,
		metadataFileTypeKey:   fileType,
	}
	if title != "" {
		metadata[metadataTitleKey] = title
	}

	return rag.Document{
		ID:       url,
		RawText:  content,
		Metadata: metadata,
	}, nil
}

func extractHTMLTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func convertHTMLToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", err
	}

	// Collapse the blank-line noise conversion leaves behind.
	lines := strings.Split(markdown, "\n")
	var result []string
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return strings.Join(result, "\n"), nil
}
