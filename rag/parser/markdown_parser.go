package parser

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// MarkdownParser handles markdown files
type MarkdownParser struct {
	// stripCodeBlocks whether to remove code blocks from content
	stripCodeBlocks bool
}

// NewMarkdownParser creates a new markdown parser
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		stripCodeBlocks: false, // Keep code blocks by default
	}
}

// Parse reads and parses markdown from the reader
func (p *MarkdownParser) Parse(ctx context.Context, r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown: %w", err)
	}

	return p.parse(string(data)), nil
}

// FileType returns the file type this parser handles
func (p *MarkdownParser) FileType() FileType {
	return FileTypeMD
}

// parse processes the markdown content
func (p *MarkdownParser) parse(content string) *Document {
	metadata := extractFrontmatter(content)
	processed := removeFrontmatter(content)

	if p.stripCodeBlocks {
		processed = removeCodeBlocks(processed)
	}

	processed = cleanMarkdown(processed)

	title := ExtractTitle(processed, "")
	if fm, ok := metadata["title"]; ok && fm != "" {
		title = fm
	}

	return &Document{
		Content:  processed,
		Title:    title,
		Metadata: metadata,
	}
}

// hasFrontmatter checks if content has YAML frontmatter
func hasFrontmatter(content string) bool {
	lines := strings.Split(content, "\n")
	return len(lines) >= 2 && strings.TrimSpace(lines[0]) == "---"
}

// extractFrontmatter pulls simple key: value pairs out of YAML frontmatter
func extractFrontmatter(content string) map[string]string {
	metadata := make(map[string]string)
	if !hasFrontmatter(content) {
		return metadata
	}

	lines := strings.Split(content, "\n")
	for i := 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "---" {
			break
		}
		if idx := strings.Index(line, ":"); idx > 0 {
			key := strings.TrimSpace(line[:idx])
			value := strings.Trim(strings.TrimSpace(line[idx+1:]), `"`)
			metadata[key] = value
		}
	}

	return metadata
}

// removeFrontmatter removes YAML frontmatter from content
func removeFrontmatter(content string) string {
	if !hasFrontmatter(content) {
		return content
	}

	lines := strings.Split(content, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[i+1:], "\n")
		}
	}
	return content
}

var (
	fencedCodeRe = regexp.MustCompile("```[\\s\\S]*?```")
	inlineCodeRe = regexp.MustCompile("`[^`]+`")
	linkRe       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	imageRe      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	emphasisRe   = regexp.MustCompile(`(\*\*|__|\*|_)([^*_]+)(\*\*|__|\*|_)`)
)

// removeCodeBlocks removes fenced and inline code
func removeCodeBlocks(content string) string {
	content = fencedCodeRe.ReplaceAllString(content, "")
	return inlineCodeRe.ReplaceAllString(content, "")
}

// cleanMarkdown strips formatting that adds noise to embeddings while
// keeping the readable text: images go, links keep their label, emphasis
// markers drop.
func cleanMarkdown(content string) string {
	content = imageRe.ReplaceAllString(content, "")
	content = linkRe.ReplaceAllString(content, "$1")
	content = emphasisRe.ReplaceAllString(content, "$2")
	return strings.TrimSpace(content)
}
