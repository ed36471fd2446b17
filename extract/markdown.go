package extract

import (
	"context"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/corpus/core"
)

var (
	h1Pattern     = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	headerPattern = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
)

// MarkdownExtractor handles markdown files, including optional YAML
// frontmatter delimited by "---" lines.
type MarkdownExtractor struct{}

func (e *MarkdownExtractor) Extensions() []string {
	return []string{".md", ".markdown"}
}

func (e *MarkdownExtractor) Extract(_ context.Context, _ core.FileRef, data []byte) (*Result, error) {
	content := string(data)
	metadata := map[string]any{
		"extraction_method": "markdown",
	}

	var title string
	body, front := splitFrontmatter(content)
	if front != nil {
		for k, v := range front {
			metadata[k] = v
		}
		if t, ok := front["title"].(string); ok {
			title = strings.TrimSpace(t)
		}
	}

	if title == "" {
		if m := h1Pattern.FindStringSubmatch(body); m != nil {
			title = strings.TrimSpace(m[1])
		}
	}

	headers := headerPattern.FindAllStringSubmatch(body, -1)
	sections := make([]string, 0, len(headers))
	for _, h := range headers {
		sections = append(sections, strings.TrimSpace(h[1]))
	}
	metadata["header_count"] = len(sections)
	if len(sections) > 10 {
		sections = sections[:10]
	}
	metadata["section_titles"] = sections
	metadata["word_count"] = len(strings.Fields(body))

	return &Result{
		Title:    title,
		Content:  body,
		Metadata: metadata,
	}, nil
}

// splitFrontmatter separates an optional YAML frontmatter block from the
// markdown body. Returns the body unchanged and nil when no valid block
// exists.
func splitFrontmatter(content string) (string, map[string]any) {
	if !strings.HasPrefix(content, "---\n") && !strings.HasPrefix(content, "---\r\n") {
		return content, nil
	}

	rest := content[strings.Index(content, "\n")+1:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return content, nil
	}

	var front map[string]any
	if err := yaml.Unmarshal([]byte(rest[:end]), &front); err != nil || front == nil {
		return content, nil
	}

	body := rest[end+len("\n---"):]
	if i := strings.Index(body, "\n"); i >= 0 {
		body = body[i+1:]
	}
	return body, front
}
