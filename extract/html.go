package extract

import (
	"bytes"
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/poiesic/corpus/core"
)

// HTMLExtractor handles HTML files. Script, style and head subtrees are
// excluded from the extracted text.
type HTMLExtractor struct{}

func (e *HTMLExtractor) Extensions() []string {
	return []string{".html", ".htm"}
}

func (e *HTMLExtractor) Extract(_ context.Context, _ core.FileRef, data []byte) (*Result, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	title := findTitle(root)
	content := collectText(root)

	return &Result{
		Title:   title,
		Content: content,
		Metadata: map[string]any{
			"extraction_method": "html",
			"word_count":        len(strings.Fields(content)),
			"has_title":         title != "",
		},
	}, nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		var sb strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
		}
		return strings.TrimSpace(sb.String())
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"head":     true,
	"svg":      true,
}

func collectText(root *html.Node) string {
	var lines []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				lines = append(lines, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.Join(lines, "\n")
}
