package extract

import (
	"context"
	"strings"

	"github.com/poiesic/corpus/core"
)

// TextExtractor handles plain text and text-adjacent formats.
type TextExtractor struct{}

func (e *TextExtractor) Extensions() []string {
	return []string{".txt", ".rst", ".xml", ".log"}
}

func (e *TextExtractor) Extract(_ context.Context, _ core.FileRef, data []byte) (*Result, error) {
	content := string(data)
	return &Result{
		Content: content,
		Metadata: map[string]any{
			"extraction_method": "text",
			"word_count":        len(strings.Fields(content)),
			"character_count":   len(content),
		},
	}, nil
}
