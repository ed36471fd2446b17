package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/corpus/core"
)

// CodeExtractor handles source code files. Content is kept verbatim so
// technical documentation embedded in code remains searchable.
type CodeExtractor struct{}

func (e *CodeExtractor) Extensions() []string {
	return []string{
		".go", ".py", ".js", ".ts", ".java",
		".c", ".cpp", ".rs", ".rb", ".sh",
		".sql", ".yaml", ".yml",
	}
}

func (e *CodeExtractor) Extract(_ context.Context, ref core.FileRef, data []byte) (*Result, error) {
	content := string(data)
	return &Result{
		Title:   fmt.Sprintf("Code: %s", ref.Name()),
		Content: content,
		Metadata: map[string]any{
			"extraction_method": "code",
			"language":          strings.TrimPrefix(ref.Ext(), "."),
			"line_count":        len(strings.Split(content, "\n")),
			"word_count":        len(strings.Fields(content)),
		},
	}, nil
}
