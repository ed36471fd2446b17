package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/poiesic/corpus/core"
)

// PDFExtractor handles PDF files. pdfcpu validates the document and
// provides the page count; text assembly goes through a separate reader
// because pdfcpu does not expose assembled plain text.
type PDFExtractor struct{}

func (e *PDFExtractor) Extensions() []string {
	return []string{".pdf"}
}

func (e *PDFExtractor) Extract(_ context.Context, _ core.FileRef, data []byte) (*Result, error) {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed

	pageCount, err := api.PageCount(bytes.NewReader(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("validate pdf: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	raw, err := io.ReadAll(plain)
	if err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}
	content := strings.TrimSpace(string(raw))

	return &Result{
		Content: content,
		Metadata: map[string]any{
			"extraction_method": "pdf",
			"page_count":        pageCount,
			"word_count":        len(strings.Fields(content)),
			"character_count":   len(content),
		},
	}, nil
}
