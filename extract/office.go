package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/poiesic/corpus/core"
)

// Office Open XML formats are ZIP archives of XML parts. The extractors
// below read only the parts that carry text and document properties.

func openArchive(data []byte) (*zip.Reader, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a valid office archive: %w", err)
	}
	return reader, nil
}

func readArchiveFile(reader *zip.Reader, name string) ([]byte, bool) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, false
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, false
		}
		return content, true
	}
	return nil, false
}

// coreProperties is the subset of docProps/core.xml shared by all OOXML
// formats.
type coreProperties struct {
	Title    string `xml:"title"`
	Creator  string `xml:"creator"`
	Created  string `xml:"created"`
	Modified string `xml:"modified"`
}

func readCoreProperties(reader *zip.Reader) *coreProperties {
	content, ok := readArchiveFile(reader, "docProps/core.xml")
	if !ok {
		return nil
	}
	var props coreProperties
	if err := xml.Unmarshal(content, &props); err != nil {
		return nil
	}
	return &props
}

func applyCoreProperties(props *coreProperties, metadata map[string]any) string {
	if props == nil {
		return ""
	}
	if props.Creator != "" {
		metadata["author"] = props.Creator
	}
	if props.Created != "" {
		metadata["created"] = props.Created
	}
	if props.Modified != "" {
		metadata["modified"] = props.Modified
	}
	return strings.TrimSpace(props.Title)
}

// WordExtractor handles .docx documents.
type WordExtractor struct{}

func (e *WordExtractor) Extensions() []string {
	return []string{".docx"}
}

type wordDocument struct {
	Body struct {
		Paragraphs []wordParagraph `xml:"p"`
	} `xml:"body"`
}

type wordParagraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

func (e *WordExtractor) Extract(_ context.Context, _ core.FileRef, data []byte) (*Result, error) {
	reader, err := openArchive(data)
	if err != nil {
		return nil, err
	}

	content, ok := readArchiveFile(reader, "word/document.xml")
	if !ok {
		return nil, fmt.Errorf("archive has no word/document.xml")
	}

	var doc wordDocument
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse document.xml: %w", err)
	}

	paragraphs := make([]string, 0, len(doc.Body.Paragraphs))
	for _, para := range doc.Body.Paragraphs {
		var sb strings.Builder
		for _, run := range para.Runs {
			for _, text := range run.Text {
				sb.WriteString(text.Content)
			}
		}
		if p := strings.TrimSpace(sb.String()); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	text := strings.Join(paragraphs, "\n\n")

	metadata := map[string]any{
		"extraction_method": "word_docx",
		"paragraph_count":   len(paragraphs),
		"word_count":        len(strings.Fields(text)),
	}

	title := applyCoreProperties(readCoreProperties(reader), metadata)
	if title == "" && len(paragraphs) > 0 {
		first := paragraphs[0]
		if runes := []rune(first); len(runes) > 100 {
			first = string(runes[:100])
		}
		title = first
	}

	return &Result{
		Title:    title,
		Content:  text,
		Metadata: metadata,
	}, nil
}

// PowerPointExtractor handles .pptx presentations.
type PowerPointExtractor struct{}

func (e *PowerPointExtractor) Extensions() []string {
	return []string{".pptx"}
}

// slideText collects every a:t text run in a slide part regardless of
// nesting depth.
type slideText struct {
	Texts []string `xml:"cSld>spTree>sp>txBody>p>r>t"`
}

func (e *PowerPointExtractor) Extract(_ context.Context, _ core.FileRef, data []byte) (*Result, error) {
	reader, err := openArchive(data)
	if err != nil {
		return nil, err
	}

	slideNames := make([]string, 0)
	for _, file := range reader.File {
		if strings.HasPrefix(file.Name, "ppt/slides/slide") && strings.HasSuffix(file.Name, ".xml") {
			slideNames = append(slideNames, file.Name)
		}
	}
	sort.Strings(slideNames)

	var sections []string
	for i, name := range slideNames {
		content, ok := readArchiveFile(reader, name)
		if !ok {
			continue
		}
		var slide slideText
		if err := xml.Unmarshal(content, &slide); err != nil {
			continue
		}
		body := strings.TrimSpace(strings.Join(slide.Texts, "\n"))
		if body == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("=== Slide %d ===\n%s", i+1, body))
	}
	text := strings.Join(sections, "\n\n")

	metadata := map[string]any{
		"extraction_method": "powerpoint",
		"slide_count":       len(slideNames),
		"word_count":        len(strings.Fields(text)),
	}
	title := applyCoreProperties(readCoreProperties(reader), metadata)

	return &Result{
		Title:    title,
		Content:  text,
		Metadata: metadata,
	}, nil
}

// ExcelExtractor handles .xlsx workbooks. Extraction is a structural
// summary: sheet names plus the shared-string table, which holds all
// textual cell values.
type ExcelExtractor struct{}

func (e *ExcelExtractor) Extensions() []string {
	return []string{".xlsx"}
}

type workbookXML struct {
	Sheets struct {
		Sheet []struct {
			Name string `xml:"name,attr"`
		} `xml:"sheet"`
	} `xml:"sheets"`
}

type sharedStringsXML struct {
	Items []struct {
		Text string `xml:"t"`
	} `xml:"si"`
}

func (e *ExcelExtractor) Extract(_ context.Context, _ core.FileRef, data []byte) (*Result, error) {
	reader, err := openArchive(data)
	if err != nil {
		return nil, err
	}

	content, ok := readArchiveFile(reader, "xl/workbook.xml")
	if !ok {
		return nil, fmt.Errorf("archive has no xl/workbook.xml")
	}
	var workbook workbookXML
	if err := xml.Unmarshal(content, &workbook); err != nil {
		return nil, fmt.Errorf("parse workbook.xml: %w", err)
	}

	sheetNames := make([]string, 0, len(workbook.Sheets.Sheet))
	for _, sheet := range workbook.Sheets.Sheet {
		sheetNames = append(sheetNames, sheet.Name)
	}

	var strs []string
	if ssContent, ok := readArchiveFile(reader, "xl/sharedStrings.xml"); ok {
		var shared sharedStringsXML
		if err := xml.Unmarshal(ssContent, &shared); err == nil {
			for _, item := range shared.Items {
				if s := strings.TrimSpace(item.Text); s != "" {
					strs = append(strs, s)
				}
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("Workbook Summary:\n")
	sb.WriteString(fmt.Sprintf("Sheets: %s\n\n", strings.Join(sheetNames, ", ")))
	sb.WriteString(strings.Join(strs, "\n"))
	text := sb.String()

	metadata := map[string]any{
		"extraction_method": "excel",
		"sheet_count":       len(sheetNames),
		"sheet_names":       sheetNames,
		"word_count":        len(strings.Fields(text)),
	}
	title := applyCoreProperties(readCoreProperties(reader), metadata)

	return &Result{
		Title:    title,
		Content:  text,
		Metadata: metadata,
	}, nil
}
