package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/poiesic/corpus/core"
)

// CSVExtractor summarizes CSV files into searchable text: column names,
// row count and a sample of the data.
type CSVExtractor struct{}

func (e *CSVExtractor) Extensions() []string {
	return []string{".csv"}
}

const csvSampleRows = 10

func (e *CSVExtractor) Extract(_ context.Context, _ core.FileRef, data []byte) (*Result, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}

	columns := records[0]
	rows := records[1:]

	var sb strings.Builder
	sb.WriteString("CSV Data Summary:\n")
	sb.WriteString(fmt.Sprintf("Columns: %s\n", strings.Join(columns, ", ")))
	sb.WriteString(fmt.Sprintf("Rows: %d\n\n", len(rows)))
	sb.WriteString("Sample Data:\n")
	for i, row := range rows {
		if i >= csvSampleRows {
			break
		}
		sb.WriteString(strings.Join(row, "\t"))
		sb.WriteString("\n")
	}

	return &Result{
		Content: sb.String(),
		Metadata: map[string]any{
			"extraction_method": "csv",
			"column_count":      len(columns),
			"row_count":         len(rows),
			"columns":           columns,
		},
	}, nil
}

// JSONExtractor re-indents JSON files so nested values become searchable
// line-oriented text.
type JSONExtractor struct{}

func (e *JSONExtractor) Extensions() []string {
	return []string{".json"}
}

func (e *JSONExtractor) Extract(_ context.Context, _ core.FileRef, data []byte) (*Result, error) {
	var value any
	if err := sonic.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	indented, err := sonic.ConfigDefault.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}

	var keys []string
	if obj, ok := value.(map[string]any); ok {
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}

	return &Result{
		Content: string(indented),
		Metadata: map[string]any{
			"extraction_method": "json",
			"json_keys":         keys,
			"data_type":         fmt.Sprintf("%T", value),
		},
	}, nil
}
