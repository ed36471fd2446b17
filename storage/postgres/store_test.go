package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
)

// Connection-dependent behavior is covered by the integration environment;
// these tests exercise the SQL assembly helpers.

func TestBuildFilterClause(t *testing.T) {
	where, args := buildFilterClause(storage.Filters{"document_type": "report"}, 3)
	assert.Equal(t, " AND document_type = $3", where)
	assert.Equal(t, []any{"report"}, args)

	where, args = buildFilterClause(storage.Filters{
		"document_type": "report",
		"source_file":   "/a.txt",
	}, 1)
	assert.Equal(t, " AND document_type = $1 AND source_file = $2", where)
	assert.Equal(t, []any{"report", "/a.txt"}, args)

	where, args = buildFilterClause(nil, 1)
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestValidateFilters(t *testing.T) {
	assert.NoError(t, validateFilters(nil))
	assert.NoError(t, validateFilters(storage.Filters{"document_type": "x"}))
	assert.ErrorIs(t, validateFilters(storage.Filters{"owner": "x"}), storage.ErrInvalidQuery)
}

// stubRow feeds canned column values to scanDocument.
type stubRow struct {
	values []any
}

func (r *stubRow) Scan(dest ...any) error {
	if len(dest) != len(r.values) {
		return fmt.Errorf("expected %d destinations, got %d", len(r.values), len(dest))
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *[]byte:
			*d = v.([]byte)
		case **pgvector.Vector:
			*d = v.(*pgvector.Vector)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("unsupported destination %T", dest[i])
		}
	}
	return nil
}

func TestScanDocumentLoadsEmbedding(t *testing.T) {
	now := time.Now().UTC()
	vec := pgvector.NewVector([]float32{0.1, 0.2})

	doc, err := scanDocument(&stubRow{values: []any{
		"id-1", "Report", "body", "report", "/a.txt", []byte(`{"k":"v"}`), &vec, now, now,
	}})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, doc.Embedding)
	assert.Equal(t, "v", doc.Metadata["k"])

	// A NULL embedding column scans to a nil slice.
	doc, err = scanDocument(&stubRow{values: []any{
		"id-2", "Report", "body", "report", "", []byte(`{}`), (*pgvector.Vector)(nil), now, now,
	}})
	require.NoError(t, err)
	assert.Nil(t, doc.Embedding)
}

func TestVectorQueryDimensionMismatch(t *testing.T) {
	s := &Store{dimension: 3}
	_, err := s.VectorQuery(context.Background(), []float32{1, 0}, 0.1, 10, nil)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestMarshalMetadata(t *testing.T) {
	data, err := marshalMetadata(nil)
	assert.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	data, err = marshalMetadata(map[string]any{"k": "v"})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, string(data))
}
