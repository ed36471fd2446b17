package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/corpus/core"
)

func TestMarshalDocument_RoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	doc := &core.Document{
		Id:           "0c7e7a5e-1111-4d4d-9f9f-aaaaaaaaaaaa",
		Title:        "Quarterly Report",
		Content:      "Revenue grew.",
		DocumentType: "report",
		SourceFile:   "/docs/q1.txt",
		Metadata:     map[string]any{"content_hash": "abc", "word_count": float64(2)},
		Embedding:    []float32{0.1, 0.2, 0.3},
		CreatedAt:    created,
		UpdatedAt:    created,
	}

	data, err := MarshalDocument(doc)
	require.NoError(t, err)

	got, err := UnmarshalDocument(data)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestUnmarshalDocument_Invalid(t *testing.T) {
	_, err := UnmarshalDocument([]byte("{broken"))
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
