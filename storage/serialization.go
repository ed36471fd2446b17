package storage

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/poiesic/corpus/core"
)

// storedDocument is the on-disk JSON shape of a document. Field names are
// stable; renaming one breaks existing databases.
type storedDocument struct {
	Id           string         `json:"id"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	DocumentType string         `json:"document_type"`
	SourceFile   string         `json:"source_file,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Embedding    []float32      `json:"embedding,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// MarshalDocument serializes a document for storage.
func MarshalDocument(doc *core.Document) ([]byte, error) {
	data, err := sonic.Marshal(&storedDocument{
		Id:           doc.Id,
		Title:        doc.Title,
		Content:      doc.Content,
		DocumentType: doc.DocumentType,
		SourceFile:   doc.SourceFile,
		Metadata:     doc.Metadata,
		Embedding:    doc.Embedding,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalDocument deserializes a stored document.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	var stored storedDocument
	if err := sonic.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &core.Document{
		Id:           stored.Id,
		Title:        stored.Title,
		Content:      stored.Content,
		DocumentType: stored.DocumentType,
		SourceFile:   stored.SourceFile,
		Metadata:     stored.Metadata,
		Embedding:    stored.Embedding,
		CreatedAt:    stored.CreatedAt,
		UpdatedAt:    stored.UpdatedAt,
	}, nil
}
