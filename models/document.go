package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus tracks a document through ingestion
type DocumentStatus string

const (
	DocumentStatusPending DocumentStatus = "pending"
	DocumentStatusReady   DocumentStatus = "ready"
)

// Document is an ingested medical document with its embedding.
// Only ready documents are visible to similarity search.
type Document struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	UserID      string          `json:"user_id" db:"user_id"`
	Filename    string          `json:"filename" db:"filename"`
	Content     string          `json:"content" db:"content"`
	Metadata    json.RawMessage `json:"metadata" db:"metadata"`
	Embedding   []float32       `json:"-" db:"embedding"`
	StoragePath string          `json:"storage_path" db:"storage_path"`
	Status      DocumentStatus  `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Document model
func (Document) TableName() string {
	return "documents"
}

// NewDocument creates a pending document owned by userID
func NewDocument(userID, filename, content string, embedding []float32) *Document {
	return &Document{
		ID:        uuid.New(),
		UserID:    userID,
		Filename:  filename,
		Content:   content,
		Metadata:  json.RawMessage("{}"),
		Embedding: embedding,
		Status:    DocumentStatusPending,
		CreatedAt: time.Now(),
	}
}

// WithMetadata sets the metadata as JSON
func (d *Document) WithMetadata(metadata map[string]interface{}) (*Document, error) {
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	d.Metadata = data
	return d, nil
}

// DocumentMatch is one similarity search hit
type DocumentMatch struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	Filename   string          `json:"filename" db:"filename"`
	Content    string          `json:"content" db:"content"`
	Metadata   json.RawMessage `json:"metadata" db:"metadata"`
	Similarity float64         `json:"similarity" db:"similarity"`
}
