package domain

import "time"

type SourceStatus string

const (
	SourceUploaded   SourceStatus = "uploaded"
	SourceProcessing SourceStatus = "processing"
	SourceReady      SourceStatus = "ready"
	SourceFailed     SourceStatus = "failed"
)

// Source is a document feeding one domain collection.
type Source struct {
	ID          string       `json:"id"`
	Domain      string       `json:"domain"`
	Filename    string       `json:"filename"`
	StoragePath string       `json:"storage_path"`
	Status      SourceStatus `json:"status"`
	ChunkCount  int          `json:"chunk_count"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
