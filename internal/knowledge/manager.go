package knowledge

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/trustflow-labs/trustflow/internal/api"
)

// Status is a document's position in the ingest pipeline.
type Status string

const (
	StatusUploading Status = "uploading"
	StatusParsing   Status = "parsing"
	StatusReady     Status = "ready"
	StatusFailed    Status = "failed"
)

// Document is the client-side shape of a knowledge-base record. Backend
// field names differ (doc_id, file_name, upload_time); fromRecord is the
// one place that mapping lives, so wire shapes never leak into the UI.
type Document struct {
	ID         int64
	Filename   string
	FileType   string
	FileSize   int64
	Status     Status
	Progress   int
	Hash       string
	TxHash     string
	ChunkCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Anchored reports whether the document has been registered on chain.
func (d Document) Anchored() bool {
	return d.TxHash != ""
}

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".doc":  true,
	".docx": true,
	".md":   true,
}

// Backend is the slice of the API client the manager needs.
type Backend interface {
	ListDocuments(ctx context.Context) ([]api.DocumentRecord, error)
	UploadDocument(ctx context.Context, filename string, content io.Reader) (*api.UploadResponse, error)
	DeleteDocument(ctx context.Context, docID int64) error
}

// Manager drives the knowledge-base document lifecycle.
type Manager struct {
	backend Backend
	logger  *log.Logger
}

// NewManager builds a manager over the given backend.
func NewManager(backend Backend, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{backend: backend, logger: logger}
}

// List fetches all documents, mapped into the client shape.
func (m *Manager) List(ctx context.Context) ([]Document, error) {
	records, err := m.backend.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	docs := make([]Document, len(records))
	for i, record := range records {
		docs[i] = fromRecord(record)
	}
	return docs, nil
}

// Upload validates the file locally and streams it to the backend. Missing
// files and unsupported types fail before any network round-trip.
func (m *Manager) Upload(ctx context.Context, path string) (*api.UploadResponse, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("knowledge: unsupported file type %q", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("knowledge: open %s: %w", path, err)
	}
	defer f.Close()

	resp, err := m.backend.UploadDocument(ctx, filepath.Base(path), f)
	if err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}
	m.logger.Info("document uploaded", "file_id", resp.FileID, "filename", resp.FileName)
	return resp, nil
}

// Delete removes a document by id. Deletion is a backend operation; the
// caller re-lists afterwards.
func (m *Manager) Delete(ctx context.Context, docID int64) error {
	if err := m.backend.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("delete document %d: %w", docID, err)
	}
	m.logger.Info("document deleted", "doc_id", docID)
	return nil
}

// fromRecord maps the wire record onto the client Document.
func fromRecord(record api.DocumentRecord) Document {
	status := Status(record.Status)
	switch status {
	case StatusUploading, StatusParsing, StatusReady, StatusFailed:
	default:
		// Unknown states render as failed rather than crashing the view.
		status = StatusFailed
	}
	return Document{
		ID:         record.DocID,
		Filename:   record.FileName,
		FileType:   record.FileType,
		FileSize:   record.FileSize,
		Status:     status,
		Progress:   record.Progress,
		Hash:       record.Hash,
		TxHash:     record.TxHash,
		ChunkCount: record.ChunkCount,
		CreatedAt:  record.UploadTime.Time,
		UpdatedAt:  record.UpdateTime.Time,
	}
}
