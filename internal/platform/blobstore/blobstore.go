// Package blobstore stores user files: telemedicine visit attachments and
// data exports. Every blob belongs to one owner and is only reachable
// through that owner's id.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
	ErrMissingOwner       = errors.New("owner is required")
)

// MaxFileSize is the maximum allowed blob size in bytes (25 MB).
const MaxFileSize = 25 * 1024 * 1024

const (
	CategoryAttachment = "visit-attachment"
	CategoryExport     = "export"
	CategoryLabReport  = "lab-report"
	CategoryOther      = "other"
)

var AllowedCategories = map[string]bool{
	CategoryAttachment: true,
	CategoryExport:     true,
	CategoryLabReport:  true,
	CategoryOther:      true,
}

var AllowedContentTypes = map[string]bool{
	"image/png":        true,
	"image/jpeg":       true,
	"application/pdf":  true,
	"text/plain":       true,
	"text/csv":         true,
	"application/json": true,
}

// BlobMetadata describes a stored blob.
type BlobMetadata struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	FileName      string    `json:"file_name"`
	ContentType   string    `json:"content_type"`
	Size          int64     `json:"size"`
	Category      string    `json:"category"`
	AppointmentID string    `json:"appointment_id,omitempty"`
	Hash          string    `json:"hash"`
	CreatedAt     time.Time `json:"created_at"`
}

type BlobStore interface {
	Upload(ctx context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error)
	Download(ctx context.Context, ownerID, id string) (io.ReadCloser, *BlobMetadata, error)
	Delete(ctx context.Context, ownerID, id string) error
	GetMetadata(ctx context.Context, ownerID, id string) (*BlobMetadata, error)
	// ListByOwner returns the owner's blobs, newest first, optionally
	// narrowed to one category and/or appointment.
	ListByOwner(ctx context.Context, ownerID, category, appointmentID string) ([]*BlobMetadata, error)
}

// prepare validates meta, reads the content and fills the derived fields.
func prepare(meta BlobMetadata, content io.Reader) (BlobMetadata, []byte, error) {
	if meta.OwnerID == "" {
		return meta, nil, ErrMissingOwner
	}
	if meta.FileName == "" {
		return meta, nil, ErrMissingFileName
	}
	if !AllowedContentTypes[meta.ContentType] {
		return meta, nil, fmt.Errorf("%w: %q", ErrInvalidContentType, meta.ContentType)
	}
	if meta.Category == "" || !AllowedCategories[meta.Category] {
		meta.Category = CategoryOther
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return meta, nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return meta, nil, ErrFileTooLarge
	}

	h := sha256.Sum256(data)
	meta.ID = uuid.New().String()
	meta.Size = int64(len(data))
	meta.Hash = fmt.Sprintf("%x", h)
	meta.CreatedAt = time.Now().UTC()
	return meta, data, nil
}

func matches(m *BlobMetadata, category, appointmentID string) bool {
	if category != "" && m.Category != category {
		return false
	}
	if appointmentID != "" && m.AppointmentID != appointmentID {
		return false
	}
	return true
}

func sortNewestFirst(items []*BlobMetadata) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

type storedBlob struct {
	metadata BlobMetadata
	content  []byte
}

// InMemoryBlobStore is a thread-safe BlobStore used in demo mode and tests.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
}

func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{blobs: make(map[string]*storedBlob)}
}

func (s *InMemoryBlobStore) Upload(_ context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	meta, data, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.blobs[meta.ID] = &storedBlob{metadata: meta, content: data}
	s.mu.Unlock()

	out := meta
	return &out, nil
}

func (s *InMemoryBlobStore) lookup(ownerID, id string) (*storedBlob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[id]
	if !ok || blob.metadata.OwnerID != ownerID {
		return nil, ErrBlobNotFound
	}
	return blob, nil
}

func (s *InMemoryBlobStore) Download(_ context.Context, ownerID, id string) (io.ReadCloser, *BlobMetadata, error) {
	blob, err := s.lookup(ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	meta := blob.metadata
	return io.NopCloser(bytes.NewReader(blob.content)), &meta, nil
}

func (s *InMemoryBlobStore) Delete(_ context.Context, ownerID, id string) error {
	if _, err := s.lookup(ownerID, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.blobs, id)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryBlobStore) GetMetadata(_ context.Context, ownerID, id string) (*BlobMetadata, error) {
	blob, err := s.lookup(ownerID, id)
	if err != nil {
		return nil, err
	}
	meta := blob.metadata
	return &meta, nil
}

func (s *InMemoryBlobStore) ListByOwner(_ context.Context, ownerID, category, appointmentID string) ([]*BlobMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*BlobMetadata{}
	for _, b := range s.blobs {
		if b.metadata.OwnerID != ownerID || !matches(&b.metadata, category, appointmentID) {
			continue
		}
		m := b.metadata
		out = append(out, &m)
	}
	sortNewestFirst(out)
	return out, nil
}
