// Package storage keeps uploaded dataset files on the local filesystem and
// tracks their metadata, including which of the two input schemas each file
// holds.
package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/covid-insights/backend/internal/dataset"
	"github.com/covid-insights/backend/internal/models"
)

// Store defines the interface for dataset file storage.
type Store interface {
	Save(name string, r io.Reader) (*models.DatasetInfo, error)
	SaveBytes(name string, data []byte) (*models.DatasetInfo, error)
	Get(id string) (*models.DatasetInfo, error)
	List(limit int) ([]*models.DatasetInfo, error)
	Delete(id string) error
	GetFilePath(id string) (string, error)
	SetStatus(id string, status string) error
}

// LocalStore implements Store using the local filesystem.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*models.DatasetInfo
}

// NewLocalStore creates a new LocalStore rooted at uploadDir.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &LocalStore{
		uploadDir: uploadDir,
		files:     make(map[string]*models.DatasetInfo),
	}, nil
}

// Save saves a dataset file and sniffs its schema kind from the header row.
func (s *LocalStore) Save(name string, r io.Reader) (*models.DatasetInfo, error) {
	id := uuid.New().String()
	path := filepath.Join(s.uploadDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	kind, err := dataset.DetectFileKind(path)
	if err != nil {
		kind = models.DatasetKindUnknown
	}

	info := &models.DatasetInfo{
		ID:         id,
		Name:       name,
		Kind:       kind,
		Size:       size,
		UploadedAt: time.Now(),
		Status:     "uploaded",
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info

	return info, nil
}

// SaveBytes saves an in-memory dataset payload.
func (s *LocalStore) SaveBytes(name string, data []byte) (*models.DatasetInfo, error) {
	return s.Save(name, bytes.NewReader(data))
}

// Get retrieves dataset metadata by ID.
func (s *LocalStore) Get(id string) (*models.DatasetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("dataset not found: %s", id)
	}
	return info, nil
}

// List returns the most recently uploaded datasets.
func (s *LocalStore) List(limit int) ([]*models.DatasetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.DatasetInfo
	for _, info := range s.files {
		list = append(list, info)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Delete removes a dataset from storage.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("dataset not found: %s", id)
	}

	path := filepath.Join(s.uploadDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return nil
}

// GetFilePath returns the absolute path to a dataset file.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[id]; !ok {
		return "", fmt.Errorf("dataset not found: %s", id)
	}
	return filepath.Join(s.uploadDir, id), nil
}

// SetStatus updates a dataset's lifecycle status.
func (s *LocalStore) SetStatus(id string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return fmt.Errorf("dataset not found: %s", id)
	}
	info.Status = status
	return nil
}
