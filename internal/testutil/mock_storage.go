// mock_storage.go - Mock dataset storage for testing
package testutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/covid-insights/backend/internal/dataset"
	"github.com/covid-insights/backend/internal/models"
)

// MockStorage implements storage.Store for testing. Payloads are kept in
// memory unless a test asks for a real file path, in which case they are
// spilled to a temp file on demand.
type MockStorage struct {
	mu       sync.RWMutex
	files    map[string]*models.DatasetInfo
	fileData map[string][]byte
	tempDir  string
	counter  atomic.Int64
}

// NewMockStorage creates a new mock storage.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.DatasetInfo),
		fileData: make(map[string][]byte),
		tempDir:  os.TempDir(),
	}
}

func (m *MockStorage) Save(name string, r io.Reader) (*models.DatasetInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return m.SaveBytes(name, data)
}

func (m *MockStorage) SaveBytes(name string, data []byte) (*models.DatasetInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := fmt.Sprintf("mock-%d", m.counter.Add(1))
	info := &models.DatasetInfo{
		ID:         id,
		Name:       name,
		Kind:       detectKind(data),
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
		Status:     "uploaded",
	}

	m.files[id] = info
	m.fileData[id] = data
	return info, nil
}

// AddFile registers a dataset under a fixed ID.
func (m *MockStorage) AddFile(id, name string, data []byte) *models.DatasetInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := &models.DatasetInfo{
		ID:         id,
		Name:       name,
		Kind:       detectKind(data),
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
		Status:     "uploaded",
	}
	m.files[id] = info
	m.fileData[id] = data
	return info
}

func (m *MockStorage) Get(id string) (*models.DatasetInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.files[id]
	if !ok {
		return nil, errors.New("dataset not found")
	}
	return info, nil
}

func (m *MockStorage) List(limit int) ([]*models.DatasetInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var list []*models.DatasetInfo
	for _, info := range m.files {
		list = append(list, info)
		if limit > 0 && len(list) >= limit {
			break
		}
	}
	return list, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[id]; !ok {
		return errors.New("dataset not found")
	}
	delete(m.files, id)
	delete(m.fileData, id)
	return nil
}

// GetFilePath spills the in-memory payload to a temp file and returns its
// path.
func (m *MockStorage) GetFilePath(id string) (string, error) {
	m.mu.RLock()
	data, ok := m.fileData[id]
	m.mu.RUnlock()
	if !ok {
		return "", errors.New("dataset not found")
	}

	path := filepath.Join(m.tempDir, "mockds_"+id)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func (m *MockStorage) SetStatus(id string, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.files[id]
	if !ok {
		return errors.New("dataset not found")
	}
	info.Status = status
	return nil
}

func detectKind(data []byte) models.DatasetKind {
	end := len(data)
	for i, b := range data {
		if b == '\n' {
			end = i
			break
		}
	}
	header := splitCSVHeader(string(data[:end]))
	return dataset.DetectKind(header)
}

func splitCSVHeader(line string) []string {
	var fields []string
	start := 0
	for i := 0; i <= len(line); i++ {
		if i == len(line) || line[i] == ',' {
			fields = append(fields, line[start:i])
			start = i + 1
		}
	}
	return fields
}
