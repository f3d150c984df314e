package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/armalogs/backend/internal/models"
)

// Store defines the interface for stored event tables.
type Store interface {
	Save(name string, r io.Reader) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(id string) error
	Rename(id string, newName string) (*models.FileInfo, error)
	GetFilePath(id string) (string, error)
	LoadEvents(id string) (models.EventStore, error)
	SaveChunk(uploadID string, chunkIndex int, r io.Reader) error
	CompleteChunkedUpload(uploadID string, name string, totalChunks int) (*models.FileInfo, error)
}

// LocalStore implements Store using the local filesystem. Files are kept as
// <id><ext>, where ext comes from the original name and selects the codec.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*models.FileInfo
	paths     map[string]string
	codecs    *Registry
}

// NewLocalStore creates a new LocalStore.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	return &LocalStore{
		uploadDir: uploadDir,
		files:     make(map[string]*models.FileInfo),
		paths:     make(map[string]string),
		codecs:    GetGlobalRegistry(),
	}, nil
}

// storedPath returns the on-disk path for a new file. Unknown extensions are
// rejected up front so every stored file can be loaded.
func (s *LocalStore) storedPath(id, name string) (string, error) {
	if _, err := s.codecs.FindCodec(name); err != nil {
		return "", err
	}
	return filepath.Join(s.uploadDir, id+strings.ToLower(filepath.Ext(name))), nil
}

func (s *LocalStore) register(id, name, path, status string, size int64) *models.FileInfo {
	info := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       size,
		UploadedAt: time.Now(),
		Status:     status,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info
	s.paths[id] = path

	return info
}

// Save stores an event table read from r.
func (s *LocalStore) Save(name string, r io.Reader) (*models.FileInfo, error) {
	id := uuid.New().String()
	path, err := s.storedPath(id, name)
	if err != nil {
		return nil, err
	}

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

	return s.register(id, name, path, "uploaded", size), nil
}

// SaveEvents encodes events with the codec for name and stores the result.
func (s *LocalStore) SaveEvents(name string, events models.EventStore) (*models.FileInfo, error) {
	id := uuid.New().String()
	path, err := s.storedPath(id, name)
	if err != nil {
		return nil, err
	}

	if err := s.codecs.Save(path, events); err != nil {
		os.Remove(path)
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat stored file: %w", err)
	}

	return s.register(id, name, path, "extracted", fi.Size()), nil
}

// Get retrieves file metadata by ID.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, id)
	}

	return info, nil
}

// List returns the most recent files.
func (s *LocalStore) List(limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.FileInfo, 0, len(s.files))
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

// Delete removes a file from storage.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, ok := s.paths[id]
	if !ok {
		return fmt.Errorf("%w: file %s", ErrNotFound, id)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	delete(s.paths, id)

	return nil
}

// Rename updates the display name of a file. The stored format stays the same.
func (s *LocalStore) Rename(id string, newName string) (*models.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, id)
	}

	info.Name = newName
	return info, nil
}

// GetFilePath returns the absolute path to a file.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, ok := s.paths[id]
	if !ok {
		return "", fmt.Errorf("%w: file %s", ErrNotFound, id)
	}

	return path, nil
}

// LoadEvents decodes the event table of a stored file.
func (s *LocalStore) LoadEvents(id string) (models.EventStore, error) {
	path, err := s.GetFilePath(id)
	if err != nil {
		return nil, err
	}
	return s.codecs.Load(path)
}

// SaveChunk saves a single chunk to a temporary location.
func (s *LocalStore) SaveChunk(uploadID string, chunkIndex int, r io.Reader) error {
	if _, err := uuid.Parse(uploadID); err != nil {
		return fmt.Errorf("invalid upload id %q", uploadID)
	}

	chunkDir := filepath.Join(s.uploadDir, "chunks", uploadID)
	if err := os.MkdirAll(chunkDir, 0755); err != nil {
		return fmt.Errorf("creating chunk directory: %w", err)
	}

	path := filepath.Join(chunkDir, fmt.Sprintf("chunk_%d", chunkIndex))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chunk file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("writing chunk: %w", err)
	}

	return nil
}

// CompleteChunkedUpload assembles all chunks into a final file.
func (s *LocalStore) CompleteChunkedUpload(uploadID string, name string, totalChunks int) (*models.FileInfo, error) {
	if _, err := uuid.Parse(uploadID); err != nil {
		return nil, fmt.Errorf("invalid upload id %q", uploadID)
	}

	id := uuid.New().String()
	finalPath, err := s.storedPath(id, name)
	if err != nil {
		return nil, err
	}
	chunkDir := filepath.Join(s.uploadDir, "chunks", uploadID)

	out, err := os.Create(finalPath)
	if err != nil {
		return nil, fmt.Errorf("creating final file: %w", err)
	}
	defer out.Close()

	var totalSize int64
	for i := 0; i < totalChunks; i++ {
		chunkPath := filepath.Join(chunkDir, fmt.Sprintf("chunk_%d", i))
		in, err := os.Open(chunkPath)
		if err != nil {
			os.Remove(finalPath)
			return nil, fmt.Errorf("opening chunk %d: %w", i, err)
		}

		n, err := io.Copy(out, in)
		in.Close()
		if err != nil {
			os.Remove(finalPath)
			return nil, fmt.Errorf("copying chunk %d: %w", i, err)
		}
		totalSize += n
	}

	info := s.register(id, name, finalPath, "uploaded", totalSize)

	os.RemoveAll(chunkDir)

	return info, nil
}
