// Package memory keeps stored objects in process. It is selected when no S3
// bucket is configured.
package memory

import (
	"context"
	"crypto/md5" //nolint:gosec // ETag parity with S3, not a security hash
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"docsign/internal/domain"
	"docsign/internal/port"
)

// Storage is an in-memory ObjectStorage.
type Storage struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewStorage creates an empty Storage.
func NewStorage() *Storage {
	return &Storage{objects: make(map[string][]byte)}
}

var _ port.ObjectStorage = (*Storage)(nil)

func (s *Storage) Upload(_ context.Context, input port.UploadInput) (*port.UploadOutput, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, fmt.Errorf("memory upload read: %w", err)
	}
	s.mu.Lock()
	s.objects[input.Key] = data
	s.mu.Unlock()

	sum := md5.Sum(data) //nolint:gosec
	return &port.UploadOutput{
		Location: "memory://" + input.Key,
		ETag:     hex.EncodeToString(sum[:]),
	}, nil
}

func (s *Storage) Download(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *Storage) GetPresignedURL(_ context.Context, key string, _ int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.objects[key]; !ok {
		return "", domain.ErrNotFound
	}
	return "memory://" + key, nil
}
