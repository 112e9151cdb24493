package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"docsign/internal/domain"
	"docsign/internal/port"
)

// DocumentStore is an in-memory DocumentStore.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]*domain.Document
}

// NewDocumentStore creates an empty DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[uuid.UUID]*domain.Document)}
}

var _ port.DocumentStore = (*DocumentStore)(nil)

func (s *DocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	c := *doc
	s.docs[doc.ID] = &c
	onRollback(ctx, func() {
		s.mu.Lock()
		delete(s.docs, doc.ID)
		s.mu.Unlock()
	})
	return nil
}

func (s *DocumentStore) Get(_ context.Context, id uuid.UUID) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	c := *doc
	return &c, nil
}

func (s *DocumentStore) FindByHash(_ context.Context, contentHash string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.docs {
		if doc.ContentHash == contentHash {
			c := *doc
			return &c, nil
		}
	}
	return nil, domain.ErrDocumentNotFound
}

func (s *DocumentStore) UpdateHash(ctx context.Context, id uuid.UUID, contentHash, contentRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	prevHash, prevRef := doc.ContentHash, doc.ContentRef
	onRollback(ctx, func() {
		s.mu.Lock()
		doc.ContentHash, doc.ContentRef = prevHash, prevRef
		s.mu.Unlock()
	})
	doc.ContentHash = contentHash
	doc.ContentRef = contentRef
	return nil
}

func (s *DocumentStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DocumentStatus, finalizedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	prevStatus, prevFinalized := doc.Status, doc.FinalizedAt
	onRollback(ctx, func() {
		s.mu.Lock()
		doc.Status, doc.FinalizedAt = prevStatus, prevFinalized
		s.mu.Unlock()
	})
	doc.Status = status
	doc.FinalizedAt = finalizedAt
	return nil
}
