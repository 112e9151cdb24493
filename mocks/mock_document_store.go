package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"docsign/internal/domain"
)

// MockDocumentStore is a mock implementation of port.DocumentStore.
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentStore) Get(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentStore) FindByHash(ctx context.Context, contentHash string) (*domain.Document, error) {
	args := m.Called(ctx, contentHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentStore) UpdateHash(ctx context.Context, id uuid.UUID, contentHash, contentRef string) error {
	args := m.Called(ctx, id, contentHash, contentRef)
	return args.Error(0)
}

func (m *MockDocumentStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DocumentStatus, finalizedAt *time.Time) error {
	args := m.Called(ctx, id, status, finalizedAt)
	return args.Error(0)
}
