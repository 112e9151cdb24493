package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"docsign/internal/domain"
	"docsign/internal/port"
)

// MockAuditRepo is a mock implementation of port.AuditRepository.
type MockAuditRepo struct {
	mock.Mock
}

func (m *MockAuditRepo) Append(ctx context.Context, entry *domain.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.AuditEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuditEntry), args.Error(1)
}

func (m *MockAuditRepo) Query(ctx context.Context, filter port.AuditFilter) ([]domain.AuditEntry, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.AuditEntry), args.Int(1), args.Error(2)
}

func (m *MockAuditRepo) ListChain(ctx context.Context, documentID uuid.UUID) ([]domain.AuditEntry, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AuditEntry), args.Error(1)
}

func (m *MockAuditRepo) CountByAction(ctx context.Context, documentID uuid.UUID) (map[domain.AuditAction]int, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.AuditAction]int), args.Error(1)
}
