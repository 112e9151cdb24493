package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"docsign/internal/domain"
	"docsign/internal/port"
	"docsign/internal/service"
)

// MockAuditLog is a mock implementation of service.AuditLog.
type MockAuditLog struct {
	mock.Mock
}

func (m *MockAuditLog) Log(ctx context.Context, documentID uuid.UUID, action domain.AuditAction, actor service.Actor, detail service.AuditDetail) (uuid.UUID, error) {
	args := m.Called(ctx, documentID, action, actor, detail)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockAuditLog) Correct(ctx context.Context, entryID uuid.UUID, actor service.Actor, detail service.AuditDetail) (uuid.UUID, error) {
	args := m.Called(ctx, entryID, actor, detail)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockAuditLog) Query(ctx context.Context, filter port.AuditFilter) (*service.AuditPage, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuditPage), args.Error(1)
}

func (m *MockAuditLog) VerifyChain(ctx context.Context, documentID uuid.UUID) (*service.ChainReport, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChainReport), args.Error(1)
}

func (m *MockAuditLog) Stats(ctx context.Context, documentID uuid.UUID) (map[domain.AuditAction]int, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.AuditAction]int), args.Error(1)
}

func (m *MockAuditLog) Export(ctx context.Context, documentID uuid.UUID, format service.ExportFormat) ([]byte, error) {
	args := m.Called(ctx, documentID, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
