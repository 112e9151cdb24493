package port

import (
	"context"

	"github.com/google/uuid"

	"docsign/internal/domain"
)

// SignatureRepository defines the contract for signature record persistence.
type SignatureRepository interface {
	Create(ctx context.Context, rec *domain.SignatureRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SignatureRecord, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]domain.SignatureRecord, error)
	// Complete turns a pending record into a signed one.
	Complete(ctx context.Context, rec *domain.SignatureRecord) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SignatureStatus) error
}
