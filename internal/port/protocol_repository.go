package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"docsign/internal/domain"
)

// ProtocolRepository defines the contract for verification protocol persistence.
// The store enforces uniqueness of protocol_code and at most one active
// protocol per document.
type ProtocolRepository interface {
	// Create stores p. It returns domain.ErrDuplicateProtocolCode when the code
	// is taken and domain.ErrActiveProtocolExists when the document already has
	// an active protocol.
	Create(ctx context.Context, p *domain.Protocol) error
	GetByCode(ctx context.Context, code string) (*domain.Protocol, error)
	GetActiveByDocument(ctx context.Context, documentID uuid.UUID) (*domain.Protocol, error)
	GetActiveByHash(ctx context.Context, documentHash string) (*domain.Protocol, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]domain.Protocol, error)
	// RecordVerification increments verification_count and sets last_verified_at
	// on an active protocol, returning the updated row.
	RecordVerification(ctx context.Context, code string, at time.Time) (*domain.Protocol, error)
	// TransitionStatus moves a protocol from one status to another. It returns
	// domain.ErrNotFound when no protocol with that code is in status from.
	TransitionStatus(ctx context.Context, code string, from, to domain.ProtocolStatus, metadata []byte) error
	// ExpireStale marks active protocols whose expires_at is not after now as expired.
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}
