package port

import (
	"context"

	"github.com/google/uuid"

	"docsign/internal/domain"
)

// AuditFilter selects audit entries. Exactly one of DocumentID or ActorID is
// normally set; the remaining fields narrow the result.
type AuditFilter struct {
	DocumentID *uuid.UUID
	ActorID    string
	Actions    []domain.AuditAction
	ActorType  domain.ActorType
	FromUnix   int64
	ToUnix     int64
	Offset     int
	Limit      int
}

// AuditRepository defines the contract for append-only audit log persistence.
// Implementations never update or delete rows.
type AuditRepository interface {
	// Append seals entry onto the document's hash chain and stores it. Reading
	// the previous hash and inserting must be atomic per document.
	Append(ctx context.Context, entry *domain.AuditEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AuditEntry, error)
	// Query returns matching entries ordered by ts_unix descending, plus the total count.
	Query(ctx context.Context, filter AuditFilter) ([]domain.AuditEntry, int, error)
	// ListChain returns every entry of a document in append order.
	ListChain(ctx context.Context, documentID uuid.UUID) ([]domain.AuditEntry, error)
	CountByAction(ctx context.Context, documentID uuid.UUID) (map[domain.AuditAction]int, error)
}
