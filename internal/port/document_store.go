package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"docsign/internal/domain"
)

// DocumentStore is the document store. Signing only reads documents and
// writes their hash and status; Create exists for intake of new PDFs.
type DocumentStore interface {
	Create(ctx context.Context, doc *domain.Document) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Document, error)
	FindByHash(ctx context.Context, contentHash string) (*domain.Document, error)
	// UpdateHash records a new current version of the document: its hash and
	// the storage key of the bytes carrying it.
	UpdateHash(ctx context.Context, id uuid.UUID, contentHash, contentRef string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DocumentStatus, finalizedAt *time.Time) error
}
