package port

import (
	"context"

	"github.com/google/uuid"
)

// DocumentLocker serializes signing per document. Lock blocks until the lock
// is held or ctx is done; the returned function releases it.
type DocumentLocker interface {
	Lock(ctx context.Context, documentID uuid.UUID) (unlock func(), err error)
}
