package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"docsign/internal/domain"
	"docsign/internal/port"
)

// SignatureRepo is an in-memory SignatureRepository.
type SignatureRepo struct {
	mu      sync.RWMutex
	records []*domain.SignatureRecord
}

// NewSignatureRepo creates an empty SignatureRepo.
func NewSignatureRepo() *SignatureRepo {
	return &SignatureRepo{}
}

var _ port.SignatureRepository = (*SignatureRepo)(nil)

func (r *SignatureRepo) Create(ctx context.Context, rec *domain.SignatureRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec.CreatedAt = time.Now().UTC()
	c := cloneRecord(rec)
	r.records = append(r.records, &c)
	onRollback(ctx, func() { r.remove(c.ID) })
	return nil
}

func (r *SignatureRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.SignatureRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rec := r.find(id); rec != nil {
		c := cloneRecord(rec)
		return &c, nil
	}
	return nil, domain.ErrNotFound
}

func (r *SignatureRepo) ListByDocument(_ context.Context, documentID uuid.UUID) ([]domain.SignatureRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.SignatureRecord
	for _, rec := range r.records {
		if rec.DocumentID == documentID {
			out = append(out, cloneRecord(rec))
		}
	}
	return out, nil
}

func (r *SignatureRepo) Complete(ctx context.Context, rec *domain.SignatureRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.find(rec.ID)
	if stored == nil || stored.Status != domain.SignatureStatusPending {
		return domain.ErrNotFound
	}
	r.keepForRollback(ctx, stored)
	createdAt, party, email := stored.CreatedAt, stored.SignerParty, stored.SignerEmail
	*stored = cloneRecord(rec)
	stored.CreatedAt = createdAt
	stored.SignerParty = party
	stored.SignerEmail = email
	stored.Status = domain.SignatureStatusSigned
	rec.Status = domain.SignatureStatusSigned
	return nil
}

func (r *SignatureRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SignatureStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.find(id)
	if rec == nil || rec.Status != domain.SignatureStatusPending {
		return domain.ErrNotFound
	}
	r.keepForRollback(ctx, rec)
	rec.Status = status
	return nil
}

// keepForRollback restores rec's current state if the unit of work fails.
func (r *SignatureRepo) keepForRollback(ctx context.Context, rec *domain.SignatureRecord) {
	prev := cloneRecord(rec)
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if stored := r.find(prev.ID); stored != nil {
			*stored = prev
		}
	})
}

func (r *SignatureRepo) remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rec := range r.records {
		if rec.ID == id {
			r.records = append(r.records[:i], r.records[i+1:]...)
			return
		}
	}
}

func (r *SignatureRepo) find(id uuid.UUID) *domain.SignatureRecord {
	for _, rec := range r.records {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

func cloneRecord(rec *domain.SignatureRecord) domain.SignatureRecord {
	c := *rec
	c.Evidence = append([]byte(nil), rec.Evidence...)
	if rec.SignedAt != nil {
		t := *rec.SignedAt
		c.SignedAt = &t
	}
	return c
}
