package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"docsign/internal/domain"
	"docsign/internal/port"
)

// ProtocolRepo is an in-memory ProtocolRepository. Codes are unique across
// every protocol ever stored and each document has at most one active protocol.
type ProtocolRepo struct {
	mu     sync.RWMutex
	byCode map[string]*domain.Protocol
}

// NewProtocolRepo creates an empty ProtocolRepo.
func NewProtocolRepo() *ProtocolRepo {
	return &ProtocolRepo{byCode: make(map[string]*domain.Protocol)}
}

var _ port.ProtocolRepository = (*ProtocolRepo)(nil)

func (r *ProtocolRepo) Create(ctx context.Context, p *domain.Protocol) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byCode[p.Code]; ok {
		return domain.ErrDuplicateProtocolCode
	}
	if p.Status == domain.ProtocolActive {
		for _, existing := range r.byCode {
			if existing.DocumentID == p.DocumentID && existing.Status == domain.ProtocolActive {
				return domain.ErrActiveProtocolExists
			}
		}
	}
	c := cloneProtocol(p)
	r.byCode[p.Code] = &c
	onRollback(ctx, func() {
		r.mu.Lock()
		delete(r.byCode, c.Code)
		r.mu.Unlock()
	})
	return nil
}

func (r *ProtocolRepo) GetByCode(_ context.Context, code string) (*domain.Protocol, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byCode[code]
	if !ok {
		return nil, domain.ErrProtocolNotFound
	}
	c := cloneProtocol(p)
	return &c, nil
}

func (r *ProtocolRepo) GetActiveByDocument(_ context.Context, documentID uuid.UUID) (*domain.Protocol, error) {
	return r.findActive(func(p *domain.Protocol) bool { return p.DocumentID == documentID })
}

func (r *ProtocolRepo) GetActiveByHash(_ context.Context, documentHash string) (*domain.Protocol, error) {
	return r.findActive(func(p *domain.Protocol) bool { return p.DocumentHash == documentHash })
}

func (r *ProtocolRepo) findActive(match func(*domain.Protocol) bool) (*domain.Protocol, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *domain.Protocol
	for _, p := range r.byCode {
		if p.Status != domain.ProtocolActive || !match(p) {
			continue
		}
		if found == nil || p.CreatedAt.After(found.CreatedAt) {
			found = p
		}
	}
	if found == nil {
		return nil, domain.ErrProtocolNotFound
	}
	c := cloneProtocol(found)
	return &c, nil
}

func (r *ProtocolRepo) ListByDocument(_ context.Context, documentID uuid.UUID) ([]domain.Protocol, error) {
	r.mu.RLock()
	var out []domain.Protocol
	for _, p := range r.byCode {
		if p.DocumentID == documentID {
			out = append(out, cloneProtocol(p))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *ProtocolRepo) RecordVerification(ctx context.Context, code string, at time.Time) (*domain.Protocol, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byCode[code]
	if !ok || p.Status != domain.ProtocolActive {
		return nil, domain.ErrProtocolNotFound
	}
	prevLast := p.LastVerifiedAt
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		p.VerificationCount--
		if p.LastVerifiedAt != nil && p.LastVerifiedAt.Equal(at) {
			p.LastVerifiedAt = prevLast
		}
	})
	p.VerificationCount++
	t := at
	p.LastVerifiedAt = &t
	c := cloneProtocol(p)
	return &c, nil
}

func (r *ProtocolRepo) TransitionStatus(ctx context.Context, code string, from, to domain.ProtocolStatus, metadata []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byCode[code]
	if !ok || p.Status != from {
		return domain.ErrNotFound
	}
	prevMeta := p.Metadata
	onRollback(ctx, func() {
		r.mu.Lock()
		p.Status, p.Metadata = from, prevMeta
		r.mu.Unlock()
	})
	p.Status = to
	if len(metadata) > 0 {
		p.Metadata = append([]byte(nil), metadata...)
	}
	return nil
}

func (r *ProtocolRepo) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []*domain.Protocol
	for _, p := range r.byCode {
		if p.Status == domain.ProtocolActive && p.IsExpiredAt(now) {
			p.Status = domain.ProtocolExpired
			expired = append(expired, p)
		}
	}
	n := len(expired)
	if n > 0 {
		onRollback(ctx, func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for _, p := range expired {
				p.Status = domain.ProtocolActive
			}
		})
	}
	return n, nil
}

func cloneProtocol(p *domain.Protocol) domain.Protocol {
	c := *p
	c.Metadata = append([]byte(nil), p.Metadata...)
	if p.LastVerifiedAt != nil {
		t := *p.LastVerifiedAt
		c.LastVerifiedAt = &t
	}
	return c
}
