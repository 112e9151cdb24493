// Package memory provides in-process implementations of the repository ports.
// They honor the same ordering and uniqueness contracts as the PostgreSQL
// repositories and back the memory database driver and end-to-end tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"docsign/internal/domain"
	"docsign/internal/port"
)

// AuditRepo is an append-only in-memory AuditRepository.
type AuditRepo struct {
	mu      sync.RWMutex
	seq     int64
	entries []domain.AuditEntry
	heads   map[uuid.UUID]string
}

// NewAuditRepo creates an empty AuditRepo.
func NewAuditRepo() *AuditRepo {
	return &AuditRepo{heads: make(map[uuid.UUID]string)}
}

var _ port.AuditRepository = (*AuditRepo)(nil)

func (r *AuditRepo) Append(ctx context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	entry.Seq = r.seq
	entry.Seal(r.heads[entry.DocumentID])
	r.heads[entry.DocumentID] = entry.EntryHash
	r.entries = append(r.entries, cloneEntry(entry))
	id := entry.ID
	onRollback(ctx, func() { r.remove(id) })
	return nil
}

// remove drops an entry written by a failed unit of work. Later entries of
// the same document are relinked so the chain stays verifiable; the sequence
// keeps its gap.
func (r *AuditRepo) remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i := range r.entries {
		if r.entries[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	documentID := r.entries[idx].DocumentID
	prev := r.entries[idx].PrevHash
	r.entries = append(r.entries[:idx], r.entries[idx+1:]...)
	for i := idx; i < len(r.entries); i++ {
		if r.entries[i].DocumentID == documentID {
			r.entries[i].Seal(prev)
			prev = r.entries[i].EntryHash
		}
	}
	if prev == "" {
		delete(r.heads, documentID)
	} else {
		r.heads[documentID] = prev
	}
}

func (r *AuditRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.entries {
		if r.entries[i].ID == id {
			e := cloneEntry(&r.entries[i])
			return &e, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *AuditRepo) Query(_ context.Context, f port.AuditFilter) ([]domain.AuditEntry, int, error) {
	r.mu.RLock()
	var matched []domain.AuditEntry
	for i := range r.entries {
		if matchesFilter(&r.entries[i], f) {
			matched = append(matched, cloneEntry(&r.entries[i]))
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].TsUnix != matched[j].TsUnix {
			return matched[i].TsUnix > matched[j].TsUnix
		}
		return matched[i].Seq > matched[j].Seq
	})

	total := len(matched)
	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return []domain.AuditEntry{}, total, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func matchesFilter(e *domain.AuditEntry, f port.AuditFilter) bool {
	if f.DocumentID != nil && e.DocumentID != *f.DocumentID {
		return false
	}
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if e.Action == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ActorType != "" && e.ActorType != f.ActorType {
		return false
	}
	if f.FromUnix > 0 && e.TsUnix < f.FromUnix {
		return false
	}
	if f.ToUnix > 0 && e.TsUnix > f.ToUnix {
		return false
	}
	return true
}

func (r *AuditRepo) ListChain(_ context.Context, documentID uuid.UUID) ([]domain.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var chain []domain.AuditEntry
	for i := range r.entries {
		if r.entries[i].DocumentID == documentID {
			chain = append(chain, cloneEntry(&r.entries[i]))
		}
	}
	return chain, nil
}

func (r *AuditRepo) CountByAction(_ context.Context, documentID uuid.UUID) (map[domain.AuditAction]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[domain.AuditAction]int)
	for i := range r.entries {
		if r.entries[i].DocumentID == documentID {
			counts[r.entries[i].Action]++
		}
	}
	return counts, nil
}

// cloneEntry copies e so callers never share the stored slices.
func cloneEntry(e *domain.AuditEntry) domain.AuditEntry {
	c := *e
	c.Details = append([]byte(nil), e.Details...)
	if e.CorrectsEntryID != nil {
		id := *e.CorrectsEntryID
		c.CorrectsEntryID = &id
	}
	return c
}
