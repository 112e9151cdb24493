// Package lock implements the per-document signing lock.
package lock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"docsign/internal/port"
)

// Local serializes signing per document inside one process.
type Local struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an in-process DocumentLocker.
func NewLocal() *Local {
	return &Local{slots: make(map[uuid.UUID]*slot)}
}

var _ port.DocumentLocker = (*Local)(nil)

// Lock blocks until the document's lock is free or ctx is done.
func (l *Local) Lock(ctx context.Context, documentID uuid.UUID) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[documentID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[documentID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(documentID, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(documentID, s)
		})
	}, nil
}

func (l *Local) release(documentID uuid.UUID, s *slot) {
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, documentID)
	}
	l.mu.Unlock()
}
