package memory

import (
	"context"
	"sync"

	"docsign/internal/port"
)

type journalKey struct{}

// journal collects the undo steps of one unit of work in the order the
// writes happened.
type journal struct {
	undo []func()
}

// Transactor gives the in-memory repositories all-or-nothing units of work.
// Every write made inside WithinTx registers an undo step; when fn fails the
// steps run in reverse. Units are serialized against each other.
type Transactor struct {
	mu sync.Mutex
}

// NewTransactor creates a Transactor.
func NewTransactor() *Transactor {
	return &Transactor{}
}

var _ port.Transactor = (*Transactor)(nil)

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		return err
	}
	return nil
}

// onRollback registers undo with the unit of work carried by ctx. Outside a
// unit the write is final and undo is dropped.
func onRollback(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}
