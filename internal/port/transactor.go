package port

import "context"

// Transactor runs a unit of work. Repository calls made with the context
// handed to fn join the unit, so either every write inside fn is kept or,
// when fn returns an error, none is. Nested calls join the outer unit.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
