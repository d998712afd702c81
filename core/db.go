package core

import (
	"context"
	"time"
)

// Transactor runs fn inside a single unit of work. Repositories called with the ctx handed to fn share it.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// WithDBTimeout bounds a storage call when the caller did not set a deadline.
func WithDBTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
