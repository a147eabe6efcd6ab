package storage

import (
	"context"

	"fintrack/internal/core"
)

// Store is the durable transaction record storage. Implementations return
// core.ErrNotFound when no record matches an id.
type Store interface {
	CreateTransaction(ctx context.Context, t core.Transaction) error
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	// ListTransactions returns every transaction owned by user, most recent
	// date first; records sharing a date are ordered by creation time, newest first.
	ListTransactions(ctx context.Context, user core.UserID) ([]core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}
