package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// EventPublisher announces committed writes. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, eventType, id, userID string) error
}

// Recorder observes committed writes and publish attempts. *metrics.Metrics satisfies it.
type Recorder interface {
	TransactionCommitted(op string)
	EventPublished(err error)
}

// TransactionService enforces ownership and validation around the store.
// Every operation takes the authenticated user explicitly.
type TransactionService struct {
	store    storage.Store
	events   EventPublisher
	recorder Recorder

	now   func() time.Time
	newID func() string
}

// NewTransactionService wires a store and an optional event publisher (nil disables events).
func NewTransactionService(store storage.Store, events EventPublisher) *TransactionService {
	return &TransactionService{
		store:  store,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// WithRecorder attaches r to s and returns s.
func (s *TransactionService) WithRecorder(r Recorder) *TransactionService {
	s.recorder = r
	return s
}

// List returns the user's transactions, most recent date first.
func (s *TransactionService) List(ctx context.Context, user core.UserID) ([]core.Transaction, error) {
	if user.IsZero() {
		return nil, core.ErrAuthenticationRequired
	}
	txs, err := s.store.ListTransactions(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	s.logRead(ctx, log.OpList, user, len(txs))
	return txs, nil
}

// Create validates fields, assigns a fresh id and persists the record.
// All five fields are required; nothing is written when any is missing.
func (s *TransactionService) Create(ctx context.Context, user core.UserID, f core.Fields) (core.Transaction, error) {
	if user.IsZero() {
		return core.Transaction{}, core.ErrAuthenticationRequired
	}
	if missing := f.Missing(); len(missing) > 0 {
		return core.Transaction{}, &core.ValidationError{Op: "create", Missing: missing}
	}

	now := s.now().Truncate(core.TimePrecision)
	t, err := f.Apply(core.Transaction{
		ID:        s.newID(),
		UserID:    user,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return core.Transaction{}, &core.ValidationError{Op: "create", Err: err}
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, &core.ValidationError{Op: "create", Err: err}
	}

	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.committed(ctx, log.OpCreate, amqp.EventCreated, t)
	return t, nil
}

// Update applies the present fields of patch to a transaction the user owns.
func (s *TransactionService) Update(ctx context.Context, user core.UserID, id string, patch core.Fields) (core.Transaction, error) {
	current, err := s.owned(ctx, user, id)
	if err != nil {
		return core.Transaction{}, err
	}

	t, err := patch.Apply(current)
	if err != nil {
		return core.Transaction{}, &core.ValidationError{Op: "update", Err: err}
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, &core.ValidationError{Op: "update", Err: err}
	}
	t.UpdatedAt = s.now().Truncate(core.TimePrecision)

	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Transaction{}, core.ErrAccessDenied
		}
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	s.committed(ctx, log.OpUpdate, amqp.EventUpdated, t)
	return t, nil
}

// Delete permanently removes a transaction the user owns.
func (s *TransactionService) Delete(ctx context.Context, user core.UserID, id string) error {
	t, err := s.owned(ctx, user, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.ErrAccessDenied
		}
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.committed(ctx, log.OpDelete, amqp.EventDeleted, t)
	return nil
}

// Summary aggregates every transaction the user owns.
func (s *TransactionService) Summary(ctx context.Context, user core.UserID) (core.Summary, error) {
	txs, err := s.List(ctx, user)
	if err != nil {
		return core.Summary{}, err
	}
	s.logRead(ctx, log.OpSummary, user, len(txs))
	return core.Aggregate(txs), nil
}

func (s *TransactionService) logRead(ctx context.Context, op string, user core.UserID, n int) {
	log.FromContext(ctx).WithComponent(log.ComponentTransaction).
		DebugContext(ctx, "Transactions read", log.FieldOperation, op, log.FieldUserID, string(user), "count", n)
}

// Ping reports whether the store is reachable.
func (s *TransactionService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// owned loads id and checks that user owns it. A missing record and a
// foreign record both yield ErrAccessDenied.
func (s *TransactionService) owned(ctx context.Context, user core.UserID, id string) (core.Transaction, error) {
	if user.IsZero() {
		return core.Transaction{}, core.ErrAuthenticationRequired
	}
	t, err := s.store.GetTransaction(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.Transaction{}, core.ErrAccessDenied
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load transaction: %w", err)
	}
	if t.UserID != user {
		slog.WarnContext(ctx, "Rejected access to foreign transaction", "id", id, "user_id", user)
		return core.Transaction{}, core.ErrAccessDenied
	}
	return t, nil
}

// committed logs a finished write and announces it. Publishing is best effort.
func (s *TransactionService) committed(ctx context.Context, op, eventType string, t core.Transaction) {
	log.NewStructuredLogger(log.FromContext(ctx)).
		LogTransactionChange(ctx, op, t.ID, string(t.UserID), string(t.Type), t.Category)
	if s.recorder != nil {
		s.recorder.TransactionCommitted(op)
	}

	if s.events == nil {
		return
	}
	err := s.events.PublishTransactionEvent(ctx, eventType, t.ID, string(t.UserID))
	if s.recorder != nil {
		s.recorder.EventPublished(err)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event", "type", eventType, "id", t.ID, "error", err)
	}
}
