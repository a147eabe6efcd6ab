package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage/memory"
)

type recordedEvent struct {
	Type, ID, UserID string
}

type fakePublisher struct {
	events []recordedEvent
	err    error
}

func (p *fakePublisher) PublishTransactionEvent(_ context.Context, eventType, id, userID string) error {
	p.events = append(p.events, recordedEvent{eventType, id, userID})
	return p.err
}

type failingStore struct {
	*memory.Store
}

func (failingStore) ListTransactions(context.Context, core.UserID) ([]core.Transaction, error) {
	return nil, errors.New("disk on fire")
}

func ptr(s string) *string { return &s }

func newTestService(t *testing.T) (*TransactionService, *memory.Store, *fakePublisher) {
	t.Helper()
	store := memory.New()
	pub := &fakePublisher{}
	svc := NewTransactionService(store, pub)

	clock := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("tx-%d", seq)
	}
	return svc, store, pub
}

func fields(desc, amount, kind, category, date string) core.Fields {
	return core.Fields{
		Description: ptr(desc),
		Amount:      ptr(amount),
		Type:        ptr(kind),
		Category:    ptr(category),
		Date:        ptr(date),
	}
}

func TestTransactionService_Create(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()

	got, err := svc.Create(ctx, "alice", fields("Salary", "1000", "income", "Work", "2024-01-15"))
	require.NoError(t, err)

	assert.Equal(t, "tx-1", got.ID)
	assert.Equal(t, core.UserID("alice"), got.UserID)
	assert.Equal(t, core.KindIncome, got.Type)
	assert.Equal(t, "1000", got.Amount.String())
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), got.Date)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, []recordedEvent{{amqp.EventCreated, "tx-1", "alice"}}, pub.events)
}

func TestTransactionService_CreateRequiresUser(t *testing.T) {
	svc, store, _ := newTestService(t)
	_, err := svc.Create(context.Background(), "  ", fields("Salary", "1000", "INCOME", "Work", "2024-01-15"))
	assert.ErrorIs(t, err, core.ErrAuthenticationRequired)
	assert.Zero(t, store.Len())
}

func TestTransactionService_CreateMissingFields(t *testing.T) {
	svc, store, pub := newTestService(t)

	f := fields("Salary", "", "INCOME", "Work", "2024-01-15")
	f.Date = nil

	_, err := svc.Create(context.Background(), "alice", f)
	require.ErrorIs(t, err, core.ErrValidation)

	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"amount", "date"}, ve.Missing)
	assert.Zero(t, store.Len(), "nothing must be persisted")
	assert.Empty(t, pub.events)
}

func TestTransactionService_CreateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		in   core.Fields
		want error
	}{
		{"unparsable amount", fields("x", "ten", "INCOME", "Work", "2024-01-15"), core.ErrInvalidAmount},
		{"unparsable date", fields("x", "10", "INCOME", "Work", "15/01/2024"), core.ErrInvalidDate},
		{"unknown type", fields("x", "10", "TRANSFER", "Work", "2024-01-15"), core.ErrInvalidKind},
		{"positive expense", fields("x", "10", "EXPENSE", "Food", "2024-01-15"), core.ErrSignMismatch},
		{"negative income", fields("x", "-10", "INCOME", "Work", "2024-01-15"), core.ErrSignMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newTestService(t)
			_, err := svc.Create(context.Background(), "alice", tt.in)
			assert.ErrorIs(t, err, core.ErrValidation)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, store.Len())
		})
	}
}

func TestTransactionService_CreateThenList(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "alice", fields("Rent", "-500", "EXPENSE", "Housing", "2024-01-01"))
	require.NoError(t, err)
	b, err := svc.Create(ctx, "alice", fields("Salary", "1000", "INCOME", "Work", "2024-01-31"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "bob", fields("Bonus", "20", "INCOME", "Work", "2024-02-01"))
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID, "newest date first")
	assert.Equal(t, a.ID, list[1].ID)
}

func TestTransactionService_TimestampsMatchStoredPrecision(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 987654321, time.UTC) }
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice", fields("Rent", "-500", "EXPENSE", "Housing", "2024-01-01T10:00:00.123456789Z"))
	require.NoError(t, err)
	assert.Equal(t, 123456000, created.Date.Nanosecond())
	assert.Equal(t, 987654000, created.CreatedAt.Nanosecond())

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created, list[0])
}

func TestTransactionService_LogsReadOperations(t *testing.T) {
	svc, _, _ := newTestService(t)
	var buf bytes.Buffer
	ctx := log.NewContext(context.Background(),
		log.New(log.Config{Output: &buf, JSON: true, Level: slog.LevelDebug}))

	_, err := svc.Create(ctx, "alice", fields("Rent", "-500", "EXPENSE", "Housing", "2024-01-01"))
	require.NoError(t, err)
	_, err = svc.Summary(ctx, "alice")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"operation":"list"`)
	assert.Contains(t, out, `"operation":"summary"`)
}

func TestTransactionService_ListRequiresUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.List(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrAuthenticationRequired)
}

func TestTransactionService_ListStoreFailure(t *testing.T) {
	svc := NewTransactionService(failingStore{memory.New()}, nil)
	_, err := svc.List(context.Background(), "alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrValidation)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestTransactionService_UpdateDescriptionOnly(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()

	orig, err := svc.Create(ctx, "alice", fields("Groceries", "-40.25", "EXPENSE", "Food", "2024-03-10"))
	require.NoError(t, err)

	got, err := svc.Update(ctx, "alice", orig.ID, core.Fields{Description: ptr("Groceries and wine")})
	require.NoError(t, err)

	assert.Equal(t, "Groceries and wine", got.Description)
	assert.True(t, orig.Amount.Equal(got.Amount))
	assert.Equal(t, orig.Date, got.Date)
	assert.Equal(t, orig.Type, got.Type)
	assert.Equal(t, orig.Category, got.Category)
	assert.Equal(t, orig.CreatedAt, got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(orig.UpdatedAt))

	stored, err := store.GetTransaction(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, "Groceries and wine", stored.Description)
	assert.Equal(t, amqp.EventUpdated, pub.events[len(pub.events)-1].Type)
}

func TestTransactionService_UpdateSwitchesTypeWithAmount(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	orig, err := svc.Create(ctx, "alice", fields("Refund", "-15", "EXPENSE", "Misc", "2024-03-10"))
	require.NoError(t, err)

	_, err = svc.Update(ctx, "alice", orig.ID, core.Fields{Type: ptr("INCOME")})
	assert.ErrorIs(t, err, core.ErrSignMismatch, "type alone would break the sign rule")

	got, err := svc.Update(ctx, "alice", orig.ID, core.Fields{Type: ptr("INCOME"), Amount: ptr("15")})
	require.NoError(t, err)
	assert.Equal(t, core.KindIncome, got.Type)
	assert.Equal(t, "15", got.Amount.String())
}

func TestTransactionService_UpdateBlankValueRejected(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	orig, err := svc.Create(ctx, "alice", fields("Coffee", "-3", "EXPENSE", "Food", "2024-03-10"))
	require.NoError(t, err)

	_, err = svc.Update(ctx, "alice", orig.ID, core.Fields{Amount: ptr(" ")})
	assert.ErrorIs(t, err, core.ErrValidation)

	stored, err := store.GetTransaction(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, "-3", stored.Amount.String())
}

func TestTransactionService_CrossUserDenied(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()

	orig, err := svc.Create(ctx, "alice", fields("Salary", "1000", "INCOME", "Work", "2024-01-15"))
	require.NoError(t, err)
	pub.events = nil

	_, err = svc.Update(ctx, "mallory", orig.ID, core.Fields{Description: ptr("mine now")})
	assert.ErrorIs(t, err, core.ErrAccessDenied)

	err = svc.Delete(ctx, "mallory", orig.ID)
	assert.ErrorIs(t, err, core.ErrAccessDenied)

	stored, err := store.GetTransaction(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, orig, stored, "record must be untouched")
	assert.Empty(t, pub.events)
}

func TestTransactionService_MissingRecordLooksLikeForeign(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "alice", "does-not-exist", core.Fields{Description: ptr("x")})
	assert.ErrorIs(t, err, core.ErrAccessDenied)
	assert.ErrorIs(t, svc.Delete(ctx, "alice", "does-not-exist"), core.ErrAccessDenied)
}

func TestTransactionService_UpdateDeleteRequireUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "", "tx-1", core.Fields{Description: ptr("x")})
	assert.ErrorIs(t, err, core.ErrAuthenticationRequired)
	assert.ErrorIs(t, svc.Delete(ctx, "", "tx-1"), core.ErrAuthenticationRequired)
}

func TestTransactionService_Delete(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()

	orig, err := svc.Create(ctx, "alice", fields("Salary", "1000", "INCOME", "Work", "2024-01-15"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "alice", orig.ID))
	assert.Zero(t, store.Len())
	assert.Equal(t, recordedEvent{amqp.EventDeleted, orig.ID, "alice"}, pub.events[len(pub.events)-1])

	assert.ErrorIs(t, svc.Delete(ctx, "alice", orig.ID), core.ErrAccessDenied)
}

func TestTransactionService_Summary(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", fields("Salary", "1000", "INCOME", "Work", "2024-01-31"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "alice", fields("Rent", "-500", "EXPENSE", "Housing", "2024-01-01"))
	require.NoError(t, err)

	sum, err := svc.Summary(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "1000", sum.TotalIncome.String())
	assert.Equal(t, "-500", sum.TotalExpense.String())
	assert.Equal(t, "500", sum.Balance.String())

	empty, err := svc.Summary(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, empty.Balance.IsZero())
	assert.True(t, empty.TotalIncome.IsZero())
	assert.True(t, empty.TotalExpense.IsZero())
}

func TestTransactionService_PublishFailureDoesNotFailWrite(t *testing.T) {
	svc, store, pub := newTestService(t)
	pub.err = errors.New("broker down")

	_, err := svc.Create(context.Background(), "alice", fields("Salary", "1000", "INCOME", "Work", "2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestTransactionService_NilPublisher(t *testing.T) {
	svc := NewTransactionService(memory.New(), nil)
	_, err := svc.Create(context.Background(), "alice", fields("Salary", "1000", "INCOME", "Work", "2024-01-15"))
	require.NoError(t, err)
	require.NoError(t, svc.Ping(context.Background()))
}

type fakeRecorder struct {
	ops       []string
	published int
	failed    int
}

func (r *fakeRecorder) TransactionCommitted(op string) { r.ops = append(r.ops, op) }

func (r *fakeRecorder) EventPublished(err error) {
	if err != nil {
		r.failed++
		return
	}
	r.published++
}

func TestTransactionService_RecordsCommittedWrites(t *testing.T) {
	svc, _, pub := newTestService(t)
	rec := &fakeRecorder{}
	svc.WithRecorder(rec)
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice", fields("Salary", "1000", "INCOME", "Work", "2024-01-15"))
	require.NoError(t, err)
	_, err = svc.Update(ctx, "bob", created.ID, core.Fields{Description: ptr("stolen")})
	require.ErrorIs(t, err, core.ErrAccessDenied)

	pub.err = errors.New("broker down")
	require.NoError(t, svc.Delete(ctx, "alice", created.ID))

	assert.Equal(t, []string{"create", "delete"}, rec.ops)
	assert.Equal(t, 1, rec.published)
	assert.Equal(t, 1, rec.failed)
}
