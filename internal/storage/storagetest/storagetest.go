// Package storagetest holds behaviour checks shared by every storage.Store
// implementation.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Run exercises store through create, read, list ordering, update and delete.
// newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Helper()

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		want := Fixture("tx-1", "alice", "Salary", "1000.50", core.KindIncome, day(2024, 1, 15))

		require.NoError(t, s.CreateTransaction(ctx, want))

		got, err := s.GetTransaction(ctx, "tx-1")
		require.NoError(t, err)
		assertSame(t, want, got)
	})

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetTransaction(context.Background(), "nope")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("list filters by owner and orders newest first", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		older := Fixture("a", "alice", "Rent", "-500", core.KindExpense, day(2024, 1, 1))
		newer := Fixture("b", "alice", "Salary", "1000", core.KindIncome, day(2024, 2, 1))
		sameDayFirst := Fixture("c", "alice", "Coffee", "-3.20", core.KindExpense, day(2024, 1, 1))
		sameDayFirst.CreatedAt = older.CreatedAt.Add(time.Minute)
		sameDayFirst.UpdatedAt = sameDayFirst.CreatedAt
		other := Fixture("d", "bob", "Bonus", "50", core.KindIncome, day(2024, 3, 1))

		for _, tx := range []core.Transaction{older, newer, sameDayFirst, other} {
			require.NoError(t, s.CreateTransaction(ctx, tx))
		}

		got, err := s.ListTransactions(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "b", got[0].ID)
		assert.Equal(t, "c", got[1].ID)
		assert.Equal(t, "a", got[2].ID)

		none, err := s.ListTransactions(ctx, "carol")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("update replaces mutable fields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		tx := Fixture("u1", "alice", "Groceries", "-40", core.KindExpense, day(2024, 4, 2))
		require.NoError(t, s.CreateTransaction(ctx, tx))

		tx.Description = "Groceries and wine"
		tx.Amount = decimal.RequireFromString("-55.75")
		tx.Category = "Food"
		tx.Date = day(2024, 4, 3)
		tx.UpdatedAt = tx.UpdatedAt.Add(time.Hour)
		require.NoError(t, s.UpdateTransaction(ctx, tx))

		got, err := s.GetTransaction(ctx, "u1")
		require.NoError(t, err)
		assertSame(t, tx, got)
	})

	t.Run("update missing", func(t *testing.T) {
		s := newStore(t)
		tx := Fixture("ghost", "alice", "x", "1", core.KindIncome, day(2024, 1, 1))
		assert.ErrorIs(t, s.UpdateTransaction(context.Background(), tx), core.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.CreateTransaction(ctx, Fixture("del", "alice", "x", "1", core.KindIncome, day(2024, 1, 1))))

		require.NoError(t, s.DeleteTransaction(ctx, "del"))
		_, err := s.GetTransaction(ctx, "del")
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.ErrorIs(t, s.DeleteTransaction(ctx, "del"), core.ErrNotFound)
	})

	t.Run("keeps microsecond timestamps", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		tx := Fixture("micro", "alice", "Lunch", "-12.40", core.KindExpense,
			time.Date(2024, 2, 3, 12, 15, 30, 123456000, time.UTC))
		tx.CreatedAt = tx.CreatedAt.Add(654321 * time.Microsecond)
		tx.UpdatedAt = tx.CreatedAt
		require.NoError(t, s.CreateTransaction(ctx, tx))

		got, err := s.ListTransactions(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assertSame(t, tx, got[0])
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newStore(t).Ping(context.Background()))
	})
}

// Fixture builds a transaction with fixed creation timestamps.
func Fixture(id, user, desc, amount string, kind core.Kind, date time.Time) core.Transaction {
	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	return core.Transaction{
		ID:          id,
		UserID:      core.UserID(user),
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
		Date:        date,
		Type:        kind,
		Category:    "General",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func assertSame(t *testing.T, want, got core.Transaction) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, want.Description, got.Description)
	assert.True(t, want.Amount.Equal(got.Amount), "amount: want %s got %s", want.Amount, got.Amount)
	assert.True(t, want.Date.Equal(got.Date), "date: want %s got %s", want.Date, got.Date)
	assert.Equal(t, want.Type, got.Type)
	assert.Equal(t, want.Category, got.Category)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at: want %s got %s", want.CreatedAt, got.CreatedAt)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updated_at: want %s got %s", want.UpdatedAt, got.UpdatedAt)
}
