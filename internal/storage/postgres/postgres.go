// Package postgres implements the transaction store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const selectColumns = `id, user_id, description, amount::text, date, type, category, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository connects to databaseURL, applies pending migrations and
// returns a ready repository.
func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// RunMigrations brings the database at databaseURL to the latest schema.
func RunMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("create pgx driver: %w", err)
	}
	_, err = storage.MigrateUp(migrationsFS, "migrations", "pgx5", driver)
	return err
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// truncate drops the sub-microsecond part TIMESTAMPTZ cannot hold.
func truncate(t core.Transaction) core.Transaction {
	t.Date = t.Date.Truncate(core.TimePrecision)
	t.CreatedAt = t.CreatedAt.Truncate(core.TimePrecision)
	t.UpdatedAt = t.UpdatedAt.Truncate(core.TimePrecision)
	return t
}

func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	t = truncate(t)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transactions (id, user_id, description, amount, date, type, category, created_at, updated_at)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8, $9)`,
		t.ID, string(t.UserID), t.Description, t.Amount.String(), t.Date, string(t.Type), t.Category, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	log.FromContext(ctx).WithComponent(log.ComponentStorage).
		DebugContext(ctx, "Transaction saved to Postgres", log.FieldTxID, t.ID, log.FieldUserID, string(t.UserID))
	return nil
}

func (r *Repository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction by id: %w", err)
	}
	return t, nil
}

func (r *Repository) ListTransactions(ctx context.Context, user core.UserID) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+selectColumns+`
		FROM transactions
		WHERE user_id = $1
		ORDER BY date DESC, created_at DESC`, string(user))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]core.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	t = truncate(t)
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions
		SET description = $1, amount = $2::text::numeric, date = $3, type = $4, category = $5, updated_at = $6
		WHERE id = $7`,
		t.Description, t.Amount.String(), t.Date, string(t.Type), t.Category, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		t                    core.Transaction
		userID, amount, kind string
	)
	if err := row.Scan(&t.ID, &userID, &t.Description, &amount, &t.Date, &kind, &t.Category, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return core.Transaction{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	t.Amount = d
	t.UserID = core.UserID(userID)
	t.Type = core.Kind(kind)
	t.Date = t.Date.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}
