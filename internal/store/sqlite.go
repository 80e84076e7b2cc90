package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/techgadgets/support-chat/internal/domain"
	"github.com/techgadgets/support-chat/internal/shared"
)

// upsert retry policy for SQLITE_BUSY conflicts.
const (
	upsertMaxRetries = 3
	upsertBaseDelay  = 100 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT PRIMARY KEY,
		customer_phone TEXT NOT NULL,
		item TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_phone ON orders(customer_phone);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetOrder retrieves an order by its ID.
func (s *SQLiteStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `
		SELECT order_id, customer_phone, item, status, created_at, updated_at
		FROM orders WHERE order_id = ?`

	row := s.db.QueryRowContext(ctx, query, orderID)

	var order domain.Order
	var createdAt, updatedAt int64

	err := row.Scan(
		&order.OrderID, &order.CustomerPhone, &order.Item,
		&order.Status, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan order row: %w", err)
	}

	order.CreatedAt = time.Unix(createdAt, 0)
	order.UpdatedAt = time.Unix(updatedAt, 0)

	return &order, nil
}

// UpsertOrder creates or updates an order record. Retries with
// exponential backoff on SQLITE_BUSY conflicts.
func (s *SQLiteStore) UpsertOrder(ctx context.Context, order *domain.Order) error {
	var err error
	for i := 0; i < upsertMaxRetries; i++ {
		err = s.upsertOrderOnce(ctx, order)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) && i < upsertMaxRetries-1 {
			delay := upsertBaseDelay * time.Duration(1<<i)
			slog.Debug("UpsertOrder hit SQLITE_BUSY, retrying",
				"order_id", order.OrderID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}
		break
	}
	return fmt.Errorf("upsert order %s: %w", order.OrderID, err)
}

func (s *SQLiteStore) upsertOrderOnce(ctx context.Context, order *domain.Order) error {
	query := `
	INSERT INTO orders (order_id, customer_phone, item, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(order_id) DO UPDATE SET
		customer_phone = excluded.customer_phone,
		item = excluded.item,
		status = excluded.status,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		order.OrderID, order.CustomerPhone, order.Item, order.Status,
		order.CreatedAt.Unix(), order.UpdatedAt.Unix(),
	)
	return err
}

// CountOrders returns the number of stored orders.
func (s *SQLiteStore) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
