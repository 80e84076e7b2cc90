// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/techgadgets/support-chat/internal/domain"
)

// Repository defines the interface for persisting order data used by
// the support service.
type Repository interface {
	// GetOrder retrieves an order by its ID. Returns (nil, nil) when no
	// such order exists.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// UpsertOrder creates or updates an order record.
	UpsertOrder(ctx context.Context, order *domain.Order) error

	// CountOrders returns the number of stored orders.
	CountOrders(ctx context.Context) (int64, error)

	// Ping verifies database connectivity and returns an error if the
	// database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
