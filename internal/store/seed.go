package store

import (
	"context"
	"fmt"
	"time"

	"github.com/techgadgets/support-chat/internal/domain"
)

// Seed populates an empty order database with sample orders so a fresh
// development install can exercise the order-lookup flow immediately.
// A non-empty database is left untouched.
func Seed(ctx context.Context, repo Repository) (int, error) {
	count, err := repo.CountOrders(ctx)
	if err != nil {
		return 0, fmt.Errorf("check existing orders: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	now := time.Now()
	orders := []domain.Order{
		{OrderID: "A1001", CustomerPhone: "555-1234", Item: "NoiseBlock Pro Headphones", Status: domain.OrderStatusShipped},
		{OrderID: "A1002", CustomerPhone: "555-1234", Item: "VoltEdge 65W Charger", Status: domain.OrderStatusProcessing},
		{OrderID: "B2040", CustomerPhone: "555-9876", Item: "PixelView 27\" Monitor", Status: domain.OrderStatusDelivered},
		{OrderID: "C3115", CustomerPhone: "555-4242", Item: "ClickFlow Wireless Mouse", Status: domain.OrderStatusReturned},
	}

	for i := range orders {
		orders[i].CreatedAt = now
		orders[i].UpdatedAt = now
		if err := repo.UpsertOrder(ctx, &orders[i]); err != nil {
			return i, fmt.Errorf("seed order %s: %w", orders[i].OrderID, err)
		}
	}
	return len(orders), nil
}
