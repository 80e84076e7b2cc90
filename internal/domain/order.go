package domain

import (
	"time"
)

// Order statuses as stored in the order database.
const (
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusReturned   = "returned"
)

// Order represents a customer order record used by the support service
// to answer order-status inquiries.
type Order struct {
	OrderID       string    `json:"order_id"`
	CustomerPhone string    `json:"customer_phone"`
	Item          string    `json:"item"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MatchesPhone reports whether the given phone number identifies the
// customer who placed this order. Comparison ignores separator
// characters so "555-1234" and "5551234" verify the same order.
func (o *Order) MatchesPhone(phone string) bool {
	return normalizePhone(o.CustomerPhone) == normalizePhone(phone)
}

func normalizePhone(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' || c == '+' {
			out = append(out, c)
		}
	}
	return string(out)
}
