// Package domain contains core domain types for the support chat client.
package domain

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks messages typed by the customer.
	RoleUser Role = "user"
	// RoleAssistant marks messages produced by the support service,
	// including synthetic error messages rendered by the controller.
	RoleAssistant Role = "assistant"
)

// Message is a single entry in the conversation transcript. Messages are
// append-only: once added to a session they are never mutated or removed.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// OrderFound is set only on assistant messages that resolved an
	// order lookup. Nil means the turn was not an order lookup at all.
	OrderFound  *bool  `json:"order_found,omitempty"`
	OrderID     string `json:"order_id,omitempty"`
	OrderStatus string `json:"order_status,omitempty"`
}

// ResolvedOrder returns true if this message carries a successful order
// lookup result.
func (m *Message) ResolvedOrder() bool {
	return m.OrderFound != nil && *m.OrderFound
}
