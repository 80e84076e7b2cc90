package assist

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/techgadgets/support-chat/internal/domain"
	"github.com/techgadgets/support-chat/internal/store"
)

// orderIDPattern matches order IDs as printed on confirmation emails,
// e.g. "A1001" or "B2040".
var orderIDPattern = regexp.MustCompile(`\b[A-Za-z]{1,2}\d{3,6}\b`)

// LookupError reports a failed order lookup. The handler renders it as
// a structured 404 error body.
type LookupError struct {
	OrderID string
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	return fmt.Sprintf("order %s not found", e.OrderID)
}

// Responder answers customer messages from the TechGadgets policy set
// and the order database. Order-status answers are phone-gated: a
// lookup request without a verification phone number asks for one
// instead of answering.
type Responder struct {
	repo store.Repository
}

// NewResponder creates a responder backed by the given order repository.
func NewResponder(repo store.Repository) *Responder {
	return &Responder{repo: repo}
}

// Reply produces the assistant response for one chat turn.
func (r *Responder) Reply(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	message := strings.ToLower(req.Message)
	orderID := strings.ToUpper(orderIDPattern.FindString(req.Message))

	if orderID != "" || strings.Contains(message, "order") {
		return r.replyOrder(ctx, orderID, req.PhoneNumber)
	}

	return &ChatResponse{Response: policyAnswer(message)}, nil
}

func (r *Responder) replyOrder(ctx context.Context, orderID, phone string) (*ChatResponse, error) {
	if phone == "" {
		return &ChatResponse{
			Response:   "I can help with that. To look up your order, please share the phone number used when placing it.",
			NeedsPhone: true,
		}, nil
	}

	if orderID == "" {
		return &ChatResponse{
			Response: "Thanks! Which order would you like me to check? The order ID looks like A1234 on your confirmation email.",
		}, nil
	}

	order, err := r.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("look up order %s: %w", orderID, err)
	}
	if order == nil || !order.MatchesPhone(phone) {
		return nil, &LookupError{OrderID: orderID}
	}

	found := true
	return &ChatResponse{
		Response:    orderStatusText(order),
		OrderFound:  &found,
		OrderID:     order.OrderID,
		OrderStatus: order.Status,
	}, nil
}

func orderStatusText(order *domain.Order) string {
	switch order.Status {
	case domain.OrderStatusShipped:
		return fmt.Sprintf("Good news! Your order %s (%s) has shipped and should arrive within 3-5 business days.", order.OrderID, order.Item)
	case domain.OrderStatusDelivered:
		return fmt.Sprintf("Your order %s (%s) was delivered. If anything is wrong with it, remember our 30-day money-back guarantee.", order.OrderID, order.Item)
	case domain.OrderStatusReturned:
		return fmt.Sprintf("Your order %s (%s) was returned. Refunds are processed within 5 business days of the return arriving.", order.OrderID, order.Item)
	default:
		return fmt.Sprintf("Your order %s (%s) is being processed and will ship shortly.", order.OrderID, order.Item)
	}
}

// policyAnswer answers general questions from the TechGadgets policy
// set: 30-day money-back guarantee, standard 3-5 day shipping, express
// 2-day shipping for $9.99, 24/7 chat support, Mon-Fri 9AM-6PM phone
// support, 1-year manufacturer warranty, and price matching.
func policyAnswer(message string) string {
	switch {
	case containsAny(message, "return", "refund", "money back", "exchange"):
		return "TechGadgets offers a 30-day money-back guarantee on all purchases. You can also exchange an item instead of returning it — just start the process from your order page."
	case containsAny(message, "ship", "delivery", "deliver"):
		return "Standard shipping from TechGadgets takes 3-5 business days. Express 2-day shipping is available for $9.99."
	case strings.Contains(message, "warranty"):
		return "Every TechGadgets product comes with a 1-year manufacturer warranty."
	case strings.Contains(message, "price match") || strings.Contains(message, "price-match"):
		return "Yes — TechGadgets price matches other electronics retailers. Share a link to the lower price and we'll take care of it."
	case containsAny(message, "contact", "support", "phone number", "speak to"):
		return "TechGadgets chat support is available 24/7, and phone support is open Mon-Fri 9AM-6PM."
	case containsAny(message, "hello", "hey") || strings.TrimSpace(message) == "hi" || strings.HasPrefix(message, "hi "):
		return "Hi! Welcome to TechGadgets support. How can I help you today?"
	default:
		return "Thanks for reaching out to TechGadgets! I can help with orders, returns, shipping, warranties, and price matching. What would you like to know?"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
