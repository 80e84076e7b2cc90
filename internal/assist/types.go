// Package assist implements the TechGadgets support assistant service:
// request handling and the rule-based responder behind /api/chat.
package assist

// ChatRequest is the body of a POST /api/chat call.
type ChatRequest struct {
	Message     string `json:"message"`
	SessionID   string `json:"session_id"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// ChatResponse is the success body of a chat turn.
type ChatResponse struct {
	Response    string `json:"response"`
	OrderFound  *bool  `json:"order_found,omitempty"`
	OrderID     string `json:"order_id,omitempty"`
	OrderStatus string `json:"order_status,omitempty"`
	NeedsPhone  bool   `json:"needs_phone,omitempty"`
}

// ErrorResponse is the structured error body returned with non-2xx
// statuses.
type ErrorResponse struct {
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
	ErrorType  string `json:"error_type,omitempty"`
}
