package assist

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/techgadgets/support-chat/internal/store"
)

// maxRequestBodySize is the maximum allowed chat request body (1MB).
const maxRequestBodySize = 1 << 20

// healthCheckTimeout bounds the database ping in the health endpoint.
const healthCheckTimeout = 5 * time.Second

// Handler serves the support assistant HTTP API.
type Handler struct {
	responder *Responder
	repo      store.Repository
}

// NewHandler creates a handler backed by the given order repository.
func NewHandler(repo store.Repository) *Handler {
	return &Handler{
		responder: NewResponder(repo),
		repo:      repo,
	}
}

// RegisterRoutes registers the assistant API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Post("/chat", h.Chat)
	})
}

// Health reports service and database status. Any 2xx means the
// service is reachable from the client's point of view.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := map[string]any{
		"status": "ok",
		"checks": map[string]string{"api": "ok"},
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		status["checks"].(map[string]string)["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		status["checks"].(map[string]string)["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// Chat handles one support chat turn.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "No JSON data received")
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "Message is required")
		return
	}

	reqID := chiMiddleware.GetReqID(r.Context())
	slog.Info("Chat request",
		"session_id", req.SessionID,
		"request_id", reqID,
		"message_length", len(req.Message),
		"has_phone", req.PhoneNumber != "",
	)

	resp, err := h.responder.Reply(r.Context(), req)
	if err != nil {
		var lookupErr *LookupError
		if errors.As(err, &lookupErr) {
			slog.Info("Order lookup failed", "order_id", lookupErr.OrderID, "session_id", req.SessionID)
			JSON(w, http.StatusNotFound, ErrorResponse{
				Error:      "Order not found",
				Suggestion: "Double-check the order ID on your confirmation email and the phone number used at checkout.",
				ErrorType:  "LookupError",
			})
			return
		}
		slog.Error("Chat turn failed", "error", err, "session_id", req.SessionID)
		JSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:     err.Error(),
			ErrorType: "InternalError",
		})
		return
	}

	JSON(w, http.StatusOK, resp)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
