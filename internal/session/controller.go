// Package session owns the conversation state of one support chat:
// message history, backend reachability, the phone gate, and the
// pending-turn guard. The view layer only reads snapshots and forwards
// user intents; all mutation happens here.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/techgadgets/support-chat/internal/classify"
	"github.com/techgadgets/support-chat/internal/domain"
	"github.com/techgadgets/support-chat/internal/transcript"
	"github.com/techgadgets/support-chat/internal/transport"
)

const (
	chatPath   = "/api/chat"
	healthPath = "/api/health"
)

// Reachability is the tri-state result of the startup health probe.
type Reachability int

const (
	// ReachabilityUnknown holds until the probe completes once.
	ReachabilityUnknown Reachability = iota
	// ReachabilityUp means the probe saw a 2xx health response.
	ReachabilityUp
	// ReachabilityDown means the probe failed at transport or status level.
	ReachabilityDown
)

// Snapshot is the read-only view of the session handed to the renderer
// after each transition. Messages is a copy; the caller may keep it.
type Snapshot struct {
	Messages      []domain.Message
	Backend       Reachability
	AwaitingPhone bool
	Pending       bool
}

// chatRequest is the wire shape of one chat turn.
type chatRequest struct {
	Message     string `json:"message"`
	SessionID   string `json:"session_id"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// Controller drives the conversation session state machine. Exactly one
// turn can be in flight at a time; submits during a pending turn are
// silent no-ops.
type Controller struct {
	client     transport.Client
	baseURL    string
	logger     *slog.Logger
	transcript transcript.Logger

	mu            sync.Mutex
	sessionID     string
	phoneNumber   string
	backend       Reachability
	awaitingPhone bool
	pending       bool
	messages      []domain.Message
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTranscript sets the transcript event logger.
func WithTranscript(t transcript.Logger) Option {
	return func(c *Controller) {
		if t != nil {
			c.transcript = t
		}
	}
}

// WithSessionID overrides the generated session token.
func WithSessionID(id string) Option {
	return func(c *Controller) {
		if id != "" {
			c.sessionID = id
		}
	}
}

// New creates a Controller talking to the given transport. baseURL is
// only used to word connectivity error messages; the transport carries
// its own endpoint configuration.
func New(client transport.Client, baseURL string, opts ...Option) *Controller {
	c := &Controller{
		client:     client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     slog.Default(),
		transcript: transcript.NoopLogger{},
		sessionID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionID returns the opaque per-session token sent with every turn.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Snapshot returns a consistent copy of the session state for rendering.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := make([]domain.Message, len(c.messages))
	copy(messages, c.messages)

	return Snapshot{
		Messages:      messages,
		Backend:       c.backend,
		AwaitingPhone: c.awaitingPhone,
		Pending:       c.pending,
	}
}

// SubmitMessage runs one free-chat turn. It is a silent no-op when the
// text is blank, a turn is already pending, or the phone gate is open.
// The user message is committed optimistically before the network call
// and is never rolled back, even when the turn fails.
func (c *Controller) SubmitMessage(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	c.mu.Lock()
	if c.pending || c.awaitingPhone {
		c.mu.Unlock()
		return
	}
	c.appendLocked(domain.Message{Role: domain.RoleUser, Content: text})
	c.pending = true
	phone := c.phoneNumber
	c.mu.Unlock()

	c.logEvent("user_message", string(domain.RoleUser), text, nil)
	c.runTurn(ctx, text, phone)
}

// SubmitPhone resolves the phone gate. It is a silent no-op unless the
// gate is open, no turn is pending, and the number is non-blank. The
// number is stored for the rest of the session and echoed as a user
// message, then a turn carrying both the text and the number runs.
// Supplying a number closes the gate for good: a later needs_phone
// response cannot re-open it while the number is set.
func (c *Controller) SubmitPhone(ctx context.Context, number string) {
	number = strings.TrimSpace(number)
	if number == "" {
		return
	}

	c.mu.Lock()
	if c.pending || !c.awaitingPhone {
		c.mu.Unlock()
		return
	}
	c.phoneNumber = number
	c.awaitingPhone = false
	c.appendLocked(domain.Message{Role: domain.RoleUser, Content: number})
	c.pending = true
	c.mu.Unlock()

	c.logEvent("phone_submitted", string(domain.RoleUser), number, nil)
	c.runTurn(ctx, number, number)
}

// runTurn performs the request/response cycle for one turn and applies
// the completion transition. The controller lock is not held across the
// network call; the pending flag is what serializes turns.
func (c *Controller) runTurn(ctx context.Context, text, phone string) {
	msg, needsPhone := c.performTurn(ctx, text, phone)

	c.mu.Lock()
	c.appendLocked(msg)
	if needsPhone && c.phoneNumber == "" {
		c.awaitingPhone = true
	}
	c.pending = false
	c.mu.Unlock()
}

// performTurn issues the chat request and renders the outcome as the
// assistant message to append. All four failure classes are recovered
// here: every submitted turn yields a visible response.
func (c *Controller) performTurn(ctx context.Context, text, phone string) (domain.Message, bool) {
	req := chatRequest{Message: text, SessionID: c.sessionID, PhoneNumber: phone}

	resp, err := c.client.Send(ctx, http.MethodPost, chatPath, req)
	if err != nil {
		content := c.renderTransportFailure(err)
		c.logEvent("turn_error", string(domain.RoleAssistant), content, map[string]any{"class": "transport"})
		return domain.Message{Role: domain.RoleAssistant, Content: content}, false
	}

	result := classify.Classify(resp.Status, resp.Body)
	switch result.Kind {
	case classify.KindOK:
		msg := domain.Message{
			Role:    domain.RoleAssistant,
			Content: result.Payload.Response,
		}
		if result.Payload.OrderFound != nil {
			msg.OrderFound = result.Payload.OrderFound
			msg.OrderID = result.Payload.OrderID
			msg.OrderStatus = result.Payload.OrderStatus
		}
		c.logEvent("assistant_message", string(domain.RoleAssistant), msg.Content, nil)
		return msg, result.Payload.NeedsPhone

	case classify.KindStructuredError:
		content := renderStructuredError(result)
		c.logEvent("turn_error", string(domain.RoleAssistant), content, map[string]any{"class": "structured"})
		return domain.Message{Role: domain.RoleAssistant, Content: content}, false

	case classify.KindUnstructuredError:
		content := "❌ Error: " + result.Message
		c.logEvent("turn_error", string(domain.RoleAssistant), content, map[string]any{"class": "unstructured"})
		return domain.Message{Role: domain.RoleAssistant, Content: content}, false

	default: // classify.KindMalformed
		content := "Error: Invalid response from server. Response: " + result.RawPreview
		c.logEvent("turn_error", string(domain.RoleAssistant), content, map[string]any{"class": "malformed"})
		return domain.Message{Role: domain.RoleAssistant, Content: content}, false
	}
}

// renderTransportFailure words a transport-level failure. Connectivity
// failures name the configured endpoint instead of leaking low-level
// dialer text; anything else shows the raw failure message.
func (c *Controller) renderTransportFailure(err error) string {
	var terr *transport.Error
	if errors.As(err, &terr) && terr.Kind.Connectivity() {
		c.logger.Warn("support service unreachable", "base_url", c.baseURL, "kind", terr.Kind.String())
		return "Error: Cannot connect to the support service at " + c.baseURL + ". Make sure the server is running."
	}
	c.logger.Warn("chat turn failed", "error", err)
	return "Error: " + err.Error()
}

func renderStructuredError(result classify.Result) string {
	message := result.Message
	if result.ErrorType != "" {
		message = "[" + result.ErrorType + "] " + message
	}
	content := "❌ Error: " + message
	if result.Suggestion != "" {
		content += "\n\n💡 " + result.Suggestion
	}
	return content
}

// appendLocked adds a message to the transcript. Callers hold c.mu.
func (c *Controller) appendLocked(msg domain.Message) {
	c.messages = append(c.messages, msg)
}

func (c *Controller) logEvent(eventType, role, content string, meta map[string]any) {
	c.transcript.Log(transcript.Event{
		SessionID: c.sessionID,
		Role:      role,
		EventType: eventType,
		Content:   content,
		Meta:      meta,
	})
}
