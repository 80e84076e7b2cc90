package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/techgadgets/support-chat/internal/domain"
	"github.com/techgadgets/support-chat/internal/transport"
)

// fakeTransport scripts transport outcomes and records every call.
type fakeTransport struct {
	mu      sync.Mutex
	calls   []fakeCall
	respond func(call fakeCall) (*transport.Response, error)

	// gate, when non-nil, blocks Send until released. started is
	// signalled once per call before blocking.
	gate    chan struct{}
	started chan struct{}
}

type fakeCall struct {
	method string
	path   string
	body   any
}

func (f *fakeTransport) Send(ctx context.Context, method, path string, body any) (*transport.Response, error) {
	call := fakeCall{method: method, path: path, body: body}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	return f.respond(call)
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTransport) lastChatRequest(t *testing.T) chatRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].path == chatPath {
			req, ok := f.calls[i].body.(chatRequest)
			if !ok {
				t.Fatalf("chat call body has type %T", f.calls[i].body)
			}
			return req
		}
	}
	t.Fatal("no chat call recorded")
	return chatRequest{}
}

func respondWith(status int, body string) func(fakeCall) (*transport.Response, error) {
	return func(fakeCall) (*transport.Response, error) {
		return &transport.Response{Status: status, Body: body}, nil
	}
}

func newTestController(ft *fakeTransport) *Controller {
	return New(ft, "http://127.0.0.1:5000", WithSessionID("test-session"))
}

func TestSubmitMessageRoundTrip(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{respond: respondWith(200, `{"response":"hi"}`)}
	ctrl := newTestController(ft)

	ctrl.SubmitMessage(context.Background(), "hello")

	snap := ctrl.Snapshot()
	if len(snap.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(snap.Messages))
	}
	if snap.Messages[0].Role != domain.RoleUser || snap.Messages[0].Content != "hello" {
		t.Errorf("unexpected user message: %+v", snap.Messages[0])
	}
	if snap.Messages[1].Role != domain.RoleAssistant || snap.Messages[1].Content != "hi" {
		t.Errorf("unexpected assistant message: %+v", snap.Messages[1])
	}
	if snap.Pending {
		t.Error("pending must be cleared after turn completion")
	}

	req := ft.lastChatRequest(t)
	if req.Message != "hello" || req.SessionID != "test-session" {
		t.Errorf("unexpected request: %+v", req)
	}
	if req.PhoneNumber != "" {
		t.Errorf("phone must not be sent before it is supplied, got %q", req.PhoneNumber)
	}
}

func TestSubmitMessageBlankIsNoOp(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{respond: respondWith(200, `{"response":"hi"}`)}
	ctrl := newTestController(ft)

	ctrl.SubmitMessage(context.Background(), "")
	ctrl.SubmitMessage(context.Background(), "   \t\n")

	if got := ft.callCount(); got != 0 {
		t.Errorf("expected no requests, got %d", got)
	}
	if got := len(ctrl.Snapshot().Messages); got != 0 {
		t.Errorf("expected no messages, got %d", got)
	}
}

func TestOrderFieldsCarriedOnAssistantMessage(t *testing.T) {
	t.Parallel()

	body := `{"response":"found","order_found":true,"order_id":"A1","order_status":"shipped"}`
	ft := &fakeTransport{respond: respondWith(200, body)}
	ctrl := newTestController(ft)

	ctrl.SubmitMessage(context.Background(), "where is my order A1?")

	snap := ctrl.Snapshot()
	msg := snap.Messages[len(snap.Messages)-1]
	if !msg.ResolvedOrder() {
		t.Fatal("expected orderFound=true on assistant message")
	}
	if msg.OrderID != "A1" || msg.OrderStatus != "shipped" {
		t.Errorf("order fields = %q/%q, want A1/shipped", msg.OrderID, msg.OrderStatus)
	}
}

func TestNeedsPhoneOpensGateAndBlocksChat(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{respond: respondWith(200, `{"response":"please provide phone","needs_phone":true}`)}
	ctrl := newTestController(ft)

	ctrl.SubmitMessage(context.Background(), "check my order")

	snap := ctrl.Snapshot()
	if !snap.AwaitingPhone {
		t.Fatal("expected awaitingPhone after needs_phone response")
	}

	// Free chat is a no-op while the gate is open.
	before := len(snap.Messages)
	ctrl.SubmitMessage(context.Background(), "hello again")
	snap = ctrl.Snapshot()
	if len(snap.Messages) != before {
		t.Errorf("gated submit must not change messages: %d -> %d", before, len(snap.Messages))
	}
	if ft.callCount() != 1 {
		t.Errorf("gated submit must not fire a request, got %d calls", ft.callCount())
	}

	// Supplying a phone number resolves the gate and runs a turn.
	ft.respond = respondWith(200, `{"response":"thanks"}`)
	ctrl.SubmitPhone(context.Background(), "555-1234")

	snap = ctrl.Snapshot()
	if snap.AwaitingPhone {
		t.Error("gate must be cleared after submitPhone")
	}
	req := ft.lastChatRequest(t)
	if req.Message != "555-1234" || req.PhoneNumber != "555-1234" {
		t.Errorf("phone turn must carry text and number: %+v", req)
	}

	// The echoed phone message is a user message.
	var echo *domain.Message
	for i := range snap.Messages {
		if snap.Messages[i].Content == "555-1234" {
			echo = &snap.Messages[i]
		}
	}
	if echo == nil || echo.Role != domain.RoleUser {
		t.Errorf("expected a user message echoing the phone number, got %+v", echo)
	}
}

func TestPhoneCarriedOnLaterTurns(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{respond: respondWith(200, `{"response":"please provide phone","needs_phone":true}`)}
	ctrl := newTestController(ft)

	ctrl.SubmitMessage(context.Background(), "check my order")
	ft.respond = respondWith(200, `{"response":"thanks"}`)
	ctrl.SubmitPhone(context.Background(), "555-1234")

	ctrl.SubmitMessage(context.Background(), "and order A1002?")
	req := ft.lastChatRequest(t)
	if req.PhoneNumber != "555-1234" {
		t.Errorf("stored phone must ride every later turn, got %q", req.PhoneNumber)
	}
}

func TestGateDoesNotReopenOncePhoneSet(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{respond: respondWith(200, `{"response":"phone?","needs_phone":true}`)}
	ctrl := newTestController(ft)

	ctrl.SubmitMessage(context.Background(), "check my order")
	// The phone turn itself answers needs_phone again.
	ctrl.SubmitPhone(context.Background(), "555-1234")

	if ctrl.Snapshot().AwaitingPhone {
		t.Error("gate must stay closed once a phone number is stored")
	}
}

func TestStructuredErrorRendering(t *testing.T) {
	t.Parallel()

	body := `{"error":"Order not found","suggestion":"check the ID","error_type":"LookupError"}`
	ft := &fakeTransport{respond: respondWith(404, body)}
	ctrl := newTestController(ft)

	ctrl.SubmitMessage(context.Background(), "where is order Z9?")

	snap := ctrl.Snapshot()
	content := snap.Messages[len(snap.Messages)-1].Content
	for _, piece := range []string{"Order not found", "check the ID", "LookupError"} {
		if !strings.Contains(content, piece) {
			t.Errorf("error message %q missing %q", content, piece)
		}
	}
	if snap.AwaitingPhone {
		t.Error("a failed turn must not change the gate state")
	}
	if snap.Pending {
		t.Error("pending must be cleared after a failed turn")
	}
}

func TestUnstructuredErrorRendering(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{respond: respondWith(502, "bad gateway")}
	ctrl := newTestController(ft)

	ctrl.SubmitMessage(context.Background(), "hello")

	snap := ctrl.Snapshot()
	content := snap.Messages[len(snap.Messages)-1].Content
	if !strings.Contains(content, "bad gateway") {
		t.Errorf("expected verbatim body in %q", content)
	}
}

func TestMalformedPayloadRendering(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{respond: respondWith(200, "<html>oops</html>")}
	ctrl := newTestController(ft)

	ctrl.SubmitMessage(context.Background(), "hello")

	snap := ctrl.Snapshot()
	content := snap.Messages[len(snap.Messages)-1].Content
	if !strings.Contains(content, "Invalid response from server") {
		t.Errorf("unexpected malformed rendering: %q", content)
	}
	if !strings.Contains(content, "<html>oops</html>") {
		t.Errorf("expected raw preview in %q", content)
	}
}

func TestConnectivityFailureNamesEndpoint(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{respond: func(fakeCall) (*transport.Response, error) {
		return nil, &transport.Error{
			Kind: transport.KindConnectionRefused,
			URL:  "http://127.0.0.1:5000/api/chat",
			Err:  errors.New("dial tcp 127.0.0.1:5000: connect: connection refused"),
		}
	}}
	ctrl := newTestController(ft)

	ctrl.SubmitMessage(context.Background(), "hello")

	snap := ctrl.Snapshot()
	content := snap.Messages[len(snap.Messages)-1].Content
	if !strings.Contains(content, "http://127.0.0.1:5000") {
		t.Errorf("connectivity error must name the endpoint, got %q", content)
	}
	if strings.Contains(content, "dial tcp") {
		t.Errorf("low-level dialer text must not leak, got %q", content)
	}
	// Optimistic user message survives the failure.
	if snap.Messages[0].Role != domain.RoleUser || snap.Messages[0].Content != "hello" {
		t.Errorf("optimistic user message must not be rolled back: %+v", snap.Messages[0])
	}
}

func TestOtherTransportFailureShowsRawMessage(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{respond: func(fakeCall) (*transport.Response, error) {
		return nil, &transport.Error{
			Kind: transport.KindOther,
			URL:  "http://127.0.0.1:5000/api/chat",
			Err:  errors.New("tls: handshake failure"),
		}
	}}
	ctrl := newTestController(ft)

	ctrl.SubmitMessage(context.Background(), "hello")

	snap := ctrl.Snapshot()
	content := snap.Messages[len(snap.Messages)-1].Content
	if !strings.Contains(content, "handshake failure") {
		t.Errorf("expected raw failure text in %q", content)
	}
}

func TestNoOverlappingTurns(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{
		respond: respondWith(200, `{"response":"hi"}`),
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	ctrl := newTestController(ft)

	done := make(chan struct{})
	go func() {
		ctrl.SubmitMessage(context.Background(), "first")
		close(done)
	}()

	<-ft.started
	if !ctrl.Snapshot().Pending {
		t.Error("pending must be true while a turn is in flight")
	}

	// Submits during a pending turn are silent no-ops.
	ctrl.SubmitMessage(context.Background(), "second")
	ctrl.SubmitMessage(context.Background(), "third")

	close(ft.gate)
	<-done

	if got := ft.callCount(); got != 1 {
		t.Errorf("expected exactly 1 request, got %d", got)
	}
	snap := ctrl.Snapshot()
	if len(snap.Messages) != 2 {
		t.Errorf("expected 2 messages (user, assistant), got %d", len(snap.Messages))
	}
}

func TestSubmitPhoneIdempotentWhilePending(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{respond: respondWith(200, `{"response":"phone?","needs_phone":true}`)}
	ctrl := newTestController(ft)
	ctrl.SubmitMessage(context.Background(), "check my order")

	ft.gate = make(chan struct{})
	ft.started = make(chan struct{}, 1)
	ft.respond = respondWith(200, `{"response":"thanks"}`)

	done := make(chan struct{})
	go func() {
		ctrl.SubmitPhone(context.Background(), "555-1234")
		close(done)
	}()

	<-ft.started
	// Second call while the first is pending must be a no-op.
	ctrl.SubmitPhone(context.Background(), "555-1234")

	close(ft.gate)
	<-done

	echoes := 0
	for _, msg := range ctrl.Snapshot().Messages {
		if msg.Role == domain.RoleUser && msg.Content == "555-1234" {
			echoes++
		}
	}
	if echoes != 1 {
		t.Errorf("expected exactly 1 phone echo message, got %d", echoes)
	}
}

func TestSubmitPhoneOutsideGateIsNoOp(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{respond: respondWith(200, `{"response":"hi"}`)}
	ctrl := newTestController(ft)

	ctrl.SubmitPhone(context.Background(), "555-1234")

	if got := ft.callCount(); got != 0 {
		t.Errorf("expected no requests, got %d", got)
	}
	if got := len(ctrl.Snapshot().Messages); got != 0 {
		t.Errorf("expected no messages, got %d", got)
	}
}

func TestSessionIDStableAcrossTurns(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{respond: respondWith(200, `{"response":"hi"}`)}
	ctrl := New(ft, "http://127.0.0.1:5000")

	ctrl.SubmitMessage(context.Background(), "one")
	first := ft.lastChatRequest(t).SessionID
	ctrl.SubmitMessage(context.Background(), "two")
	second := ft.lastChatRequest(t).SessionID

	if first == "" {
		t.Fatal("session id must be generated")
	}
	if first != second {
		t.Errorf("session id must be stable: %q != %q", first, second)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{respond: respondWith(200, `{"response":"hi"}`)}
	ctrl := newTestController(ft)
	ctrl.SubmitMessage(context.Background(), "hello")

	snap := ctrl.Snapshot()
	snap.Messages[0].Content = "mutated"

	if ctrl.Snapshot().Messages[0].Content != "hello" {
		t.Error("snapshot mutation must not affect controller state")
	}
}

func TestProbeHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		respond func(fakeCall) (*transport.Response, error)
		want    Reachability
	}{
		{"2xx", respondWith(200, `{"status":"ok"}`), ReachabilityUp},
		{"2xx empty body", respondWith(204, ""), ReachabilityUp},
		{"non-2xx", respondWith(503, `{"status":"degraded"}`), ReachabilityDown},
		{"transport failure", func(fakeCall) (*transport.Response, error) {
			return nil, &transport.Error{Kind: transport.KindConnectionRefused, Err: errors.New("refused")}
		}, ReachabilityDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := &fakeTransport{respond: tt.respond}
			ctrl := newTestController(ft)

			if ctrl.Snapshot().Backend != ReachabilityUnknown {
				t.Error("reachability must start unknown")
			}
			if got := ctrl.ProbeHealth(context.Background()); got != tt.want {
				t.Errorf("ProbeHealth = %v, want %v", got, tt.want)
			}
			if got := ctrl.Snapshot().Backend; got != tt.want {
				t.Errorf("snapshot backend = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProbeDoesNotBlockChat(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{respond: func(call fakeCall) (*transport.Response, error) {
		if call.path == healthPath {
			time.Sleep(50 * time.Millisecond)
			return nil, &transport.Error{Kind: transport.KindTimeout, Err: context.DeadlineExceeded}
		}
		return &transport.Response{Status: 200, Body: `{"response":"hi"}`}, nil
	}}
	ctrl := newTestController(ft)

	go ctrl.ProbeHealth(context.Background())
	ctrl.SubmitMessage(context.Background(), "hello")

	snap := ctrl.Snapshot()
	if len(snap.Messages) != 2 {
		t.Errorf("chat must proceed while the probe is outstanding, got %d messages", len(snap.Messages))
	}
}
