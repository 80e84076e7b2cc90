// Package transcript writes conversation events to NDJSON files. It is
// an observability log for reviewing support sessions after the fact;
// the chat client never reads it back.
package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event is one logged conversation occurrence: a user message, an
// assistant reply, or a turn-level error.
type Event struct {
	Timestamp string         `json:"ts"`
	SessionID string         `json:"session_id"`
	Role      string         `json:"role,omitempty"`
	EventType string         `json:"event_type"`
	Content   string         `json:"content"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Logger records conversation events. Log must never block the caller.
type Logger interface {
	Log(Event)
	Close() error
}

// Config controls NDJSON transcript logging.
type Config struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// NewLogger creates a transcript logger. When disabled it returns a
// no-op implementation so callers never need a nil check.
func NewLogger(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return NoopLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}
	if cfg.GlobalEnabled {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o755); err != nil {
			return nil, fmt.Errorf("create global transcript directory: %w", err)
		}
	}

	l := &fileLogger{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan Event, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// NoopLogger discards all events.
type NoopLogger struct{}

// Log implements Logger.
func (NoopLogger) Log(Event) {}

// Close implements Logger.
func (NoopLogger) Close() error { return nil }

// fileLogger drains a bounded queue onto per-session NDJSON files from a
// single background goroutine, so logging never stalls a chat turn.
type fileLogger struct {
	cfg    Config
	logger *slog.Logger
	queue  chan Event

	once sync.Once
	done chan struct{}
}

// Log enqueues an event. When the queue is full the event is dropped
// with a warning rather than blocking the controller.
func (l *fileLogger) Log(ev Event) {
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	select {
	case l.queue <- ev:
	default:
		l.logger.Warn("transcript queue full, dropping event",
			"session_id", ev.SessionID,
			"event_type", ev.EventType,
		)
	}
}

// Close stops the writer after flushing queued events.
func (l *fileLogger) Close() error {
	l.once.Do(func() {
		close(l.queue)
		<-l.done
	})
	return nil
}

func (l *fileLogger) run() {
	defer close(l.done)
	for ev := range l.queue {
		l.write(ev)
	}
}

func (l *fileLogger) write(ev Event) {
	line, err := json.Marshal(ev)
	if err != nil {
		l.logger.Warn("failed to marshal transcript event", "error", err)
		return
	}
	line = append(line, '\n')

	sessionID := ev.SessionID
	if sessionID == "" {
		sessionID = "unknown"
	}
	path := filepath.Join(l.cfg.Dir, sessionID+".ndjson")
	if err := appendLine(path, line); err != nil {
		l.logger.Warn("failed to write transcript event", "path", path, "error", err)
	}

	if l.cfg.GlobalEnabled {
		if err := appendLine(l.cfg.GlobalPath, line); err != nil {
			l.logger.Warn("failed to write global transcript event", "path", l.cfg.GlobalPath, "error", err)
		}
	}
}

func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append transcript line: %w", err)
	}
	return nil
}
