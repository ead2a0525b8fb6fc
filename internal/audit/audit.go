// Package audit records resolution activity as JSON lines to a rotating
// file and, optionally, to syslog.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/RackSec/srslog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/axonops/fact-resolver/internal/config"
)

// EventType represents the type of audit event.
type EventType string

const (
	EventResolutionRun     EventType = "resolution_run"
	EventResolutionFailure EventType = "resolution_failure"
	EventCacheClear        EventType = "cache_clear"
)

// Event represents an audit log entry.
type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	EventType    EventType `json:"event_type"`
	ResolutionID string    `json:"resolution_id,omitempty"`
	ClientIP     string    `json:"client_ip,omitempty"`
	Inputs       []string  `json:"inputs,omitempty"`
	Required     []string  `json:"required,omitempty"`
	Trace        []string  `json:"trace,omitempty"`
	Facts        int       `json:"facts,omitempty"`
	Duration     int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`
}

// Logger writes audit events to the configured sinks.
type Logger struct {
	mu            sync.Mutex
	file          io.WriteCloser
	syslog        *srslog.Writer
	enabledEvents map[EventType]bool
}

// NewLogger creates an audit logger from configuration. A nil logger is
// returned when auditing is disabled; all Logger methods tolerate nil.
func NewLogger(cfg config.AuditConfig) (*Logger, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	l := &Logger{enabledEvents: make(map[EventType]bool)}

	if len(cfg.Events) == 0 {
		l.enabledEvents[EventResolutionRun] = true
		l.enabledEvents[EventResolutionFailure] = true
		l.enabledEvents[EventCacheClear] = true
	} else {
		for _, event := range cfg.Events {
			l.enabledEvents[EventType(event)] = true
		}
	}

	if cfg.LogFile != "" {
		l.file = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
	}

	if cfg.Syslog.Enabled {
		tag := cfg.Syslog.Tag
		if tag == "" {
			tag = "fact-resolver"
		}
		w, err := srslog.Dial(cfg.Syslog.Network, cfg.Syslog.Address, srslog.LOG_INFO|srslog.LOG_DAEMON, tag)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to syslog: %w", err)
		}
		l.syslog = w
	}

	return l, nil
}

// Log writes an event to every configured sink. Sink failures are swallowed:
// auditing must never block resolution.
func (l *Logger) Log(event Event) {
	if l == nil || !l.enabledEvents[event.EventType] {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	line, err := json.Marshal(event)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_, _ = l.file.Write(append(line, '\n'))
	}
	if l.syslog != nil {
		_ = l.syslog.Info(string(line))
	}
}

// Close releases the underlying sinks.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			firstErr = err
		}
	}
	if l.syslog != nil {
		if err := l.syslog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
