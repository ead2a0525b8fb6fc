package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/axonops/fact-resolver/internal/config"
)

func TestNewLogger_Disabled(t *testing.T) {
	l, err := NewLogger(config.AuditConfig{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	if l != nil {
		t.Error("expected nil logger when disabled")
	}
	// Nil loggers tolerate use.
	l.Log(Event{EventType: EventResolutionRun})
	if err := l.Close(); err != nil {
		t.Errorf("nil close failed: %v", err)
	}
}

func TestLog_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := NewLogger(config.AuditConfig{Enabled: true, LogFile: path})
	if err != nil {
		t.Fatal(err)
	}

	l.Log(Event{
		EventType:    EventResolutionRun,
		ResolutionID: "res-1",
		Trace:        []string{"ResA"},
		Facts:        2,
		Duration:     12,
	})
	l.Log(Event{
		EventType:    EventResolutionFailure,
		ResolutionID: "res-2",
		Error:        "boom",
	})
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		events = append(events, ev)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventType != EventResolutionRun || events[0].ResolutionID != "res-1" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[0].Timestamp.IsZero() {
		t.Error("expected timestamp stamped on write")
	}
	if events[1].Error != "boom" {
		t.Errorf("unexpected second event: %+v", events[1])
	}
}

func TestLog_FiltersDisabledEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := NewLogger(config.AuditConfig{
		Enabled: true,
		LogFile: path,
		Events:  []string{string(EventResolutionFailure)},
	})
	if err != nil {
		t.Fatal(err)
	}

	l.Log(Event{EventType: EventResolutionRun, ResolutionID: "skipped"})
	l.Log(Event{EventType: EventResolutionFailure, ResolutionID: "kept"})
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q", data)
	}
	if ev.ResolutionID != "kept" {
		t.Errorf("expected only enabled events written, got %+v", ev)
	}
}
