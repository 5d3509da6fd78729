package transcript

import (
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/expense-agent/internal/conversation"
)

func TestAppendAndReadLines(t *testing.T) {
	log, err := NewLog(t.TempDir())
	if err != nil {
		t.Fatalf("NewLog() error = %v", err)
	}

	at := time.Date(2026, 8, 23, 14, 37, 0, 0, time.UTC)
	if err := log.Append("t1", conversation.RoleUser, "coffee 28 yuan", at); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := log.Append("t1", conversation.RoleAssistant, "saved", at.Add(time.Second)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := log.Append("t2", conversation.RoleUser, "other thread", at); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	lines, err := log.ReadLines("t1")
	if err != nil {
		t.Fatalf("ReadLines() error = %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("ReadLines() = %d lines, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "user: coffee") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "assistant: saved") {
		t.Errorf("second line = %q", lines[1])
	}
}

func TestReadLinesMissingThread(t *testing.T) {
	log, err := NewLog(t.TempDir())
	if err != nil {
		t.Fatalf("NewLog() error = %v", err)
	}
	lines, err := log.ReadLines("nope")
	if err != nil {
		t.Fatalf("ReadLines(missing) error = %v", err)
	}
	if lines != nil {
		t.Errorf("ReadLines(missing) = %v, want nil", lines)
	}
}
