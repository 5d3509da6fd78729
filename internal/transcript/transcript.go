// Package transcript keeps an append-only JSONL log of every utterance
// per thread, separate from checkpoint state. The log is what gets
// chunked into memory and archived off-machine.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/expense-agent/internal/conversation"
)

// Entry is one transcript line.
type Entry struct {
	Role      conversation.Role `json:"role"`
	Text      string            `json:"text"`
	Timestamp string            `json:"timestamp"` // RFC3339, UTC
}

// Log appends entries to one JSONL file per thread under a base
// directory.
type Log struct {
	dir string
}

// NewLog creates the transcript directory if needed.
func NewLog(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("NewLog: create dir %s: %w", dir, err)
	}
	return &Log{dir: dir}, nil
}

// Path returns the transcript file for a thread.
func (l *Log) Path(threadID string) string {
	return filepath.Join(l.dir, threadID+".jsonl")
}

// Append writes one utterance to the thread's transcript.
func (l *Log) Append(threadID string, role conversation.Role, text string, at time.Time) error {
	entry := Entry{Role: role, Text: text, Timestamp: at.UTC().Format(time.RFC3339)}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("Log.Append: encode entry: %w", err)
	}

	f, err := os.OpenFile(l.Path(threadID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("Log.Append: open transcript: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("Log.Append: write entry: %w", err)
	}
	return nil
}

// ReadLines returns the thread's transcript as "role: text" lines,
// ready for chunking. A missing transcript is not an error.
func (l *Log) ReadLines(threadID string) ([]string, error) {
	f, err := os.Open(l.Path(threadID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Log.ReadLines: open transcript: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("Log.ReadLines: decode entry: %w", err)
		}
		lines = append(lines, fmt.Sprintf("%s: %s", entry.Role, entry.Text))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("Log.ReadLines: scan transcript: %w", err)
	}
	return lines, nil
}
