package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Entry is one decoded JSON log record.
type Entry map[string]any

// Message returns the record's msg field.
func (e Entry) Message() string {
	msg, _ := e[slog.MessageKey].(string)
	return msg
}

// Level returns the record's level field, e.g. "WARN".
func (e Entry) Level() string {
	level, _ := e[slog.LevelKey].(string)
	return level
}

// TestLogBuffer collects log output from concurrent writers so tests can
// inspect it afterwards.
type TestLogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *TestLogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *TestLogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Reset discards everything written so far.
func (b *TestLogBuffer) Reset() {
	b.mu.Lock()
	b.buf.Reset()
	b.mu.Unlock()
}

// Entries decodes the buffer as JSON lines, skipping blank ones.
func (b *TestLogBuffer) Entries() ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewBufferString(b.String()))
	for line := 1; scanner.Scan(); line++ {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("log line %d is not JSON: %w", line, err)
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}

// EntriesWithMessage returns the decoded entries logged with message. Output
// that is not JSON yields no entries.
func (b *TestLogBuffer) EntriesWithMessage(message string) []Entry {
	entries, err := b.Entries()
	if err != nil {
		return nil
	}
	var matched []Entry
	for _, entry := range entries {
		if entry.Message() == message {
			matched = append(matched, entry)
		}
	}
	return matched
}

// NewTestLogger returns a debug-level JSON logger writing into a fresh buffer.
func NewTestLogger() (*slog.Logger, *TestLogBuffer) {
	buf := &TestLogBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}
