// Package audit provides append-only structured logging for item store
// operations.
//
// Every store call (add, update, read, list, delete) is recorded to an
// audit log at ~/.securestore/audit.log as newline-delimited JSON. Secret
// values are never written.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Action describes what happened.
type Action string

const (
	ActionItemAdd    Action = "item_add"
	ActionItemUpdate Action = "item_update"
	ActionItemRead   Action = "item_read"
	ActionItemList   Action = "item_list"
	ActionItemDelete Action = "item_delete"
	ActionItemClear  Action = "item_clear"
)

// Entry is a single audit log record.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	Action    Action    `json:"action"`
	Service   string    `json:"service"`
	Key       string    `json:"key,omitempty"`
	Actor     string    `json:"actor,omitempty"`  // "cli", "daemon"
	Status    int32     `json:"status,omitempty"` // store status, 0 on success
	Protected bool      `json:"protected,omitempty"`
}

// Logger writes audit entries to an append-only file.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewLogger creates or opens an audit log file for appending.
func NewLogger(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &Logger{file: f, path: path}, nil
}

// Log writes an audit entry.
func (l *Logger) Log(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling audit entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return nil
}

// Path returns the file the logger appends to.
func (l *Logger) Path() string {
	return l.path
}

// Close closes the audit log file.
func (l *Logger) Close() error {
	return l.file.Close()
}
