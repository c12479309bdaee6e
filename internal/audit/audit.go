// Package audit records who generated which artifact and when. Entries are
// append-only; nothing in the toolkit reads them back except reports and
// tests.
package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Entry captures the audit trail metadata for one recorded action.
type Entry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor,omitempty"`
	Subject    string         `json:"subject,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Logger records audit entries.
type Logger interface {
	Record(ctx context.Context, entry Entry)
}

// NewEntry stamps an entry with a fresh identifier and the current time.
func NewEntry(action, actor, subject string, metadata map[string]any) Entry {
	return Entry{
		ID:         uuid.NewString(),
		Action:     action,
		Actor:      actor,
		Subject:    subject,
		Metadata:   metadata,
		OccurredAt: time.Now().UTC(),
	}
}

// FileLog appends entries as JSON lines to a single file. Writes are
// serialised; a failed write is logged and dropped rather than failing the
// operation being audited.
type FileLog struct {
	mu   sync.Mutex
	path string
	log  *zap.Logger
}

// NewFileLog creates the audit file's directory if needed.
func NewFileLog(path string, log *zap.Logger) (*FileLog, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &FileLog{path: path, log: log}, nil
}

func (l *FileLog) Record(ctx context.Context, entry Entry) {
	line, err := json.Marshal(entry)
	if err != nil {
		l.log.Warn("audit encode failed", zap.String("action", entry.Action), zap.Error(err))
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.log.Warn("audit open failed", zap.String("path", l.path), zap.Error(err))
		return
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(append(line, '\n')); err != nil {
		l.log.Warn("audit write failed", zap.String("path", l.path), zap.Error(err))
	}
}

// MemoryLog captures entries in-memory for assertions.
type MemoryLog struct {
	mu      sync.Mutex
	entries []Entry
}

func (l *MemoryLog) Record(ctx context.Context, entry Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a defensive copy of recorded entries.
func (l *MemoryLog) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
