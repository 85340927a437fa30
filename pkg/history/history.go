// Package history keeps a bounded record of recent conversation turns per
// user, used as reply context for the assistant.
package history

import (
	"strings"
	"sync"
)

// Log stores up to depth recent turns per user, most-recent-last.
type Log struct {
	depth int

	mu    sync.RWMutex
	turns map[string][]string
}

// NewLog creates a history log bounded to depth turns per user. A depth of
// zero disables recording.
func NewLog(depth int) *Log {
	return &Log{
		depth: depth,
		turns: make(map[string][]string),
	}
}

// Record appends one turn for a user, evicting the oldest past the bound.
func (l *Log) Record(userKey string, text string) {
	text = strings.TrimSpace(text)
	if text == "" || l.depth == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries := append(l.turns[userKey], text)
	if len(entries) > l.depth {
		entries = entries[len(entries)-l.depth:]
	}
	l.turns[userKey] = entries
}

// Recent returns a copy of the user's recorded turns, oldest first.
func (l *Log) Recent(userKey string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := l.turns[userKey]
	if len(entries) == 0 {
		return nil
	}

	out := make([]string, len(entries))
	copy(out, entries)
	return out
}

// Forget drops all recorded turns for a user.
func (l *Log) Forget(userKey string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.turns, userKey)
}
