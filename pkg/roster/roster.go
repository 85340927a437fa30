// Package roster persists the set of chats the bot has seen to a JSON file.
//
// The roster is operational bookkeeping only: persistence failures are logged
// and never block message handling.
package roster

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ChatInfo describes one chat the bot has seen.
type ChatInfo struct {
	ChatID      string `json:"chat_id"`
	ChatType    string `json:"type"`
	Name        string `json:"name"`
	FirstSeen   string `json:"first_seen"`
	LastMessage string `json:"last_message"`
}

// Roster tracks seen chats in memory and mirrors them to a JSON file.
type Roster struct {
	path string
	log  *slog.Logger
	now  func() time.Time

	mu    sync.Mutex
	chats map[string]*ChatInfo
}

// Open loads the roster file, creating it (and its directory) when missing.
func Open(path string, log *slog.Logger) (*Roster, error) {
	if log == nil {
		log = slog.Default()
	}

	r := &Roster{
		path:  path,
		log:   log.With("component", "roster"),
		now:   time.Now,
		chats: make(map[string]*ChatInfo),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create roster directory: %w", err)
	}

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}

	if len(content) > 0 {
		if err := json.Unmarshal(content, &r.chats); err != nil {
			// A corrupt roster must not keep the bot down; start fresh.
			r.log.Warn("Roster file is corrupt, starting empty", "path", path, "error", err)
			r.chats = make(map[string]*ChatInfo)
		}
	}

	return r, nil
}

// Observe records that a chat was seen now, adding it on first contact, and
// flushes the roster to disk. Failures are logged, never returned.
func (r *Roster) Observe(chatID string, chatType string, name string) {
	now := r.now().UTC().Format(time.RFC3339)

	r.mu.Lock()
	info, ok := r.chats[chatID]
	if !ok {
		r.chats[chatID] = &ChatInfo{
			ChatID:      chatID,
			ChatType:    chatType,
			Name:        name,
			FirstSeen:   now,
			LastMessage: now,
		}
		r.log.Info("New chat discovered", "chat_id", chatID, "name", name)
	} else {
		info.LastMessage = now
	}
	snapshot, err := json.MarshalIndent(r.chats, "", "  ")
	r.mu.Unlock()

	if err != nil {
		r.log.Error("Failed to encode roster", "error", err)
		return
	}

	if err := os.WriteFile(r.path, snapshot, 0o644); err != nil {
		r.log.Error("Failed to save roster", "path", r.path, "error", err)
	}
}

// Get returns roster info for one chat.
func (r *Roster) Get(chatID string) (ChatInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.chats[chatID]
	if !ok {
		return ChatInfo{}, false
	}

	return *info, true
}

// Len returns the number of known chats.
func (r *Roster) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.chats)
}
