// Package session owns the mapping from user identity to a remote
// conversation handle, with bounded lifetime and heap-ordered eviction.
package session

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCreationFailed marks a failure to create a remote conversation. It is
// never retried inside the store.
var ErrCreationFailed = errors.New("session creation failed")

// CreateFunc creates a remote conversation for a user and returns its handle.
type CreateFunc func(ctx context.Context, userKey string) (string, error)

// DeleteFunc deletes a remote conversation. Used best-effort during eviction.
type DeleteFunc func(ctx context.Context, handle string) error

// Session tracks one live remote conversation for one user.
type Session struct {
	UserKey    string
	Handle     string
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// Store maps user keys to live sessions. At most one live session exists per
// user key at any instant; concurrent first contact for the same key creates
// exactly one remote conversation.
type Store struct {
	lifetime time.Duration
	create   CreateFunc
	remove   DeleteFunc
	log      *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	byAge    ageHeap

	creatingMu sync.Mutex
	creating   map[string]*sync.Mutex
}

// New builds a session store. remove may be nil when remote conversations
// need no explicit cleanup.
func New(create CreateFunc, remove DeleteFunc, lifetime time.Duration, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}

	return &Store{
		lifetime: lifetime,
		create:   create,
		remove:   remove,
		log:      log.With("component", "session.store"),
		now:      time.Now,
		sessions: make(map[string]*Session),
		creating: make(map[string]*sync.Mutex),
	}
}

// GetOrCreate returns the handle of the user's live session, creating a new
// remote conversation when none exists or the previous one expired.
//
// Creation is serialized per user key; the store-wide lock is never held
// across the remote call, so distinct users do not contend.
func (s *Store) GetOrCreate(ctx context.Context, userKey string) (string, error) {
	s.EvictExpired(s.now())

	if handle, ok := s.liveHandle(userKey); ok {
		return handle, nil
	}

	keyMu := s.creationLock(userKey)
	keyMu.Lock()
	defer keyMu.Unlock()

	// Another caller may have finished creating while we waited.
	if handle, ok := s.liveHandle(userKey); ok {
		return handle, nil
	}

	handle, err := s.create(ctx, userKey)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrCreationFailed, err)
	}

	now := s.now()
	sess := &Session{UserKey: userKey, Handle: handle, CreatedAt: now, LastUsedAt: now}

	s.mu.Lock()
	s.sessions[userKey] = sess
	heap.Push(&s.byAge, &ageEntry{userKey: userKey, handle: handle, createdAt: now})
	s.mu.Unlock()

	s.log.Info("Created session", "user_key", userKey, "handle", handle)
	return handle, nil
}

// Touch refreshes the session's last-used time. No-op if the session is absent.
func (s *Store) Touch(userKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[userKey]; ok {
		sess.LastUsedAt = s.now()
	}
}

// EvictExpired removes every session older than the configured lifetime and
// returns how many were evicted. The age heap lets it stop at the first
// non-expired entry instead of scanning the whole table.
func (s *Store) EvictExpired(now time.Time) int {
	s.mu.Lock()
	var victims []*Session
	for len(s.byAge) > 0 {
		oldest := s.byAge[0]
		if now.Sub(oldest.createdAt) <= s.lifetime {
			break
		}
		heap.Pop(&s.byAge)

		// Heap entries outlive sessions replaced via Reset; only entries
		// still matching the live handle evict anything.
		sess, ok := s.sessions[oldest.userKey]
		if !ok || sess.Handle != oldest.handle {
			continue
		}
		delete(s.sessions, oldest.userKey)
		victims = append(victims, sess)
	}
	s.mu.Unlock()

	for _, sess := range victims {
		s.log.Info("Evicted expired session", "user_key", sess.UserKey, "handle", sess.Handle)
		s.dropRemote(sess.Handle)
	}

	return len(victims)
}

// Reset drops the user's session and requests best-effort deletion of the
// remote conversation. Reports whether a session existed.
func (s *Store) Reset(userKey string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[userKey]
	if ok {
		delete(s.sessions, userKey)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}

	s.log.Info("Reset session", "user_key", userKey, "handle", sess.Handle)
	s.dropRemote(sess.Handle)
	return true
}

// PurgeAll drops every session, deleting remote conversations best-effort.
// Called during shutdown drain.
func (s *Store) PurgeAll() {
	s.mu.Lock()
	victims := make([]*Session, 0, len(s.sessions))
	for key, sess := range s.sessions {
		victims = append(victims, sess)
		delete(s.sessions, key)
	}
	s.byAge = nil
	s.mu.Unlock()

	for _, sess := range victims {
		s.dropRemote(sess.Handle)
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

// Run sweeps expired sessions on a fixed cadence until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := s.EvictExpired(s.now()); evicted > 0 {
				s.log.Info("Sweep finished", "evicted", evicted, "remaining", s.Len())
			}
		}
	}
}

func (s *Store) liveHandle(userKey string) (string, bool) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userKey]
	if !ok {
		return "", false
	}
	if now.Sub(sess.CreatedAt) > s.lifetime {
		// Expired but not yet swept; drop it so a fresh one gets created.
		delete(s.sessions, userKey)
		return "", false
	}

	sess.LastUsedAt = now
	return sess.Handle, true
}

func (s *Store) creationLock(userKey string) *sync.Mutex {
	s.creatingMu.Lock()
	defer s.creatingMu.Unlock()

	keyMu, ok := s.creating[userKey]
	if !ok {
		keyMu = &sync.Mutex{}
		s.creating[userKey] = keyMu
	}

	return keyMu
}

func (s *Store) dropRemote(handle string) {
	if s.remove == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.remove(ctx, handle); err != nil {
			s.log.Warn("Failed to delete remote conversation", "handle", handle, "error", err)
		}
	}()
}

// ageEntry orders sessions oldest-first by creation time.
type ageEntry struct {
	userKey   string
	handle    string
	createdAt time.Time
}

type ageHeap []*ageEntry

func (h ageHeap) Len() int            { return len(h) }
func (h ageHeap) Less(i, j int) bool  { return h[i].createdAt.Before(h[j].createdAt) }
func (h ageHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *ageHeap) Push(x any)         { *h = append(*h, x.(*ageEntry)) }
func (h *ageHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return entry
}
