package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func countingCreate(counter *atomic.Int64) CreateFunc {
	return func(_ context.Context, userKey string) (string, error) {
		n := counter.Add(1)
		return fmt.Sprintf("thread-%s-%d", userKey, n), nil
	}
}

func TestGetOrCreateReusesLiveSession(t *testing.T) {
	t.Parallel()

	var created atomic.Int64
	clock := newFakeClock()
	store := New(countingCreate(&created), nil, 24*time.Hour, nil)
	store.now = clock.Now

	first, err := store.GetOrCreate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}

	second, err := store.GetOrCreate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}

	if first != second {
		t.Fatalf("handles differ: %q vs %q", first, second)
	}
	if created.Load() != 1 {
		t.Fatalf("create calls = %d, want 1", created.Load())
	}
}

func TestGetOrCreateSingleCreationUnderConcurrency(t *testing.T) {
	t.Parallel()

	var created atomic.Int64
	slowCreate := func(_ context.Context, userKey string) (string, error) {
		created.Add(1)
		time.Sleep(10 * time.Millisecond)
		return "thread-" + userKey, nil
	}

	store := New(slowCreate, nil, 24*time.Hour, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.GetOrCreate(context.Background(), "user-1"); err != nil {
				t.Errorf("GetOrCreate error: %v", err)
			}
		}()
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Fatalf("create calls = %d, want 1", created.Load())
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
}

func TestGetOrCreateDistinctUsers(t *testing.T) {
	t.Parallel()

	var created atomic.Int64
	store := New(countingCreate(&created), nil, 24*time.Hour, nil)

	a, _ := store.GetOrCreate(context.Background(), "user-a")
	b, _ := store.GetOrCreate(context.Background(), "user-b")

	if a == b {
		t.Fatalf("distinct users share handle %q", a)
	}
	if created.Load() != 2 {
		t.Fatalf("create calls = %d, want 2", created.Load())
	}
}

func TestSessionExpiresAfterLifetime(t *testing.T) {
	t.Parallel()

	var created atomic.Int64
	clock := newFakeClock()
	store := New(countingCreate(&created), nil, 24*time.Hour, nil)
	store.now = clock.Now

	first, err := store.GetOrCreate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}

	clock.Advance(23 * time.Hour)
	same, err := store.GetOrCreate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	if same != first {
		t.Fatalf("session replaced at 23h: %q vs %q", same, first)
	}

	clock.Advance(2 * time.Hour)
	fresh, err := store.GetOrCreate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	if fresh == first {
		t.Fatal("expired session returned unchanged at 25h")
	}
	if created.Load() != 2 {
		t.Fatalf("create calls = %d, want 2", created.Load())
	}
}

func TestEvictExpiredStopsAtFirstLiveEntry(t *testing.T) {
	t.Parallel()

	var created atomic.Int64
	clock := newFakeClock()
	store := New(countingCreate(&created), nil, 24*time.Hour, nil)
	store.now = clock.Now

	if _, err := store.GetOrCreate(context.Background(), "old-user"); err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	clock.Advance(20 * time.Hour)
	if _, err := store.GetOrCreate(context.Background(), "new-user"); err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}

	clock.Advance(5 * time.Hour)
	if evicted := store.EvictExpired(clock.Now()); evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
}

func TestEvictExpiredIdempotent(t *testing.T) {
	t.Parallel()

	var created atomic.Int64
	clock := newFakeClock()
	store := New(countingCreate(&created), nil, time.Hour, nil)
	store.now = clock.Now

	if _, err := store.GetOrCreate(context.Background(), "user-1"); err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}

	clock.Advance(2 * time.Hour)
	if evicted := store.EvictExpired(clock.Now()); evicted != 1 {
		t.Fatalf("first sweep evicted = %d, want 1", evicted)
	}
	if evicted := store.EvictExpired(clock.Now()); evicted != 0 {
		t.Fatalf("second sweep evicted = %d, want 0", evicted)
	}
}

func TestEvictSkipsStaleHeapEntries(t *testing.T) {
	t.Parallel()

	var created atomic.Int64
	clock := newFakeClock()
	store := New(countingCreate(&created), nil, time.Hour, nil)
	store.now = clock.Now

	if _, err := store.GetOrCreate(context.Background(), "user-1"); err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}

	// Reset leaves a stale heap entry behind; recreate, then sweep past the
	// original creation time.
	store.Reset("user-1")
	clock.Advance(30 * time.Minute)
	if _, err := store.GetOrCreate(context.Background(), "user-1"); err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}

	clock.Advance(45 * time.Minute)
	if evicted := store.EvictExpired(clock.Now()); evicted != 0 {
		t.Fatalf("evicted = %d, want 0 (stale entry only)", evicted)
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
}

func TestCreateFailurePropagates(t *testing.T) {
	t.Parallel()

	failing := func(context.Context, string) (string, error) {
		return "", errors.New("remote unavailable")
	}
	store := New(failing, nil, time.Hour, nil)

	_, err := store.GetOrCreate(context.Background(), "user-1")
	if !errors.Is(err, ErrCreationFailed) {
		t.Fatalf("error = %v, want ErrCreationFailed", err)
	}
	if store.Len() != 0 {
		t.Fatalf("Len = %d, want 0 after failed create", store.Len())
	}
}

func TestResetReportsExistence(t *testing.T) {
	t.Parallel()

	var created atomic.Int64
	store := New(countingCreate(&created), nil, time.Hour, nil)

	if store.Reset("user-1") {
		t.Fatal("Reset reported true for absent session")
	}

	if _, err := store.GetOrCreate(context.Background(), "user-1"); err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	if !store.Reset("user-1") {
		t.Fatal("Reset reported false for live session")
	}
	if store.Len() != 0 {
		t.Fatalf("Len = %d, want 0", store.Len())
	}
}

func TestTouchRefreshesLastUsed(t *testing.T) {
	t.Parallel()

	var created atomic.Int64
	clock := newFakeClock()
	store := New(countingCreate(&created), nil, 24*time.Hour, nil)
	store.now = clock.Now

	if _, err := store.GetOrCreate(context.Background(), "user-1"); err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}

	clock.Advance(time.Hour)
	store.Touch("user-1")

	store.mu.Lock()
	sess := store.sessions["user-1"]
	store.mu.Unlock()

	if !sess.LastUsedAt.Equal(clock.Now()) {
		t.Fatalf("LastUsedAt = %v, want %v", sess.LastUsedAt, clock.Now())
	}

	// Touch for an unknown user must not panic or create anything.
	store.Touch("ghost")
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
}
