package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestTokenFallsBackToUnitUID(t *testing.T) {
	s := New(NewMemoryStore())

	if got := s.Token("unit-1"); got != "unit-1" {
		t.Fatalf("expected fallback to unit uid, got %q", got)
	}

	if err := s.SetToken("unit-1", "signed"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if got := s.Token("unit-1"); got != "signed" {
		t.Fatalf("expected stored token, got %q", got)
	}

	if err := s.Forget("unit-1"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if got := s.Token("unit-1"); got != "unit-1" {
		t.Fatalf("expected fallback after forget, got %q", got)
	}
}

func TestSignOutRunsHooks(t *testing.T) {
	s := New(NewMemoryStore())
	s.SetToken("unit-1", "a")
	s.SetToken("unit-2", "b")

	var calls int32
	s.OnSignOut(func() { atomic.AddInt32(&calls, 1) })
	s.OnSignOut(func() { atomic.AddInt32(&calls, 1) })

	if err := s.SignOut(); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected both hooks to run, got %d", calls)
	}
	if got := s.Token("unit-2"); got != "unit-2" {
		t.Fatalf("expected tokens cleared, got %q", got)
	}
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sessions.json")

	a := NewFileStore(path)
	if err := a.Set("unit-1", "tok-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// A second store on the same file sees the write.
	b := NewFileStore(path)
	tok, ok, err := b.Get("unit-1")
	if err != nil || !ok || tok != "tok-1" {
		t.Fatalf("Get = %q, %v, %v", tok, ok, err)
	}

	if err := b.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := a.Get("unit-1"); ok {
		t.Fatalf("expected token gone after clear")
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	os.WriteFile(path, []byte("{not json"), 0o600)

	if _, _, err := NewFileStore(path).Get("unit-1"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestCookieStore(t *testing.T) {
	c, err := NewCookieStore("https://portal.example.com")
	if err != nil {
		t.Fatalf("NewCookieStore: %v", err)
	}

	c.Set("unit-1", "tok-1")
	c.Set("unit-2", "tok-2")

	if tok, ok, _ := c.Get("unit-1"); !ok || tok != "tok-1" {
		t.Fatalf("Get = %q, %v", tok, ok)
	}

	c.Delete("unit-1")
	if _, ok, _ := c.Get("unit-1"); ok {
		t.Fatalf("expected unit-1 deleted")
	}
	if _, ok, _ := c.Get("unit-2"); !ok {
		t.Fatalf("expected unit-2 kept")
	}

	c.Clear()
	if _, ok, _ := c.Get("unit-2"); ok {
		t.Fatalf("expected all cookies cleared")
	}
}

func TestCookieStoreRejectsBadOrigin(t *testing.T) {
	if _, err := NewCookieStore("file:///tmp"); err == nil {
		t.Fatalf("expected error for non http origin")
	}
}

type failingStore struct{}

func (failingStore) Get(string) (string, bool, error) { return "", false, errors.New("unavailable") }
func (failingStore) Set(string, string) error         { return errors.New("unavailable") }
func (failingStore) Delete(string) error              { return errors.New("unavailable") }
func (failingStore) Clear() error                     { return errors.New("unavailable") }

func TestChainSkipsFailingLayer(t *testing.T) {
	mem := NewMemoryStore()
	chain := Chain{failingStore{}, mem}

	if err := chain.Set("unit-1", "tok"); err != nil {
		t.Fatalf("expected set to succeed on one layer, got %v", err)
	}
	tok, ok, err := chain.Get("unit-1")
	if err != nil || !ok || tok != "tok" {
		t.Fatalf("Get = %q, %v, %v", tok, ok, err)
	}

	if err := (Chain{failingStore{}}).Set("unit-1", "tok"); err == nil {
		t.Fatalf("expected error when every layer fails")
	}
}

func TestChainReadsFirstLayerWithValue(t *testing.T) {
	first, second := NewMemoryStore(), NewMemoryStore()
	second.Set("unit-1", "from-second")

	tok, ok, _ := Chain{first, second}.Get("unit-1")
	if !ok || tok != "from-second" {
		t.Fatalf("Get = %q, %v", tok, ok)
	}

	first.Set("unit-1", "from-first")
	tok, _, _ = Chain{first, second}.Get("unit-1")
	if tok != "from-first" {
		t.Fatalf("expected first layer to win, got %q", tok)
	}
}

func TestWatchFileNotifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	store := NewFileStore(path)
	store.Set("unit-1", "tok")

	s := New(store)
	fired := make(chan struct{}, 1)
	s.OnSignOut(func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.WatchFile(ctx, store) }()

	// Give the watcher time to register before touching the file.
	time.Sleep(100 * time.Millisecond)
	NewFileStore(path).Clear()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatalf("expected hook after the file changed")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch: %v", err)
	}
}

func TestWatchFileIgnoresOwnWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	store := NewFileStore(path)
	store.Set("unit-1", "tok")

	s := New(store)
	var fired atomic.Int64
	s.OnSignOut(func() { fired.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.WatchFile(ctx, store) }()

	time.Sleep(100 * time.Millisecond)
	if err := s.SetToken("unit-2", "tok-2"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if err := s.Forget("unit-1"); err != nil {
		t.Fatalf("Forget: %v", err)
	}

	time.Sleep(4 * watchDebounce)
	if n := fired.Load(); n != 0 {
		t.Fatalf("own writes ran the hooks %d times", n)
	}

	// another process rewriting the file still counts
	NewFileStore(path).Clear()
	deadline := time.Now().Add(3 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if fired.Load() == 0 {
		t.Fatalf("expected hook after another writer changed the file")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch: %v", err)
	}
}
