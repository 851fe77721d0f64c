package session

import (
	"sync"

	"github.com/golang/glog"
)

/*
Session resolves the access token a purchaser presents for a unit.

A unit without a stored token falls back to its own UID, which the API
accepts for demo units.
*/
type Session struct {
	store Store

	mu    sync.Mutex
	hooks []func()
}

func New(store Store) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Session{store: store}
}

// Token returns the token to send for unitUID.
func (s *Session) Token(unitUID string) string {
	t, ok, err := s.store.Get(unitUID)
	if err != nil {
		glog.Warningf("reading token for %s: %v", unitUID, err)
	}
	if !ok || t == "" {
		return unitUID
	}
	return t
}

// SetToken remembers the token scanned from a unit's QR code.
func (s *Session) SetToken(unitUID, token string) error {
	return s.store.Set(unitUID, token)
}

// Forget drops the token stored for one unit.
func (s *Session) Forget(unitUID string) error {
	return s.store.Delete(unitUID)
}

// OnSignOut registers fn to run after every sign-out.
func (s *Session) OnSignOut(fn func()) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// SignOut clears every stored token and runs the sign-out hooks. The hooks
// run even when clearing the store failed.
func (s *Session) SignOut() error {
	err := s.store.Clear()
	s.notify()
	return err
}

func (s *Session) notify() {
	s.mu.Lock()
	hooks := append([]func(){}, s.hooks...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}
