package documents

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openhouse/portalcache/engine"
	e "github.com/openhouse/portalcache/errors"
	"github.com/openhouse/portalcache/expiration"
	"github.com/openhouse/portalcache/session"
)

func newTestService(t *testing.T, portal *fakePortal) (*Service, *session.Session) {
	t.Helper()
	srv := httptest.NewServer(portal)
	t.Cleanup(srv.Close)

	sess := session.New(session.NewMemoryStore())
	eng := engine.NewCacheEngine(expiration.NewFixedAge(time.Minute), nil, nil)
	return NewService(sess, NewClient(srv.URL, srv.Client()), eng, time.Second), sess
}

func TestServiceListCaches(t *testing.T) {
	portal := &fakePortal{docs: []Document{{ID: "1", Title: "Boiler manual"}, {ID: "2", Title: "Site plan"}}}
	svc, sess := newTestService(t, portal)
	sess.SetToken("unit-1", "tok")
	ctx := context.Background()

	lk, err := svc.List(ctx, "unit-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !lk.Found || lk.Stale || len(lk.Data) != 2 {
		t.Fatalf("unexpected lookup %+v", lk)
	}

	if _, err := svc.List(ctx, "unit-1"); err != nil {
		t.Fatalf("List: %v", err)
	}
	if n := atomic.LoadInt32(&portal.requests); n != 1 {
		t.Fatalf("expected fresh hit to skip the API, got %d requests", n)
	}

	got, err := svc.Search(ctx, "unit-1", "boiler")
	if err != nil || len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("Search = %+v, %v", got, err)
	}
}

func TestServiceUsesUnitUIDWithoutToken(t *testing.T) {
	portal := &fakePortal{docs: []Document{}}
	svc, _ := newTestService(t, portal)

	if _, err := svc.List(context.Background(), "unit-1"); err != nil {
		t.Fatalf("List: %v", err)
	}
	if lk := svc.Cache().Get("unit-1", "unit-1"); !lk.Found {
		t.Fatalf("expected listing cached under the unit uid token")
	}
}

func TestServiceSignOutClears(t *testing.T) {
	portal := &fakePortal{docs: []Document{{ID: "1"}}}
	svc, sess := newTestService(t, portal)
	sess.SetToken("unit-1", "tok")

	svc.List(context.Background(), "unit-1")
	if err := svc.SignOut(); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	if lk := svc.Cache().Get("unit-1", "tok"); lk.Found {
		t.Fatalf("expected cache cleared on sign out")
	}
	if tok := sess.Token("unit-1"); tok != "unit-1" {
		t.Fatalf("expected token forgotten, got %q", tok)
	}
}

func TestServiceDownloadUnauthorizedInvalidates(t *testing.T) {
	portal := &fakePortal{docs: []Document{{ID: "1"}}}
	svc, _ := newTestService(t, portal)
	ctx := context.Background()

	svc.List(ctx, "unit-1")

	u, err := svc.DownloadURL(ctx, "unit-1", "1")
	if err != nil || u == "" {
		t.Fatalf("DownloadURL = %q, %v", u, err)
	}

	atomic.StoreInt32(&portal.status, http.StatusForbidden)
	if _, err := svc.DownloadURL(ctx, "unit-1", "1"); !e.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if lk := svc.Cache().Get("unit-1", "unit-1"); lk.Found {
		t.Fatalf("expected listings invalidated")
	}
}
