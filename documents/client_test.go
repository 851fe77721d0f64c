package documents

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	e "github.com/openhouse/portalcache/errors"
)

// fakePortal serves listings in the portal's response envelope.
type fakePortal struct {
	requests    int32
	notModified int32
	status      int32
	docs        []Document
}

func (f *fakePortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&f.requests, 1)

	if s := atomic.LoadInt32(&f.status); s != 0 {
		w.WriteHeader(int(s))
		json.NewEncoder(w).Encode(map[string]any{"status": s, "error": []string{"Invalid or expired token"}})
		return
	}

	switch r.URL.Path {
	case ListPath:
		if r.URL.Query().Get("token") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			atomic.AddInt32(&f.notModified, 1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		json.NewEncoder(w).Encode(map[string]any{
			"status": 200,
			"data":   ListResponse{Documents: f.docs},
		})

	case DownloadPath:
		json.NewEncoder(w).Encode(map[string]any{
			"status": 200,
			"data":   DownloadResponse{URL: "https://files.example.com/" + r.URL.Query().Get("docId")},
		})

	default:
		http.NotFound(w, r)
	}
}

func TestClientFetchUsesETag(t *testing.T) {
	portal := &fakePortal{docs: []Document{{ID: "1", Title: "Site plan"}}}
	srv := httptest.NewServer(portal)
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	ctx := context.Background()

	first, err := c.Fetch(ctx, "unit-1", "tok")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	second, err := c.Fetch(ctx, "unit-1", "tok")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if portal.notModified != 1 {
		t.Fatalf("expected a conditional request, got %d", portal.notModified)
	}
	if len(first) != 1 || len(second) != 1 || second[0].ID != "1" {
		t.Fatalf("unexpected listings %+v %+v", first, second)
	}

	// Another token is another key and fetches unconditionally.
	if _, err := c.Fetch(ctx, "unit-1", "other"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if portal.notModified != 1 {
		t.Fatalf("unexpected conditional request for a new token")
	}
}

func TestClientFetchUnauthorized(t *testing.T) {
	portal := &fakePortal{}
	srv := httptest.NewServer(portal)
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	c.Fetch(context.Background(), "unit-1", "tok")

	atomic.StoreInt32(&portal.status, http.StatusUnauthorized)
	_, err := c.Fetch(context.Background(), "unit-1", "tok")

	if !e.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	var se *e.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected StatusError, got %T", err)
	}
	if len(se.Messages) != 1 || se.URL != ListPath {
		t.Fatalf("unexpected status error %+v", se)
	}

	c.mu.Lock()
	n := len(c.etags)
	c.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected remembered listings dropped, have %d", n)
	}
}

func TestClientServerError(t *testing.T) {
	portal := &fakePortal{status: http.StatusInternalServerError}
	srv := httptest.NewServer(portal)
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).Fetch(context.Background(), "unit-1", "tok")
	if err == nil || e.IsUnauthorized(err) {
		t.Fatalf("expected plain failure, got %v", err)
	}
}

func TestClientDownloadURL(t *testing.T) {
	srv := httptest.NewServer(&fakePortal{})
	defer srv.Close()

	u, err := NewClient(srv.URL+"/", srv.Client()).DownloadURL(context.Background(), "unit-1", "tok", "doc-9")
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}
	if u != "https://files.example.com/doc-9" {
		t.Fatalf("unexpected url %q", u)
	}
}
