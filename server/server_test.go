package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/openhouse/portalcache/config"
	"github.com/openhouse/portalcache/diagnostic"
	"github.com/openhouse/portalcache/documents"
	"github.com/openhouse/portalcache/engine"
	"github.com/openhouse/portalcache/qrtoken"
	"github.com/openhouse/portalcache/session"
	"github.com/openhouse/portalcache/sharedcache"
	"github.com/openhouse/portalcache/store"
)

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

const testFlows = `
[[flows]]
id = "hot-water"
name = "No Hot Water"

  [[flows.steps]]
  id = "immersion"
  type = "yes_no"
  title = "Is the immersion switched on?"
  yes_action = "escalated"
  no_action = "resolved"
`

type memBackend struct {
	mu    sync.Mutex
	items map[string]*memcache.Item
}

func (m *memBackend) Get(key string) (*memcache.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok := m.items[key]; ok {
		return it, nil
	}
	return nil, memcache.ErrCacheMiss
}

func (m *memBackend) Set(it *memcache.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[it.Key] = it
	return nil
}

func (m *memBackend) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

type fixture struct {
	srv    *Server
	http   *httptest.Server
	store  *store.Store
	token  string
	signer *qrtoken.Signer
}

func newFixture(t *testing.T, allowDemo bool, shared *sharedcache.Client) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(config.DB{Driver: "sqlite", DSN: "file::memory:?_time_format=sqlite"})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	st.PutUnit(ctx, store.Unit{ID: "u-1", UnitUID: "LP-001", TenantID: "t-1", DevelopmentID: "dev-1", HouseTypeCode: "BD01"})
	st.PutUnit(ctx, store.Unit{ID: "u-2", UnitUID: "LP-002", TenantID: "t-1", DevelopmentID: "dev-1", HouseTypeCode: "BD02"})

	for _, r := range []documents.Record{
		{ID: "d1", DevelopmentID: "dev-1", Title: "Site plan", FileURL: "https://cdn.example.com/site.pdf", CreatedAt: testNow.Add(-3 * time.Hour)},
		{ID: "d2", DevelopmentID: "dev-1", Title: "BD02 floor plan", FileURL: "https://cdn.example.com/bd02.pdf", CreatedAt: testNow.Add(-2 * time.Hour)},
		{ID: "d3", DevelopmentID: "dev-1", Title: "<b>Warranty</b>", FileURL: "https://cdn.example.com/warranty.pdf", CreatedAt: testNow.Add(-time.Hour), IsImportant: true},
	} {
		if err := st.PutDocument(ctx, r); err != nil {
			t.Fatalf("PutDocument: %v", err)
		}
	}

	signer, _ := qrtoken.NewSigner("secret", "https://portal.example.com")
	signer.Now = func() time.Time { return testNow }
	g, err := signer.Sign(qrtoken.Payload{UnitID: "u-1", TenantID: "t-1", DevelopmentID: "dev-1", UnitUID: "LP-001"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	st.IssueToken(ctx, store.TokenRecord{
		UnitID:        "u-1",
		TenantID:      "t-1",
		DevelopmentID: "dev-1",
		TokenHash:     qrtoken.Hash(g.Token),
		CreatedAt:     g.IssuedAt,
		ExpiresAt:     g.ExpiresAt,
	})

	catalog, err := diagnostic.ParseCatalog(testFlows)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}

	srv, err := New(Options{
		Store:           st,
		Signer:          signer,
		Shared:          shared,
		Catalog:         catalog,
		AllowDemoTokens: allowDemo,
		Now:             func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)

	return &fixture{srv: srv, http: hs, store: st, token: g.Token, signer: signer}
}

func (f *fixture) get(t *testing.T, path string, params map[string]string, header http.Header) (*http.Response, StandardResponse) {
	t.Helper()

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	req, _ := http.NewRequest(http.MethodGet, f.http.URL+path+"?"+q.Encode(), nil)
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := f.http.Client().Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	var body StandardResponse
	if resp.StatusCode != http.StatusNotModified {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decoding %s: %v", path, err)
		}
	}
	return resp, body
}

func listing(t *testing.T, body StandardResponse) []documents.Document {
	t.Helper()
	b, _ := json.Marshal(body.Data)
	var l documents.ListResponse
	if err := json.Unmarshal(b, &l); err != nil {
		t.Fatalf("decoding listing: %v", err)
	}
	return l.Documents
}

func TestDocsListRequiresUnit(t *testing.T) {
	f := newFixture(t, false, nil)

	resp, body := f.get(t, "/api/purchaser/docs-list", map[string]string{"token": f.token}, nil)
	if resp.StatusCode != http.StatusBadRequest || body.Status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if len(body.Errors) != 1 || body.Errors[0] != "Unit UID is required" {
		t.Fatalf("unexpected errors %v", body.Errors)
	}
}

func TestDocsListAuth(t *testing.T) {
	f := newFixture(t, false, nil)
	path := "/api/purchaser/docs-list"

	cases := []struct {
		name  string
		unit  string
		token string
		want  int
	}{
		{"signed token", "LP-001", f.token, http.StatusOK},
		{"no token", "LP-001", "", http.StatusUnauthorized},
		{"garbage token", "LP-001", "nope", http.StatusUnauthorized},
		{"token for another unit", "LP-002", f.token, http.StatusUnauthorized},
		{"demo token disabled", "LP-001", "LP-001", http.StatusUnauthorized},
	}
	for _, c := range cases {
		resp, _ := f.get(t, path, map[string]string{"unitUid": c.unit, "token": c.token}, nil)
		if resp.StatusCode != c.want {
			t.Errorf("%s: got %d, want %d", c.name, resp.StatusCode, c.want)
		}
	}
}

func TestDocsListDemoTokens(t *testing.T) {
	f := newFixture(t, true, nil)
	path := "/api/purchaser/docs-list"

	resp, body := f.get(t, path, map[string]string{"unitUid": "LP-002", "token": "LP-002"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected demo token accepted, got %d", resp.StatusCode)
	}
	docs := listing(t, body)
	if len(docs) != 3 || docs[1].ID != "d2" || !docs[1].IsHouseSpecific || docs[0].IsHouseSpecific {
		t.Fatalf("unexpected BD02 listing %+v", docs)
	}

	resp, _ = f.get(t, path, map[string]string{"unitUid": "LP-404", "token": "LP-404"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected unknown unit to 404, got %d", resp.StatusCode)
	}
}

func TestDocsListFiltersAndSanitises(t *testing.T) {
	f := newFixture(t, false, nil)
	params := map[string]string{"unitUid": "LP-001", "token": f.token}

	resp, body := f.get(t, "/api/purchaser/docs-list", params, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", resp.StatusCode, body.Errors)
	}

	docs := listing(t, body)
	if len(docs) != 2 || docs[0].ID != "d1" || docs[1].ID != "d3" {
		t.Fatalf("unexpected listing %+v", docs)
	}
	if docs[0].Category != documents.Floorplans {
		t.Errorf("site plan category = %q", docs[0].Category)
	}
	if docs[1].Title != "Warranty" || !docs[1].MustRead {
		t.Errorf("unexpected warranty %+v", docs[1])
	}

	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatalf("expected an ETag")
	}
	resp, _ = f.get(t, "/api/purchaser/docs-list", params, http.Header{"If-None-Match": {etag}})
	if resp.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", resp.StatusCode)
	}
}

func TestDocsListSharedCache(t *testing.T) {
	shared := sharedcache.NewWithBackend(&memBackend{items: map[string]*memcache.Item{}}, "test:")
	f := newFixture(t, true, shared)
	params := map[string]string{"unitUid": "LP-001", "token": "LP-001"}

	_, body := f.get(t, "/api/purchaser/docs-list", params, nil)
	if n := len(listing(t, body)); n != 2 {
		t.Fatalf("expected 2 documents, got %d", n)
	}

	f.store.PutDocument(context.Background(), documents.Record{
		ID: "d4", DevelopmentID: "dev-1", Title: "Bin collection", FileURL: "https://cdn.example.com/bins.pdf", CreatedAt: testNow,
	})

	_, body = f.get(t, "/api/purchaser/docs-list", params, nil)
	if n := len(listing(t, body)); n != 2 {
		t.Fatalf("expected cached listing, got %d documents", n)
	}

	f.srv.ForgetDevelopment("dev-1")
	_, body = f.get(t, "/api/purchaser/docs-list", params, nil)
	if n := len(listing(t, body)); n != 3 {
		t.Fatalf("expected fresh listing, got %d documents", n)
	}
}

func TestDownload(t *testing.T) {
	f := newFixture(t, false, nil)
	path := "/api/purchaser/documents/download"

	resp, body := f.get(t, path, map[string]string{"unitUid": "LP-001", "token": f.token, "docId": "d3"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", resp.StatusCode, body.Errors)
	}
	if u := body.Data.(map[string]any)["url"]; u != "https://cdn.example.com/warranty.pdf" {
		t.Fatalf("unexpected url %v", u)
	}

	resp, _ = f.get(t, path, map[string]string{"unitUid": "LP-001", "token": f.token, "docId": "d2"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected another house type's document to 404, got %d", resp.StatusCode)
	}

	resp, _ = f.get(t, path, map[string]string{"unitUid": "LP-001", "token": f.token}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without docId, got %d", resp.StatusCode)
	}
}

func TestDiagnosticEndpoints(t *testing.T) {
	f := newFixture(t, false, nil)

	resp, body := f.get(t, "/api/care/diagnostic/flows", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	flows := body.Data.(map[string]any)["flows"].([]any)
	if len(flows) != 1 {
		t.Fatalf("unexpected flows %v", flows)
	}

	post := func(body string) int {
		resp, err := f.http.Client().Post(f.http.URL+diagnostic.CompletePath, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := post(`{"diagnostic_flow_id":"hot-water","outcome":"resolved","steps_completed":["immersion"],"unit_uid":"LP-001"}`); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if code := post(`{"diagnostic_flow_id":"hot-water","outcome":"maybe"}`); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad outcome, got %d", code)
	}
	if code := post(`{"diagnostic_flow_id":"cold-water","outcome":"resolved"}`); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown flow, got %d", code)
	}
	if code := post(`{`); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", code)
	}

	got, err := f.store.Completions(context.Background(), "hot-water")
	if err != nil || len(got) != 1 || got[0].UnitUID != "LP-001" {
		t.Fatalf("Completions = %+v, %v", got, err)
	}

	resp, _ = f.get(t, diagnostic.CompletePath, nil, nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestPurgeExpiredTokens(t *testing.T) {
	f := newFixture(t, false, nil)
	params := map[string]string{"unitUid": "LP-001", "token": f.token}

	f.srv.now = func() time.Time { return testNow.Add(qrtoken.DefaultExpiry + time.Hour) }
	f.signer.Now = f.srv.now
	f.srv.PurgeExpiredTokens()

	f.srv.now = func() time.Time { return testNow }
	f.signer.Now = f.srv.now
	resp, _ := f.get(t, "/api/purchaser/docs-list", params, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected purged token to be refused, got %d", resp.StatusCode)
	}
}

// TestPurchaserClient runs the purchaser side against the real API.
func TestPurchaserClient(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()

	sess := session.New(session.NewMemoryStore())
	sess.SetToken("LP-001", f.token)

	svc := documents.NewService(
		sess,
		documents.NewClient(f.http.URL, f.http.Client()),
		engine.NewCacheEngine(nil, nil, nil),
		time.Second,
	)

	lk, err := svc.List(ctx, "LP-001")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(lk.Data) != 2 {
		t.Fatalf("unexpected listing %+v", lk.Data)
	}

	u, err := svc.DownloadURL(ctx, "LP-001", "d1")
	if err != nil || u != "https://cdn.example.com/site.pdf" {
		t.Fatalf("DownloadURL = %q, %v", u, err)
	}

	// Without a stored token the unit uid is sent, which this API refuses.
	svc.SignOut()
	if _, err := svc.List(ctx, "LP-001"); err == nil {
		t.Fatalf("expected unauthorized after sign out")
	}
}

func TestIssueAndRevokeToken(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()
	path := "/api/purchaser/docs-list"

	first, err := f.srv.IssueToken(ctx, "LP-002")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if !strings.Contains(first.URL, "LP-002") {
		t.Errorf("onboarding url %q does not name the unit", first.URL)
	}
	resp, _ := f.get(t, path, map[string]string{"unitUid": "LP-002", "token": first.Token}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected issued token accepted, got %d", resp.StatusCode)
	}

	second, err := f.srv.IssueToken(ctx, "LP-002")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	resp, _ = f.get(t, path, map[string]string{"unitUid": "LP-002", "token": first.Token}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected replaced token rejected, got %d", resp.StatusCode)
	}

	if err := f.srv.RevokeToken(ctx, second.Token); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	resp, _ = f.get(t, path, map[string]string{"unitUid": "LP-002", "token": second.Token}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected revoked token rejected, got %d", resp.StatusCode)
	}
	if err := f.srv.RevokeToken(ctx, second.Token); err == nil {
		t.Fatalf("expected second revoke to fail")
	}

	if _, err := f.srv.IssueToken(ctx, "LP-404"); err == nil {
		t.Fatalf("expected unknown unit to fail")
	}
}
