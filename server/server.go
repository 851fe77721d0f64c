// Package server is the portal API purchasers' devices talk to.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/microcosm-cc/bluemonday"
	"github.com/robfig/cron"
	"golang.org/x/sync/singleflight"

	cache "github.com/openhouse/portalcache"
	"github.com/openhouse/portalcache/diagnostic"
	"github.com/openhouse/portalcache/engine"
	"github.com/openhouse/portalcache/expiration"
	"github.com/openhouse/portalcache/qrtoken"
	"github.com/openhouse/portalcache/sharedcache"
	"github.com/openhouse/portalcache/storage"
	"github.com/openhouse/portalcache/store"
	"github.com/openhouse/portalcache/types"
)

// Options carries what the server is built from. Store and Signer are
// required; everything else has a usable zero value.
type Options struct {
	Store   *store.Store
	Signer  *qrtoken.Signer
	Links   *storage.Links
	Shared  *sharedcache.Client
	Catalog *diagnostic.Catalog

	AllowDemoTokens bool
	ListingTTL      time.Duration

	// UnitTTL is how long a looked up unit is served without revalidation.
	UnitTTL time.Duration

	Now func() time.Time
}

type Server struct {
	store   *store.Store
	signer  *qrtoken.Signer
	links   *storage.Links
	shared  *sharedcache.Client
	catalog *diagnostic.Catalog

	allowDemo  bool
	listingTTL time.Duration
	now        func() time.Time

	units *cache.Reader[store.Unit]
	group singleflight.Group
	text  *bluemonday.Policy
	cron  *cron.Cron

	router *mux.Router
}

func New(o Options) (*Server, error) {
	if o.Store == nil || o.Signer == nil {
		return nil, fmt.Errorf("server needs a store and a token signer")
	}
	if o.Links == nil {
		o.Links = &storage.Links{Expiry: storage.DefaultLinkExpiry}
	}
	if o.Catalog == nil {
		o.Catalog = &diagnostic.Catalog{Flows: []diagnostic.Flow{}}
	}
	if o.ListingTTL <= 0 {
		o.ListingTTL = 5 * time.Minute
	}
	if o.UnitTTL <= 0 {
		o.UnitTTL = time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}

	s := &Server{
		store:      o.Store,
		signer:     o.Signer,
		links:      o.Links,
		shared:     o.Shared,
		catalog:    o.Catalog,
		allowDemo:  o.AllowDemoTokens,
		listingTTL: o.ListingTTL,
		now:        o.Now,
		text:       bluemonday.StripTagsPolicy(),
	}

	eng := engine.NewCacheEngine(expiration.NewFixedAge(o.UnitTTL), nil, nil)
	eng.Now = o.Now
	s.units = cache.NewReader[store.Unit](
		cache.NewKeyedCache[store.Unit](cache.DefaultShards, eng),
		types.FetchFunc[store.Unit](func(ctx context.Context, unitUID, _ string) (store.Unit, error) {
			return s.store.UnitByUID(ctx, unitUID)
		}),
		10*time.Second,
	)

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := mux.NewRouter()

	handlers := map[string]func(http.ResponseWriter, *http.Request){
		"/api/purchaser/docs-list":          s.DocsListHandler,
		"/api/purchaser/documents/download": s.DownloadHandler,
		diagnostic.FlowsPath:                s.FlowsHandler,
	}
	for url, handler := range handlers {
		r.HandleFunc(url, handler).Methods(http.MethodGet, http.MethodHead)
	}
	r.HandleFunc(diagnostic.CompletePath, s.CompleteHandler).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		respondWithErrorMessage(w, req, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		respondWithErrorMessage(w, req, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	r.Use(s.logRequests)
	s.router = r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if glog.V(1) {
			// The query holds the purchaser's token, only the path is logged.
			glog.Infof("%s %s %s", r.Method, r.URL.Path, time.Since(start))
		}
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start schedules the background jobs.
func (s *Server) Start() {
	c := cron.New()
	for schedule, job := range s.jobs() {
		if err := c.AddFunc(strings.TrimSpace(schedule), job); err != nil {
			glog.Errorf("scheduling %q: %v", schedule, err)
		}
	}
	c.Start()
	s.cron = c
}

// Stop ends the background jobs and drops in-process caches.
func (s *Server) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.units.Cache().ClearAll()
}

// ListenAndServe serves on port until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.Start()
	defer s.Stop()

	errs := make(chan error, 1)
	go func() {
		glog.Infof("listening on %s", srv.Addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}
