package documents

import (
	"context"
	"time"

	cache "github.com/openhouse/portalcache"
	"github.com/openhouse/portalcache/api"
	"github.com/openhouse/portalcache/engine"
	e "github.com/openhouse/portalcache/errors"
	"github.com/openhouse/portalcache/session"
)

/*
Service is the purchaser's view of their documents: listings are read
through a stale-while-revalidate cache keyed by (unit, token), with the
token taken from the session.

Signing out clears the cache and cancels every fetch in flight.
*/
type Service struct {
	session *session.Session
	client  *Client
	reader  *cache.Reader[[]Document]
}

func NewService(sess *session.Session, client *Client, eng *engine.CacheEngine, fetchTimeout time.Duration) *Service {
	c := cache.NewKeyedCache[[]Document](cache.DefaultShards, eng)
	s := &Service{
		session: sess,
		client:  client,
		reader:  cache.NewReader[[]Document](c, client, fetchTimeout),
	}

	sess.OnSignOut(func() {
		c.ClearAll()
		client.Reset()
	})
	return s
}

// Cache exposes the listing cache.
func (s *Service) Cache() *cache.KeyedCache[[]Document] {
	return s.reader.Cache()
}

// List returns the unit's documents. Stale listings are returned with
// Lookup.Stale set while they are refreshed in the background.
func (s *Service) List(ctx context.Context, unitUID string) (api.Lookup[[]Document], error) {
	return s.reader.Read(ctx, unitUID, s.session.Token(unitUID))
}

// Search lists the unit's documents and filters them by title.
func (s *Service) Search(ctx context.Context, unitUID, query string) ([]Document, error) {
	lk, err := s.List(ctx, unitUID)
	if err != nil {
		return nil, err
	}
	return Search(lk.Data, query), nil
}

// DownloadURL returns a link to one of the unit's documents. A rejected
// token also drops the unit's cached listings.
func (s *Service) DownloadURL(ctx context.Context, unitUID, docID string) (string, error) {
	u, err := s.client.DownloadURL(ctx, unitUID, s.session.Token(unitUID), docID)
	if err != nil {
		if e.IsUnauthorized(err) {
			s.reader.Cache().Invalidate(unitUID)
		}
		return "", err
	}
	return u, nil
}

// Refresh drops the unit's cached listings so the next List fetches.
func (s *Service) Refresh(unitUID string) {
	s.reader.Cache().Invalidate(unitUID)
}

// SignOut forgets every token and clears the cache.
func (s *Service) SignOut() error {
	return s.session.SignOut()
}
