package server

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/openhouse/portalcache/documents"
)

func listingKey(developmentID string) string {
	return "docs:" + developmentID
}

/*
developmentDocuments returns the current document records of a development.

Records are shared by every unit of the development, so they are cached in
memcache before house type filtering. Concurrent misses for one development
share a single query.
*/
func (s *Server) developmentDocuments(ctx context.Context, developmentID string) ([]documents.Record, error) {
	key := listingKey(developmentID)

	var recs []documents.Record
	if s.shared.Get(key, &recs) {
		return recs, nil
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		recs, err := s.store.DocumentsForDevelopment(context.WithoutCancel(ctx), developmentID)
		if err != nil {
			return nil, fmt.Errorf("listing development %s: %w", developmentID, err)
		}
		s.shared.Set(key, recs, s.listingTTL)
		return recs, nil
	})
	if err != nil {
		return nil, err
	}
	if shared && bool(glog.V(2)) {
		glog.Infof("listing for development %s shared with a concurrent request", developmentID)
	}
	return v.([]documents.Record), nil
}

// ForgetDevelopment drops the cached listing of a development, for use
// after its documents change.
func (s *Server) ForgetDevelopment(developmentID string) {
	s.shared.Delete(listingKey(developmentID))
	s.group.Forget(listingKey(developmentID))
}

// sanitise strips markup from the text purchasers are shown.
func (s *Server) sanitise(docs []documents.Document) {
	for i := range docs {
		docs[i].Title = s.text.Sanitize(docs[i].Title)
	}
}
