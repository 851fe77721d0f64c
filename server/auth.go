package server

import (
	"context"

	e "github.com/openhouse/portalcache/errors"
	"github.com/openhouse/portalcache/qrtoken"
	"github.com/openhouse/portalcache/store"
)

/*
authorise checks that token grants access to unitUID and returns the unit.

A token is accepted when it is a QR token signed for this unit that is still
active in the store, or, with demo tokens allowed, when it is the unit UID
itself.
*/
func (s *Server) authorise(ctx context.Context, unitUID, token string) (store.Unit, error) {
	const fn = "server.authorise"

	if token == "" {
		return store.Unit{}, e.New(unitUID, fn, e.InvalidToken, "Invalid or expired token")
	}

	ok := false
	if p, err := s.signer.Verify(token); err == nil && p.UnitUID == unitUID {
		active, err := s.store.TokenActive(ctx, qrtoken.Hash(token), s.now())
		if err != nil {
			return store.Unit{}, err
		}
		ok = active
	}
	if !ok && s.allowDemo && token == unitUID {
		ok = true
	}
	if !ok {
		return store.Unit{}, e.New(unitUID, fn, e.InvalidToken, "Invalid or expired token")
	}

	lk, err := s.units.Read(ctx, unitUID, "")
	if err != nil {
		return store.Unit{}, err
	}
	return lk.Data, nil
}
