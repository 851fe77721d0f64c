package server

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	e "github.com/openhouse/portalcache/errors"
	"github.com/openhouse/portalcache/qrtoken"
	"github.com/openhouse/portalcache/store"
)

// IssueToken signs a QR token for the unit and stores its hash. Tokens
// issued to the unit before stop working.
func (s *Server) IssueToken(ctx context.Context, unitUID string) (qrtoken.Generated, error) {
	u, err := s.store.UnitByUID(ctx, unitUID)
	if err != nil {
		return qrtoken.Generated{}, err
	}

	g, err := s.signer.Sign(qrtoken.Payload{
		UnitID:        u.ID,
		TenantID:      u.TenantID,
		DevelopmentID: u.DevelopmentID,
		UnitUID:       u.UnitUID,
	})
	if err != nil {
		return qrtoken.Generated{}, err
	}

	err = s.store.IssueToken(ctx, store.TokenRecord{
		UnitID:        u.ID,
		TenantID:      u.TenantID,
		DevelopmentID: u.DevelopmentID,
		TokenHash:     qrtoken.Hash(g.Token),
		CreatedAt:     g.IssuedAt,
		ExpiresAt:     g.ExpiresAt,
	})
	if err != nil {
		return qrtoken.Generated{}, err
	}

	glog.Infof("issued QR token for unit %s, expires %s", u.UnitUID, g.ExpiresAt.Format("2006-01-02"))
	return g, nil
}

// RevokeToken stops token from being accepted. Revoking an unknown or
// already revoked token is an InvalidToken error.
func (s *Server) RevokeToken(ctx context.Context, token string) error {
	p, err := s.signer.Verify(token)
	if err != nil {
		return err
	}

	ok, err := s.store.RevokeToken(ctx, qrtoken.Hash(token), s.now())
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	if !ok {
		return e.New(p.UnitUID, "server.RevokeToken", e.InvalidToken, "the token is not active")
	}

	s.units.Cache().Invalidate(p.UnitUID)
	return nil
}
