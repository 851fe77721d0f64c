package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// TokenRecord is a stored QR token. Only the hash of the token is kept.
type TokenRecord struct {
	ID            string
	UnitID        string
	TenantID      string
	DevelopmentID string
	TokenHash     string
	ExpiresAt     time.Time
	CreatedAt     time.Time
	RevokedAt     pq.NullTime
}

// IssueToken stores a newly signed token for a unit, deleting every token
// issued to that unit before, revoked or not.
func (s *Store) IssueToken(ctx context.Context, t TokenRecord) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx, `DELETE FROM qr_tokens WHERE unit_id = $1`, t.UnitID)
		if err != nil {
			return fmt.Errorf("invalidating tokens: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 && glog.V(2) {
			glog.Infof("invalidated %d tokens for unit %s", n, t.UnitID)
		}

		_, err = s.exec(ctx, tx, `
INSERT INTO qr_tokens (id, unit_id, tenant_id, development_id, token_hash, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.ID,
			t.UnitID,
			t.TenantID,
			t.DevelopmentID,
			t.TokenHash,
			t.ExpiresAt.UTC(),
			t.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("storing token: %w", err)
		}
		return nil
	})
}

// TokenActive reports whether a token with hash was issued, has not been
// revoked and has not expired at now.
func (s *Store) TokenActive(ctx context.Context, hash string, now time.Time) (bool, error) {
	var (
		expires   time.Time
		revokedAt pq.NullTime
	)

	err := s.queryRow(ctx, s.db, `
SELECT expires_at, revoked_at
  FROM qr_tokens
 WHERE token_hash = $1`,
		hash,
	).Scan(&expires, &revokedAt)

	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("checking token: %w", err)
	}

	return !revokedAt.Valid && now.Before(expires), nil
}

// RevokeToken stops a token from being accepted, reporting whether an
// active token was found.
func (s *Store) RevokeToken(ctx context.Context, hash string, now time.Time) (bool, error) {
	res, err := s.exec(ctx, s.db, `
UPDATE qr_tokens
   SET revoked_at = $2
 WHERE token_hash = $1
   AND revoked_at IS NULL`,
		hash,
		now.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("revoking token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PurgeExpiredTokens deletes tokens that expired before now and returns how
// many went.
func (s *Store) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.exec(ctx, s.db, `DELETE FROM qr_tokens WHERE expires_at < $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purging tokens: %w", err)
	}
	return res.RowsAffected()
}
