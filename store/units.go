package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	e "github.com/openhouse/portalcache/errors"
)

// Unit is a home on a development.
type Unit struct {
	ID            string
	UnitUID       string
	TenantID      string
	DevelopmentID string
	HouseTypeCode string
}

// UnitByUID looks a unit up by its public UID or its internal ID.
func (s *Store) UnitByUID(ctx context.Context, uid string) (Unit, error) {
	var (
		u         Unit
		houseType sql.NullString
	)

	err := s.queryRow(ctx, s.db, `
SELECT id, unit_uid, tenant_id, development_id, house_type_code
  FROM units
 WHERE unit_uid = $1 OR id = $1
 LIMIT 1`,
		uid,
	).Scan(&u.ID, &u.UnitUID, &u.TenantID, &u.DevelopmentID, &houseType)

	if errors.Is(err, sql.ErrNoRows) {
		return Unit{}, e.New(uid, "store.UnitByUID", e.UnitNotFound, "unit not found")
	}
	if err != nil {
		return Unit{}, fmt.Errorf("looking up unit %s: %w", uid, err)
	}

	u.HouseTypeCode = houseType.String
	return u, nil
}

// PutUnit inserts or replaces a unit.
func (s *Store) PutUnit(ctx context.Context, u Unit) error {
	var houseType sql.NullString
	if u.HouseTypeCode != "" {
		houseType = sql.NullString{String: u.HouseTypeCode, Valid: true}
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, `DELETE FROM units WHERE id = $1`, u.ID); err != nil {
			return err
		}
		_, err := s.exec(ctx, tx, `
INSERT INTO units (id, unit_uid, tenant_id, development_id, house_type_code)
VALUES ($1, $2, $3, $4, $5)`,
			u.ID, u.UnitUID, u.TenantID, u.DevelopmentID, houseType,
		)
		return err
	})
}
