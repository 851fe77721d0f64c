package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openhouse/portalcache/documents"
	e "github.com/openhouse/portalcache/errors"
)

const documentColumns = `
id, development_id, title, file_url, mime_type, created_at, metadata,
house_type_code, is_important, important_rank, must_read, is_superseded`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (documents.Record, error) {
	var (
		d         documents.Record
		metadata  []byte
		houseType sql.NullString
		rank      sql.NullInt64
	)

	err := r.Scan(
		&d.ID,
		&d.DevelopmentID,
		&d.Title,
		&d.FileURL,
		&d.MimeType,
		&d.CreatedAt,
		&metadata,
		&houseType,
		&d.IsImportant,
		&rank,
		&d.MustRead,
		&d.IsSuperseded,
	)
	if err != nil {
		return d, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &d.Metadata); err != nil {
			return d, fmt.Errorf("decoding metadata of document %s: %w", d.ID, err)
		}
	}
	d.HouseTypeCode = houseType.String
	if rank.Valid {
		r := int(rank.Int64)
		d.ImportantRank = &r
	}
	return d, nil
}

// DocumentsForDevelopment returns the current documents of a development,
// oldest first. Superseded documents are left out.
func (s *Store) DocumentsForDevelopment(ctx context.Context, developmentID string) ([]documents.Record, error) {
	rows, err := s.query(ctx, s.db, `
SELECT `+documentColumns+`
  FROM documents
 WHERE development_id = $1
   AND is_superseded = $2
 ORDER BY created_at ASC, id ASC`,
		developmentID,
		false,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var recs []documents.Record
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("row parsing error: %w", err)
		}
		recs = append(recs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error fetching rows: %w", err)
	}
	return recs, nil
}

// Document returns one document of a development.
func (s *Store) Document(ctx context.Context, developmentID, id string) (documents.Record, error) {
	d, err := scanDocument(s.queryRow(ctx, s.db, `
SELECT `+documentColumns+`
  FROM documents
 WHERE development_id = $1
   AND id = $2`,
		developmentID,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return documents.Record{}, e.New("", "store.Document", e.DocumentNotFound, "document not found")
	}
	if err != nil {
		return documents.Record{}, fmt.Errorf("reading document %s: %w", id, err)
	}
	return d, nil
}

// PutDocument inserts or replaces a document.
func (s *Store) PutDocument(ctx context.Context, d documents.Record) error {
	var metadata []byte
	if d.Metadata != nil {
		b, err := json.Marshal(d.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		metadata = b
	}

	var (
		houseType sql.NullString
		rank      sql.NullInt64
	)
	if d.HouseTypeCode != "" {
		houseType = sql.NullString{String: d.HouseTypeCode, Valid: true}
	}
	if d.ImportantRank != nil {
		rank = sql.NullInt64{Int64: int64(*d.ImportantRank), Valid: true}
	}

	var meta any
	if metadata != nil {
		meta = string(metadata)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, `DELETE FROM documents WHERE id = $1`, d.ID); err != nil {
			return err
		}
		_, err := s.exec(ctx, tx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			d.ID,
			d.DevelopmentID,
			d.Title,
			d.FileURL,
			d.MimeType,
			d.CreatedAt.UTC(),
			meta,
			houseType,
			d.IsImportant,
			rank,
			d.MustRead,
			d.IsSuperseded,
		)
		return err
	})
}
