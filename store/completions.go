package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Completion is a finished walk through a diagnostic flow.
type Completion struct {
	ID          string    `json:"id"`
	FlowID      string    `json:"flowId"`
	UnitUID     string    `json:"unitUid,omitempty"`
	Outcome     string    `json:"outcome"`
	Steps       []string  `json:"steps"`
	CompletedAt time.Time `json:"completedAt"`
}

// RecordCompletion stores c, giving it an ID if it has none.
func (s *Store) RecordCompletion(ctx context.Context, c Completion) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CompletedAt.IsZero() {
		c.CompletedAt = time.Now()
	}

	steps, err := json.Marshal(c.Steps)
	if err != nil {
		return "", err
	}

	_, err = s.exec(ctx, s.db, `
INSERT INTO diagnostic_completions (id, flow_id, unit_uid, outcome, steps, completed_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID,
		c.FlowID,
		c.UnitUID,
		c.Outcome,
		string(steps),
		c.CompletedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("recording completion: %w", err)
	}
	return c.ID, nil
}

// Completions returns the recorded completions of a flow, oldest first.
func (s *Store) Completions(ctx context.Context, flowID string) ([]Completion, error) {
	rows, err := s.query(ctx, s.db, `
SELECT id, flow_id, unit_uid, outcome, steps, completed_at
  FROM diagnostic_completions
 WHERE flow_id = $1
 ORDER BY completed_at ASC`,
		flowID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing completions: %w", err)
	}
	defer rows.Close()

	var out []Completion
	for rows.Next() {
		var (
			c     Completion
			steps []byte
		)
		if err := rows.Scan(&c.ID, &c.FlowID, &c.UnitUID, &c.Outcome, &steps, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("row parsing error: %w", err)
		}
		if len(steps) > 0 {
			if err := json.Unmarshal(steps, &c.Steps); err != nil {
				return nil, err
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
