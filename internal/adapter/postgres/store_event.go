package postgres

import (
	"context"
	"fmt"
)

// ClaimEvent records (provider, eventID) in the processed-event ledger.
// The insert either lands (first delivery, returns true) or hits the primary
// key (duplicate delivery, returns false). Rows are never updated; the only
// delete is ReleaseEvent after a failed application.
func (s *Store) ClaimEvent(ctx context.Context, provider, eventID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO processed_events (provider, event_id)
		 VALUES ($1, $2)
		 ON CONFLICT (provider, event_id) DO NOTHING`,
		provider, eventID)
	if err != nil {
		return false, fmt.Errorf("claim event %s/%s: %w", provider, eventID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseEvent frees a claim whose event could not be applied. The provider's
// redelivery then lands as a first delivery and gets a fresh attempt.
func (s *Store) ReleaseEvent(ctx context.Context, provider, eventID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM processed_events WHERE provider = $1 AND event_id = $2`,
		provider, eventID)
	if err != nil {
		return fmt.Errorf("release event %s/%s: %w", provider, eventID, err)
	}
	return nil
}
