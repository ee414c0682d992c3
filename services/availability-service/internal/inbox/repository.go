package inbox

import (
	"context"

	"github.com/md-rashed-zaman/consultbook/libs/db"
)

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Record claims eventID. It reports false when the event was already
// processed; q should be the transaction that applies the event so a failed
// apply releases the claim.
func (r *Repository) Record(ctx context.Context, q db.DBTX, eventID string, eventType string) (bool, error) {
	tag, err := q.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
