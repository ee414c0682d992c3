package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/consultbook/libs/db"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/availability"
)

// ListAllowDays returns overrides whose start falls in [from, to). Zero bounds are open.
func (r *Repository) ListAllowDays(ctx context.Context, professionalID string, from, to time.Time) ([]availability.AllowDay, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, start_date, end_date
		FROM allow_days
		WHERE professional_id = $1
			AND ($2::timestamptz IS NULL OR start_date >= $2)
			AND ($3::timestamptz IS NULL OR start_date < $3)
		ORDER BY start_date ASC
	`, professionalID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, fmt.Errorf("list allow days: %w", err)
	}
	defer rows.Close()

	out := []availability.AllowDay{}
	for rows.Next() {
		var d availability.AllowDay
		if err := rows.Scan(&d.ID, &d.StartDate, &d.EndDate); err != nil {
			return nil, fmt.Errorf("scan allow day: %w", err)
		}
		out = append(out, d)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("list allow days: %w", rows.Err())
	}
	return out, nil
}

func (r *Repository) CreateAllowDay(ctx context.Context, q db.DBTX, professionalID string, d availability.AllowDay) (availability.AllowDay, error) {
	d.ID = uuid.NewString()
	_, err := q.Exec(ctx, `
		INSERT INTO allow_days (id, professional_id, start_date, end_date)
		VALUES ($1, $2, $3, $4)
	`, d.ID, professionalID, d.StartDate, d.EndDate)
	if isMissingParent(err) {
		return availability.AllowDay{}, fmt.Errorf("professional %s: %w", professionalID, ErrNotFound)
	}
	if err != nil {
		return availability.AllowDay{}, fmt.Errorf("insert allow day: %w", err)
	}
	return d, nil
}

func (r *Repository) UpdateAllowDay(ctx context.Context, q db.DBTX, professionalID string, d availability.AllowDay) error {
	tag, err := q.Exec(ctx, `
		UPDATE allow_days
		SET start_date = $3, end_date = $4
		WHERE professional_id = $1 AND id = $2
	`, professionalID, d.ID, d.StartDate, d.EndDate)
	if err != nil {
		return fmt.Errorf("update allow day: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("allow day %s: %w", d.ID, ErrNotFound)
	}
	return nil
}

func (r *Repository) DeleteAllowDay(ctx context.Context, q db.DBTX, professionalID, id string) error {
	tag, err := q.Exec(ctx, `
		DELETE FROM allow_days
		WHERE professional_id = $1 AND id = $2
	`, professionalID, id)
	if err != nil {
		return fmt.Errorf("delete allow day: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("allow day %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *Repository) ListBlocks(ctx context.Context, professionalID string) ([]availability.BlockedDate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, to_char(blocked_on, 'YYYY-MM-DD')
		FROM blocked_dates
		WHERE professional_id = $1
		ORDER BY blocked_on ASC
	`, professionalID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	out := []availability.BlockedDate{}
	for rows.Next() {
		var b availability.BlockedDate
		if err := rows.Scan(&b.ID, &b.Date); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("list blocks: %w", rows.Err())
	}
	return out, nil
}

// CreateBlock returns ErrConflict when the date is already blocked.
func (r *Repository) CreateBlock(ctx context.Context, q db.DBTX, professionalID, date string) (availability.BlockedDate, error) {
	b := availability.BlockedDate{ID: uuid.NewString(), Date: date}
	_, err := q.Exec(ctx, `
		INSERT INTO blocked_dates (id, professional_id, blocked_on)
		VALUES ($1, $2, $3::date)
	`, b.ID, professionalID, date)
	if isUniqueViolation(err) {
		return availability.BlockedDate{}, fmt.Errorf("block %s: %w", date, ErrConflict)
	}
	if isMissingParent(err) {
		return availability.BlockedDate{}, fmt.Errorf("professional %s: %w", professionalID, ErrNotFound)
	}
	if err != nil {
		return availability.BlockedDate{}, fmt.Errorf("insert block: %w", err)
	}
	return b, nil
}

// DeleteBlock removes a block and reports the date it freed.
func (r *Repository) DeleteBlock(ctx context.Context, q db.DBTX, professionalID, id string) (string, error) {
	var date string
	err := q.QueryRow(ctx, `
		DELETE FROM blocked_dates
		WHERE professional_id = $1 AND id = $2
		RETURNING to_char(blocked_on, 'YYYY-MM-DD')
	`, professionalID, id).Scan(&date)
	if isNoRows(err) {
		return "", fmt.Errorf("block %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("delete block: %w", err)
	}
	return date, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
