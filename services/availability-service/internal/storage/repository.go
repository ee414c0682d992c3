package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/consultbook/libs/db"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/availability"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Repository reads and writes the availability sources of professionals.
// Mutating methods take the executor explicitly so callers can pair them
// with an outbox insert in one transaction.
type Repository struct {
	db db.TxBeginner
}

func NewRepository(conn db.TxBeginner) *Repository {
	return &Repository{db: conn}
}

// DB exposes the underlying connection for transactional callers.
func (r *Repository) DB() db.TxBeginner {
	return r.db
}

type Professional struct {
	ID        string                           `json:"id"`
	Timezone  string                           `json:"timezone"`
	Range     availability.DateRange           `json:"range"`
	Schedules []availability.RecurringSchedule `json:"schedules"`
	UpdatedAt time.Time                        `json:"updated_at"`
}

func (r *Repository) GetProfessional(ctx context.Context, id string) (Professional, error) {
	var p Professional
	err := r.db.QueryRow(ctx, `
		SELECT id, timezone, availability_start_date, availability_end_date, updated_at
		FROM professionals
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Timezone, &p.Range.Start, &p.Range.End, &p.UpdatedAt)
	if isNoRows(err) {
		return Professional{}, fmt.Errorf("professional %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Professional{}, fmt.Errorf("load professional: %w", err)
	}

	p.Schedules, err = r.ListSchedules(ctx, id)
	if err != nil {
		return Professional{}, err
	}
	return p, nil
}

func (r *Repository) ListSchedules(ctx context.Context, professionalID string) ([]availability.RecurringSchedule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT day_of_week, start_time, end_time
		FROM recurring_schedules
		WHERE professional_id = $1
		ORDER BY position ASC
	`, professionalID)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	out := []availability.RecurringSchedule{}
	for rows.Next() {
		var s availability.RecurringSchedule
		if err := rows.Scan(&s.DayOfWeek, &s.StartTime, &s.EndTime); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("list schedules: %w", rows.Err())
	}
	return out, nil
}

// UpsertProfessional replaces the profile row and its full weekly schedule.
func (r *Repository) UpsertProfessional(ctx context.Context, q db.DBTX, p Professional) error {
	_, err := q.Exec(ctx, `
		INSERT INTO professionals (id, timezone, availability_start_date, availability_end_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET timezone = EXCLUDED.timezone,
			availability_start_date = EXCLUDED.availability_start_date,
			availability_end_date = EXCLUDED.availability_end_date,
			updated_at = now()
	`, p.ID, p.Timezone, p.Range.Start, p.Range.End)
	if err != nil {
		return fmt.Errorf("upsert professional: %w", err)
	}

	if _, err := q.Exec(ctx, `DELETE FROM recurring_schedules WHERE professional_id = $1`, p.ID); err != nil {
		return fmt.Errorf("clear schedules: %w", err)
	}
	for i, s := range p.Schedules {
		if _, err := q.Exec(ctx, `
			INSERT INTO recurring_schedules (professional_id, position, day_of_week, start_time, end_time)
			VALUES ($1, $2, $3, $4, $5)
		`, p.ID, i, s.DayOfWeek, s.StartTime, s.EndTime); err != nil {
			return fmt.Errorf("insert schedule: %w", err)
		}
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool { return pgCode(err) == "23505" }

// isMissingParent reports a foreign key violation, i.e. an unknown professional.
func isMissingParent(err error) bool { return pgCode(err) == "23503" }
