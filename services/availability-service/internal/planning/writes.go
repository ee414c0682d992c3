package planning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/consultbook/libs/db"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/outbox"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/storage"
)

type Invalidator interface {
	Invalidate(ctx context.Context, professionalID string) error
}

// Editor applies changes to a professional's availability sources. Every
// change commits together with an outbox event, and cached slots of the
// professional are dropped once the commit succeeds.
type Editor struct {
	repo   *storage.Repository
	outbox *outbox.Repository
	cache  Invalidator
	logger *slog.Logger
	now    func() time.Time
}

func NewEditor(repo *storage.Repository, outboxRepo *outbox.Repository, cache Invalidator, logger *slog.Logger) *Editor {
	return &Editor{repo: repo, outbox: outboxRepo, cache: cache, logger: logger, now: time.Now}
}

// apply runs fn in a transaction; fn returns the dates the change touches, if known.
func (e *Editor) apply(ctx context.Context, professionalID, change string, fn func(pgx.Tx) ([]string, error)) error {
	err := db.InTx(ctx, e.repo.DB(), func(tx pgx.Tx) error {
		dates, err := fn(tx)
		if err != nil {
			return err
		}
		evt, err := outbox.NewAvailabilityChanged(professionalID, change, e.now(), dates...)
		if err != nil {
			return err
		}
		return e.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		return err
	}
	if e.cache != nil {
		if err := e.cache.Invalidate(ctx, professionalID); err != nil {
			e.logger.Warn("slot cache invalidation failed", "err", err, "professional_id", professionalID)
		}
	}
	return nil
}

// SaveProfessional creates or replaces the profile and its weekly schedule.
func (e *Editor) SaveProfessional(ctx context.Context, p storage.Professional) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("professional id is required: %w", ErrInvalid)
	}
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", p.Timezone, ErrInvalid)
	}
	for _, sc := range p.Schedules {
		if _, ok := availability.ParseWeekday(sc.DayOfWeek); !ok {
			return fmt.Errorf("day_of_week %q: %w", sc.DayOfWeek, ErrInvalid)
		}
		if _, err := availability.ParseClock(sc.StartTime); err != nil {
			return fmt.Errorf("start_time %q: %w", sc.StartTime, ErrInvalid)
		}
		if _, err := availability.ParseClock(sc.EndTime); err != nil {
			return fmt.Errorf("end_time %q: %w", sc.EndTime, ErrInvalid)
		}
	}
	return e.apply(ctx, p.ID, outbox.ChangeProfileUpdated, func(tx pgx.Tx) ([]string, error) {
		return nil, e.repo.UpsertProfessional(ctx, tx, p)
	})
}

func validateAllowDay(d availability.AllowDay) error {
	if d.StartDate.IsZero() || d.EndDate.IsZero() {
		return fmt.Errorf("start_date and end_date are required: %w", ErrInvalid)
	}
	return nil
}

func (e *Editor) CreateAllowDay(ctx context.Context, professionalID string, d availability.AllowDay) (availability.AllowDay, error) {
	if err := validateAllowDay(d); err != nil {
		return availability.AllowDay{}, err
	}
	var created availability.AllowDay
	err := e.apply(ctx, professionalID, outbox.ChangeAllowDayCreated, func(tx pgx.Tx) ([]string, error) {
		var err error
		created, err = e.repo.CreateAllowDay(ctx, tx, professionalID, d)
		return nil, err
	})
	return created, err
}

func (e *Editor) UpdateAllowDay(ctx context.Context, professionalID string, d availability.AllowDay) error {
	if err := validateAllowDay(d); err != nil {
		return err
	}
	return e.apply(ctx, professionalID, outbox.ChangeAllowDayUpdated, func(tx pgx.Tx) ([]string, error) {
		return nil, e.repo.UpdateAllowDay(ctx, tx, professionalID, d)
	})
}

func (e *Editor) DeleteAllowDay(ctx context.Context, professionalID, id string) error {
	return e.apply(ctx, professionalID, outbox.ChangeAllowDayDeleted, func(tx pgx.Tx) ([]string, error) {
		return nil, e.repo.DeleteAllowDay(ctx, tx, professionalID, id)
	})
}

func (e *Editor) CreateBlock(ctx context.Context, professionalID, date string) (availability.BlockedDate, error) {
	if _, err := parseDate(date); err != nil {
		return availability.BlockedDate{}, err
	}
	var created availability.BlockedDate
	err := e.apply(ctx, professionalID, outbox.ChangeBlockCreated, func(tx pgx.Tx) ([]string, error) {
		var err error
		created, err = e.repo.CreateBlock(ctx, tx, professionalID, date)
		return []string{date}, err
	})
	return created, err
}

func (e *Editor) DeleteBlock(ctx context.Context, professionalID, id string) error {
	return e.apply(ctx, professionalID, outbox.ChangeBlockDeleted, func(tx pgx.Tx) ([]string, error) {
		date, err := e.repo.DeleteBlock(ctx, tx, professionalID, id)
		if err != nil {
			return nil, err
		}
		return []string{date}, nil
	})
}
