package planning

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/slotcache"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/storage"
)

func localDate(d time.Time, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

// DaySlots returns the slot list of one date for the professional. Cached
// lists are re-filtered against the clock, so a hit never returns a slot
// that has started since it was computed.
func (s *Service) DaySlots(ctx context.Context, professionalID, date string, duration time.Duration) (slots []availability.Slot, err error) {
	start := time.Now()
	defer func() { s.observe("slots", start, err) }()

	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	duration, err = s.duration(duration)
	if err != nil {
		return nil, err
	}

	key := slotcache.Key{ProfessionalID: professionalID, Date: date, Duration: duration}
	var (
		gen       int64
		cacheable bool
	)
	if s.cache != nil {
		cached, g, ok, cerr := s.cache.Get(ctx, key)
		if cerr != nil {
			s.logger.Warn("slot cache read failed", "err", cerr, "professional_id", professionalID)
		}
		s.metrics.ObserveCache(ok)
		if ok {
			return s.dropStarted(cached), nil
		}
		gen, cacheable = g, cerr == nil
	}

	p, err := s.load(ctx, professionalID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	_, span := s.tracer.Start(ctx, "planning.day_slots")
	slots = p.engine.DaySlots(localDate(day, p.engine.Location()), duration, p.inputs)
	span.End()

	if cacheable {
		if cerr := s.cache.Set(ctx, key, gen, slots); cerr != nil {
			s.logger.Warn("slot cache write failed", "err", cerr, "professional_id", professionalID)
		}
	}
	return slots, nil
}

func (s *Service) dropStarted(slots []availability.Slot) []availability.Slot {
	now := s.now()
	out := make([]availability.Slot, 0, len(slots))
	for _, sl := range slots {
		if sl.StartsAt.Before(now) {
			continue
		}
		out = append(out, sl)
	}
	return out
}

// Probe answers whether any slot is open within the horizon.
type Probe struct {
	HasAvailableSlot   bool   `json:"has_available_slot"`
	FirstAvailableDate string `json:"first_available_date,omitempty"`
	Duration           int    `json:"duration"`
	HorizonDays        int    `json:"horizon_days"`
}

func (s *Service) Availability(ctx context.Context, professionalID string, duration time.Duration, horizonDays int) (probe Probe, err error) {
	start := time.Now()
	defer func() { s.observe("availability", start, err) }()

	duration, err = s.duration(duration)
	if err != nil {
		return Probe{}, err
	}
	if horizonDays < 0 || horizonDays > 366 {
		return Probe{}, fmt.Errorf("horizon_days must be between 1 and 366: %w", ErrInvalid)
	}
	if horizonDays == 0 {
		horizonDays = s.cfg.HorizonDays
	}

	today := s.now().UTC()
	p, err := s.load(ctx, professionalID, today, today.AddDate(0, 0, horizonDays))
	if err != nil {
		return Probe{}, err
	}

	_, span := s.tracer.Start(ctx, "planning.probe")
	day, ok := p.engine.FirstAvailableDay(p.inputs, duration, horizonDays)
	span.End()

	probe = Probe{HasAvailableSlot: ok, Duration: int(duration / time.Minute), HorizonDays: horizonDays}
	if ok {
		probe.FirstAvailableDate = day.Format(availability.DateLayout)
	}
	return probe, nil
}

// Calendar classifies every day of month ("YYYY-MM").
func (s *Service) Calendar(ctx context.Context, professionalID, month string) (days []availability.CalendarDay, err error) {
	start := time.Now()
	defer func() { s.observe("calendar", start, err) }()

	first, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, fmt.Errorf("month %q must be YYYY-MM: %w", month, ErrInvalid)
	}

	p, err := s.load(ctx, professionalID, first, first.AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}
	_, span := s.tracer.Start(ctx, "planning.calendar")
	days = p.engine.Month(localDate(first, p.engine.Location()), p.inputs)
	span.End()
	return days, nil
}

func (s *Service) Professional(ctx context.Context, professionalID string) (storage.Professional, error) {
	return s.src.GetProfessional(ctx, professionalID)
}

func (s *Service) AllowDays(ctx context.Context, professionalID string, from, to time.Time) ([]availability.AllowDay, error) {
	return s.src.ListAllowDays(ctx, professionalID, from, to)
}

func (s *Service) Blocks(ctx context.Context, professionalID string) ([]availability.BlockedDate, error) {
	return s.src.ListBlocks(ctx, professionalID)
}

func (s *Service) Appointments(ctx context.Context, professionalID string, gte time.Time) ([]availability.Appointment, error) {
	return s.src.ListAppointments(ctx, professionalID, gte)
}
