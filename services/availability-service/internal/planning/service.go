package planning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	otelx "github.com/md-rashed-zaman/consultbook/libs/otel"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/metrics"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/slotcache"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/storage"
)

// ErrInvalid marks caller mistakes such as unparsable dates or non-positive durations.
var ErrInvalid = errors.New("invalid request")

// Source is the read side of the availability data.
type Source interface {
	GetProfessional(ctx context.Context, id string) (storage.Professional, error)
	ListAllowDays(ctx context.Context, professionalID string, from, to time.Time) ([]availability.AllowDay, error)
	ListBlocks(ctx context.Context, professionalID string) ([]availability.BlockedDate, error)
	ListAppointments(ctx context.Context, professionalID string, gte time.Time) ([]availability.Appointment, error)
}

// SlotCache caches computed day slot lists.
type SlotCache interface {
	// Get reports the generation it looked under; Set writes under that
	// generation so a list computed before an invalidation is never served.
	Get(ctx context.Context, k slotcache.Key) (slots []availability.Slot, gen int64, ok bool, err error)
	Set(ctx context.Context, k slotcache.Key, gen int64, slots []availability.Slot) error
	Invalidate(ctx context.Context, professionalID string) error
}

type Config struct {
	DefaultLocation *time.Location
	DefaultDuration time.Duration
	HorizonDays     int
}

// Service loads a professional's four sources, runs the engine over them
// and caches day results. Each call builds its own inputs, so concurrent
// requests never observe each other's data.
type Service struct {
	src     Source
	cache   SlotCache
	engine  *availability.Engine
	logger  *slog.Logger
	metrics *metrics.Metrics
	cfg     Config
	tracer  trace.Tracer
	now     func() time.Time
}

type Option func(*Service)

func WithCache(c SlotCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(src Source, logger *slog.Logger, cfg Config, opts ...Option) *Service {
	if cfg.DefaultLocation == nil {
		cfg.DefaultLocation = time.UTC
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = availability.DefaultDuration
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = availability.DefaultHorizonDays
	}
	s := &Service{
		src:    src,
		logger: logger,
		cfg:    cfg,
		tracer: otelx.Tracer("planning"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = availability.NewEngine(
		availability.WithLocation(cfg.DefaultLocation),
		availability.WithClock(s.now),
		availability.WithLogger(logger),
	)
	return s
}

func (s *Service) DefaultDuration() time.Duration { return s.cfg.DefaultDuration }

func (s *Service) HorizonDays() int { return s.cfg.HorizonDays }

// plan is everything one computation needs.
type plan struct {
	pro    storage.Professional
	engine *availability.Engine
	inputs availability.Inputs
}

// load fetches the four sources concurrently. Allow days are bounded by
// [from, to) with a day of slack on both sides for time zone shifts, and
// appointments start one day before from.
func (s *Service) load(ctx context.Context, professionalID string, from, to time.Time) (plan, error) {
	ctx, span := s.tracer.Start(ctx, "planning.load", trace.WithAttributes(
		attribute.String("professional.id", professionalID),
	))
	defer span.End()

	var (
		p      plan
		days   []availability.AllowDay
		blocks []availability.BlockedDate
		appts  []availability.Appointment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		p.pro, err = s.src.GetProfessional(gctx, professionalID)
		return err
	})
	g.Go(func() error {
		var err error
		days, err = s.src.ListAllowDays(gctx, professionalID, from.AddDate(0, 0, -1), to.AddDate(0, 0, 1))
		return err
	})
	g.Go(func() error {
		var err error
		blocks, err = s.src.ListBlocks(gctx, professionalID)
		return err
	})
	g.Go(func() error {
		var err error
		appts, err = s.src.ListAppointments(gctx, professionalID, from.AddDate(0, 0, -1))
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return plan{}, err
	}

	p.engine = s.engine.In(s.location(p.pro))
	p.inputs = availability.Inputs{
		Schedules:    p.pro.Schedules,
		AllowDays:    days,
		Blocks:       blocks,
		Appointments: appts,
		Range:        p.pro.Range,
	}
	span.SetAttributes(
		attribute.Int("schedules", len(p.inputs.Schedules)),
		attribute.Int("allow_days", len(days)),
		attribute.Int("blocks", len(blocks)),
		attribute.Int("appointments", len(appts)),
	)
	return p, nil
}

func (s *Service) location(p storage.Professional) *time.Location {
	if p.Timezone == "" {
		return s.cfg.DefaultLocation
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		s.logger.Warn("unknown professional time zone, using default", "professional_id", p.ID, "timezone", p.Timezone)
		return s.cfg.DefaultLocation
	}
	return loc
}

func (s *Service) observe(op string, start time.Time, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, storage.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrInvalid):
		outcome = "invalid"
	case err != nil:
		outcome = "error"
	}
	s.metrics.ObserveComputation(op, outcome, time.Since(start))
}

func (s *Service) duration(d time.Duration) (time.Duration, error) {
	if d == 0 {
		return s.cfg.DefaultDuration, nil
	}
	if d < time.Minute || d > 24*time.Hour || d%time.Minute != 0 {
		return 0, fmt.Errorf("duration must be a whole number of minutes between 1 and 1440: %w", ErrInvalid)
	}
	return d, nil
}

func parseDate(raw string) (time.Time, error) {
	d, err := time.Parse(availability.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD: %w", raw, ErrInvalid)
	}
	return d, nil
}
