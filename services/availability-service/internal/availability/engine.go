package availability

import (
	"io"
	"log/slog"
	"time"
)

// Engine computes slots and calendar states for one professional's location.
// It holds no mutable state; identical inputs and clock give identical output.
type Engine struct {
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Engine)

func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		loc:    time.UTC,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// In returns a copy of the engine working in loc.
func (e *Engine) In(loc *time.Location) *Engine {
	cp := *e
	if loc != nil {
		cp.loc = loc
	}
	return &cp
}

func (e *Engine) Location() *time.Location { return e.loc }

// Today is local midnight of the current day.
func (e *Engine) Today() time.Time {
	return e.midnight(e.now())
}

func (e *Engine) midnight(t time.Time) time.Time {
	t = t.In(e.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, e.loc)
}

// at places minute m of the day's axis on the wall clock; m may exceed a day.
func (e *Engine) at(day time.Time, m int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, m, 0, 0, e.loc)
}

func (e *Engine) dateKey(t time.Time) string {
	return t.In(e.loc).Format(DateLayout)
}

// civilDay counts calendar days independent of DST.
func civilDay(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix() / 86400
}
