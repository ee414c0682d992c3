package availability

import "time"

const (
	DefaultHorizonDays = 30
	DefaultDuration    = 30 * time.Minute
)

// FirstAvailableDay scans today..today+horizonDays-1 and returns the first
// day holding at least one open slot. It stops at the first hit.
func (e *Engine) FirstAvailableDay(in Inputs, duration time.Duration, horizonDays int) (time.Time, bool) {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	if duration <= 0 {
		duration = DefaultDuration
	}

	today := e.Today()
	for i := 0; i < horizonDays; i++ {
		day := today.AddDate(0, 0, i)
		for _, s := range e.DaySlots(day, duration, in) {
			if s.Available {
				return day, true
			}
		}
	}
	return time.Time{}, false
}

// HasAnyAvailableSlot gates the "view time slots" action.
func (e *Engine) HasAnyAvailableSlot(in Inputs, duration time.Duration, horizonDays int) bool {
	_, ok := e.FirstAvailableDay(in, duration, horizonDays)
	return ok
}
