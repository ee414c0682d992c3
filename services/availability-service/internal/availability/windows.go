package availability

import "time"

// Governance names which source decides a date's windows.
type Governance string

const (
	GovernedByBlock     Governance = "blocked"
	GovernedByOverride  Governance = "override"
	GovernedByRecurring Governance = "recurring"
)

// Window is a bookable interval in minutes from the queried day's midnight.
// End may exceed a day for windows crossing midnight.
type Window struct {
	Start int
	End   int
}

// ResolveWindows picks the governing source for day: a blocked date yields no
// windows, allow days for the date replace the weekly schedule, otherwise the
// weekly entries for the weekday apply.
func (e *Engine) ResolveWindows(day time.Time, in Inputs) ([]Window, Governance) {
	day = e.midnight(day)
	key := day.Format(DateLayout)

	if isBlocked(key, in.Blocks) {
		return nil, GovernedByBlock
	}

	if overrides := e.overrideWindows(day, key, in.AllowDays); len(overrides) > 0 {
		return overrides, GovernedByOverride
	}

	return e.recurringWindows(day, in.Schedules), GovernedByRecurring
}

func isBlocked(key string, blocks []BlockedDate) bool {
	for _, b := range blocks {
		if len(b.Date) >= len(DateLayout) && b.Date[:len(DateLayout)] == key {
			return true
		}
	}
	return false
}

func (e *Engine) overrideWindows(day time.Time, key string, allowDays []AllowDay) []Window {
	var out []Window
	for _, a := range allowDays {
		start := a.StartDate.In(e.loc)
		if start.Format(DateLayout) != key {
			continue
		}
		end := a.EndDate.In(e.loc)
		w := Window{
			Start: start.Hour()*60 + start.Minute(),
			End:   int(civilDay(end)-civilDay(day))*minutesPerDay + end.Hour()*60 + end.Minute(),
		}
		if w.End > nightCap {
			w.End = nightCap
		}
		out = append(out, w)
	}
	return out
}

func (e *Engine) recurringWindows(day time.Time, schedules []RecurringSchedule) []Window {
	var out []Window
	for _, s := range schedules {
		wd, ok := ParseWeekday(s.DayOfWeek)
		if !ok {
			e.logger.Warn("schedule with unknown weekday skipped", "day_of_week", s.DayOfWeek)
			continue
		}
		if wd != day.Weekday() {
			continue
		}
		start, err := ParseClock(s.StartTime)
		if err != nil {
			e.logger.Warn("schedule with invalid start skipped", "start_time", s.StartTime, "err", err)
			continue
		}
		end, err := ParseClock(s.EndTime)
		if err != nil {
			e.logger.Warn("schedule with invalid end skipped", "end_time", s.EndTime, "err", err)
			continue
		}
		out = append(out, Window{Start: start, End: WindowEnd(start, end)})
	}
	return out
}

// hasWeeklySchedule reports whether any weekly entry covers the weekday.
func hasWeeklySchedule(wd time.Weekday, schedules []RecurringSchedule) bool {
	for _, s := range schedules {
		if d, ok := ParseWeekday(s.DayOfWeek); ok && d == wd {
			return true
		}
	}
	return false
}
