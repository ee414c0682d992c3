package availability

import (
	"sort"
	"time"
)

type DayKind string

const (
	DayUnavailable DayKind = "unavailable"
	DayBlocked     DayKind = "blocked"
	DayActive      DayKind = "active"
	DayNormal      DayKind = "normal"
)

// Occupant summarizes an appointment for the month grid.
type Occupant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar,omitempty"`
	Time        string `json:"time"`
	Duration    int    `json:"duration"`
	Description string `json:"description,omitempty"`
}

type DayState struct {
	Date      string     `json:"date"`
	Kind      DayKind    `json:"kind"`
	Occupants []Occupant `json:"occupants"`
}

// ClassifyDay maps day to its grid state. Later rules override earlier ones:
// no weekly entry for the weekday is unavailable, a blocked date is blocked,
// and any active appointment makes the day active.
func (e *Engine) ClassifyDay(day time.Time, in Inputs) DayState {
	day = e.midnight(day)
	key := day.Format(DateLayout)
	state := DayState{Date: key, Kind: DayNormal, Occupants: []Occupant{}}

	if !hasWeeklySchedule(day.Weekday(), in.Schedules) {
		state.Kind = DayUnavailable
	}
	if isBlocked(key, in.Blocks) {
		state.Kind = DayBlocked
	}

	for _, a := range in.Appointments {
		if a.AppointmentAt.IsZero() || !a.Active() || e.dateKey(a.AppointmentAt) != key {
			continue
		}
		state.Occupants = append(state.Occupants, e.occupant(a))
	}
	if len(state.Occupants) > 0 {
		state.Kind = DayActive
		sort.SliceStable(state.Occupants, func(i, j int) bool {
			return state.Occupants[i].Time < state.Occupants[j].Time
		})
	}
	return state
}

func (e *Engine) occupant(a Appointment) Occupant {
	at := a.AppointmentAt.In(e.loc)
	o := Occupant{
		ID:          a.ID,
		Name:        a.PatientName,
		Avatar:      a.PatientAvatar,
		Time:        FormatClock(at.Hour()*60 + at.Minute()),
		Description: a.Description,
	}
	if d, err := ParseSessionType(a.SessionType); err == nil {
		o.Duration = int(d / time.Minute)
	}
	return o
}

// IsClickable reports whether a day can be picked: it is not unavailable,
// not in the past, and inside r when r is set.
func (e *Engine) IsClickable(day time.Time, state DayState, r DateRange) bool {
	if state.Kind == DayUnavailable {
		return false
	}
	d := civilDay(e.midnight(day))
	if d < civilDay(e.Today()) {
		return false
	}
	if r.Start != nil && d < civilDay(r.Start.In(e.loc)) {
		return false
	}
	if r.End != nil && d > civilDay(r.End.In(e.loc)) {
		return false
	}
	return true
}

type CalendarDay struct {
	DayState
	Clickable bool `json:"clickable"`
}

// Month classifies every day of the month containing anyDay.
func (e *Engine) Month(anyDay time.Time, in Inputs) []CalendarDay {
	first := e.midnight(anyDay)
	first = time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, e.loc)

	var out []CalendarDay
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		state := e.ClassifyDay(d, in)
		out = append(out, CalendarDay{DayState: state, Clickable: e.IsClickable(d, state, in.Range)})
	}
	return out
}
