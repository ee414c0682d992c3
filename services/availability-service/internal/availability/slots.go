package availability

import (
	"sort"
	"time"
)

// GenerateSlots steps through each window at duration strides and returns the
// slots for day, merged by time (taken wins) and sorted by time string.
//
// A slot is emitted only when its whole interval fits the window, it passes
// the night rules and it does not start before now. Windows with start >= end
// are skipped with a warning.
func (e *Engine) GenerateSlots(day time.Time, duration time.Duration, windows []Window, appointments []Appointment) []Slot {
	step := int(duration / time.Minute)
	slots := []Slot{}
	if step <= 0 || len(windows) == 0 {
		return slots
	}

	day = e.midnight(day)
	now := e.now()
	occupied := e.occupiedStarts(appointments)
	index := make(map[string]int)

	for _, w := range windows {
		if w.Start >= w.End {
			e.logger.Warn("malformed availability window skipped",
				"date", day.Format(DateLayout),
				"start", FormatClock(w.Start),
				"end", FormatClock(w.End),
			)
			continue
		}
		for start := w.Start; start+step <= w.End; start += step {
			if !offerable(start, step) {
				continue
			}
			startsAt := e.at(day, start)
			if startsAt.Before(now) {
				continue
			}

			label := FormatClock(start)
			_, taken := occupied[startsAt.Format(minuteKey)]
			if i, ok := index[label]; ok {
				if taken {
					slots[i].Available = false
					slots[i].Status = SlotTaken
				}
				continue
			}

			slot := Slot{Time: label, Available: true, StartsAt: startsAt}
			if taken {
				slot.Available = false
				slot.Status = SlotTaken
			}
			index[label] = len(slots)
			slots = append(slots, slot)
		}
	}

	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Time < slots[j].Time })
	return slots
}

// DaySlots resolves the governing windows for day and generates its slots.
func (e *Engine) DaySlots(day time.Time, duration time.Duration, in Inputs) []Slot {
	windows, _ := e.ResolveWindows(day, in)
	return e.GenerateSlots(day, duration, windows, in.Appointments)
}

const minuteKey = "2006-01-02T15:04"

func (e *Engine) occupiedStarts(appointments []Appointment) map[string]struct{} {
	out := make(map[string]struct{}, len(appointments))
	for _, a := range appointments {
		if a.AppointmentAt.IsZero() || !a.Active() {
			continue
		}
		out[a.AppointmentAt.In(e.loc).Format(minuteKey)] = struct{}{}
	}
	return out
}
