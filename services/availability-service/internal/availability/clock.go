package availability

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	minutesPerDay = 24 * 60

	// nightCap is 00:30 of the following day on the queried date's minute axis.
	nightCap = minutesPerDay + 30

	// Slots never start strictly between nightStart and nightEnd (minute of day).
	nightStart = 30
	nightEnd   = 6 * 60
)

// ParseClock converts "HH:MM", "HH:MM:SS" (optionally followed by a zone suffix
// such as "Z", "+02" or "+02:00") or the display form "9h30" into minutes since
// midnight. The zone suffix is dropped: times are wall clock in the caller's location.
func ParseClock(s string) (int, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("empty clock value")
	}
	if i := strings.IndexAny(raw, "hH"); i > 0 {
		return parseHourLabel(raw, i)
	}

	v := raw
	if c := strings.IndexByte(v, ':'); c >= 0 {
		if i := strings.IndexAny(v[c+1:], "Zz+-"); i >= 0 {
			v = v[:c+1+i]
		}
	}
	parts := strings.Split(v, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("invalid clock value %q", s)
		}
	}
	if h == 24 && m == 0 {
		return minutesPerDay, nil
	}
	if h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	return h*60 + m, nil
}

func parseHourLabel(raw string, sep int) (int, error) {
	h, err := strconv.Atoi(raw[:sep])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	m := 0
	if rest := raw[sep+1:]; rest != "" {
		m, err = strconv.Atoi(rest)
		if err != nil || m < 0 || m > 59 {
			return 0, fmt.Errorf("invalid clock value %q", raw)
		}
	}
	return h*60 + m, nil
}

// FormatClock renders minutes as "HH:MM", wrapping past midnight.
func FormatClock(minutes int) string {
	m := ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// FormatHourLabel renders minutes in the display form: "9h", "9h30".
func FormatHourLabel(minutes int) string {
	m := ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay
	if m%60 == 0 {
		return fmt.Sprintf("%dh", m/60)
	}
	return fmt.Sprintf("%dh%02d", m/60, m%60)
}

// WindowEnd returns the end of a [start, end) window on the start day's axis.
// An end at or before start crosses midnight. The result never passes 00:30
// of the next day.
func WindowEnd(start, end int) int {
	if end <= start {
		end += minutesPerDay
	}
	if end > nightCap {
		end = nightCap
	}
	return end
}

// WindowDuration is the length in minutes of the corrected window.
func WindowDuration(start, end int) int {
	return WindowEnd(start, end) - start
}

// offerable applies the night rules to a slot starting at minute start
// (on the queried date's axis) and lasting d minutes.
func offerable(start, d int) bool {
	if start+d > nightCap {
		return false
	}
	tod := start % minutesPerDay
	if tod > nightStart && tod < nightEnd {
		return false
	}
	if tod <= nightStart && tod+d > nightStart {
		return false
	}
	return true
}
