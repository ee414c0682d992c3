package availability

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for blocked dates and day keys.
const DateLayout = "2006-01-02"

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday maps "monday".."sunday" (case-insensitive) to a time.Weekday.
func ParseWeekday(s string) (time.Weekday, bool) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	return wd, ok
}

// WeekdayName is the lowercase English name used by the schedule API.
func WeekdayName(wd time.Weekday) string {
	return strings.ToLower(wd.String())
}

// RecurringSchedule is one weekly availability window. EndTime before StartTime
// means the window runs past midnight.
type RecurringSchedule struct {
	DayOfWeek string `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// AllowDay is a one-off window for the calendar date of StartDate.
type AllowDay struct {
	ID        string    `json:"id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type BlockedDate struct {
	ID   string `json:"id,omitempty"`
	Date string `json:"date"`
}

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusRefused   = "refused"
	StatusRefunded  = "refunded"
)

type Appointment struct {
	ID            string    `json:"id"`
	AppointmentAt time.Time `json:"appointment_at"`
	Status        string    `json:"status"`
	SessionType   string    `json:"session_type"`
	PatientName   string    `json:"patient_name,omitempty"`
	PatientAvatar string    `json:"patient_avatar,omitempty"`
	Description   string    `json:"description,omitempty"`
}

// Active reports whether the appointment still occupies its slot.
func (a Appointment) Active() bool {
	switch strings.ToLower(strings.TrimSpace(a.Status)) {
	case StatusCancelled, StatusRefused, StatusRefunded:
		return false
	default:
		return true
	}
}

// ParseSessionType reads session lengths such as "30m", "1h" or "1h30m".
func ParseSessionType(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty session type")
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Minute, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid session type %q", s)
	}
	return d, nil
}

// DateRange bounds the dates a professional accepts bookings for. Nil ends are open.
type DateRange struct {
	Start *time.Time `json:"availability_start_date"`
	End   *time.Time `json:"availability_end_date"`
}

// Inputs are the four data sources the engine reads, plus the global range.
type Inputs struct {
	Schedules    []RecurringSchedule
	AllowDays    []AllowDay
	Blocks       []BlockedDate
	Appointments []Appointment
	Range        DateRange
}

type SlotStatus string

const SlotTaken SlotStatus = "taken"

// MarshalJSON renders an empty status as null.
func (s SlotStatus) MarshalJSON() ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

func (s *SlotStatus) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = SlotStatus(v)
	return nil
}

type Slot struct {
	Time      string     `json:"time"`
	Available bool       `json:"available"`
	Status    SlotStatus `json:"status"`
	StartsAt  time.Time  `json:"starts_at"`
}
