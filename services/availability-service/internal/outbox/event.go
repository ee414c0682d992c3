package outbox

import (
	"encoding/json"
	"time"
)

const (
	AggregateProfessional = "professional"

	// TopicAvailabilityChanged carries every change that can alter a professional's slots.
	TopicAvailabilityChanged = "availability.changed.v1"
)

// Change kinds carried in AvailabilityChanged.
const (
	ChangeProfileUpdated    = "profile_updated"
	ChangeAllowDayCreated   = "allow_day_created"
	ChangeAllowDayUpdated   = "allow_day_updated"
	ChangeAllowDayDeleted   = "allow_day_deleted"
	ChangeBlockCreated      = "block_created"
	ChangeBlockDeleted      = "block_deleted"
	ChangeAppointmentBooked = "appointment_booked"
	ChangeAppointmentFreed  = "appointment_freed"
)

type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// AvailabilityChanged tells downstream consumers (search, reminders) that the
// professional's bookable slots may differ from what they last saw.
type AvailabilityChanged struct {
	ProfessionalID string    `json:"professional_id"`
	Change         string    `json:"change"`
	Dates          []string  `json:"dates,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func NewAvailabilityChanged(professionalID, change string, at time.Time, dates ...string) (Event, error) {
	payload, err := json.Marshal(AvailabilityChanged{
		ProfessionalID: professionalID,
		Change:         change,
		Dates:          dates,
		OccurredAt:     at.UTC(),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateProfessional,
		AggregateID:   professionalID,
		EventType:     TopicAvailabilityChanged,
		Payload:       payload,
	}, nil
}
