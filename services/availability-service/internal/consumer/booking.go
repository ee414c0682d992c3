package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/consultbook/libs/kafkax"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/outbox"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/storage"
)

const (
	TopicAppointmentBooked    = "booking.appointment.booked.v1"
	TopicAppointmentCancelled = "booking.appointment.cancelled.v1"
)

// BookedEvent is published by the booking service when a patient books.
type BookedEvent struct {
	AppointmentID  string `json:"appointment_id"`
	ProfessionalID string `json:"professional_id"`
	AppointmentAt  string `json:"appointment_at"`
	Status         string `json:"status"`
	SessionType    string `json:"session_type"`
	PatientName    string `json:"patient_name"`
	PatientAvatar  string `json:"patient_avatar"`
	Description    string `json:"description"`
}

// CancelledEvent frees a slot; Status is one of cancelled, refused, refunded.
type CancelledEvent struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

type Invalidator interface {
	Invalidate(ctx context.Context, professionalID string) error
}

// BookingProjector keeps the appointment read model in step with the booking
// service and announces the resulting availability changes.
type BookingProjector struct {
	repo   *storage.Repository
	outbox *outbox.Repository
	cache  Invalidator
	logger *slog.Logger
	now    func() time.Time
}

func NewBookingProjector(repo *storage.Repository, outboxRepo *outbox.Repository, cache Invalidator, logger *slog.Logger) *BookingProjector {
	return &BookingProjector{repo: repo, outbox: outboxRepo, cache: cache, logger: logger, now: time.Now}
}

// Handle is a consumer Handler. Malformed or unknown events are logged and
// skipped; only storage failures are returned for retry.
func (p *BookingProjector) Handle(ctx context.Context, tx pgx.Tx, msg kafka.Message) (func(context.Context), error) {
	meta := kafkax.ExtractEventMeta(msg)
	var (
		professionalID string
		change         string
		err            error
	)
	switch meta.EventType {
	case TopicAppointmentBooked:
		professionalID, err = p.applyBooked(ctx, tx, msg.Value)
		change = outbox.ChangeAppointmentBooked
	case TopicAppointmentCancelled:
		professionalID, err = p.applyCancelled(ctx, tx, msg.Value)
		change = outbox.ChangeAppointmentFreed
	default:
		p.logger.Warn("unknown booking event skipped", "event_type", meta.EventType, "event_id", meta.EventID)
		return nil, nil
	}

	var skip *skipError
	if errors.As(err, &skip) {
		p.logger.Warn("booking event skipped", "reason", skip.reason, "event_id", meta.EventID, "event_type", meta.EventType)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	evt, err := outbox.NewAvailabilityChanged(professionalID, change, p.now())
	if err != nil {
		return nil, err
	}
	if err := p.outbox.Insert(ctx, tx, evt); err != nil {
		return nil, err
	}

	return func(ctx context.Context) {
		if err := p.cache.Invalidate(ctx, professionalID); err != nil {
			p.logger.Warn("slot cache invalidation failed", "err", err, "professional_id", professionalID)
		}
	}, nil
}

func (p *BookingProjector) applyBooked(ctx context.Context, tx pgx.Tx, raw []byte) (string, error) {
	var evt BookedEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return "", skipf("invalid payload")
	}
	if evt.AppointmentID == "" || evt.ProfessionalID == "" || evt.AppointmentAt == "" {
		return "", skipf("missing appointment fields")
	}
	at, err := time.Parse(time.RFC3339, evt.AppointmentAt)
	if err != nil {
		return "", skipf("invalid appointment_at")
	}
	status := strings.ToLower(strings.TrimSpace(evt.Status))
	if status == "" {
		status = availability.StatusPending
	}

	err = p.repo.UpsertAppointment(ctx, tx, evt.ProfessionalID, availability.Appointment{
		ID:            evt.AppointmentID,
		AppointmentAt: at,
		Status:        status,
		SessionType:   evt.SessionType,
		PatientName:   evt.PatientName,
		PatientAvatar: evt.PatientAvatar,
		Description:   evt.Description,
	})
	if err != nil {
		return "", err
	}
	return evt.ProfessionalID, nil
}

func (p *BookingProjector) applyCancelled(ctx context.Context, tx pgx.Tx, raw []byte) (string, error) {
	var evt CancelledEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return "", skipf("invalid payload")
	}
	if evt.AppointmentID == "" {
		return "", skipf("missing appointment_id")
	}
	status := strings.ToLower(strings.TrimSpace(evt.Status))
	if status == "" {
		status = availability.StatusCancelled
	}
	if (availability.Appointment{Status: status}).Active() {
		return "", skipf("status does not free the slot")
	}

	professionalID, err := p.repo.SetAppointmentStatus(ctx, tx, evt.AppointmentID, status)
	if errors.Is(err, storage.ErrNotFound) {
		return "", skipf("unknown appointment")
	}
	if err != nil {
		return "", err
	}
	return professionalID, nil
}

type skipError struct {
	reason string
}

func (e *skipError) Error() string { return "skip: " + e.reason }

func skipf(reason string) error {
	return &skipError{reason: reason}
}
