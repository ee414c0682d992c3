package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/consultbook/libs/db"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/availability"
)

// ListAppointments returns the projected appointments at or after gte, any status.
func (r *Repository) ListAppointments(ctx context.Context, professionalID string, gte time.Time) ([]availability.Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, appointment_at, status, session_type, patient_name, patient_avatar, description
		FROM appointments
		WHERE professional_id = $1 AND appointment_at >= $2
		ORDER BY appointment_at ASC
	`, professionalID, gte)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	out := []availability.Appointment{}
	for rows.Next() {
		var a availability.Appointment
		if err := rows.Scan(&a.ID, &a.AppointmentAt, &a.Status, &a.SessionType, &a.PatientName, &a.PatientAvatar, &a.Description); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("list appointments: %w", rows.Err())
	}
	return out, nil
}

// UpsertAppointment stores the latest known state of a booked appointment.
func (r *Repository) UpsertAppointment(ctx context.Context, q db.DBTX, professionalID string, a availability.Appointment) error {
	_, err := q.Exec(ctx, `
		INSERT INTO appointments (id, professional_id, appointment_at, status, session_type, patient_name, patient_avatar, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET appointment_at = EXCLUDED.appointment_at,
			status = EXCLUDED.status,
			session_type = EXCLUDED.session_type,
			patient_name = EXCLUDED.patient_name,
			patient_avatar = EXCLUDED.patient_avatar,
			description = EXCLUDED.description,
			updated_at = now()
	`, a.ID, professionalID, a.AppointmentAt, a.Status, a.SessionType, a.PatientName, a.PatientAvatar, a.Description)
	if err != nil {
		return fmt.Errorf("upsert appointment: %w", err)
	}
	return nil
}

// SetAppointmentStatus changes the status of a known appointment and returns
// its professional so the caller can invalidate cached slots.
func (r *Repository) SetAppointmentStatus(ctx context.Context, q db.DBTX, appointmentID, status string) (string, error) {
	var professionalID string
	err := q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING professional_id
	`, appointmentID, status).Scan(&professionalID)
	if err != nil {
		if isNoRows(err) {
			return "", fmt.Errorf("appointment %s: %w", appointmentID, ErrNotFound)
		}
		return "", fmt.Errorf("set appointment status: %w", err)
	}
	return professionalID, nil
}
