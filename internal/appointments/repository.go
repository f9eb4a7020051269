package appointments

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository persists appointments and availability on Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps the shared database handle.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		panic("appointments: db required")
	}
	return &Repository{db: db}
}

const slotColumns = `id, therapy_area, specialist, starts_at, period, booked`

// FindOpenSlots returns unbooked future slots for a therapy area, optionally
// filtered by period preference, soonest first.
func (r *Repository) FindOpenSlots(ctx context.Context, therapyArea, period string, limit int) ([]AvailabilitySlot, error) {
	if limit <= 0 {
		limit = 3
	}
	query := `
		SELECT ` + slotColumns + `
		FROM availability_slots
		WHERE booked = FALSE
		  AND starts_at > now()
		  AND ($1 = '' OR therapy_area = $1)
		  AND ($2 = '' OR period = $2)
		ORDER BY starts_at ASC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, therapyArea, period, limit)
	if err != nil {
		return nil, fmt.Errorf("appointments: slot query failed: %w", err)
	}
	defer rows.Close()

	var out []AvailabilitySlot
	for rows.Next() {
		var s AvailabilitySlot
		if err := rows.Scan(&s.ID, &s.TherapyArea, &s.Specialist, &s.StartsAt, &s.Period, &s.Booked); err != nil {
			return nil, fmt.Errorf("appointments: slot scan failed: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetSlot loads one availability slot.
func (r *Repository) GetSlot(ctx context.Context, id string) (*AvailabilitySlot, error) {
	var s AvailabilitySlot
	err := r.db.QueryRowContext(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots WHERE id = $1`, id).
		Scan(&s.ID, &s.TherapyArea, &s.Specialist, &s.StartsAt, &s.Period, &s.Booked)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: slot load failed: %w", err)
	}
	return &s, nil
}

// BookSlot atomically claims a slot and creates the appointment row. The
// claim update guards against two leads choosing the same slot.
func (r *Repository) BookSlot(ctx context.Context, apptID, slotID, leadID, patientName string, now time.Time) (*Appointment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE availability_slots SET booked = TRUE
		WHERE id = $1 AND booked = FALSE`, slotID)
	if err != nil {
		return nil, fmt.Errorf("appointments: slot claim failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("appointments: slot claim result: %w", err)
	}
	if affected == 0 {
		return nil, ErrSlotTaken
	}

	var appt Appointment
	err = tx.QueryRowContext(ctx, `
		INSERT INTO appointments (id, lead_id, slot_id, patient_name, therapy_area, specialist, starts_at, duration_min, status, created_at, updated_at)
		SELECT $1, $2, s.id, $3, s.therapy_area, s.specialist, s.starts_at, 50, $4, $5, $5
		FROM availability_slots s WHERE s.id = $6
		RETURNING id, lead_id, slot_id, patient_name, therapy_area, specialist, starts_at, duration_min, status, created_at, updated_at`,
		apptID, leadID, patientName, StatusScheduled, now, slotID).
		Scan(&appt.ID, &appt.LeadID, &appt.SlotID, &appt.PatientName, &appt.TherapyArea,
			&appt.Specialist, &appt.StartsAt, &appt.DurationMin, &appt.Status, &appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("appointments: insert failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("appointments: commit booking: %w", err)
	}
	return &appt, nil
}

const apptColumns = `id, lead_id, COALESCE(slot_id, ''), patient_name, therapy_area, specialist, starts_at, duration_min, status, COALESCE(notes, ''), created_at, updated_at`

// Create inserts a manually scheduled appointment with no availability slot.
func (r *Repository) Create(ctx context.Context, id string, req *CreateRequest, now time.Time) (*Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var appt Appointment
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO appointments (id, lead_id, patient_name, therapy_area, specialist, starts_at, duration_min, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING `+apptColumns,
		id, req.LeadID, req.PatientName, req.TherapyArea, req.Specialist,
		req.StartsAt, req.DurationMin, StatusScheduled, req.Notes, now).
		Scan(scanTargets(&appt)...)
	if err != nil {
		return nil, fmt.Errorf("appointments: insert failed: %w", err)
	}
	return &appt, nil
}

// GetByID loads one appointment.
func (r *Repository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	var appt Appointment
	err := r.db.QueryRowContext(ctx, `
		SELECT `+apptColumns+` FROM appointments WHERE id = $1`, id).
		Scan(scanTargets(&appt)...)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: load failed: %w", err)
	}
	return &appt, nil
}

// ListByLead returns a lead's appointments, soonest first.
func (r *Repository) ListByLead(ctx context.Context, leadID string) ([]Appointment, error) {
	return r.list(ctx, `
		SELECT `+apptColumns+` FROM appointments
		WHERE lead_id = $1 ORDER BY starts_at ASC`, leadID)
}

// ListBetween returns appointments starting inside [from, to). Feeds the
// daily digest.
func (r *Repository) ListBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	return r.list(ctx, `
		SELECT `+apptColumns+` FROM appointments
		WHERE starts_at >= $1 AND starts_at < $2 AND status IN ($3, $4)
		ORDER BY starts_at ASC`, from, to, StatusScheduled, StatusConfirmed)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Appointment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list failed: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		var appt Appointment
		if err := rows.Scan(scanTargets(&appt)...); err != nil {
			return nil, fmt.Errorf("appointments: list scan failed: %w", err)
		}
		out = append(out, appt)
	}
	return out, rows.Err()
}

// UpdateStatus moves an appointment through its lifecycle. Cancelling
// releases the underlying availability slot.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("appointments: begin status tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE appointments SET status = $2, updated_at = $3 WHERE id = $1`, id, status, now)
	if err != nil {
		return fmt.Errorf("appointments: status update failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("appointments: status update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if status == StatusCancelled {
		_, err = tx.ExecContext(ctx, `
			UPDATE availability_slots SET booked = FALSE
			WHERE id = (SELECT slot_id FROM appointments WHERE id = $1 AND slot_id IS NOT NULL)`, id)
		if err != nil {
			return fmt.Errorf("appointments: slot release failed: %w", err)
		}
	}

	return tx.Commit()
}

func scanTargets(a *Appointment) []any {
	return []any{
		&a.ID, &a.LeadID, &a.SlotID, &a.PatientName, &a.TherapyArea,
		&a.Specialist, &a.StartsAt, &a.DurationMin, &a.Status, &a.Notes,
		&a.CreatedAt, &a.UpdatedAt,
	}
}
