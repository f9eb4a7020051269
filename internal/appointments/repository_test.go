package appointments

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func slotRows(slots ...AvailabilitySlot) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "therapy_area", "specialist", "starts_at", "period", "booked"})
	for _, s := range slots {
		rows.AddRow(s.ID, s.TherapyArea, s.Specialist, s.StartsAt, s.Period, s.Booked)
	}
	return rows
}

func apptRow(a Appointment) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "lead_id", "slot_id", "patient_name", "therapy_area", "specialist",
		"starts_at", "duration_min", "status", "notes", "created_at", "updated_at",
	}).AddRow(a.ID, a.LeadID, a.SlotID, a.PatientName, a.TherapyArea, a.Specialist,
		a.StartsAt, a.DurationMin, a.Status, a.Notes, a.CreatedAt, a.UpdatedAt)
}

func TestRepository_FindOpenSlots(t *testing.T) {
	repo, mock := newMockRepo(t)
	starts := time.Date(2026, 9, 3, 17, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM availability_slots`).
		WithArgs("fonoaudiologia", "tarde", 3).
		WillReturnRows(slotRows(AvailabilitySlot{
			ID: "s1", TherapyArea: "fonoaudiologia", Specialist: "Dra. Paula",
			StartsAt: starts, Period: "tarde",
		}))

	slots, err := repo.FindOpenSlots(context.Background(), "fonoaudiologia", "tarde", 3)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "s1", slots[0].ID)
	assert.Equal(t, "Dra. Paula", slots[0].Specialist)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_BookSlot(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	starts := now.Add(48 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE availability_slots SET booked = TRUE`).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs("appt-1", "lead-1", "Davi Oliveira", string(StatusScheduled), now, "s1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "lead_id", "slot_id", "patient_name", "therapy_area", "specialist",
			"starts_at", "duration_min", "status", "created_at", "updated_at",
		}).AddRow("appt-1", "lead-1", "s1", "Davi Oliveira", "fonoaudiologia", "Dra. Paula",
			starts, 50, string(StatusScheduled), now, now))
	mock.ExpectCommit()

	appt, err := repo.BookSlot(context.Background(), "appt-1", "s1", "lead-1", "Davi Oliveira", now)
	require.NoError(t, err)
	assert.Equal(t, "appt-1", appt.ID)
	assert.Equal(t, "fonoaudiologia", appt.TherapyArea)
	assert.Equal(t, StatusScheduled, appt.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_BookSlot_AlreadyTaken(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE availability_slots SET booked = TRUE`).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.BookSlot(context.Background(), "appt-1", "s1", "lead-1", "Davi", now)
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM appointments WHERE id`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpdateStatus_CancelReleasesSlot(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE appointments SET status`).
		WithArgs("appt-1", string(StatusCancelled), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE availability_slots SET booked = FALSE`).
		WithArgs("appt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), "appt-1", StatusCancelled, now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpdateStatus_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE appointments SET status`).
		WithArgs("missing", string(StatusConfirmed), now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.UpdateStatus(context.Background(), "missing", StatusConfirmed, now)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListBetween(t *testing.T) {
	repo, mock := newMockRepo(t)
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	mock.ExpectQuery(`SELECT .+ FROM appointments\s+WHERE starts_at`).
		WithArgs(from, to, string(StatusScheduled), string(StatusConfirmed)).
		WillReturnRows(apptRow(Appointment{
			ID: "appt-1", LeadID: "lead-1", SlotID: "s1", PatientName: "Davi",
			TherapyArea: "fonoaudiologia", Specialist: "Dra. Paula",
			StartsAt: from.Add(14 * time.Hour), DurationMin: 50, Status: StatusScheduled,
			CreatedAt: from, UpdatedAt: from,
		}))

	appts, err := repo.ListBetween(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, "Davi", appts[0].PatientName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
