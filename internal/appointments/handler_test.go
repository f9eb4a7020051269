package appointments

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	repo, mock := newMockRepo(t)
	h := NewHandler(repo, nil)
	h.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	return h, mock
}

func TestHandler_List(t *testing.T) {
	h, mock := newTestHandler(t)
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM appointments\s+WHERE starts_at`).
		WithArgs(from, to, string(StatusScheduled), string(StatusConfirmed)).
		WillReturnRows(apptRow(Appointment{
			ID: "appt-1", LeadID: "lead-1", PatientName: "Davi",
			StartsAt: from.Add(14 * time.Hour), Status: StatusScheduled,
			CreatedAt: from, UpdatedAt: from,
		}))

	req := httptest.NewRequest(http.MethodGet, "/?from=2026-09-01&to=2026-09-08", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"appt-1"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_List_BadDate(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/?from=not-a-date", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Create_Validation(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"patientName": "Davi", "startsAt": "2026-09-03T14:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "lead id is required")
}

func TestHandler_UpdateStatus(t *testing.T) {
	h, mock := newTestHandler(t)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE appointments SET status`).
		WithArgs("appt-1", string(StatusConfirmed), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := httptest.NewRequest(http.MethodPatch, "/appt-1/status", strings.NewReader(`{"status":"confirmed"}`))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_UpdateStatus_Invalid(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPatch, "/appt-1/status", strings.NewReader(`{"status":"banana"}`))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
