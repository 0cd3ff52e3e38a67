package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendrekaran/clr-bke/internal/models"
)

func newAttendanceMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryExistsForDate(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)
	date := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM attendance_records WHERE batch_id = $1 AND date = $2)")).
		WithArgs("batch-1", date).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsForDate(context.Background(), "batch-1", date)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCreateTransactional(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance_records").
		WithArgs(sqlmock.AnyArg(), "batch-1", sqlmock.AnyArg(), "teacher-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO attendance_entries").
		WithArgs(sqlmock.AnyArg(), "student-1", string(models.AttendancePresent)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO attendance_entries").
		WithArgs(sqlmock.AnyArg(), "student-2", string(models.AttendanceAbsent)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	record := &models.AttendanceRecord{
		BatchID:  "batch-1",
		Date:     time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		MarkedBy: "teacher-1",
	}
	entries := []models.AttendanceEntry{
		{StudentID: "student-1", Status: models.AttendancePresent},
		{StudentID: "student-2", Status: models.AttendanceAbsent},
	}
	err := repo.Create(context.Background(), record, entries)
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, record.ID, entries[0].AttendanceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCreateRollsBackOnEntryFailure(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance_records").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO attendance_entries").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	record := &models.AttendanceRecord{BatchID: "batch-1", Date: time.Now(), MarkedBy: "teacher-1"}
	err := repo.Create(context.Background(), record, []models.AttendanceEntry{{StudentID: "student-1", Status: models.AttendancePresent}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryReplaceEntries(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance_entries WHERE attendance_id = $1")).
		WithArgs("att-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO attendance_entries").
		WithArgs("att-1", "student-1", string(models.AttendanceAbsent)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE attendance_records SET updated_at = $2 WHERE id = $1")).
		WithArgs("att-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReplaceEntries(context.Background(), "att-1", []models.AttendanceEntry{
		{StudentID: "student-1", Status: models.AttendanceAbsent},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryQueryBounds(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, batch_id, date, marked_by, created_at, updated_at FROM attendance_records WHERE batch_id = $1 AND date >= $2 AND date <= $3 ORDER BY date DESC")).
		WithArgs("batch-1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"id", "batch_id", "date", "marked_by", "created_at", "updated_at"}).
			AddRow("att-1", "batch-1", from, "teacher-1", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT attendance_id, student_id, status FROM attendance_entries WHERE attendance_id = $1 ORDER BY student_id")).
		WithArgs("att-1").
		WillReturnRows(sqlmock.NewRows([]string{"attendance_id", "student_id", "status"}).
			AddRow("att-1", "student-1", string(models.AttendancePresent)).
			AddRow("att-1", "student-2", string(models.AttendanceAbsent)))

	details, err := repo.Query(context.Background(), models.AttendanceFilter{
		BatchID:   "batch-1",
		StudentID: "student-2",
		DateFrom:  &from,
		DateTo:    &to,
	})
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Len(t, details[0].Entries, 1)
	assert.Equal(t, "student-2", details[0].Entries[0].StudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
