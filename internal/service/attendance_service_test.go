package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendrekaran/clr-bke/internal/models"
	appErrors "github.com/kendrekaran/clr-bke/pkg/errors"
)

type attendanceStoreMock struct {
	records map[string]*models.AttendanceRecord
	entries map[string][]models.AttendanceEntry
}

func newAttendanceStoreMock() *attendanceStoreMock {
	return &attendanceStoreMock{
		records: make(map[string]*models.AttendanceRecord),
		entries: make(map[string][]models.AttendanceEntry),
	}
}

func (m *attendanceStoreMock) ExistsForDate(ctx context.Context, batchID string, date time.Time) (bool, error) {
	for _, r := range m.records {
		if r.BatchID == batchID && r.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (m *attendanceStoreMock) Create(ctx context.Context, record *models.AttendanceRecord, entries []models.AttendanceEntry) error {
	if record.ID == "" {
		record.ID = "att-" + record.Date.Format("20060102")
	}
	clone := *record
	m.records[record.ID] = &clone
	m.entries[record.ID] = append([]models.AttendanceEntry(nil), entries...)
	return nil
}

func (m *attendanceStoreMock) FindByID(ctx context.Context, id string) (*models.AttendanceRecordDetail, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.AttendanceRecordDetail{AttendanceRecord: *r, Entries: m.entries[id]}, nil
}

func (m *attendanceStoreMock) ReplaceEntries(ctx context.Context, attendanceID string, entries []models.AttendanceEntry) error {
	if _, ok := m.records[attendanceID]; !ok {
		return sql.ErrNoRows
	}
	m.entries[attendanceID] = append([]models.AttendanceEntry(nil), entries...)
	return nil
}

func (m *attendanceStoreMock) Query(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, error) {
	var out []models.AttendanceRecordDetail
	for id, r := range m.records {
		if r.BatchID != filter.BatchID {
			continue
		}
		if filter.DateFrom != nil && r.Date.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && r.Date.After(*filter.DateTo) {
			continue
		}
		entries := m.entries[id]
		if filter.StudentID != "" {
			entries = filterStudent(entries, filter.StudentID)
			if len(entries) == 0 {
				continue
			}
		}
		out = append(out, models.AttendanceRecordDetail{AttendanceRecord: *r, Entries: entries})
	}
	return out, nil
}

func filterStudent(entries []models.AttendanceEntry, studentID string) []models.AttendanceEntry {
	var out []models.AttendanceEntry
	for _, e := range entries {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	return out
}

func newAttendanceFixture() (*AttendanceService, *attendanceStoreMock, *batchStoreMock) {
	batches := newBatchStoreMock()
	batches.batches["batch-1"] = &models.Batch{ID: "batch-1", Code: "PHY2026", TeacherID: "teacher-1", Version: 1}
	batches.members["batch-1"] = map[string]bool{"student-1": true, "student-2": true}

	accounts := &accountStoreMock{accounts: map[string]*models.Account{
		"student-1": {ID: "student-1", Role: models.RoleStudent},
	}}

	access := NewAccessService(batches, accounts, nil)
	store := newAttendanceStoreMock()
	cache := NewCacheService(nil, time.Minute, false, nil)
	return NewAttendanceService(store, batches, cache, access, nil, nil), store, batches
}

func markReq(date string, entries ...AttendanceEntryRequest) MarkAttendanceRequest {
	return MarkAttendanceRequest{Date: date, Entries: entries}
}

func TestAttendanceMarkTwiceConflicts(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	claims := teacherClaims("teacher-1")

	detail, err := svc.Mark(context.Background(), "batch-1",
		markReq("2026-08-01", AttendanceEntryRequest{StudentID: "student-1", Status: models.AttendancePresent}), claims)
	require.NoError(t, err)
	assert.Len(t, detail.Entries, 1)

	_, err = svc.Mark(context.Background(), "batch-1",
		markReq("2026-08-01", AttendanceEntryRequest{StudentID: "student-1", Status: models.AttendanceAbsent}), claims)
	requireAppError(t, err, appErrors.ErrConflict.Code)
}

func TestAttendanceMarkRejectsNonMembers(t *testing.T) {
	svc, _, _ := newAttendanceFixture()

	_, err := svc.Mark(context.Background(), "batch-1",
		markReq("2026-08-01", AttendanceEntryRequest{StudentID: "student-9", Status: models.AttendancePresent}), teacherClaims("teacher-1"))
	requireAppError(t, err, appErrors.ErrValidation.Code)
}

func TestAttendanceMarkRejectsDuplicateStudents(t *testing.T) {
	svc, _, _ := newAttendanceFixture()

	_, err := svc.Mark(context.Background(), "batch-1",
		markReq("2026-08-01",
			AttendanceEntryRequest{StudentID: "student-1", Status: models.AttendancePresent},
			AttendanceEntryRequest{StudentID: "student-1", Status: models.AttendanceAbsent}), teacherClaims("teacher-1"))
	requireAppError(t, err, appErrors.ErrValidation.Code)
}

func TestAttendanceUpdateBatchMismatch(t *testing.T) {
	svc, store, batches := newAttendanceFixture()
	batches.batches["batch-2"] = &models.Batch{ID: "batch-2", Code: "MTH2026", TeacherID: "teacher-1", Version: 1}
	batches.members["batch-2"] = map[string]bool{"student-1": true}

	detail, err := svc.Mark(context.Background(), "batch-1",
		markReq("2026-08-01", AttendanceEntryRequest{StudentID: "student-1", Status: models.AttendancePresent}), teacherClaims("teacher-1"))
	require.NoError(t, err)

	// The record belongs to batch-1; addressing it through batch-2 fails
	// validation rather than silently re-homing the register.
	_, err = svc.Update(context.Background(), "batch-2", detail.ID,
		UpdateAttendanceRequest{Entries: []AttendanceEntryRequest{{StudentID: "student-1", Status: models.AttendanceAbsent}}}, teacherClaims("teacher-1"))
	requireAppError(t, err, appErrors.ErrValidation.Code)
	assert.Equal(t, models.AttendancePresent, store.entries[detail.ID][0].Status)
}

func TestAttendanceUpdateReplacesEntries(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	claims := teacherClaims("teacher-1")

	detail, err := svc.Mark(context.Background(), "batch-1",
		markReq("2026-08-01", AttendanceEntryRequest{StudentID: "student-1", Status: models.AttendanceAbsent}), claims)
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), "batch-1", detail.ID,
		UpdateAttendanceRequest{Entries: []AttendanceEntryRequest{
			{StudentID: "student-1", Status: models.AttendancePresent},
			{StudentID: "student-2", Status: models.AttendanceAbsent},
		}}, claims)
	require.NoError(t, err)
	assert.Len(t, updated.Entries, 2)
}

func TestAttendanceSummaryPercentage(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	claims := teacherClaims("teacher-1")

	days := []struct {
		date   string
		status models.AttendanceStatus
	}{
		{"2026-08-01", models.AttendancePresent},
		{"2026-08-02", models.AttendancePresent},
		{"2026-08-03", models.AttendancePresent},
		{"2026-08-04", models.AttendanceAbsent},
	}
	for _, d := range days {
		_, err := svc.Mark(context.Background(), "batch-1",
			markReq(d.date, AttendanceEntryRequest{StudentID: "student-1", Status: d.status}), claims)
		require.NoError(t, err)
	}

	summary, err := svc.Summary(context.Background(), "batch-1", "student-1", "", "", claims)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalClasses)
	assert.Equal(t, 3, summary.Present)
	assert.Equal(t, 1, summary.Absent)
	assert.Equal(t, 75.0, summary.Percentage)
}

func TestAttendanceSummaryNoClasses(t *testing.T) {
	svc, _, _ := newAttendanceFixture()

	summary, err := svc.Summary(context.Background(), "batch-1", "student-1", "", "", teacherClaims("teacher-1"))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalClasses)
	assert.Equal(t, 0.0, summary.Percentage)
}

func TestAttendanceSummaryRequiresStudent(t *testing.T) {
	svc, _, _ := newAttendanceFixture()

	_, err := svc.Summary(context.Background(), "batch-1", "", "", "", teacherClaims("teacher-1"))
	requireAppError(t, err, appErrors.ErrValidation.Code)
}

func TestAttendanceQueryWindowValidation(t *testing.T) {
	svc, _, _ := newAttendanceFixture()

	_, err := svc.Query(context.Background(), "batch-1", "", "2026-08-10", "2026-08-01", teacherClaims("teacher-1"))
	requireAppError(t, err, appErrors.ErrValidation.Code)

	_, err = svc.Query(context.Background(), "batch-1", "", "08/01/2026", "", teacherClaims("teacher-1"))
	requireAppError(t, err, appErrors.ErrValidation.Code)
}
