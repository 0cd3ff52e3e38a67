package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kendrekaran/clr-bke/internal/models"
	appErrors "github.com/kendrekaran/clr-bke/pkg/errors"
)

type attendanceRepository interface {
	ExistsForDate(ctx context.Context, batchID string, date time.Time) (bool, error)
	Create(ctx context.Context, record *models.AttendanceRecord, entries []models.AttendanceEntry) error
	FindByID(ctx context.Context, id string) (*models.AttendanceRecordDetail, error)
	ReplaceEntries(ctx context.Context, attendanceID string, entries []models.AttendanceEntry) error
	Query(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, error)
}

type attendanceBatchReader interface {
	ListMemberIDs(ctx context.Context, batchID string) ([]string, error)
}

// AttendanceEntryRequest carries one student's status for a day.
type AttendanceEntryRequest struct {
	StudentID string                  `json:"student_id" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required"`
}

// MarkAttendanceRequest creates a day's register for a batch.
type MarkAttendanceRequest struct {
	Date    string                   `json:"date" validate:"required"`
	Entries []AttendanceEntryRequest `json:"entries" validate:"required,min=1,dive"`
}

// UpdateAttendanceRequest replaces a register's entry list.
type UpdateAttendanceRequest struct {
	Entries []AttendanceEntryRequest `json:"entries" validate:"required,min=1,dive"`
}

// AttendanceService orchestrates daily attendance registers. One register
// exists per (batch, date); marking twice is a conflict and corrections go
// through Update.
type AttendanceService struct {
	repo      attendanceRepository
	batches   attendanceBatchReader
	cache     *CacheService
	access    *AccessService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, batches attendanceBatchReader, cache *CacheService, access *AccessService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, batches: batches, cache: cache, access: access, validator: validate, logger: logger}
}

// Mark creates the register for a date; owner-only. A register already
// existing for the date is a conflict. Every entry must reference an enrolled
// student and each student may appear once.
func (s *AttendanceService) Mark(ctx context.Context, batchID string, req MarkAttendanceRequest, claims *models.JWTClaims) (*models.AttendanceRecordDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.RequireBatchOwner(ctx, batchID, claims); err != nil {
		return nil, err
	}

	entries, err := s.buildEntries(ctx, batchID, req.Entries)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsForDate(ctx, batchID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance date")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already marked for this date")
	}

	record := &models.AttendanceRecord{BatchID: batchID, Date: date, MarkedBy: claims.UserID}
	if err := s.repo.Create(ctx, record, entries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}
	s.cache.InvalidateBatch(ctx, batchID)
	return &models.AttendanceRecordDetail{AttendanceRecord: *record, Entries: entries}, nil
}

// Update replaces a register's entries; owner-only. The register must belong
// to the batch named in the path.
func (s *AttendanceService) Update(ctx context.Context, batchID, attendanceID string, req UpdateAttendanceRequest, claims *models.JWTClaims) (*models.AttendanceRecordDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if _, err := s.access.RequireBatchOwner(ctx, batchID, claims); err != nil {
		return nil, err
	}

	detail, err := s.repo.FindByID(ctx, attendanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance record")
	}
	if detail.BatchID != batchID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance record does not belong to this batch")
	}

	entries, err := s.buildEntries(ctx, batchID, req.Entries)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceEntries(ctx, attendanceID, entries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance")
	}
	s.cache.InvalidateBatch(ctx, batchID)

	updated, err := s.repo.FindByID(ctx, attendanceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload attendance record")
	}
	return updated, nil
}

// Query returns registers for a batch, optionally bounded by dates. Students
// and parents receive only the scoped student's rows.
func (s *AttendanceService) Query(ctx context.Context, batchID, studentID, dateFrom, dateTo string, claims *models.JWTClaims) ([]models.AttendanceRecordDetail, error) {
	scope, err := s.access.ResolveReadScope(ctx, batchID, studentID, claims)
	if err != nil {
		return nil, err
	}
	filter, err := buildFilter(batchID, scope.StudentID, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	details, err := s.repo.Query(ctx, *filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query attendance")
	}
	if details == nil {
		details = []models.AttendanceRecordDetail{}
	}
	return details, nil
}

// Summary aggregates one student's attendance over the window. Percentage is
// rounded to two decimals and zero when no classes were held.
func (s *AttendanceService) Summary(ctx context.Context, batchID, studentID, dateFrom, dateTo string, claims *models.JWTClaims) (*models.AttendanceSummary, error) {
	scope, err := s.access.ResolveReadScope(ctx, batchID, studentID, claims)
	if err != nil {
		return nil, err
	}
	if scope.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required for a summary")
	}
	filter, err := buildFilter(batchID, scope.StudentID, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.cache.GetSummary(ctx, *filter); ok {
		return cached, nil
	}

	details, err := s.repo.Query(ctx, *filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query attendance")
	}

	summary := &models.AttendanceSummary{BatchID: batchID, StudentID: scope.StudentID}
	for _, detail := range details {
		for _, entry := range detail.Entries {
			summary.TotalClasses++
			if entry.Status == models.AttendancePresent {
				summary.Present++
			} else {
				summary.Absent++
			}
		}
	}
	if summary.TotalClasses > 0 {
		summary.Percentage = round2(float64(summary.Present) / float64(summary.TotalClasses) * 100)
	}
	s.cache.SetSummary(ctx, *filter, summary)
	return summary, nil
}

func (s *AttendanceService) buildEntries(ctx context.Context, batchID string, reqs []AttendanceEntryRequest) ([]models.AttendanceEntry, error) {
	memberIDs, err := s.batches.ListMemberIDs(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch members")
	}
	members := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		members[id] = true
	}

	entries := make([]models.AttendanceEntry, len(reqs))
	seen := make(map[string]bool, len(reqs))
	for i, req := range reqs {
		if !req.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported attendance status")
		}
		if seen[req.StudentID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate student %s in payload", req.StudentID))
		}
		seen[req.StudentID] = true
		if !members[req.StudentID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not enrolled in this batch", req.StudentID))
		}
		entries[i] = models.AttendanceEntry{StudentID: req.StudentID, Status: req.Status}
	}
	return entries, nil
}

func buildFilter(batchID, studentID, dateFrom, dateTo string) (*models.AttendanceFilter, error) {
	filter := &models.AttendanceFilter{BatchID: batchID, StudentID: studentID}
	if dateFrom != "" {
		from, err := parseDate(dateFrom)
		if err != nil {
			return nil, err
		}
		filter.DateFrom = &from
	}
	if dateTo != "" {
		to, err := parseDate(dateTo)
		if err != nil {
			return nil, err
		}
		filter.DateTo = &to
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date_to must not precede date_from")
	}
	return filter, nil
}

func parseDate(value string) (time.Time, error) {
	date, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD format")
	}
	return date, nil
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
