package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kendrekaran/clr-bke/internal/models"
	appErrors "github.com/kendrekaran/clr-bke/pkg/errors"
)

type timetableRepository interface {
	ReplaceDay(ctx context.Context, batchID string, day models.Weekday, entries []models.TimetableEntry) error
	Upsert(ctx context.Context, entry *models.TimetableEntry) error
	DeleteSlot(ctx context.Context, batchID string, day models.Weekday, hour int) error
	ClearDay(ctx context.Context, batchID string, day models.Weekday) error
	ListDay(ctx context.Context, batchID string, day models.Weekday) ([]models.TimetableEntry, error)
	ListWeek(ctx context.Context, batchID string) ([]models.TimetableEntry, error)
}

// SlotRequest describes one timetable slot.
type SlotRequest struct {
	Hour    int     `json:"hour" validate:"required,min=1,max=8"`
	Subject string  `json:"subject" validate:"required"`
	Teacher *string `json:"teacher"`
}

// SetDayRequest replaces a whole day's entries.
type SetDayRequest struct {
	Entries []SlotRequest `json:"entries" validate:"required,dive"`
}

// TimetableService orchestrates per-batch weekly timetables.
type TimetableService struct {
	repo      timetableRepository
	access    *AccessService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimetableService constructs TimetableService.
func NewTimetableService(repo timetableRepository, access *AccessService, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{repo: repo, access: access, validator: validate, logger: logger}
}

// SetDay replaces the full entry list for a day; owner-only. Hours within the
// payload must be distinct.
func (s *TimetableService) SetDay(ctx context.Context, batchID, day string, req SetDayRequest, claims *models.JWTClaims) ([]models.TimetableEntry, error) {
	weekday, err := parseWeekday(day)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}
	seen := make(map[int]bool, len(req.Entries))
	for _, slot := range req.Entries {
		if seen[slot.Hour] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate hour %d in payload", slot.Hour))
		}
		seen[slot.Hour] = true
	}
	if _, err := s.access.RequireBatchOwner(ctx, batchID, claims); err != nil {
		return nil, err
	}

	entries := make([]models.TimetableEntry, len(req.Entries))
	for i, slot := range req.Entries {
		entries[i] = models.TimetableEntry{Hour: slot.Hour, Subject: slot.Subject, Teacher: slot.Teacher}
	}
	if err := s.repo.ReplaceDay(ctx, batchID, weekday, entries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace timetable day")
	}
	return s.listDay(ctx, batchID, weekday)
}

// UpsertSlot writes a single slot, replacing whatever occupies (day, hour);
// owner-only.
func (s *TimetableService) UpsertSlot(ctx context.Context, batchID, day string, req SlotRequest, claims *models.JWTClaims) ([]models.TimetableEntry, error) {
	weekday, err := parseWeekday(day)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	if _, err := s.access.RequireBatchOwner(ctx, batchID, claims); err != nil {
		return nil, err
	}

	entry := &models.TimetableEntry{BatchID: batchID, Day: weekday, Hour: req.Hour, Subject: req.Subject, Teacher: req.Teacher}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert timetable slot")
	}
	return s.listDay(ctx, batchID, weekday)
}

// DeleteSlot removes the slot at (day, hour); owner-only.
func (s *TimetableService) DeleteSlot(ctx context.Context, batchID, day string, hour int, claims *models.JWTClaims) error {
	weekday, err := parseWeekday(day)
	if err != nil {
		return err
	}
	if hour < models.MinHour || hour > models.MaxHour {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("hour must be between %d and %d", models.MinHour, models.MaxHour))
	}
	if _, err := s.access.RequireBatchOwner(ctx, batchID, claims); err != nil {
		return err
	}
	if err := s.repo.DeleteSlot(ctx, batchID, weekday, hour); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable slot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable slot")
	}
	return nil
}

// ClearDay removes every entry for a day; owner-only.
func (s *TimetableService) ClearDay(ctx context.Context, batchID, day string, claims *models.JWTClaims) error {
	weekday, err := parseWeekday(day)
	if err != nil {
		return err
	}
	if _, err := s.access.RequireBatchOwner(ctx, batchID, claims); err != nil {
		return err
	}
	if err := s.repo.ClearDay(ctx, batchID, weekday); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear timetable day")
	}
	return nil
}

// GetDay returns a day's entries sorted by hour, readable by the owner,
// enrolled students and linked parents.
func (s *TimetableService) GetDay(ctx context.Context, batchID, day, studentID string, claims *models.JWTClaims) ([]models.TimetableEntry, error) {
	weekday, err := parseWeekday(day)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.ResolveReadScope(ctx, batchID, studentID, claims); err != nil {
		return nil, err
	}
	return s.listDay(ctx, batchID, weekday)
}

// GetWeek returns the full week grouped by day in weekday order.
func (s *TimetableService) GetWeek(ctx context.Context, batchID, studentID string, claims *models.JWTClaims) (*models.TimetableWeek, error) {
	if _, err := s.access.ResolveReadScope(ctx, batchID, studentID, claims); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListWeek(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable week")
	}

	week := &models.TimetableWeek{BatchID: batchID, Days: make(map[models.Weekday][]models.TimetableEntry, len(models.Weekdays))}
	for _, day := range models.Weekdays {
		week.Days[day] = []models.TimetableEntry{}
	}
	for _, entry := range entries {
		week.Days[entry.Day] = append(week.Days[entry.Day], entry)
	}
	return week, nil
}

func (s *TimetableService) listDay(ctx context.Context, batchID string, day models.Weekday) ([]models.TimetableEntry, error) {
	entries, err := s.repo.ListDay(ctx, batchID, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable day")
	}
	if entries == nil {
		entries = []models.TimetableEntry{}
	}
	return entries, nil
}

func parseWeekday(day string) (models.Weekday, error) {
	weekday := models.Weekday(day)
	if !weekday.Valid() {
		return "", appErrors.Clone(appErrors.ErrValidation, "invalid weekday")
	}
	return weekday, nil
}
