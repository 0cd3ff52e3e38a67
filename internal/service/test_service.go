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

type testRepository interface {
	Create(ctx context.Context, test *models.Test) error
	FindByID(ctx context.Context, batchID, id string) (*models.Test, error)
	ListByBatch(ctx context.Context, batchID string) ([]models.Test, error)
	Delete(ctx context.Context, batchID, id string) error
	UpsertMarks(ctx context.Context, testID string, marks []models.TestMark) error
	ListMarks(ctx context.Context, testID string) ([]models.TestMark, error)
	FindMark(ctx context.Context, testID, studentID string) (*models.TestMark, error)
}

type testAccountReader interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
}

// CreateTestRequest describes a test definition.
type CreateTestRequest struct {
	ExamName string `json:"exam_name" validate:"required"`
	Subject  string `json:"subject" validate:"required"`
	MaxMarks int    `json:"max_marks" validate:"required,min=1"`
}

// MarkEntryRequest carries one student's result.
type MarkEntryRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	Marks     int     `json:"marks" validate:"min=0"`
	Remarks   *string `json:"remarks"`
}

// RecordMarksRequest upserts results for one or more students in a single
// call.
type RecordMarksRequest struct {
	Entries []MarkEntryRequest `json:"entries" validate:"required,min=1,dive"`
}

// TestService orchestrates test definitions and per-student marks.
type TestService struct {
	repo      testRepository
	accounts  testAccountReader
	access    *AccessService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTestService constructs TestService.
func NewTestService(repo testRepository, accounts testAccountReader, access *AccessService, validate *validator.Validate, logger *zap.Logger) *TestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TestService{repo: repo, accounts: accounts, access: access, validator: validate, logger: logger}
}

// Create defines a new test with no marks; owner-only.
func (s *TestService) Create(ctx context.Context, batchID string, req CreateTestRequest, claims *models.JWTClaims) (*models.Test, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid test payload")
	}
	if _, err := s.access.RequireBatchOwner(ctx, batchID, claims); err != nil {
		return nil, err
	}
	test := &models.Test{
		BatchID:   batchID,
		ExamName:  req.ExamName,
		Subject:   req.Subject,
		MaxMarks:  req.MaxMarks,
		CreatedBy: claims.UserID,
	}
	if err := s.repo.Create(ctx, test); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create test")
	}
	return test, nil
}

// List returns a batch's tests most-recent-first.
func (s *TestService) List(ctx context.Context, batchID, studentID string, claims *models.JWTClaims) ([]models.Test, error) {
	if _, err := s.access.ResolveReadScope(ctx, batchID, studentID, claims); err != nil {
		return nil, err
	}
	tests, err := s.repo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tests")
	}
	return tests, nil
}

// Get returns a test with its marks. Students and parents see only the scoped
// student's row; the owning teacher sees every row.
func (s *TestService) Get(ctx context.Context, batchID, testID, studentID string, claims *models.JWTClaims) (*models.TestDetail, error) {
	scope, err := s.access.ResolveReadScope(ctx, batchID, studentID, claims)
	if err != nil {
		return nil, err
	}
	test, err := s.loadTest(ctx, batchID, testID)
	if err != nil {
		return nil, err
	}

	var marks []models.TestMark
	if scope.StudentID != "" {
		mark, err := s.repo.FindMark(ctx, testID, scope.StudentID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marks")
			}
			marks = []models.TestMark{}
		} else {
			marks = []models.TestMark{*mark}
		}
	} else {
		marks, err = s.repo.ListMarks(ctx, testID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list marks")
		}
		if marks == nil {
			marks = []models.TestMark{}
		}
	}
	return &models.TestDetail{Test: *test, Marks: marks}, nil
}

// Delete removes a test and its marks; owner-only.
func (s *TestService) Delete(ctx context.Context, batchID, testID string, claims *models.JWTClaims) error {
	if _, err := s.access.RequireBatchOwner(ctx, batchID, claims); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, batchID, testID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "test not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete test")
	}
	return nil
}

// RecordMarks upserts per-student results; owner-only. Every entry is
// validated before any row is written: marks must not exceed the test's
// maximum, each student id must resolve to a STUDENT account, and the payload
// may not name a student twice. Enrollment is not required, so results
// survive a later unenrollment and re-recording stays possible.
func (s *TestService) RecordMarks(ctx context.Context, batchID, testID string, req RecordMarksRequest, claims *models.JWTClaims) ([]models.TestMark, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid marks payload")
	}
	if _, err := s.access.RequireBatchOwner(ctx, batchID, claims); err != nil {
		return nil, err
	}
	test, err := s.loadTest(ctx, batchID, testID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(req.Entries))
	marks := make([]models.TestMark, 0, len(req.Entries))
	for _, entry := range req.Entries {
		if seen[entry.StudentID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate student %s in marks payload", entry.StudentID))
		}
		seen[entry.StudentID] = true

		if entry.Marks > test.MaxMarks {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("marks for %s exceed maximum of %d", entry.StudentID, test.MaxMarks))
		}

		student, err := s.accounts.FindByID(ctx, entry.StudentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", entry.StudentID))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		if student.Role != models.RoleStudent {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s does not reference a student account", entry.StudentID))
		}

		marks = append(marks, models.TestMark{TestID: testID, StudentID: entry.StudentID, Marks: entry.Marks, Remarks: entry.Remarks})
	}

	if err := s.repo.UpsertMarks(ctx, testID, marks); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record marks")
	}
	return marks, nil
}

func (s *TestService) loadTest(ctx context.Context, batchID, testID string) (*models.Test, error) {
	test, err := s.repo.FindByID(ctx, batchID, testID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "test not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load test")
	}
	return test, nil
}
