package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kendrekaran/clr-bke/internal/models"
	appErrors "github.com/kendrekaran/clr-bke/pkg/errors"
)

type batchRepository interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
	FindByCode(ctx context.Context, code string) (*models.Batch, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, batch *models.Batch) error
	UpdateFields(ctx context.Context, id string, version int, name, class *string) error
	Delete(ctx context.Context, id string, version int) error
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Batch, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Batch, error)
	IsEnrolled(ctx context.Context, batchID, studentID string) (bool, error)
	AddMembers(ctx context.Context, batchID string, studentIDs []string) error
	RemoveMember(ctx context.Context, batchID, studentID string) error
	ListMemberIDs(ctx context.Context, batchID string) ([]string, error)
}

type batchAccountReader interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FilterStudents(ctx context.Context, ids []string) (map[string]bool, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.UserInfo, error)
}

// CreateBatchRequest describes batch creation.
type CreateBatchRequest struct {
	Code  string `json:"code" validate:"required,alphanum,min=4,max=12"`
	Name  string `json:"name" validate:"required"`
	Class string `json:"class" validate:"required"`
}

// UpdateBatchRequest describes a partial batch update with the optimistic
// version carried by the client.
type UpdateBatchRequest struct {
	Name    *string `json:"name"`
	Class   *string `json:"class"`
	Version int     `json:"version" validate:"required,min=1"`
}

// AddStudentsRequest carries the bulk-add payload.
type AddStudentsRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,required"`
}

// JoinBatchRequest carries the code-based self-enrollment payload.
type JoinBatchRequest struct {
	Code string `json:"code" validate:"required"`
}

// BatchService orchestrates the batch registry.
type BatchService struct {
	repo      batchRepository
	accounts  batchAccountReader
	access    *AccessService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBatchService constructs BatchService.
func NewBatchService(repo batchRepository, accounts batchAccountReader, access *AccessService, validate *validator.Validate, logger *zap.Logger) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{repo: repo, accounts: accounts, access: access, validator: validate, logger: logger}
}

// Create registers a batch owned by the calling teacher. The code is
// canonicalized to uppercase before the uniqueness check.
func (s *BatchService) Create(ctx context.Context, req CreateBatchRequest, claims *models.JWTClaims) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	teacher, err := s.accounts.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers may create batches")
	}

	code := strings.ToUpper(req.Code)
	exists, err := s.repo.CodeExists(ctx, code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check batch code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "batch code already in use")
	}

	batch := &models.Batch{Code: code, Name: req.Name, Class: req.Class, TeacherID: teacher.ID}
	if err := s.repo.Create(ctx, batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create batch")
	}
	return batch, nil
}

// Get returns a batch with its enrolled students, visible to the owner and
// to enrolled students or linked parents.
func (s *BatchService) Get(ctx context.Context, batchID string, claims *models.JWTClaims) (*models.BatchDetail, error) {
	scope, err := s.access.ResolveReadScope(ctx, batchID, "", claims)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, scope.Batch)
}

// List returns the caller's batches: owned for teachers, enrolled for
// students.
func (s *BatchService) List(ctx context.Context, claims *models.JWTClaims) ([]models.Batch, error) {
	switch claims.Role {
	case models.RoleTeacher:
		batches, err := s.repo.ListByTeacher(ctx, claims.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batches")
		}
		return batches, nil
	case models.RoleStudent:
		batches, err := s.repo.ListByStudent(ctx, claims.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batches")
		}
		return batches, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "parents do not have a batch list")
	}
}

// Update applies name/class changes; owner-only, guarded by the optimistic
// version check.
func (s *BatchService) Update(ctx context.Context, batchID string, req UpdateBatchRequest, claims *models.JWTClaims) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}
	if req.Name == nil && req.Class == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nothing to update")
	}
	if _, err := s.access.RequireBatchOwner(ctx, batchID, claims); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateFields(ctx, batchID, req.Version, req.Name, req.Class); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "batch was modified concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update batch")
	}
	batch, err := s.repo.FindByID(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload batch")
	}
	return batch, nil
}

// Delete removes a batch and everything scoped to it, attendance included.
func (s *BatchService) Delete(ctx context.Context, batchID string, version int, claims *models.JWTClaims) error {
	if _, err := s.access.RequireBatchOwner(ctx, batchID, claims); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, batchID, version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "batch was modified concurrently")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete batch")
	}
	return nil
}

// JoinByCode enrolls the calling student into the batch with the given code.
func (s *BatchService) JoinByCode(ctx context.Context, req JoinBatchRequest, claims *models.JWTClaims) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid join payload")
	}
	if claims.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may join by code")
	}

	batch, err := s.repo.FindByCode(ctx, strings.ToUpper(req.Code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}

	enrolled, err := s.repo.IsEnrolled(ctx, batch.ID, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if enrolled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled in this batch")
	}

	if err := s.repo.AddMembers(ctx, batch.ID, []string{claims.UserID}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join batch")
	}
	return batch, nil
}

// AddStudents bulk-enrolls students; every id must resolve to a student
// account before any is admitted, and ids already enrolled are skipped
// silently.
func (s *BatchService) AddStudents(ctx context.Context, batchID string, req AddStudentsRequest, claims *models.JWTClaims) (*models.BatchDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid add-students payload")
	}
	batch, err := s.access.RequireBatchOwner(ctx, batchID, claims)
	if err != nil {
		return nil, err
	}

	students, err := s.accounts.FilterStudents(ctx, req.StudentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate students")
	}
	var missing []string
	for _, id := range req.StudentIDs {
		if !students[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown student ids: "+strings.Join(missing, ", "))
	}

	if err := s.repo.AddMembers(ctx, batchID, req.StudentIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add students")
	}
	return s.detail(ctx, batch)
}

// RemoveStudent unenrolls a student; owner-only.
func (s *BatchService) RemoveStudent(ctx context.Context, batchID, studentID string, claims *models.JWTClaims) error {
	if _, err := s.access.RequireBatchOwner(ctx, batchID, claims); err != nil {
		return err
	}
	if err := s.repo.RemoveMember(ctx, batchID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student is not enrolled in this batch")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove student")
	}
	return nil
}

func (s *BatchService) detail(ctx context.Context, batch *models.Batch) (*models.BatchDetail, error) {
	ids, err := s.repo.ListMemberIDs(ctx, batch.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list members")
	}
	students, err := s.accounts.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	return &models.BatchDetail{Batch: *batch, Students: students}, nil
}
