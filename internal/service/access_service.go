package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/kendrekaran/clr-bke/internal/models"
	appErrors "github.com/kendrekaran/clr-bke/pkg/errors"
)

type accessBatchReader interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
	IsEnrolled(ctx context.Context, batchID, studentID string) (bool, error)
}

type accessAccountReader interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
}

// AccessService is the authorization guard for batch-scoped operations.
// Every decision is a relational check against the data: batch ownership,
// batch membership, or the parent_email back-reference. There is no static
// permission matrix.
type AccessService struct {
	batches  accessBatchReader
	accounts accessAccountReader
	logger   *zap.Logger
}

// NewAccessService constructs the guard.
func NewAccessService(batches accessBatchReader, accounts accessAccountReader, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{batches: batches, accounts: accounts, logger: logger}
}

// RequireBatchOwner loads the batch and verifies the caller is its owning
// teacher.
func (s *AccessService) RequireBatchOwner(ctx context.Context, batchID string, claims *models.JWTClaims) (*models.Batch, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	batch, err := s.loadBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if claims.Role != models.RoleTeacher || batch.TeacherID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "caller does not own this batch")
	}
	return batch, nil
}

// RequireEnrolled verifies the student is enrolled in the batch.
func (s *AccessService) RequireEnrolled(ctx context.Context, batchID, studentID string) error {
	enrolled, err := s.batches.IsEnrolled(ctx, batchID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return appErrors.Clone(appErrors.ErrForbidden, "student is not enrolled in this batch")
	}
	return nil
}

// RequireParentLink verifies the caller is the parent linked to the student
// via the student's parent_email back-reference.
func (s *AccessService) RequireParentLink(ctx context.Context, claims *models.JWTClaims, studentID string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	student, err := s.accounts.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent || student.ParentEmail == nil ||
		!strings.EqualFold(*student.ParentEmail, claims.Email) {
		return appErrors.Clone(appErrors.ErrForbidden, "caller is not linked to this student")
	}
	return nil
}

// ReadScope describes the caller's visibility into a batch after a
// ResolveReadScope check: either the whole batch (owner) or a single student.
type ReadScope struct {
	Batch *models.Batch
	// StudentID is non-empty when visibility is restricted to one student.
	StudentID string
}

// ResolveReadScope authorizes a read of batch-scoped records. The owning
// teacher sees everything; a student sees their own rows (enrollment
// required); a parent sees the linked student's rows (linkage AND enrollment
// required). requestedStudentID narrows the teacher's view and must match the
// caller's own scope otherwise.
func (s *AccessService) ResolveReadScope(ctx context.Context, batchID, requestedStudentID string, claims *models.JWTClaims) (*ReadScope, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	batch, err := s.loadBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	switch claims.Role {
	case models.RoleTeacher:
		if batch.TeacherID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "caller does not own this batch")
		}
		return &ReadScope{Batch: batch, StudentID: requestedStudentID}, nil

	case models.RoleStudent:
		if requestedStudentID != "" && requestedStudentID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only read their own records")
		}
		if err := s.RequireEnrolled(ctx, batchID, claims.UserID); err != nil {
			return nil, err
		}
		return &ReadScope{Batch: batch, StudentID: claims.UserID}, nil

	case models.RoleParent:
		if requestedStudentID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required for parent reads")
		}
		// Linkage is checked before enrollment so a mismatched parent is
		// rejected regardless of enrollment validity.
		if err := s.RequireParentLink(ctx, claims, requestedStudentID); err != nil {
			return nil, err
		}
		if err := s.RequireEnrolled(ctx, batchID, requestedStudentID); err != nil {
			return nil, err
		}
		return &ReadScope{Batch: batch, StudentID: requestedStudentID}, nil

	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unsupported role")
	}
}

func (s *AccessService) loadBatch(ctx context.Context, batchID string) (*models.Batch, error) {
	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	return batch, nil
}
