package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kendrekaran/clr-bke/internal/models"
	appErrors "github.com/kendrekaran/clr-bke/pkg/errors"
)

type feeRepository interface {
	Upsert(ctx context.Context, payment *models.FeePayment) error
	Find(ctx context.Context, batchID, studentID string) (*models.FeePayment, error)
	ListByBatch(ctx context.Context, batchID string) ([]models.FeePayment, error)
}

type feeBatchReader interface {
	IsEnrolled(ctx context.Context, batchID, studentID string) (bool, error)
}

// RecordFeeRequest writes a student's single payment record for a batch.
type RecordFeeRequest struct {
	StudentID string               `json:"student_id" validate:"required"`
	Amount    float64              `json:"amount" validate:"required,gt=0"`
	Method    models.PaymentMethod `json:"method" validate:"required"`
	Status    models.PaymentStatus `json:"status" validate:"required"`
	Remarks   *string              `json:"remarks"`
}

// FeeService orchestrates fee payment records. Each student holds at most one
// record per batch; recording again replaces it in place.
type FeeService struct {
	repo      feeRepository
	batches   feeBatchReader
	access    *AccessService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeeService constructs FeeService.
func NewFeeService(repo feeRepository, batches feeBatchReader, access *AccessService, validate *validator.Validate, logger *zap.Logger) *FeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{repo: repo, batches: batches, access: access, validator: validate, logger: logger}
}

// Record upserts the student's payment record; owner-only. The student must
// be enrolled in the batch.
func (s *FeeService) Record(ctx context.Context, batchID string, req RecordFeeRequest, claims *models.JWTClaims) (*models.FeePayment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee payload")
	}
	if !req.Method.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported payment method")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported payment status")
	}
	if _, err := s.access.RequireBatchOwner(ctx, batchID, claims); err != nil {
		return nil, err
	}

	enrolled, err := s.batches.IsEnrolled(ctx, batchID, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not enrolled in this batch")
	}

	payment := &models.FeePayment{
		BatchID:   batchID,
		StudentID: req.StudentID,
		Amount:    req.Amount,
		Method:    req.Method,
		Status:    req.Status,
		Remarks:   req.Remarks,
	}
	if err := s.repo.Upsert(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record fee payment")
	}
	return payment, nil
}

// Get returns the scoped student's payment record. A missing record is not an
// error; the caller receives a nil payment.
func (s *FeeService) Get(ctx context.Context, batchID, studentID string, claims *models.JWTClaims) (*models.FeePayment, error) {
	scope, err := s.access.ResolveReadScope(ctx, batchID, studentID, claims)
	if err != nil {
		return nil, err
	}
	target := scope.StudentID
	if target == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}

	payment, err := s.repo.Find(ctx, batchID, target)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee payment")
	}
	return payment, nil
}

// List returns every payment record for a batch; owner-only.
func (s *FeeService) List(ctx context.Context, batchID string, claims *models.JWTClaims) ([]models.FeePayment, error) {
	if _, err := s.access.RequireBatchOwner(ctx, batchID, claims); err != nil {
		return nil, err
	}
	payments, err := s.repo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee payments")
	}
	if payments == nil {
		payments = []models.FeePayment{}
	}
	return payments, nil
}
