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

type announcementRepository interface {
	Create(ctx context.Context, announcement *models.Announcement) error
	FindByID(ctx context.Context, batchID, id string) (*models.Announcement, error)
	Update(ctx context.Context, batchID, id string, title, content *string) error
	Delete(ctx context.Context, batchID, id string) error
	ListByBatch(ctx context.Context, batchID string) ([]models.Announcement, error)
}

// CreateAnnouncementRequest describes announcement creation.
type CreateAnnouncementRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// UpdateAnnouncementRequest carries a partial update; only supplied fields
// are touched.
type UpdateAnnouncementRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// AnnouncementService orchestrates batch announcements.
type AnnouncementService struct {
	repo      announcementRepository
	access    *AccessService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnnouncementService constructs AnnouncementService.
func NewAnnouncementService(repo announcementRepository, access *AccessService, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementService{repo: repo, access: access, validator: validate, logger: logger}
}

// Create posts an announcement; owner-only.
func (s *AnnouncementService) Create(ctx context.Context, batchID string, req CreateAnnouncementRequest, claims *models.JWTClaims) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	if _, err := s.access.RequireBatchOwner(ctx, batchID, claims); err != nil {
		return nil, err
	}
	announcement := &models.Announcement{BatchID: batchID, TeacherID: claims.UserID, Title: req.Title, Content: req.Content}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}
	return announcement, nil
}

// Update applies the supplied fields only; owner-only.
func (s *AnnouncementService) Update(ctx context.Context, batchID, id string, req UpdateAnnouncementRequest, claims *models.JWTClaims) (*models.Announcement, error) {
	if req.Title == nil && req.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nothing to update")
	}
	if _, err := s.access.RequireBatchOwner(ctx, batchID, claims); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, batchID, id, req.Title, req.Content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}
	announcement, err := s.repo.FindByID(ctx, batchID, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload announcement")
	}
	return announcement, nil
}

// Delete removes an announcement; owner-only.
func (s *AnnouncementService) Delete(ctx context.Context, batchID, id string, claims *models.JWTClaims) error {
	if _, err := s.access.RequireBatchOwner(ctx, batchID, claims); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, batchID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	return nil
}

// List returns announcements most-recent-first, readable by the owner,
// enrolled students and linked parents.
func (s *AnnouncementService) List(ctx context.Context, batchID, studentID string, claims *models.JWTClaims) ([]models.Announcement, error) {
	if _, err := s.access.ResolveReadScope(ctx, batchID, studentID, claims); err != nil {
		return nil, err
	}
	announcements, err := s.repo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	return announcements, nil
}
