package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kendrekaran/clr-bke/internal/models"
)

// AnnouncementRepository handles persistence of batch announcements.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository constructs the repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// Create persists a new announcement.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	if announcement.ID == "" {
		announcement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	announcement.CreatedAt = now
	announcement.UpdatedAt = now
	const query = `INSERT INTO announcements (id, batch_id, teacher_id, title, content, created_at, updated_at)
        VALUES (:id, :batch_id, :teacher_id, :title, :content, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// FindByID returns an announcement scoped to a batch.
func (r *AnnouncementRepository) FindByID(ctx context.Context, batchID, id string) (*models.Announcement, error) {
	const query = `SELECT id, batch_id, teacher_id, title, content, created_at, updated_at
        FROM announcements WHERE id = $1 AND batch_id = $2`
	var announcement models.Announcement
	if err := r.db.GetContext(ctx, &announcement, query, id, batchID); err != nil {
		return nil, err
	}
	return &announcement, nil
}

// Update applies the supplied title/content changes only.
func (r *AnnouncementRepository) Update(ctx context.Context, batchID, id string, title, content *string) error {
	sets := []string{"updated_at = $3"}
	args := []interface{}{id, batchID, time.Now().UTC()}
	if title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)+1))
		args = append(args, *title)
	}
	if content != nil {
		sets = append(sets, fmt.Sprintf("content = $%d", len(args)+1))
		args = append(args, *content)
	}
	query := fmt.Sprintf(`UPDATE announcements SET %s WHERE id = $1 AND batch_id = $2`, strings.Join(sets, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update announcement rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an announcement.
func (r *AnnouncementRepository) Delete(ctx context.Context, batchID, id string) error {
	const query = `DELETE FROM announcements WHERE id = $1 AND batch_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, batchID)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete announcement rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByBatch returns announcements most-recent-first.
func (r *AnnouncementRepository) ListByBatch(ctx context.Context, batchID string) ([]models.Announcement, error) {
	const query = `SELECT id, batch_id, teacher_id, title, content, created_at, updated_at
        FROM announcements WHERE batch_id = $1 ORDER BY created_at DESC`
	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query, batchID); err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	return announcements, nil
}
