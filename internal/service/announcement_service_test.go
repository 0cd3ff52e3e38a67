package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendrekaran/clr-bke/internal/models"
	appErrors "github.com/kendrekaran/clr-bke/pkg/errors"
)

type announcementStoreMock struct {
	items map[string]*models.Announcement
	seq   int
}

func newAnnouncementStoreMock() *announcementStoreMock {
	return &announcementStoreMock{items: make(map[string]*models.Announcement)}
}

func (m *announcementStoreMock) Create(ctx context.Context, announcement *models.Announcement) error {
	m.seq++
	announcement.ID = fmt.Sprintf("ann-%d", m.seq)
	clone := *announcement
	m.items[announcement.ID] = &clone
	return nil
}

func (m *announcementStoreMock) FindByID(ctx context.Context, batchID, id string) (*models.Announcement, error) {
	if a, ok := m.items[id]; ok && a.BatchID == batchID {
		clone := *a
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *announcementStoreMock) Update(ctx context.Context, batchID, id string, title, content *string) error {
	a, ok := m.items[id]
	if !ok || a.BatchID != batchID {
		return sql.ErrNoRows
	}
	if title != nil {
		a.Title = *title
	}
	if content != nil {
		a.Content = *content
	}
	return nil
}

func (m *announcementStoreMock) Delete(ctx context.Context, batchID, id string) error {
	if a, ok := m.items[id]; ok && a.BatchID == batchID {
		delete(m.items, id)
		return nil
	}
	return sql.ErrNoRows
}

func (m *announcementStoreMock) ListByBatch(ctx context.Context, batchID string) ([]models.Announcement, error) {
	var out []models.Announcement
	for _, a := range m.items {
		if a.BatchID == batchID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func newAnnouncementFixture() (*AnnouncementService, *announcementStoreMock) {
	batches := newBatchStoreMock()
	batches.batches["batch-1"] = &models.Batch{ID: "batch-1", Code: "PHY2026", TeacherID: "teacher-1", Version: 1}
	batches.members["batch-1"] = map[string]bool{"student-1": true}
	accounts := &accountStoreMock{accounts: map[string]*models.Account{}}
	access := NewAccessService(batches, accounts, nil)
	store := newAnnouncementStoreMock()
	return NewAnnouncementService(store, access, nil, nil), store
}

func TestAnnouncementCreateOwnerOnly(t *testing.T) {
	svc, _ := newAnnouncementFixture()

	announcement, err := svc.Create(context.Background(), "batch-1", CreateAnnouncementRequest{Title: "Holiday", Content: "No class Friday"}, teacherClaims("teacher-1"))
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", announcement.TeacherID)

	_, err = svc.Create(context.Background(), "batch-1", CreateAnnouncementRequest{Title: "x", Content: "y"}, teacherClaims("teacher-2"))
	requireAppError(t, err, appErrors.ErrForbidden.Code)
}

func TestAnnouncementUpdatePartial(t *testing.T) {
	svc, store := newAnnouncementFixture()
	claims := teacherClaims("teacher-1")

	announcement, err := svc.Create(context.Background(), "batch-1", CreateAnnouncementRequest{Title: "Holiday", Content: "No class Friday"}, claims)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), "batch-1", announcement.ID, UpdateAnnouncementRequest{}, claims)
	requireAppError(t, err, appErrors.ErrValidation.Code)

	updated, err := svc.Update(context.Background(), "batch-1", announcement.ID, UpdateAnnouncementRequest{Title: strPtr("Holiday moved")}, claims)
	require.NoError(t, err)
	assert.Equal(t, "Holiday moved", updated.Title)
	assert.Equal(t, "No class Friday", store.items[announcement.ID].Content)
}

func TestAnnouncementUpdateMissing(t *testing.T) {
	svc, _ := newAnnouncementFixture()

	_, err := svc.Update(context.Background(), "batch-1", "ghost", UpdateAnnouncementRequest{Title: strPtr("x")}, teacherClaims("teacher-1"))
	requireAppError(t, err, appErrors.ErrNotFound.Code)
}

func TestAnnouncementListScope(t *testing.T) {
	svc, _ := newAnnouncementFixture()

	_, err := svc.Create(context.Background(), "batch-1", CreateAnnouncementRequest{Title: "Holiday", Content: "No class Friday"}, teacherClaims("teacher-1"))
	require.NoError(t, err)

	enrolled := &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}
	items, err := svc.List(context.Background(), "batch-1", "", enrolled)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	stranger := &models.JWTClaims{UserID: "student-9", Role: models.RoleStudent}
	_, err = svc.List(context.Background(), "batch-1", "", stranger)
	requireAppError(t, err, appErrors.ErrForbidden.Code)
}

func TestAnnouncementDelete(t *testing.T) {
	svc, store := newAnnouncementFixture()
	claims := teacherClaims("teacher-1")

	announcement, err := svc.Create(context.Background(), "batch-1", CreateAnnouncementRequest{Title: "Holiday", Content: "No class Friday"}, claims)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "batch-1", announcement.ID, claims))
	assert.Empty(t, store.items)

	err = svc.Delete(context.Background(), "batch-1", announcement.ID, claims)
	requireAppError(t, err, appErrors.ErrNotFound.Code)
}
