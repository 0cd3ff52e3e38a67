package handler

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendrekaran/clr-bke/internal/middleware"
	"github.com/kendrekaran/clr-bke/internal/models"
	"github.com/kendrekaran/clr-bke/internal/service"
)

type batchRepoMock struct {
	batches map[string]*models.Batch
	members map[string]map[string]bool
}

func newBatchRepoMock() *batchRepoMock {
	return &batchRepoMock{
		batches: make(map[string]*models.Batch),
		members: make(map[string]map[string]bool),
	}
}

func (m *batchRepoMock) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	if b, ok := m.batches[id]; ok {
		clone := *b
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *batchRepoMock) FindByCode(ctx context.Context, code string) (*models.Batch, error) {
	for _, b := range m.batches {
		if b.Code == code {
			clone := *b
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *batchRepoMock) CodeExists(ctx context.Context, code string) (bool, error) {
	_, err := m.FindByCode(ctx, code)
	return err == nil, nil
}

func (m *batchRepoMock) Create(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		batch.ID = "batch-" + batch.Code
	}
	batch.Version = 1
	clone := *batch
	m.batches[batch.ID] = &clone
	return nil
}

func (m *batchRepoMock) UpdateFields(ctx context.Context, id string, version int, name, class *string) error {
	b, ok := m.batches[id]
	if !ok || b.Version != version {
		return sql.ErrNoRows
	}
	if name != nil {
		b.Name = *name
	}
	if class != nil {
		b.Class = *class
	}
	b.Version++
	return nil
}

func (m *batchRepoMock) Delete(ctx context.Context, id string, version int) error {
	b, ok := m.batches[id]
	if !ok || b.Version != version {
		return sql.ErrNoRows
	}
	delete(m.batches, id)
	return nil
}

func (m *batchRepoMock) ListByTeacher(ctx context.Context, teacherID string) ([]models.Batch, error) {
	var out []models.Batch
	for _, b := range m.batches {
		if b.TeacherID == teacherID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *batchRepoMock) ListByStudent(ctx context.Context, studentID string) ([]models.Batch, error) {
	var out []models.Batch
	for id, members := range m.members {
		if members[studentID] {
			out = append(out, *m.batches[id])
		}
	}
	return out, nil
}

func (m *batchRepoMock) IsEnrolled(ctx context.Context, batchID, studentID string) (bool, error) {
	return m.members[batchID][studentID], nil
}

func (m *batchRepoMock) AddMembers(ctx context.Context, batchID string, studentIDs []string) error {
	if m.members[batchID] == nil {
		m.members[batchID] = make(map[string]bool)
	}
	for _, id := range studentIDs {
		m.members[batchID][id] = true
	}
	return nil
}

func (m *batchRepoMock) RemoveMember(ctx context.Context, batchID, studentID string) error {
	if !m.members[batchID][studentID] {
		return sql.ErrNoRows
	}
	delete(m.members[batchID], studentID)
	return nil
}

func (m *batchRepoMock) ListMemberIDs(ctx context.Context, batchID string) ([]string, error) {
	var ids []string
	for id := range m.members[batchID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *accountRepoMock) FilterStudents(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, id := range ids {
		if a, ok := m.accounts[id]; ok && a.Role == models.RoleStudent {
			out[id] = true
		}
	}
	return out, nil
}

func (m *accountRepoMock) ListByIDs(ctx context.Context, ids []string) ([]models.UserInfo, error) {
	var out []models.UserInfo
	for _, id := range ids {
		if a, ok := m.accounts[id]; ok {
			out = append(out, models.UserInfo{ID: a.ID, Email: a.Email, FullName: a.FullName, Role: a.Role})
		}
	}
	return out, nil
}

func newBatchHandlerFixture() (*BatchHandler, *batchRepoMock) {
	batches := newBatchRepoMock()
	batches.batches["batch-1"] = &models.Batch{ID: "batch-1", Code: "PHY2026", Name: "Physics", Class: "XII", TeacherID: "teacher-1", Version: 1}
	batches.members["batch-1"] = map[string]bool{"student-1": true}

	accounts := newAccountRepoMock()
	accounts.accounts["teacher-1"] = &models.Account{ID: "teacher-1", Role: models.RoleTeacher, Email: "t1@example.com"}
	accounts.accounts["student-1"] = &models.Account{ID: "student-1", Role: models.RoleStudent, Email: "s1@example.com"}

	access := service.NewAccessService(batches, accounts, nil)
	svc := service.NewBatchService(batches, accounts, access, nil, nil)
	return NewBatchHandler(svc), batches
}

func withClaims(c *gin.Context, userID string, role models.Role) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: role})
}

func TestBatchHandlerCreate(t *testing.T) {
	h, repo := newBatchHandlerFixture()

	w, c := jsonRequest(t, http.MethodPost, "/batches", service.CreateBatchRequest{Code: "chem2026", Name: "Chemistry", Class: "XI"})
	withClaims(c, "teacher-1", models.RoleTeacher)
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	envelope := decodeEnvelope(t, w)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "CHEM2026", data["code"])
	assert.Len(t, repo.batches, 2)
}

func TestBatchHandlerDeleteRequiresVersion(t *testing.T) {
	h, repo := newBatchHandlerFixture()

	w, c := jsonRequest(t, http.MethodDelete, "/batches/batch-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "batch-1"}}
	withClaims(c, "teacher-1", models.RoleTeacher)
	h.Delete(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, repo.batches, 1)
}

func TestBatchHandlerDeleteStaleVersion(t *testing.T) {
	h, _ := newBatchHandlerFixture()

	w, c := jsonRequest(t, http.MethodDelete, "/batches/batch-1?version=2", nil)
	c.Params = gin.Params{{Key: "id", Value: "batch-1"}}
	withClaims(c, "teacher-1", models.RoleTeacher)
	h.Delete(c)

	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestBatchHandlerDelete(t *testing.T) {
	h, repo := newBatchHandlerFixture()

	w, c := jsonRequest(t, http.MethodDelete, "/batches/batch-1?version=1", nil)
	c.Params = gin.Params{{Key: "id", Value: "batch-1"}}
	withClaims(c, "teacher-1", models.RoleTeacher)
	h.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, repo.batches)
}

func TestBatchHandlerGetForbiddenForStranger(t *testing.T) {
	h, _ := newBatchHandlerFixture()

	w, c := jsonRequest(t, http.MethodGet, "/batches/batch-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "batch-1"}}
	withClaims(c, "student-9", models.RoleStudent)
	h.Get(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBatchHandlerJoinConflict(t *testing.T) {
	h, _ := newBatchHandlerFixture()

	w, c := jsonRequest(t, http.MethodPost, "/batches/join", service.JoinBatchRequest{Code: "PHY2026"})
	withClaims(c, "student-1", models.RoleStudent)
	h.Join(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBatchHandlerUpdateStaleVersion(t *testing.T) {
	h, _ := newBatchHandlerFixture()
	name := "Physics Evening"

	w, c := jsonRequest(t, http.MethodPut, "/batches/batch-1", service.UpdateBatchRequest{Name: &name, Version: 9})
	c.Params = gin.Params{{Key: "id", Value: "batch-1"}}
	withClaims(c, "teacher-1", models.RoleTeacher)
	h.Update(c)

	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}
