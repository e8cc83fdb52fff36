package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskroster/internal/backend"
	"github.com/noah-isme/taskroster/internal/filter"
	internalmiddleware "github.com/noah-isme/taskroster/internal/middleware"
	"github.com/noah-isme/taskroster/internal/models"
	"github.com/noah-isme/taskroster/internal/service"
	"github.com/noah-isme/taskroster/internal/session"
	appErrors "github.com/noah-isme/taskroster/pkg/errors"
	"github.com/noah-isme/taskroster/pkg/validation"
)

type taskServiceMock struct {
	tasks        []models.Task
	lastCriteria filter.Criteria
	lastCreate   service.CreateTaskRequest
	lastUpdate   service.UpdateTaskRequest
	err          error
}

func (m *taskServiceMock) List(ctx context.Context, criteria filter.Criteria, category string) (*service.TaskList, error) {
	m.lastCriteria = criteria
	if m.err != nil {
		return nil, m.err
	}
	return &service.TaskList{Tasks: filter.Apply(m.tasks, criteria.Status, criteria.Priority), Counts: filter.Count(m.tasks)}, nil
}

func (m *taskServiceMock) Create(ctx context.Context, req service.CreateTaskRequest) (*models.Task, error) {
	m.lastCreate = req
	if req.Description == "" {
		return nil, appErrors.Validation("invalid task", []string{"please enter a task description"})
	}
	task := models.Task{ID: int64(len(m.tasks) + 1), Description: req.Description, Priority: models.DefaultPriority, Category: models.DefaultCategory}
	m.tasks = append(m.tasks, task)
	return &task, nil
}

func (m *taskServiceMock) Update(ctx context.Context, id int64, req service.UpdateTaskRequest) (*models.Task, error) {
	m.lastUpdate = req
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			if req.Completed != nil {
				m.tasks[i].Completed = *req.Completed
			}
			task := m.tasks[i]
			return &task, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
}

func (m *taskServiceMock) Delete(ctx context.Context, id int64) error {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrNotFound, "task not found")
}

func (m *taskServiceMock) ClearCompleted(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *taskServiceMock) Export(ctx context.Context) ([]byte, string, error) {
	return []byte("ID,Description\n1,a\n"), "tasks_export.csv", nil
}

type binServiceMock struct {
	confirmSeen bool
}

func (m *binServiceMock) List(ctx context.Context) ([]models.Task, error) { return []models.Task{}, nil }

func (m *binServiceMock) Restore(ctx context.Context, id int64) (*models.Task, error) {
	return &models.Task{ID: id}, nil
}

func (m *binServiceMock) Purge(ctx context.Context, id int64, confirm bool) error {
	m.confirmSeen = confirm
	if !confirm {
		return appErrors.ErrConfirmationRequired
	}
	return nil
}

func (m *binServiceMock) Empty(ctx context.Context, confirm bool) (int64, error) {
	if !confirm {
		return 0, appErrors.ErrConfirmationRequired
	}
	return 3, nil
}

type studentServiceMock struct {
	hit bool
}

func (m *studentServiceMock) List(ctx context.Context, f models.StudentFilter) ([]models.Student, *models.Pagination, bool, error) {
	return []models.Student{{StudentID: "S1001"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, m.hit, nil
}

func (m *studentServiceMock) Get(ctx context.Context, id string) (*models.Student, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
}

func (m *studentServiceMock) Create(ctx context.Context, req service.StudentRequest) (*models.Student, error) {
	return &models.Student{StudentID: req.StudentID}, nil
}

func (m *studentServiceMock) Update(ctx context.Context, id string, req service.StudentRequest) (*models.Student, error) {
	return &models.Student{StudentID: req.StudentID}, nil
}

func (m *studentServiceMock) Delete(ctx context.Context, id string) error { return nil }

type bridgeServiceMock struct {
	received []byte
	confirm  bool
}

func (m *bridgeServiceMock) Export(ctx context.Context) ([]byte, string, error) {
	return []byte("StudentID\n"), "students_export.csv", nil
}

func (m *bridgeServiceMock) Reconcile(ctx context.Context, data []byte) (*service.ReconcileResult, error) {
	m.received = data
	return &service.ReconcileResult{}, nil
}

func (m *bridgeServiceMock) ReconcilePDF(ctx context.Context, data []byte) ([]byte, error) {
	return []byte("%PDF-1.3"), nil
}

func (m *bridgeServiceMock) Validate(ctx context.Context, data []byte) *service.ValidationResult {
	m.received = data
	return &service.ValidationResult{}
}

func (m *bridgeServiceMock) Import(ctx context.Context, data []byte, confirm bool) (*service.ImportResult, error) {
	m.confirm = confirm
	return &service.ImportResult{Updated: []string{}, Added: []string{"S1"}}, nil
}

type exportServiceMock struct {
	path string
}

func (m *exportServiceMock) Generate(ctx context.Context, collection string) (*service.ExportResult, error) {
	return &service.ExportResult{ID: "x", URL: "/api/v1/exports/tok"}, nil
}

func (m *exportServiceMock) Resolve(token string) (string, string, error) {
	if token != "tok" {
		return "", "", appErrors.Clone(appErrors.ErrNotFound, "download link invalid or expired")
	}
	return "students/x_students_export.csv", "students_export.csv", nil
}

func (m *exportServiceMock) Open(relPath string) (*os.File, error) {
	return os.Open(m.path)
}

type fixture struct {
	router   *gin.Engine
	tasks    *taskServiceMock
	bin      *binServiceMock
	students *studentServiceMock
	bridge   *bridgeServiceMock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	file := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(file, []byte("StudentID\nS1001\n"), 0o644))

	f := &fixture{
		tasks:    &taskServiceMock{},
		bin:      &binServiceMock{},
		students: &studentServiceMock{},
		bridge:   &bridgeServiceMock{},
	}
	f.router = gin.New()
	f.router.Use(internalmiddleware.WithResponseMeta())
	Handlers{
		Tasks:    NewTaskHandler(f.tasks),
		Bin:      NewBinHandler(f.bin),
		Students: NewStudentHandler(f.students),
		Bridge:   NewBridgeHandler(f.bridge),
		Exports:  NewExportHandler(&exportServiceMock{path: file}),
		Metrics:  NewMetricsHandler(service.NewMetricsService(), nil),
	}.Register(f.router.Group("/api/v1"))
	return f
}

func (f *fixture) do(method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestTaskRoutes(t *testing.T) {
	f := newFixture(t)
	f.tasks.tasks = []models.Task{
		{ID: 1, Description: "a", Priority: "high", Completed: true},
		{ID: 2, Description: "b", Priority: "low"},
	}

	w := f.do(http.MethodGet, "/api/v1/tasks?status=completed", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	var tasks []models.Task
	require.NoError(t, json.Unmarshal(env.Data, &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, int64(1), tasks[0].ID)
	assert.Equal(t, filter.StatusCompleted, f.tasks.lastCriteria.Status)
	assert.Contains(t, env.Meta, "counts")

	w = f.do(http.MethodGet, "/api/v1/tasks?status=done", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/v1/tasks", "application/json", []byte(`{"description":""}`))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"please enter a task description"}, decode(t, w).Error.Details)

	w = f.do(http.MethodPost, "/api/v1/tasks", "application/json", []byte(`{not json`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPut, "/api/v1/tasks/2", "application/json", []byte(`{"completed":true}`))
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, f.tasks.lastUpdate.Completed)
	assert.Nil(t, f.tasks.lastUpdate.Description)

	w = f.do(http.MethodDelete, "/api/v1/tasks/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(http.MethodDelete, "/api/v1/tasks/9", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.do(http.MethodDelete, "/api/v1/tasks/2", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(http.MethodDelete, "/api/v1/tasks/clear-completed", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/api/v1/tasks/export", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="tasks_export.csv"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
}

func TestBinRoutesRequireConfirmation(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodDelete, "/api/v1/bin/4", "", nil)
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)
	assert.False(t, f.bin.confirmSeen)

	w = f.do(http.MethodDelete, "/api/v1/bin/4?confirm=true", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, f.bin.confirmSeen)

	w = f.do(http.MethodDelete, "/api/v1/bin?confirm=true", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/api/v1/bin/4/restore", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStudentRoutes(t *testing.T) {
	f := newFixture(t)
	f.students.hit = true

	w := f.do(http.MethodGet, "/api/v1/students", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)

	w = f.do(http.MethodGet, "/api/v1/students?completed=maybe", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/api/v1/students/S404", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodPost, "/api/v1/students", "application/json", []byte(`{"student_id":"S1001"}`))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestBridgeRoutes(t *testing.T) {
	f := newFixture(t)
	body := []byte("StudentID,Name\nS1,Ada\n")

	w := f.do(http.MethodPost, "/api/v1/students/reconcile", "text/csv", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, f.bridge.received)

	w = f.do(http.MethodPost, "/api/v1/students/reconcile?format=pdf", "text/csv", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	w = f.do(http.MethodPost, "/api/v1/students/validate", "text/csv", []byte("  \n"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/v1/students/import?confirm=true", "text/csv", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.bridge.confirm)

	w = f.do(http.MethodGet, "/api/v1/students/export", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="students_export.csv"`, w.Header().Get("Content-Disposition"))
}

func TestExportRoutes(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/v1/exports/students", "", nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = f.do(http.MethodGet, "/api/v1/exports/tok", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "StudentID\nS1001\n", w.Body.String())
	assert.Equal(t, `attachment; filename="students_export.csv"`, w.Header().Get("Content-Disposition"))

	w = f.do(http.MethodGet, "/api/v1/exports/forged", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRESTBackendAgainstRoutes(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	rest := backend.NewREST(srv.URL+"/api/v1", 0, nil)
	ctx := context.Background()

	tasks, err := rest.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	desc := "write docs"
	created, err := rest.Create(ctx, models.TaskFields{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)

	done := true
	updated, err := rest.Update(ctx, created.ID, models.TaskFields{Completed: &done})
	require.NoError(t, err)
	assert.True(t, updated.Completed)

	require.NoError(t, rest.Remove(ctx, created.ID))
	err = rest.Remove(ctx, created.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	empty := ""
	_, err = rest.Create(ctx, models.TaskFields{Description: &empty})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

type pingerStub struct{ err error }

func (p pingerStub) PingContext(context.Context) error { return p.err }

func TestOpsRoutes(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.ObserveDBQuery("tasks.list", 2*time.Millisecond)

	router := gin.New()
	h := NewMetricsHandler(metrics, pingerStub{})
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", h.Prometheus)
	router.GET("/metrics/summary", h.Snapshot)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics/summary", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var snapshot service.MetricsSnapshot
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &snapshot))
	assert.Equal(t, uint64(1), snapshot.DBQueryCount)

	down := gin.New()
	down.GET("/ready", NewMetricsHandler(metrics, pingerStub{err: errors.New("refused")}).Ready)
	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type memoryTaskRepo struct {
	tasks  []models.Task
	nextID int64
}

func (m *memoryTaskRepo) index(id int64, deleted bool) int {
	for i, t := range m.tasks {
		if t.ID == id && (t.DeletedAt != nil) == deleted {
			return i
		}
	}
	return -1
}

func (m *memoryTaskRepo) List(context.Context) ([]models.Task, error) {
	out := []models.Task{}
	for _, t := range m.tasks {
		if t.DeletedAt == nil {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryTaskRepo) ListDeleted(context.Context) ([]models.Task, error) {
	return []models.Task{}, nil
}

func (m *memoryTaskRepo) FindByID(_ context.Context, id int64, deleted bool) (*models.Task, error) {
	i := m.index(id, deleted)
	if i < 0 {
		return nil, sql.ErrNoRows
	}
	t := m.tasks[i]
	return &t, nil
}

func (m *memoryTaskRepo) Create(_ context.Context, task *models.Task) error {
	m.nextID++
	task.ID = m.nextID
	m.tasks = append(m.tasks, *task)
	return nil
}

func (m *memoryTaskRepo) Update(_ context.Context, task *models.Task) error {
	i := m.index(task.ID, false)
	if i < 0 {
		return sql.ErrNoRows
	}
	m.tasks[i] = *task
	return nil
}

func (m *memoryTaskRepo) SoftDelete(ctx context.Context, id int64, _ time.Time) error {
	return m.Delete(ctx, id)
}

func (m *memoryTaskRepo) Delete(_ context.Context, id int64) error {
	i := m.index(id, false)
	if i < 0 {
		return sql.ErrNoRows
	}
	m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
	return nil
}

func (m *memoryTaskRepo) Restore(context.Context, int64) error { return sql.ErrNoRows }

func (m *memoryTaskRepo) Purge(context.Context, int64) error { return sql.ErrNoRows }

func (m *memoryTaskRepo) PurgeDeletedBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (m *memoryTaskRepo) ClearCompleted(context.Context, bool, time.Time) (int64, error) {
	return 0, nil
}

func TestSessionOverRESTEscapesOnceOnServer(t *testing.T) {
	repo := &memoryTaskRepo{}
	taskSvc := service.NewTaskService(repo, nil, nil, service.TaskConfig{MaxDescription: 500}, nil)
	router := gin.New()
	Handlers{Tasks: NewTaskHandler(taskSvc)}.Register(router.Group("/api/v1"))
	srv := httptest.NewServer(router)
	defer srv.Close()

	s := session.New(backend.NewREST(srv.URL+"/api/v1", 0, nil), session.WithMaxDescription(500))
	ctx := context.Background()

	desc := strings.TrimSpace(strings.Repeat("it's ", 90))
	created, err := s.Create(ctx, desc, "High")
	require.NoError(t, err)
	assert.Equal(t, validation.Sanitize(desc), created.Description)
	assert.Equal(t, models.PriorityHigh, created.Priority)

	edited := `"quoted" <tag>`
	updated, err := s.Update(ctx, created.ID, models.TaskFields{Description: &edited})
	require.NoError(t, err)
	assert.Equal(t, "&quot;quoted&quot; &lt;tag&gt;", updated.Description)

	require.Len(t, repo.tasks, 1)
	assert.Equal(t, updated.Description, repo.tasks[0].Description)
}
