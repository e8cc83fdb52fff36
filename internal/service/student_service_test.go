package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/taskroster/internal/models"
	appErrors "github.com/noah-isme/taskroster/pkg/errors"
)

type mockStudentRepo struct {
	students  []models.Student
	listCalls int
	imported  struct{ updates, inserts []models.Student }
	importErr error
}

func (m *mockStudentRepo) index(id string) int {
	for i, s := range m.students {
		if s.StudentID == id {
			return i
		}
	}
	return -1
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	m.listCalls++
	return append([]models.Student(nil), m.students...), len(m.students), nil
}

func (m *mockStudentRepo) All(ctx context.Context) ([]models.Student, error) {
	return append([]models.Student(nil), m.students...), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	i := m.index(id)
	if i < 0 {
		return nil, sql.ErrNoRows
	}
	s := m.students[i]
	return &s, nil
}

func (m *mockStudentRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	return m.index(id) >= 0, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	m.students = append(m.students, *student)
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, currentID string, student *models.Student) error {
	i := m.index(currentID)
	if i < 0 {
		return sql.ErrNoRows
	}
	m.students[i] = *student
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	i := m.index(id)
	if i < 0 {
		return sql.ErrNoRows
	}
	m.students = append(m.students[:i], m.students[i+1:]...)
	return nil
}

func (m *mockStudentRepo) Import(ctx context.Context, updates, inserts []models.Student) error {
	if m.importErr != nil {
		return m.importErr
	}
	m.imported.updates, m.imported.inserts = updates, inserts
	return nil
}

// memoryCache is a CacheRepository over a map, with glob support limited to a
// trailing star.
type memoryCache struct {
	items     map[string][]byte
	deleteErr error
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.items[key] = raw
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
	return nil
}

var fixedToday = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newStudentServiceForTest(repo *mockStudentRepo, cache *CacheService) *StudentService {
	svc := NewStudentService(repo, nil, cache, StudentConfig{}, zap.NewNop())
	svc.today = func() time.Time { return fixedToday }
	return svc
}

func validStudent() StudentRequest {
	return StudentRequest{
		StudentID:  "S1001",
		Name:       "Ada Lovelace",
		Course:     "Computer Science",
		DOB:        "10/12/2000",
		EnrollDate: "01/09/2019",
		Address:    "12 St James Square",
		Completed:  models.CompletedNo,
	}
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := newStudentServiceForTest(repo, nil)

	req := validStudent()
	req.Name = "  Ada Lovelace "
	student, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", student.Name)
	assert.Equal(t, fixedToday, student.Timestamp)
	assert.Len(t, repo.students, 1)
}

func TestStudentServiceEscapesFreeText(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := newStudentServiceForTest(repo, nil)

	req := validStudent()
	req.Name = "Mary O'Neil"
	req.Course = "R&D (Year 1)"
	req.Address = `<script>alert("x")</script>`
	student, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Mary O&#x27;Neil", student.Name)
	assert.Equal(t, "R&D (Year 1)", student.Course)
	assert.Equal(t, "&lt;script&gt;alert(&quot;x&quot;)&lt;&#x2F;script&gt;", student.Address)
	assert.Equal(t, student.Address, repo.students[0].Address)

	again := validStudent()
	again.Name = student.Name
	again.Address = student.Address
	updated, err := svc.Update(context.Background(), "S1001", again)
	require.NoError(t, err)
	assert.Equal(t, student.Name, updated.Name)
	assert.Equal(t, student.Address, updated.Address)
}

func TestStudentServiceLogsFailedInvalidation(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	repo := &mockStudentRepo{}
	cache := NewCacheService(&memoryCache{items: map[string][]byte{}, deleteErr: errors.New("redis down")}, nil, time.Minute, nil, true)
	svc := NewStudentService(repo, nil, cache, StudentConfig{}, zap.New(core))
	svc.today = func() time.Time { return fixedToday }

	_, err := svc.Create(context.Background(), validStudent())
	require.NoError(t, err)
	entries := logs.FilterMessage("student cache not invalidated").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "redis down", entries[0].ContextMap()["error"])
}

func TestStudentServiceCreateValidation(t *testing.T) {
	svc := newStudentServiceForTest(&mockStudentRepo{}, nil)

	req := validStudent()
	req.StudentID = "x!"
	req.DOB = "31/02/2000"
	req.Completed = "maybe"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, []string{
		"Student ID must be 3-20 alphanumeric characters",
		"Date of Birth must be in DD/MM/YYYY format",
		"Completed must be Yes or No",
	}, appErrors.FromError(err).Details)
}

func TestStudentServiceCreateMinimumAge(t *testing.T) {
	svc := newStudentServiceForTest(&mockStudentRepo{}, nil)

	req := validStudent()
	req.DOB = "01/01/2010"
	req.EnrollDate = "01/01/2024"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, []string{"student must be at least 16 years old at enrollment"}, appErrors.FromError(err).Details)

	req.EnrollDate = "01/01/2027"
	_, err = svc.Create(context.Background(), req)
	require.NoError(t, err)
}

func TestStudentServiceCreateDuplicate(t *testing.T) {
	repo := &mockStudentRepo{students: []models.Student{{StudentID: "S1001"}}}
	svc := newStudentServiceForTest(repo, nil)

	_, err := svc.Create(context.Background(), validStudent())
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestStudentServiceUpdateChangesID(t *testing.T) {
	stamp := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := &mockStudentRepo{students: []models.Student{{StudentID: "S1001", Timestamp: stamp}, {StudentID: "S2002"}}}
	svc := newStudentServiceForTest(repo, nil)

	req := validStudent()
	req.StudentID = "S2002"
	_, err := svc.Update(context.Background(), "S1001", req)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	req.StudentID = "S3003"
	updated, err := svc.Update(context.Background(), "S1001", req)
	require.NoError(t, err)
	assert.Equal(t, "S3003", updated.StudentID)
	assert.Equal(t, stamp, updated.Timestamp)
	assert.Equal(t, -1, repo.index("S1001"))

	_, err = svc.Update(context.Background(), "missing", validStudent())
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestStudentServiceListUsesCache(t *testing.T) {
	repo := &mockStudentRepo{students: []models.Student{{StudentID: "S1001", Name: "Ada"}}}
	cache := NewCacheService(&memoryCache{items: map[string][]byte{}}, NewMetricsService(), time.Minute, nil, true)
	svc := newStudentServiceForTest(repo, cache)

	_, page, hit, err := svc.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, 20, page.PageSize)

	students, _, hit, err := svc.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Ada", students[0].Name)
	assert.Equal(t, 1, repo.listCalls)

	require.NoError(t, svc.Delete(context.Background(), "S1001"))
	_, page, hit, err = svc.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Zero(t, page.TotalCount)
}
