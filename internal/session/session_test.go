package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskroster/internal/models"
	appErrors "github.com/noah-isme/taskroster/pkg/errors"
)

type fakeBackend struct {
	tasks   []models.Task
	nextID  int64
	calls   []string
	listErr error
}

func (f *fakeBackend) List(context.Context) ([]models.Task, error) {
	f.calls = append(f.calls, "list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Task, len(f.tasks))
	copy(out, f.tasks)
	return out, nil
}

func (f *fakeBackend) Create(_ context.Context, fields models.TaskFields) (models.Task, error) {
	f.calls = append(f.calls, "create")
	f.nextID++
	t := models.Task{ID: f.nextID}
	fields.Apply(&t)
	f.tasks = append(f.tasks, t)
	return t, nil
}

func (f *fakeBackend) Update(_ context.Context, id int64, fields models.TaskFields) (models.Task, error) {
	f.calls = append(f.calls, "update")
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			fields.Apply(&f.tasks[i])
			return f.tasks[i], nil
		}
	}
	return models.Task{}, appErrors.ErrNotFound
}

func (f *fakeBackend) Remove(_ context.Context, id int64) error {
	f.calls = append(f.calls, "remove")
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return appErrors.ErrNotFound
}

func seeded() *fakeBackend {
	return &fakeBackend{
		nextID: 3,
		tasks: []models.Task{
			{ID: 1, Description: "one", Priority: models.PriorityHigh},
			{ID: 2, Description: "two", Priority: models.PriorityLow, Completed: true},
			{ID: 3, Description: "three", Priority: models.PriorityHigh, Completed: true},
		},
	}
}

func approveAll() Confirmer {
	return func(string, int64) bool { return true }
}

func TestRefreshAndFilters(t *testing.T) {
	b := seeded()
	s := New(b)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))
	assert.Len(t, s.Visible(), 3)

	require.NoError(t, s.SetStatusFilter("completed"))
	assert.Equal(t, []int64{2, 3}, ids(s.Visible()))
	require.NoError(t, s.SetPriorityFilter("high"))
	assert.Equal(t, []int64{3}, ids(s.Visible()))

	assert.ErrorIs(t, s.SetStatusFilter("finished"), appErrors.ErrValidation)
	assert.Equal(t, []int64{3}, ids(s.Visible()))

	s.ResetFilters()
	assert.Len(t, s.Visible(), 3)
	assert.Equal(t, 2, s.Counts().Completed)
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	b := seeded()
	s := New(b)
	ctx := context.Background()

	b.listErr = errors.New("connection refused")
	err := s.Refresh(ctx)
	assert.ErrorIs(t, err, appErrors.ErrBackendUnavailable)
	assert.Empty(t, s.Tasks())

	b.listErr = nil
	require.NoError(t, s.Refresh(ctx))
	b.listErr = appErrors.ErrBackendUnavailable
	assert.ErrorIs(t, s.Refresh(ctx), appErrors.ErrBackendUnavailable)
	assert.Len(t, s.Tasks(), 3)
}

func TestCreateRejectsInvalidWithoutBackendCall(t *testing.T) {
	b := seeded()
	s := New(b)
	ctx := context.Background()

	_, err := s.Create(ctx, "   ", "")
	require.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, []string{"please enter a task description"}, appErrors.FromError(err).Details)

	_, err = s.Create(ctx, strings.Repeat("x", 501), "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = s.Create(ctx, "ok", "urgent")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.Empty(t, b.calls)
}

func TestCreateSendsTrimmedTextAndCaches(t *testing.T) {
	b := seeded()
	s := New(b)
	ctx := context.Background()

	task, err := s.Create(ctx, "  <b>bold</b> ", "")
	require.NoError(t, err)
	assert.Equal(t, "<b>bold</b>", task.Description)
	assert.Equal(t, models.PriorityMedium, task.Priority)
	assert.Equal(t, []int64{4}, ids(s.Tasks()))
}

func TestToggleAndUpdate(t *testing.T) {
	b := seeded()
	s := New(b)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	task, err := s.Toggle(ctx, 1)
	require.NoError(t, err)
	assert.True(t, task.Completed)
	assert.True(t, s.Tasks()[0].Completed)

	_, err = s.Toggle(ctx, 99)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	bad := "critical"
	_, err = s.Update(ctx, 1, models.TaskFields{Priority: &bad})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	blank := "  "
	_, err = s.Update(ctx, 1, models.TaskFields{Priority: &blank})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	mixed := " High "
	task, err = s.Update(ctx, 2, models.TaskFields{Priority: &mixed})
	require.NoError(t, err)
	assert.Equal(t, models.PriorityHigh, task.Priority)

	_, err = s.Update(ctx, 1, models.TaskFields{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCreateAcceptsLongTextWithQuotes(t *testing.T) {
	b := seeded()
	s := New(b, WithMaxDescription(500))

	desc := strings.TrimSpace(strings.Repeat("it's ", 90))
	task, err := s.Create(context.Background(), desc, "")
	require.NoError(t, err)
	assert.Equal(t, desc, task.Description)
}

func TestDeleteMissingIsNotFoundWithoutBackendCall(t *testing.T) {
	b := seeded()
	s := New(b, WithConfirmer(approveAll()))
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))
	b.calls = nil

	err := s.Delete(ctx, 42)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Empty(t, b.calls)
	assert.Len(t, s.Tasks(), 3)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	b := seeded()
	var asked []int64
	s := New(b, WithConfirmer(func(action string, id int64) bool {
		asked = append(asked, id)
		return false
	}))
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))
	b.calls = nil

	assert.ErrorIs(t, s.Delete(ctx, 1), appErrors.ErrCancelled)
	assert.Equal(t, []int64{1}, asked)
	assert.Empty(t, b.calls)

	s = New(b)
	require.NoError(t, s.Refresh(ctx))
	assert.ErrorIs(t, s.Delete(ctx, 1), appErrors.ErrCancelled)
}

func TestDeleteConfirmed(t *testing.T) {
	b := seeded()
	s := New(b, WithConfirmer(approveAll()))
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	require.NoError(t, s.Delete(ctx, 2))
	assert.Equal(t, []int64{1, 3}, ids(s.Tasks()))
	assert.Len(t, b.tasks, 2)
}

func TestClearCompleted(t *testing.T) {
	b := seeded()
	s := New(b, WithConfirmer(approveAll()))
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	n, err := s.ClearCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1}, ids(s.Tasks()))

	n, err = s.ClearCompleted(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExportCSV(t *testing.T) {
	b := seeded()
	s := New(b)
	require.NoError(t, s.Refresh(context.Background()))

	out, name, err := s.ExportCSV()
	require.NoError(t, err)
	assert.Equal(t, "tasks_export.csv", name)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "ID,Description,Priority,Category,Completed,CreatedAt", lines[0])
	assert.Equal(t, "1,one,high,,false,", lines[1])
}

func ids(tasks []models.Task) []int64 {
	out := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
