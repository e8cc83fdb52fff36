package backend

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/taskroster/internal/models"
	appErrors "github.com/noah-isme/taskroster/pkg/errors"
	"github.com/noah-isme/taskroster/pkg/validation"
)

// DefaultKey is the key the task collection is stored under.
const DefaultKey = "tasks"

// Local keeps the whole collection as one JSON array in a key/value store. Every
// mutation reads, modifies and writes the array back; concurrent writers race and the
// last write wins.
type Local struct {
	store  Store
	key    string
	now    func() time.Time
	logger *zap.Logger
}

// LocalOption tunes a Local adapter.
type LocalOption func(*Local)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) LocalOption {
	return func(l *Local) { l.now = now }
}

// NewLocal builds a local adapter over store. An empty key uses DefaultKey.
func NewLocal(store Store, key string, logger *zap.Logger, opts ...LocalOption) *Local {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Local{store: store, key: key, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// List returns the stored collection in insertion order.
func (l *Local) List(ctx context.Context) ([]models.Task, error) {
	return l.load(ctx)
}

// Create appends a task with id max+1, or 1 when the collection is empty.
func (l *Local) Create(ctx context.Context, fields models.TaskFields) (models.Task, error) {
	tasks, err := l.load(ctx)
	if err != nil {
		return models.Task{}, err
	}
	var maxID int64
	for _, t := range tasks {
		if t.ID > maxID {
			maxID = t.ID
		}
	}
	now := l.now().UTC()
	task := models.Task{
		ID:        maxID + 1,
		Priority:  models.DefaultPriority,
		Category:  models.DefaultCategory,
		CreatedAt: now,
		UpdatedAt: now,
	}
	escape(&fields).Apply(&task)
	if task.Priority == "" {
		task.Priority = models.DefaultPriority
	}
	if task.Category == "" {
		task.Category = models.DefaultCategory
	}
	if err := l.save(ctx, append(tasks, task)); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// Update applies the set fields to the task with id.
func (l *Local) Update(ctx context.Context, id int64, fields models.TaskFields) (models.Task, error) {
	tasks, err := l.load(ctx)
	if err != nil {
		return models.Task{}, err
	}
	for i := range tasks {
		if tasks[i].ID != id {
			continue
		}
		escape(&fields).Apply(&tasks[i])
		tasks[i].UpdatedAt = l.now().UTC()
		if err := l.save(ctx, tasks); err != nil {
			return models.Task{}, err
		}
		return tasks[i], nil
	}
	return models.Task{}, appErrors.Clone(appErrors.ErrNotFound, "task not found")
}

// Remove deletes the task with id.
func (l *Local) Remove(ctx context.Context, id int64) error {
	tasks, err := l.load(ctx)
	if err != nil {
		return err
	}
	for i := range tasks {
		if tasks[i].ID != id {
			continue
		}
		kept := append(tasks[:i:i], tasks[i+1:]...)
		return l.save(ctx, kept)
	}
	return appErrors.Clone(appErrors.ErrNotFound, "task not found")
}

// escape neutralises the free-text fields before they are stored.
func escape(fields *models.TaskFields) *models.TaskFields {
	if fields.Description != nil {
		desc := validation.Sanitize(*fields.Description)
		fields.Description = &desc
	}
	if fields.Category != nil {
		category := validation.Sanitize(*fields.Category)
		fields.Category = &category
	}
	return fields
}

func (l *Local) load(ctx context.Context) ([]models.Task, error) {
	raw, err := l.store.Get(ctx, l.key)
	if err != nil {
		l.logger.Warn("local store read failed", zap.String("key", l.key), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrBackendUnavailable.Code, appErrors.ErrBackendUnavailable.Status, "local store unavailable")
	}
	tasks := []models.Task{}
	if len(raw) == 0 {
		return tasks, nil
	}
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, "stored tasks are corrupt")
	}
	return tasks, nil
}

func (l *Local) save(ctx context.Context, tasks []models.Task) error {
	raw, err := json.Marshal(tasks)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode tasks")
	}
	if err := l.store.Set(ctx, l.key, raw); err != nil {
		l.logger.Warn("local store write failed", zap.String("key", l.key), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrBackendUnavailable.Code, appErrors.ErrBackendUnavailable.Status, "local store unavailable")
	}
	return nil
}
