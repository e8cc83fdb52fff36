package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/taskroster/internal/filter"
	"github.com/noah-isme/taskroster/internal/models"
	"github.com/noah-isme/taskroster/pkg/bridge"
	appErrors "github.com/noah-isme/taskroster/pkg/errors"
	"github.com/noah-isme/taskroster/pkg/validation"
)

type taskRepository interface {
	List(ctx context.Context) ([]models.Task, error)
	ListDeleted(ctx context.Context) ([]models.Task, error)
	FindByID(ctx context.Context, id int64, deleted bool) (*models.Task, error)
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, task *models.Task) error
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
	Purge(ctx context.Context, id int64) error
	PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ClearCompleted(ctx context.Context, soft bool, at time.Time) (int64, error)
}

// CreateTaskRequest is the payload for POST /tasks.
type CreateTaskRequest struct {
	Description string `json:"description"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high"`
	Category    string `json:"category" validate:"max=50"`
}

// UpdateTaskRequest is the payload for PUT /tasks/:id. Absent fields are untouched.
type UpdateTaskRequest struct {
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Category    *string `json:"category,omitempty" validate:"omitempty,max=50"`
	Completed   *bool   `json:"completed,omitempty"`
}

// TaskConfig tunes task persistence.
type TaskConfig struct {
	SoftDelete     bool
	MaxDescription int
}

// TaskList is a filtered task listing with counts over the unfiltered set.
type TaskList struct {
	Tasks  []models.Task `json:"tasks"`
	Counts filter.Counts `json:"counts"`
}

var taskLabels = map[string]string{
	"priority": "priority must be one of low, medium, high",
	"category": "category must be at most 50 characters",
}

// TaskService implements the task use-cases behind the REST API.
type TaskService struct {
	repo      taskRepository
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       TaskConfig
	now       func() time.Time
}

// NewTaskService constructs a TaskService.
func NewTaskService(repo taskRepository, validate *validator.Validate, metrics *MetricsService, cfg TaskConfig, logger *zap.Logger) *TaskService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxDescription <= 0 {
		cfg.MaxDescription = 500
	}
	return &TaskService{repo: repo, validator: validate, metrics: metrics, logger: logger, cfg: cfg, now: time.Now}
}

// List returns live tasks matching the criteria, optionally restricted to a category.
func (s *TaskService) List(ctx context.Context, criteria filter.Criteria, category string) (*TaskList, error) {
	start := time.Now()
	tasks, err := s.repo.List(ctx)
	s.metrics.ObserveDBQuery("tasks.list", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tasks")
	}
	counts := filter.Count(tasks)
	visible := filter.Apply(tasks, criteria.Status, criteria.Priority)
	if category = strings.TrimSpace(category); category != "" {
		scoped := make([]models.Task, 0, len(visible))
		for _, t := range visible {
			if strings.EqualFold(t.Category, category) {
				scoped = append(scoped, t)
			}
		}
		visible = scoped
	}
	return &TaskList{Tasks: visible, Counts: counts}, nil
}

// Get returns one live task.
func (s *TaskService) Get(ctx context.Context, id int64) (*models.Task, error) {
	task, err := s.repo.FindByID(ctx, id, false)
	if err != nil {
		return nil, taskLookupError(err)
	}
	return task, nil
}

// Create validates and stores a new task.
func (s *TaskService) Create(ctx context.Context, req CreateTaskRequest) (*models.Task, error) {
	req.Priority = strings.ToLower(strings.TrimSpace(req.Priority))
	var details []string
	desc, reason := s.description(req.Description)
	if reason != "" {
		details = append(details, reason)
	}
	if err := s.validator.Struct(req); err != nil {
		details = append(details, validation.Messages(err, taskLabels)...)
	}
	if len(details) > 0 {
		return nil, appErrors.Validation("invalid task", details)
	}

	task := &models.Task{
		Description: desc,
		Priority:    req.Priority,
		Category:    category(req.Category),
	}
	if task.Priority == "" {
		task.Priority = models.DefaultPriority
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create task")
	}
	s.metrics.RecordTaskMutation("create", 1)
	s.logger.Debug("task created", zap.Int64("id", task.ID))
	return task, nil
}

// Update applies the set fields of req to a live task.
func (s *TaskService) Update(ctx context.Context, id int64, req UpdateTaskRequest) (*models.Task, error) {
	if req.Description == nil && req.Priority == nil && req.Category == nil && req.Completed == nil {
		return nil, appErrors.Validation("nothing to update", []string{"provide at least one field"})
	}
	var details []string
	fields := models.TaskFields{Completed: req.Completed}
	if req.Description != nil {
		desc, reason := s.description(*req.Description)
		if reason != "" {
			details = append(details, reason)
		}
		fields.Description = &desc
	}
	if req.Priority != nil {
		p := strings.ToLower(strings.TrimSpace(*req.Priority))
		if p == "" {
			details = append(details, taskLabels["priority"])
		}
		req.Priority = &p
		fields.Priority = &p
	}
	if req.Category != nil {
		c := category(*req.Category)
		fields.Category = &c
	}
	if err := s.validator.Struct(req); err != nil {
		details = append(details, validation.Messages(err, taskLabels)...)
	}
	if len(details) > 0 {
		return nil, appErrors.Validation("invalid task", dedupe(details))
	}

	task, err := s.repo.FindByID(ctx, id, false)
	if err != nil {
		return nil, taskLookupError(err)
	}
	fields.Apply(task)
	if err := s.repo.Update(ctx, task); err != nil {
		return nil, taskLookupError(err)
	}
	s.metrics.RecordTaskMutation("update", 1)
	return task, nil
}

// Delete removes a live task, into the bin when soft delete is enabled.
func (s *TaskService) Delete(ctx context.Context, id int64) error {
	var err error
	if s.cfg.SoftDelete {
		err = s.repo.SoftDelete(ctx, id, s.now())
	} else {
		err = s.repo.Delete(ctx, id)
	}
	if err != nil {
		return taskLookupError(err)
	}
	s.metrics.RecordTaskMutation("delete", 1)
	return nil
}

// ClearCompleted removes every completed task and returns how many went.
func (s *TaskService) ClearCompleted(ctx context.Context) (int64, error) {
	n, err := s.repo.ClearCompleted(ctx, s.cfg.SoftDelete, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear completed tasks")
	}
	s.metrics.RecordTaskMutation("delete", int(n))
	s.logger.Info("completed tasks cleared", zap.Int64("count", n), zap.Bool("soft", s.cfg.SoftDelete))
	return n, nil
}

// Export serializes every live task and returns the payload with its file name.
func (s *TaskService) Export(ctx context.Context) ([]byte, string, error) {
	tasks, err := s.repo.List(ctx)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tasks")
	}
	payload, err := bridge.Serialize(models.TaskSchema, models.TaskRecords(tasks))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export tasks")
	}
	return payload, bridge.Filename(models.TaskSchema), nil
}

func (s *TaskService) description(raw string) (string, string) {
	desc := strings.TrimSpace(raw)
	if res := validation.TaskDescription(s.cfg.MaxDescription)(desc); !res.Valid {
		return "", res.Reason
	}
	return validation.Sanitize(desc), ""
}

func category(raw string) string {
	c := strings.TrimSpace(raw)
	if c == "" {
		return models.DefaultCategory
	}
	return validation.Sanitize(c)
}

func taskLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "task not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "task operation failed")
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
