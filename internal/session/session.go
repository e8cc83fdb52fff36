// Package session holds the client-side state of a task list: the last fetched
// collection and the active filters. Command methods validate input, confirm
// destructive actions, call the backend and keep the local snapshot in step.
//
// A Session is not safe for concurrent use.
package session

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/taskroster/internal/backend"
	"github.com/noah-isme/taskroster/internal/filter"
	"github.com/noah-isme/taskroster/internal/models"
	"github.com/noah-isme/taskroster/pkg/bridge"
	appErrors "github.com/noah-isme/taskroster/pkg/errors"
	"github.com/noah-isme/taskroster/pkg/validation"
)

// Destructive actions passed to a Confirmer.
const (
	ActionDelete         = "delete"
	ActionClearCompleted = "clear-completed"
)

// DefaultMaxDescription bounds task descriptions.
const DefaultMaxDescription = 500

// Confirmer approves a destructive action. id is zero for bulk actions. A session
// without a Confirmer declines every destructive action.
type Confirmer func(action string, id int64) bool

// Session owns the cached task collection and filter state.
type Session struct {
	backend        backend.Backend
	tasks          []models.Task
	criteria       filter.Criteria
	confirm        Confirmer
	maxDescription int
	logger         *zap.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithConfirmer sets the confirmation hook.
func WithConfirmer(c Confirmer) Option {
	return func(s *Session) { s.confirm = c }
}

// WithMaxDescription overrides the description length limit.
func WithMaxDescription(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxDescription = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an empty session over b. Call Refresh to load the collection.
func New(b backend.Backend, opts ...Option) *Session {
	s := &Session{
		backend:        b,
		tasks:          []models.Task{},
		criteria:       filter.Default,
		maxDescription: DefaultMaxDescription,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh replaces the snapshot with the backend collection. On failure the previous
// snapshot is kept and a BackendUnavailable error is returned.
func (s *Session) Refresh(ctx context.Context) error {
	tasks, err := s.backend.List(ctx)
	if err != nil {
		s.logger.Warn("refresh failed, keeping last snapshot", zap.Int("cached", len(s.tasks)), zap.Error(err))
		appErr := appErrors.FromError(err)
		if appErr.Code == appErrors.ErrBackendUnavailable.Code {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrBackendUnavailable.Code, appErrors.ErrBackendUnavailable.Status, "could not load tasks")
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	s.tasks = tasks
	return nil
}

// SetStatusFilter sets the status filter. Unknown values are rejected and leave the
// filter unchanged.
func (s *Session) SetStatusFilter(raw string) error {
	status, err := filter.ParseStatus(raw)
	if err != nil {
		return err
	}
	s.criteria.Status = status
	return nil
}

// SetPriorityFilter sets the priority filter.
func (s *Session) SetPriorityFilter(raw string) error {
	priority, err := filter.ParsePriority(raw)
	if err != nil {
		return err
	}
	s.criteria.Priority = priority
	return nil
}

// ResetFilters restores the match-everything filters.
func (s *Session) ResetFilters() {
	s.criteria = filter.Default
}

// Filters returns the active criteria.
func (s *Session) Filters() filter.Criteria {
	return s.criteria
}

// Visible returns the snapshot narrowed by the active filters.
func (s *Session) Visible() []models.Task {
	return filter.Apply(s.tasks, s.criteria.Status, s.criteria.Priority)
}

// Tasks returns a copy of the whole snapshot.
func (s *Session) Tasks() []models.Task {
	out := make([]models.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Counts tallies the whole snapshot.
func (s *Session) Counts() filter.Counts {
	return filter.Count(s.tasks)
}

// Create validates the trimmed description, then creates the task. Escaping is left to
// the backend so length limits apply to the text the user typed. Invalid input never
// reaches the backend. An empty priority means medium.
func (s *Session) Create(ctx context.Context, description, priority string) (models.Task, error) {
	desc, err := s.checkDescription(description)
	if err != nil {
		return models.Task{}, err
	}
	prio, err := checkPriority(priority)
	if err != nil {
		return models.Task{}, err
	}
	task, err := s.backend.Create(ctx, models.TaskFields{Description: &desc, Priority: &prio})
	if err != nil {
		return models.Task{}, err
	}
	s.tasks = append(s.tasks, task)
	s.logger.Debug("task created", zap.Int64("id", task.ID))
	return task, nil
}

// Update changes the set fields of a cached task.
func (s *Session) Update(ctx context.Context, id int64, fields models.TaskFields) (models.Task, error) {
	if fields.Empty() {
		return models.Task{}, appErrors.Validation("nothing to update", []string{"provide at least one field"})
	}
	if _, ok := s.indexOf(id); !ok {
		return models.Task{}, appErrors.Clone(appErrors.ErrNotFound, "task not found")
	}
	if fields.Description != nil {
		desc, err := s.checkDescription(*fields.Description)
		if err != nil {
			return models.Task{}, err
		}
		fields.Description = &desc
	}
	if fields.Priority != nil {
		if normalizePriority(*fields.Priority) == "" {
			return models.Task{}, invalidPriority()
		}
		prio, err := checkPriority(*fields.Priority)
		if err != nil {
			return models.Task{}, err
		}
		fields.Priority = &prio
	}
	if fields.Category != nil {
		category := strings.TrimSpace(*fields.Category)
		if category == "" {
			category = models.DefaultCategory
		}
		fields.Category = &category
	}
	task, err := s.backend.Update(ctx, id, fields)
	if err != nil {
		return models.Task{}, err
	}
	if i, ok := s.indexOf(id); ok {
		s.tasks[i] = task
	}
	return task, nil
}

// Toggle flips the completion flag of a cached task.
func (s *Session) Toggle(ctx context.Context, id int64) (models.Task, error) {
	i, ok := s.indexOf(id)
	if !ok {
		return models.Task{}, appErrors.Clone(appErrors.ErrNotFound, "task not found")
	}
	completed := !s.tasks[i].Completed
	return s.Update(ctx, id, models.TaskFields{Completed: &completed})
}

// Delete removes a cached task after confirmation. An id missing from the snapshot
// returns NotFound without calling the backend.
func (s *Session) Delete(ctx context.Context, id int64) error {
	if _, ok := s.indexOf(id); !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "task not found")
	}
	if !s.approve(ActionDelete, id) {
		return appErrors.ErrCancelled
	}
	if err := s.backend.Remove(ctx, id); err != nil {
		return err
	}
	if i, ok := s.indexOf(id); ok {
		s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	}
	return nil
}

// ClearCompleted removes every completed task after a single confirmation. It stops
// at the first backend failure; tasks removed before it stay removed.
func (s *Session) ClearCompleted(ctx context.Context) (int, error) {
	completed := filter.Apply(s.tasks, filter.StatusCompleted, filter.PriorityAll)
	if len(completed) == 0 {
		return 0, nil
	}
	if !s.approve(ActionClearCompleted, 0) {
		return 0, appErrors.ErrCancelled
	}
	removed := 0
	for _, t := range completed {
		if err := s.backend.Remove(ctx, t.ID); err != nil {
			return removed, err
		}
		if i, ok := s.indexOf(t.ID); ok {
			s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
		}
		removed++
	}
	return removed, nil
}

// ExportCSV serializes the whole snapshot and returns it with its download name.
func (s *Session) ExportCSV() ([]byte, string, error) {
	out, err := bridge.Serialize(models.TaskSchema, models.TaskRecords(s.tasks))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "export failed")
	}
	return out, bridge.Filename(models.TaskSchema), nil
}

func (s *Session) approve(action string, id int64) bool {
	if s.confirm == nil {
		return false
	}
	ok := s.confirm(action, id)
	if !ok {
		s.logger.Debug("action declined", zap.String("action", action), zap.Int64("id", id))
	}
	return ok
}

func (s *Session) indexOf(id int64) (int, bool) {
	for i, t := range s.tasks {
		if t.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (s *Session) checkDescription(raw string) (string, error) {
	desc := strings.TrimSpace(raw)
	if res := validation.TaskDescription(s.maxDescription)(desc); !res.Valid {
		return "", appErrors.Validation("invalid task", []string{res.Reason})
	}
	return desc, nil
}

func checkPriority(raw string) (string, error) {
	p := normalizePriority(raw)
	if p == "" {
		return models.DefaultPriority, nil
	}
	if !models.ValidPriority(p) {
		return "", invalidPriority()
	}
	return p, nil
}

func normalizePriority(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func invalidPriority() error {
	return appErrors.Validation("invalid task", []string{"priority must be one of low, medium, high"})
}
