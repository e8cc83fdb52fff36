package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/taskroster/internal/filter"
	"github.com/noah-isme/taskroster/internal/middleware"
	"github.com/noah-isme/taskroster/internal/models"
	"github.com/noah-isme/taskroster/internal/service"
	"github.com/noah-isme/taskroster/pkg/bridge"
	appErrors "github.com/noah-isme/taskroster/pkg/errors"
	"github.com/noah-isme/taskroster/pkg/response"
)

type taskService interface {
	List(ctx context.Context, criteria filter.Criteria, category string) (*service.TaskList, error)
	Create(ctx context.Context, req service.CreateTaskRequest) (*models.Task, error)
	Update(ctx context.Context, id int64, req service.UpdateTaskRequest) (*models.Task, error)
	Delete(ctx context.Context, id int64) error
	ClearCompleted(ctx context.Context) (int64, error)
	Export(ctx context.Context) ([]byte, string, error)
}

// TaskHandler exposes task endpoints.
type TaskHandler struct {
	tasks taskService
}

// NewTaskHandler constructs TaskHandler.
func NewTaskHandler(tasks taskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// List godoc
// @Summary List tasks
// @Tags Tasks
// @Produce json
// @Param status query string false "all, active or completed"
// @Param priority query string false "all, low, medium or high"
// @Param category query string false "Filter by category"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	criteria, err := filter.Parse(c.Query("status"), c.Query("priority"))
	if err != nil {
		response.Error(c, err)
		return
	}
	list, err := h.tasks.List(c.Request.Context(), criteria, c.Query("category"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "counts", list.Counts)
	middleware.SetMeta(c, "status", criteria.Status)
	middleware.SetMeta(c, "priority", criteria.Priority)
	response.JSON(c, http.StatusOK, list.Tasks, nil, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Create task
// @Tags Tasks
// @Accept json
// @Produce json
// @Param payload body service.CreateTaskRequest true "Task payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	var req service.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	task, err := h.tasks.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, task)
}

// Update godoc
// @Summary Update task
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param payload body service.UpdateTaskRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tasks/{id} [put]
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req service.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	task, err := h.tasks.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task, nil)
}

// Delete godoc
// @Summary Delete task
// @Description Moves the task into the bin when soft delete is enabled.
// @Tags Tasks
// @Param id path int true "Task ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	if err := h.tasks.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ClearCompleted godoc
// @Summary Remove every completed task
// @Tags Tasks
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tasks/clear-completed [delete]
func (h *TaskHandler) ClearCompleted(c *gin.Context) {
	n, err := h.tasks.ClearCompleted(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"removed": n}, nil)
}

// Export godoc
// @Summary Download tasks as CSV
// @Tags Tasks
// @Produce text/csv
// @Success 200 {file} file
// @Router /tasks/export [get]
func (h *TaskHandler) Export(c *gin.Context) {
	payload, filename, err := h.tasks.Export(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, bridge.ContentType, payload)
}

func taskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "task id must be a positive integer"))
		return 0, false
	}
	return id, true
}
