package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/taskroster/internal/models"
	"github.com/noah-isme/taskroster/pkg/response"
)

type binService interface {
	List(ctx context.Context) ([]models.Task, error)
	Restore(ctx context.Context, id int64) (*models.Task, error)
	Purge(ctx context.Context, id int64, confirm bool) error
	Empty(ctx context.Context, confirm bool) (int64, error)
}

// BinHandler exposes the deleted-task bin.
type BinHandler struct {
	bin binService
}

// NewBinHandler constructs BinHandler.
func NewBinHandler(bin binService) *BinHandler {
	return &BinHandler{bin: bin}
}

// List godoc
// @Summary List binned tasks
// @Tags Bin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /bin [get]
func (h *BinHandler) List(c *gin.Context) {
	tasks, err := h.bin.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tasks, nil)
}

// Restore godoc
// @Summary Restore a binned task
// @Tags Bin
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bin/{id}/restore [post]
func (h *BinHandler) Restore(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	task, err := h.bin.Restore(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task, nil)
}

// Purge godoc
// @Summary Permanently delete a binned task
// @Tags Bin
// @Param id path int true "Task ID"
// @Param confirm query bool true "Must be true"
// @Success 204
// @Failure 428 {object} response.Envelope
// @Router /bin/{id} [delete]
func (h *BinHandler) Purge(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	if err := h.bin.Purge(c.Request.Context(), id, confirmed(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Empty godoc
// @Summary Empty the bin
// @Tags Bin
// @Produce json
// @Param confirm query bool true "Must be true"
// @Success 200 {object} response.Envelope
// @Failure 428 {object} response.Envelope
// @Router /bin [delete]
func (h *BinHandler) Empty(c *gin.Context) {
	n, err := h.bin.Empty(c.Request.Context(), confirmed(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"removed": n}, nil)
}

func confirmed(c *gin.Context) bool {
	return c.Query("confirm") == "true"
}
