package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/taskroster/internal/service"
	"github.com/noah-isme/taskroster/pkg/bridge"
	appErrors "github.com/noah-isme/taskroster/pkg/errors"
	"github.com/noah-isme/taskroster/pkg/response"
)

type exportService interface {
	Generate(ctx context.Context, collection string) (*service.ExportResult, error)
	Resolve(token string) (relPath, filename string, err error)
	Open(relPath string) (*os.File, error)
}

// ExportHandler stores exports and serves them through signed links.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Create godoc
// @Summary Store an export and return a signed download link
// @Tags Exports
// @Produce json
// @Param collection path string true "Collection, e.g. students"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/{collection} [post]
func (h *ExportHandler) Create(c *gin.Context) {
	result, err := h.exports.Generate(c.Request.Context(), c.Param("collection"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download a stored export
// @Tags Exports
// @Produce text/csv
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	relPath, filename, err := h.exports.Resolve(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exports.Open(relPath)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), bridge.ContentType, file, nil)
}
