package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/taskroster/internal/service"
	"github.com/noah-isme/taskroster/pkg/bridge"
	appErrors "github.com/noah-isme/taskroster/pkg/errors"
	"github.com/noah-isme/taskroster/pkg/response"
)

// MaxUploadBytes caps delimited uploads.
const MaxUploadBytes = 8 << 20

type bridgeService interface {
	Export(ctx context.Context) ([]byte, string, error)
	Reconcile(ctx context.Context, data []byte) (*service.ReconcileResult, error)
	ReconcilePDF(ctx context.Context, data []byte) ([]byte, error)
	Validate(ctx context.Context, data []byte) *service.ValidationResult
	Import(ctx context.Context, data []byte, confirm bool) (*service.ImportResult, error)
}

// BridgeHandler moves student records in and out of CSV.
type BridgeHandler struct {
	bridge bridgeService
}

// NewBridgeHandler constructs BridgeHandler.
func NewBridgeHandler(svc bridgeService) *BridgeHandler {
	return &BridgeHandler{bridge: svc}
}

// Export godoc
// @Summary Download students as CSV
// @Tags Students
// @Produce text/csv
// @Success 200 {file} file
// @Router /students/export [get]
func (h *BridgeHandler) Export(c *gin.Context) {
	payload, filename, err := h.bridge.Export(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, bridge.ContentType, payload)
}

// Reconcile godoc
// @Summary Compare an uploaded CSV with stored students
// @Tags Students
// @Accept text/csv
// @Produce json
// @Produce application/pdf
// @Param format query string false "json (default) or pdf"
// @Success 200 {object} response.Envelope
// @Router /students/reconcile [post]
func (h *BridgeHandler) Reconcile(c *gin.Context) {
	data, ok := readUpload(c)
	if !ok {
		return
	}
	if strings.EqualFold(c.Query("format"), "pdf") {
		out, err := h.bridge.ReconcilePDF(c.Request.Context(), data)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Attachment(c, "students_reconciliation.pdf", "application/pdf", out)
		return
	}
	result, err := h.bridge.Reconcile(c.Request.Context(), data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Validate godoc
// @Summary Validate an uploaded CSV
// @Tags Students
// @Accept text/csv
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /students/validate [post]
func (h *BridgeHandler) Validate(c *gin.Context) {
	data, ok := readUpload(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, h.bridge.Validate(c.Request.Context(), data), nil)
}

// Import godoc
// @Summary Merge an uploaded CSV into stored students
// @Description Conflicting ids are overwritten by the uploaded row and unknown ids are added.
// @Tags Students
// @Accept text/csv
// @Produce json
// @Param confirm query bool true "Must be true"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 428 {object} response.Envelope
// @Router /students/import [post]
func (h *BridgeHandler) Import(c *gin.Context) {
	data, ok := readUpload(c)
	if !ok {
		return
	}
	result, err := h.bridge.Import(c.Request.Context(), data, confirmed(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// readUpload accepts either a raw body or a multipart "file" field.
func readUpload(c *gin.Context) ([]byte, bool) {
	var src io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field is required"))
			return nil, false
		}
		f, err := header.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
			return nil, false
		}
		defer f.Close()
		src = f
	}
	data, err := io.ReadAll(io.LimitReader(src, MaxUploadBytes+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return nil, false
	}
	if len(data) > MaxUploadBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "upload too large"))
		return nil, false
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "upload is empty"))
		return nil, false
	}
	return data, true
}
