package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/taskroster/internal/models"
	appErrors "github.com/noah-isme/taskroster/pkg/errors"
)

// REST talks to the task API over HTTP. The server assigns ids.
type REST struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewREST builds a REST adapter for baseURL (for example http://host/api/v1). A zero
// timeout means no client-side timeout.
func NewREST(baseURL string, timeout time.Duration, logger *zap.Logger) *REST {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &REST{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
}

type createRequest struct {
	Description string `json:"description"`
	Priority    string `json:"priority,omitempty"`
	Category    string `json:"category,omitempty"`
}

// List fetches every task.
func (r *REST) List(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.do(ctx, http.MethodGet, "/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

// Create posts a new task.
func (r *REST) Create(ctx context.Context, fields models.TaskFields) (models.Task, error) {
	req := createRequest{}
	if fields.Description != nil {
		req.Description = *fields.Description
	}
	if fields.Priority != nil {
		req.Priority = *fields.Priority
	}
	if fields.Category != nil {
		req.Category = *fields.Category
	}
	var task models.Task
	if err := r.do(ctx, http.MethodPost, "/tasks", req, &task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// Update sends only the set fields.
func (r *REST) Update(ctx context.Context, id int64, fields models.TaskFields) (models.Task, error) {
	var task models.Task
	if err := r.do(ctx, http.MethodPut, "/tasks/"+strconv.FormatInt(id, 10), fields, &task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// Remove deletes a task.
func (r *REST) Remove(ctx context.Context, id int64) error {
	return r.do(ctx, http.MethodDelete, "/tasks/"+strconv.FormatInt(id, 10), nil, nil)
}

func (r *REST) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode request")
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("backend request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrBackendUnavailable.Code, appErrors.ErrBackendUnavailable.Status, "backend unreachable")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrBackendUnavailable.Code, appErrors.ErrBackendUnavailable.Status, "read response")
	}
	if !isJSON(resp.Header.Get("Content-Type")) {
		r.logger.Warn("backend returned non-json response", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return appErrors.Clone(appErrors.ErrBackendUnavailable, fmt.Sprintf("unexpected response (status %d)", resp.StatusCode))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return appErrors.Wrap(err, appErrors.ErrBackendUnavailable.Code, appErrors.ErrBackendUnavailable.Status, "decode response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, env.Error)
	}
	if dest == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrBackendUnavailable.Code, appErrors.ErrBackendUnavailable.Status, "decode response data")
	}
	return nil
}

func statusError(status int, remote *appErrors.Error) error {
	var base *appErrors.Error
	switch status {
	case http.StatusNotFound:
		base = appErrors.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		base = appErrors.ErrValidation
	default:
		return appErrors.Clone(appErrors.ErrBackendUnavailable, fmt.Sprintf("backend returned status %d", status))
	}
	if remote == nil {
		return base
	}
	err := appErrors.Clone(base, remote.Message)
	err.Details = remote.Details
	return err
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}
