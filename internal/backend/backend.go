// Package backend provides the task persistence adapters used by the client session.
// Every call round-trips to the underlying store; adapters keep no cache.
package backend

import (
	"context"

	"github.com/noah-isme/taskroster/internal/models"
)

// Backend persists tasks.
type Backend interface {
	List(ctx context.Context) ([]models.Task, error)
	Create(ctx context.Context, fields models.TaskFields) (models.Task, error)
	Update(ctx context.Context, id int64, fields models.TaskFields) (models.Task, error)
	Remove(ctx context.Context, id int64) error
}

// Store is a byte-oriented key/value store. Get returns nil without error for a
// missing key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}
