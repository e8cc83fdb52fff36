package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskroster/pkg/config"
)

func TestSQLiteMigrateIsRepeatable(t *testing.T) {
	db, err := Open(config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db))

	var id int64
	require.NoError(t, db.QueryRowxContext(ctx, `INSERT INTO tasks (description) VALUES ('first') RETURNING id`).Scan(&id))
	assert.Equal(t, int64(1), id)

	var priority, category string
	require.NoError(t, db.QueryRowxContext(ctx, `SELECT priority, category FROM tasks WHERE id = 1`).Scan(&priority, &category))
	assert.Equal(t, "medium", priority)
	assert.Equal(t, "general", category)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}
