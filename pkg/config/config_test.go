package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.True(t, cfg.Tasks.SoftDelete)
	assert.Equal(t, 500, cfg.Tasks.MaxDescription)
	assert.Zero(t, cfg.Tasks.BinRetention)
	assert.Equal(t, 16, cfg.Students.MinAge)
	assert.Equal(t, 24*time.Hour, cfg.Exports.TTL)
	assert.Equal(t, BackendREST, cfg.Client.Backend)
	assert.Zero(t, cfg.Client.Timeout)
	assert.Equal(t, "tasks", cfg.Client.StorageKey)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("DB_DRIVER", "SQLite")
	v.Set("BIN_RETENTION", "720h")
	v.Set("CLIENT_BASE_URL", "http://example.test/api/v1/")
	v.Set("TASKS_MAX_DESCRIPTION", 0)
	v.Set("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")
	cfg := fromViper(v)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 720*time.Hour, cfg.Tasks.BinRetention)
	assert.Equal(t, "http://example.test/api/v1", cfg.Client.BaseURL)
	assert.Equal(t, 500, cfg.Tasks.MaxDescription)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}
