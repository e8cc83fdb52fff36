package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Client backends.
const (
	BackendREST  = "rest"
	BackendFile  = "file"
	BackendRedis = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	CORS        CORSConfig
	Log         LogConfig
	Tasks       TasksConfig
	Students    StudentsConfig
	Exports     ExportsConfig
	Maintenance MaintenanceConfig
	Client      ClientConfig
}

type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	SQLitePath   string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TasksConfig tunes task persistence.
type TasksConfig struct {
	SoftDelete     bool
	MaxDescription int
	BinRetention   time.Duration
}

// StudentsConfig tunes enrollment validation and list caching.
type StudentsConfig struct {
	MinAge   int
	CacheTTL time.Duration
}

// ExportsConfig controls stored exports and their download links.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	TTL             time.Duration
}

// MaintenanceConfig schedules background housekeeping.
type MaintenanceConfig struct {
	Interval          time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// ClientConfig selects the persistence adapter used by the command line client.
type ClientConfig struct {
	Backend    string
	BaseURL    string
	Timeout    time.Duration
	DataDir    string
	StorageKey string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		SQLitePath:   v.GetString("DB_SQLITE_PATH"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxDescription := v.GetInt("TASKS_MAX_DESCRIPTION")
	if maxDescription <= 0 {
		maxDescription = 500
	}
	cfg.Tasks = TasksConfig{
		SoftDelete:     v.GetBool("TASKS_SOFT_DELETE"),
		MaxDescription: maxDescription,
		BinRetention:   parseDuration(v.GetString("BIN_RETENTION"), 0),
	}

	cfg.Students = StudentsConfig{
		MinAge:   v.GetInt("STUDENTS_MIN_AGE"),
		CacheTTL: parseDuration(v.GetString("STUDENTS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 30*time.Minute),
		TTL:             parseDuration(v.GetString("EXPORTS_TTL"), 24*time.Hour),
	}

	cfg.Maintenance = MaintenanceConfig{
		Interval:          parseDuration(v.GetString("MAINTENANCE_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("MAINTENANCE_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("MAINTENANCE_WORKER_RETRIES"),
	}

	cfg.Client = ClientConfig{
		Backend:    strings.ToLower(v.GetString("CLIENT_BACKEND")),
		BaseURL:    strings.TrimRight(v.GetString("CLIENT_BASE_URL"), "/"),
		Timeout:    parseDuration(v.GetString("CLIENT_TIMEOUT"), 0),
		DataDir:    v.GetString("CLIENT_DATA_DIR"),
		StorageKey: v.GetString("CLIENT_STORAGE_KEY"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "taskroster")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_SQLITE_PATH", "./taskroster.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TASKS_SOFT_DELETE", true)
	v.SetDefault("TASKS_MAX_DESCRIPTION", 500)
	v.SetDefault("BIN_RETENTION", "0")

	v.SetDefault("STUDENTS_MIN_AGE", 16)
	v.SetDefault("STUDENTS_CACHE_TTL", "5m")

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "30m")
	v.SetDefault("EXPORTS_TTL", "24h")

	v.SetDefault("MAINTENANCE_INTERVAL", "1h")
	v.SetDefault("MAINTENANCE_WORKER_CONCURRENCY", 1)
	v.SetDefault("MAINTENANCE_WORKER_RETRIES", 3)

	v.SetDefault("CLIENT_BACKEND", BackendREST)
	v.SetDefault("CLIENT_BASE_URL", "http://localhost:8080/api/v1")
	v.SetDefault("CLIENT_TIMEOUT", "0")
	v.SetDefault("CLIENT_DATA_DIR", "./data")
	v.SetDefault("CLIENT_STORAGE_KEY", "tasks")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
