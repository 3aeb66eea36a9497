package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Calendar  CalendarConfig
	Generator GeneratorConfig
	BulkOps   BulkOpsConfig
	Undo      UndoConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CalendarConfig tunes the calendar facts cache.
type CalendarConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// GeneratorConfig bounds recurrence expansion.
type GeneratorConfig struct {
	IterationCap int
}

// BulkOpsConfig governs the bulk operation engine.
type BulkOpsConfig struct {
	Workers        int
	QueueBuffer    int
	MaxBatchSize   int
	ChunkSize      int
	WorkerRetries  int
	RetentionLimit int
}

// UndoConfig governs the undo ledger.
type UndoConfig struct {
	TTLCap        time.Duration
	SweepInterval time.Duration
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Calendar = CalendarConfig{
		CacheEnabled: v.GetBool("CALENDAR_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("CALENDAR_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Generator = GeneratorConfig{
		IterationCap: v.GetInt("GENERATOR_ITERATION_CAP"),
	}

	cfg.BulkOps = BulkOpsConfig{
		Workers:        v.GetInt("BULK_WORKERS"),
		QueueBuffer:    v.GetInt("BULK_QUEUE_BUFFER"),
		MaxBatchSize:   v.GetInt("BULK_MAX_BATCH_SIZE"),
		ChunkSize:      v.GetInt("BULK_CHUNK_SIZE"),
		WorkerRetries:  v.GetInt("BULK_WORKER_RETRIES"),
		RetentionLimit: v.GetInt("BULK_RETENTION_LIMIT"),
	}

	cfg.Undo = UndoConfig{
		TTLCap:        parseDuration(v.GetString("UNDO_TTL_CAP"), 5*time.Minute),
		SweepInterval: parseDuration(v.GetString("UNDO_SWEEP_INTERVAL"), time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "college_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CALENDAR_CACHE_ENABLED", false)
	v.SetDefault("CALENDAR_CACHE_TTL", "10m")

	v.SetDefault("GENERATOR_ITERATION_CAP", 100)

	v.SetDefault("BULK_WORKERS", 2)
	v.SetDefault("BULK_QUEUE_BUFFER", 16)
	v.SetDefault("BULK_MAX_BATCH_SIZE", 500)
	v.SetDefault("BULK_CHUNK_SIZE", 50)
	v.SetDefault("BULK_WORKER_RETRIES", 1)
	v.SetDefault("BULK_RETENTION_LIMIT", 100)

	v.SetDefault("UNDO_TTL_CAP", "5m")
	v.SetDefault("UNDO_SWEEP_INTERVAL", "1m")
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
