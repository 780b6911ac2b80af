package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App struct {
		Name string
		ENV  string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		Driver   string // mysql | postgres | sqlite
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		LogSQL   bool
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	GRPC struct {
		Host string
		Port string
	}

	HTTP struct {
		Host           string
		Port           string
		AllowedOrigins []string
		ReadTimeout    time.Duration
		WriteTimeout   time.Duration
	}

	Auth struct {
		JWTSecret string
		TokenTTL  time.Duration
	}

	AI struct {
		APIKey  string
		APIURL  string
		Model   string
		Timeout time.Duration
	}

	Storage struct {
		Backend       string // local | s3
		LocalDir      string
		PublicBaseURL string
		S3Bucket      string
		S3Region      string
		S3Prefix      string
		MaxUploadSize int64
	}

	NATS struct {
		URL     string
		Subject string
	}

	Sentry struct {
		DSN string
	}

	Paging struct {
		UsersPerPage    int
		MessagesPerPage int
	}
}

// Load reads a .env file when present and then builds the config from the environment.
func Load() *Config {
	_ = godotenv.Load()
	return New()
}

func New() *Config {
	cfg := &Config{}

	// App
	cfg.App.Name = getEnvDefault("APP_NAME", "tech-buddy")
	cfg.App.ENV = getEnvDefault("APP_ENV", "development")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "api")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.Driver = strings.ToLower(getEnvDefault("DB_DRIVER", "mysql"))
	cfg.DB.LogSQL = isTruthy(os.Getenv("DB_LOG_SQL"))
	cfg.DB.DSN = os.Getenv("DATABASE_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "techbuddy")

		switch cfg.DB.Driver {
		case "postgres":
			cfg.DB.Port = getEnvDefault("DB_PORT", "5432")
			cfg.DB.DSN = fmt.Sprintf(
				"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
				cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name,
			)
		case "sqlite":
			cfg.DB.DSN = getEnvDefault("SQLITE_PATH", "techbuddy.db")
		default:
			cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
			cfg.DB.DSN = fmt.Sprintf(
				"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
				cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
			)
		}
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	cfg.Redis.DB = getInt("REDIS_DB", 0)

	// gRPC
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", "127.0.0.1")
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", "50051")

	// HTTP
	cfg.HTTP.Host = getEnvDefault("HTTP_HOST", "0.0.0.0")
	cfg.HTTP.Port = getEnvDefault("HTTP_PORT", "8080")
	cfg.HTTP.AllowedOrigins = splitList(getEnvDefault("CORS_ALLOWED_ORIGINS", "*"))
	cfg.HTTP.ReadTimeout = getDuration("HTTP_READ_TIMEOUT", 30*time.Second)
	cfg.HTTP.WriteTimeout = getDuration("HTTP_WRITE_TIMEOUT", 90*time.Second)

	// Auth
	cfg.Auth.JWTSecret = getEnvDefault("JWT_SECRET", "dev-secret-change-me")
	cfg.Auth.TokenTTL = getDuration("JWT_TTL", 24*time.Hour)

	// AI
	cfg.AI.APIKey = os.Getenv("GROQ_API_KEY")
	cfg.AI.APIURL = getEnvDefault("GROQ_API_URL", "https://api.groq.com/openai/v1/chat/completions")
	cfg.AI.Model = getEnvDefault("GROQ_MODEL", "llama-3.3-70b-versatile")
	cfg.AI.Timeout = getDuration("AI_TIMEOUT", 60*time.Second)

	// Storage
	cfg.Storage.Backend = strings.ToLower(getEnvDefault("STORAGE_BACKEND", "local"))
	cfg.Storage.LocalDir = getEnvDefault("UPLOAD_DIR", "uploads")
	cfg.Storage.PublicBaseURL = getEnvDefault("UPLOAD_BASE_URL", "/uploads")
	cfg.Storage.S3Bucket = os.Getenv("S3_BUCKET_NAME")
	cfg.Storage.S3Region = getEnvDefault("AWS_REGION", "us-east-1")
	cfg.Storage.S3Prefix = getEnvDefault("S3_PREFIX", "")
	cfg.Storage.MaxUploadSize = int64(getInt("MAX_UPLOAD_MB", 50)) << 20

	// NATS
	cfg.NATS.URL = os.Getenv("NATS_URL")
	cfg.NATS.Subject = getEnvDefault("NATS_SUBJECT_PREFIX", "techbuddy")

	// Sentry
	cfg.Sentry.DSN = os.Getenv("SENTRY_DSN")

	// Paging
	cfg.Paging.UsersPerPage = getInt("USERS_PER_PAGE", 20)
	cfg.Paging.MessagesPerPage = getInt("MESSAGES_PER_PAGE", 50)

	return cfg
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	if n, err := strconv.Atoi(getEnvDefault(k, "")); err == nil {
		return n
	}
	return def
}

// getDuration accepts Go durations ("90s") or a bare number of seconds.
func getDuration(k string, def time.Duration) time.Duration {
	v := getEnvDefault(k, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
