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
	AppName string
	Env     string
	Host    string
	Port    int

	SQLitePath string
	RedisURL   string

	JWTSecret          string
	AccessTokenMinutes int
	EncryptKey         string

	UploadDir   string
	MaxUploadMB int
	CORSOrigins []string
	Debug       bool

	OutboxPollInterval time.Duration
	PresenceTTL        time.Duration
	TypingTTL          time.Duration

	MessageMaxChars  int
	MessageListLimit int
}

func Load() (*Config, error) {
	// Best-effort .env loading; real env vars win.
	_ = godotenv.Load()

	cfg := &Config{
		AppName: getEnv("APP_NAME", "ReelCV Connect API"),
		Env:     getEnv("APP_ENV", "development"),
		Host:    getEnv("HTTP_HOST", "0.0.0.0"),
		Port:    getEnvAsInt("HTTP_PORT", 8000),

		SQLitePath: getEnv("SQLITE_PATH", "reelcv.db"),
		RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379/0"),

		JWTSecret:          os.Getenv("JWT_SECRET"),
		AccessTokenMinutes: getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60*24),
		EncryptKey:         os.Getenv("ENCRYPTION_KEY"),

		UploadDir:   getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadMB: getEnvAsInt("MAX_UPLOAD_MB", 200),
		Debug:       getEnvAsBool("DEBUG", true),

		OutboxPollInterval: time.Duration(getEnvAsInt("OUTBOX_POLL_MS", 200)) * time.Millisecond,
		PresenceTTL:        time.Duration(getEnvAsInt("PRESENCE_TTL_SECONDS", 60)) * time.Second,
		TypingTTL:          time.Duration(getEnvAsInt("TYPING_TTL_SECONDS", 4)) * time.Second,

		MessageMaxChars:  getEnvAsInt("MESSAGE_MAX_CHARS", 5000),
		MessageListLimit: getEnvAsInt("MESSAGE_LIST_LIMIT", 200),
	}

	cors := getEnv("CORS_ORIGINS", "")
	if cors != "" {
		parts := strings.Split(cors, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.CORSOrigins = parts
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.EncryptKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}

	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
