package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents engine configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	PublicBaseURL string

	StorageBackend string // "filesystem" | "s3"
	StoragePath    string
	StorageBaseURL string
	S3Bucket       string
	S3Region       string

	ReplicateAPIKey  string
	FalAPIKey        string
	DashScopeAPIKey  string
	GeminiAPIKey     string
	ElevenLabsAPIKey string

	WorkerConcurrency int
	DispatchInterval  time.Duration

	AudioPollInterval time.Duration
	AudioPollAttempts int
	VideoPollInterval time.Duration
	VideoPollAttempts int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),

		StorageBackend: getEnv("STORAGE_BACKEND", "filesystem"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       getEnv("S3_REGION", "us-east-1"),

		ReplicateAPIKey:  os.Getenv("REPLICATE_API_KEY"),
		FalAPIKey:        os.Getenv("FAL_API_KEY"),
		DashScopeAPIKey:  os.Getenv("DASHSCOPE_API_KEY"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		ElevenLabsAPIKey: os.Getenv("ELEVENLABS_API_KEY"),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 8),
		DispatchInterval:  time.Millisecond * time.Duration(getEnvInt("DISPATCH_INTERVAL_MS", 500)),

		AudioPollInterval: time.Second * time.Duration(getEnvInt("AUDIO_POLL_INTERVAL_SECONDS", 1)),
		AudioPollAttempts: getEnvInt("AUDIO_POLL_ATTEMPTS", 30),
		VideoPollInterval: time.Second * time.Duration(getEnvInt("VIDEO_POLL_INTERVAL_SECONDS", 2)),
		VideoPollAttempts: getEnvInt("VIDEO_POLL_ATTEMPTS", 60),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.StorageBackend == "s3" && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
