package config

import (
	"os"
	"strconv"
	"strings"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// SandboxConfig holds Docker execution settings for submitted code and the
// built-in transform pipeline.
type SandboxConfig struct {
	// Image runs submitted processing code.
	Image string
	// TransformImage carries the baked-in transform script used by /execute/.
	TransformImage string
	Memory         string
	CPUShares      int
	Network        bool
	// ExecTimeoutSec bounds submitted-code runs; RunTimeoutSec bounds the
	// synchronous /execute/ transform.
	ExecTimeoutSec int
	RunTimeoutSec  int
	MaxConcurrent  int
	// LocalDir is where /upload/ stores files; LocalOutputDir receives
	// transform output. ScratchDir ("" = system temp) backs per-run mounts.
	LocalDir       string
	LocalOutputDir string
	ScratchDir     string
}

// UploadConfig limits what files are accepted.
type UploadConfig struct {
	MaxSizeBytes int64
	// AllowedExts are lowercase extensions without the leading dot.
	AllowedExts []string
}

// RetentionConfig controls the background sweep of expired jobs.
type RetentionConfig struct {
	TTLHours         int
	SweepIntervalMin int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost   string
	Port      string
	Database  DatabaseConfig
	MinIO     MinIOConfig
	Sandbox   SandboxConfig
	Upload    UploadConfig
	Retention RetentionConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"), // default only for non-sensitive value
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Sandbox: SandboxConfig{
			Image:          getEnv("SANDBOX_IMAGE", "python:3.9-slim"),
			TransformImage: getEnv("SANDBOX_TRANSFORM_IMAGE", "python-sandbox"),
			Memory:         getEnv("SANDBOX_MEMORY", "512m"),
			CPUShares:      getEnvInt("SANDBOX_CPU_SHARES", 512),
			Network:        getEnvBool("SANDBOX_NETWORK", false),
			ExecTimeoutSec: getEnvInt("SANDBOX_EXEC_TIMEOUT_SEC", 120),
			RunTimeoutSec:  getEnvInt("SANDBOX_RUN_TIMEOUT_SEC", 10),
			MaxConcurrent:  getEnvInt("SANDBOX_MAX_CONCURRENT", 4),
			LocalDir:       getEnv("SANDBOX_DIR", "/tmp/sandbox"),
			LocalOutputDir: getEnv("SANDBOX_OUTPUT_DIR", "/tmp/sandbox/output"),
			ScratchDir:     getEnv("SANDBOX_SCRATCH_DIR", ""),
		},
		Upload: UploadConfig{
			MaxSizeBytes: int64(getEnvInt("UPLOAD_MAX_SIZE_MB", 50)) * 1024 * 1024,
			AllowedExts:  getEnvList("UPLOAD_ALLOWED_EXTS", []string{"csv", "xls", "xlsx"}),
		},
		Retention: RetentionConfig{
			TTLHours:         getEnvInt("JOB_TTL_HOURS", 24),
			SweepIntervalMin: getEnvInt("JOB_SWEEP_INTERVAL_MIN", 60),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
