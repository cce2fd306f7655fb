/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Event mirror backend selection.
type MirrorBackend string

const (
	MirrorNone  MirrorBackend = "none"
	MirrorNATS  MirrorBackend = "nats"
	MirrorRedis MirrorBackend = "redis"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	BaseURL     string // Public base URL advertised to players
	DBBackend   DatabaseBackend
	DBDSN       string
	MediaRoot   string

	JWTSigningKey string
	MetricsBind   string

	MaxUploadSizeMB int // Optional multipart upload limit override (MB)

	// S3 object storage configuration
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3PublicBaseURL   string // Optional CDN URL
	S3UsePathStyle    bool   // Required for MinIO

	// Redis (profile snapshot cache + optional event mirror)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Event mirror for multi-instance deployments
	EventMirror MirrorBackend
	NATSURL     string
	InstanceID  string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Playback tuning
	TrackLoadTimeout time.Duration // Deadline for a scheduled track to become playable
	PreloadWindow    time.Duration // How far ahead announcement tracks are preloaded
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("SKALD_ENV", "development"),
		HTTPBind:    getEnv("SKALD_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("SKALD_HTTP_PORT", 8080),
		BaseURL:     getEnv("SKALD_BASE_URL", ""),
		DBBackend:   DatabaseBackend(getEnv("SKALD_DB_BACKEND", string(DatabasePostgres))),
		DBDSN:       getEnv("SKALD_DB_DSN", ""),
		MediaRoot:   getEnv("SKALD_MEDIA_ROOT", "./media"),

		JWTSigningKey: getEnv("SKALD_JWT_SIGNING_KEY", ""),
		MetricsBind:   getEnv("SKALD_METRICS_BIND", "127.0.0.1:9000"),

		MaxUploadSizeMB: getEnvInt("SKALD_MAX_UPLOAD_SIZE_MB", 0),

		S3AccessKeyID:     getEnvAny([]string{"SKALD_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"SKALD_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"SKALD_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnv("SKALD_S3_BUCKET", ""),
		S3Endpoint:        getEnv("SKALD_S3_ENDPOINT", ""),
		S3PublicBaseURL:   getEnv("SKALD_S3_PUBLIC_BASE_URL", ""),
		S3UsePathStyle:    getEnvBool("SKALD_S3_USE_PATH_STYLE", false),

		RedisAddr:     getEnv("SKALD_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("SKALD_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("SKALD_REDIS_DB", 0),

		EventMirror: MirrorBackend(getEnv("SKALD_EVENT_MIRROR", string(MirrorNone))),
		NATSURL:     getEnv("SKALD_NATS_URL", "nats://localhost:4222"),
		InstanceID:  getEnv("SKALD_INSTANCE_ID", ""),

		TracingEnabled:    getEnvBool("SKALD_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("SKALD_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("SKALD_TRACING_SAMPLE_RATE", 1.0),

		TrackLoadTimeout: time.Duration(getEnvInt("SKALD_TRACK_LOAD_TIMEOUT_SECONDS", 10)) * time.Second,
		PreloadWindow:    time.Duration(getEnvInt("SKALD_PRELOAD_WINDOW_SECONDS", 60)) * time.Second,
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("SKALD_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("SKALD_JWT_SIGNING_KEY must be provided")
	}

	switch cfg.EventMirror {
	case MirrorNone, MirrorNATS, MirrorRedis:
	default:
		return nil, fmt.Errorf("unsupported event mirror backend %q", cfg.EventMirror)
	}

	if strings.EqualFold(cfg.Environment, "production") && len(cfg.JWTSigningKey) < 32 {
		return nil, fmt.Errorf("SKALD_JWT_SIGNING_KEY must be at least 32 bytes in production")
	}

	return cfg, nil
}

// MaxUploadSizeBytes returns the configured upload limit in bytes.
// A value of 0 means "not configured" and callers should use endpoint defaults.
func (c *Config) MaxUploadSizeBytes() int64 {
	if c == nil || c.MaxUploadSizeMB <= 0 {
		return 0
	}
	return int64(c.MaxUploadSizeMB) * 1024 * 1024
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}
