// Package config は環境変数ベースのアプリケーション設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Global session
	// デプロイごとに値が異なる実績があるため（0と1の両方が観測されている）、
	// コンパイル時定数ではなく設定値として注入する。
	GlobalSessionID   int64
	GlobalSessionName string

	// Seed
	DefaultUsersCSV string

	// Rate Limit（req/min/user）
	RateLimitGeneral int
	RateLimitSubmit  int

	// Server
	ServerPort      string
	ShutdownTimeout time.Duration
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("required environment variable is not set: DATABASE_URL")
	}

	// Optional fields with defaults
	cfg.GlobalSessionID = getEnvInt64("GLOBAL_SESSION_ID", 0)
	cfg.GlobalSessionName = getEnvString("GLOBAL_SESSION_NAME", "GLOBAL")
	cfg.DefaultUsersCSV = getEnvString("DEFAULT_USERS_CSV", "data/default-users.csv")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSubmit = getEnvInt("RATE_LIMIT_SUBMIT", 30)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
