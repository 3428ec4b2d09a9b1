// Package config は環境変数ベースのアプリケーション設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Connection pool
	PoolMinSize int           // アイドル状態で維持する最小接続数
	PoolMaxSize int           // プール本体の最大接続数
	MaxOverflow int           // PoolMaxSizeを超えて許容する一時接続数
	PoolRecycle time.Duration // 接続を作り直すまでの時間
	PoolTimeout time.Duration // 接続取得の待機タイムアウト

	// App
	Debug       bool
	Environment string
	SecretKey   string
	APIVersion  string

	// Server
	ServerPort string

	// CORS
	CORSOrigins []string

	// Logging
	LogLevel string

	// Rate limit
	RateLimitPerMinute int
}

// 対応する実行環境名。
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Load は環境変数からConfigを読み込む。
// .envファイルが存在する場合は先に読み込む（既存の環境変数が優先される）。
// すべての項目にデフォルト値があり、必須環境変数はない。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     getEnvString("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnvString("DB_USER", "testuser"),
		DBPassword: getEnvString("DB_PASSWORD", "testpass"),
		DBName:     getEnvString("DB_NAME", "testdb"),
		DBSSLMode:  getEnvString("DB_SSLMODE", "disable"),

		PoolMinSize: getEnvInt("DB_POOL_MIN_SIZE", 5),
		PoolMaxSize: getEnvInt("DB_POOL_MAX_SIZE", 20),
		MaxOverflow: getEnvInt("DB_MAX_OVERFLOW", 10),
		PoolRecycle: time.Duration(getEnvInt("DB_POOL_RECYCLE", 3600)) * time.Second,
		PoolTimeout: time.Duration(getEnvInt("DB_POOL_TIMEOUT", 30)) * time.Second,

		Debug:       getEnvBool("DEBUG", false),
		Environment: getEnvString("ENVIRONMENT", EnvDevelopment),
		SecretKey:   getEnvString("SECRET_KEY", "your-secret-key-change-in-production"),
		APIVersion:  getEnvString("API_VERSION", "1.0.0"),

		ServerPort: getEnvString("SERVER_PORT", "8000"),

		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),

		LogLevel: getEnvString("LOG_LEVEL", "INFO"),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 100),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate は設定値の整合性を検証する。
func (c *Config) validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("invalid ENVIRONMENT: %q (must be one of development, staging, production)", c.Environment)
	}

	if c.DBPort < 1 || c.DBPort > 65535 {
		return fmt.Errorf("invalid DB_PORT: %d", c.DBPort)
	}

	if c.PoolMinSize < 1 {
		return fmt.Errorf("invalid DB_POOL_MIN_SIZE: %d (must be >= 1)", c.PoolMinSize)
	}
	if c.PoolMaxSize < c.PoolMinSize {
		return fmt.Errorf("DB_POOL_MAX_SIZE (%d) must be >= DB_POOL_MIN_SIZE (%d)", c.PoolMaxSize, c.PoolMinSize)
	}
	if c.MaxOverflow < 0 {
		return fmt.Errorf("invalid DB_MAX_OVERFLOW: %d (must be >= 0)", c.MaxOverflow)
	}

	if len(c.SecretKey) < 32 {
		return fmt.Errorf("SECRET_KEY must be at least 32 characters")
	}

	if c.RateLimitPerMinute < 1 {
		return fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %d (must be >= 1)", c.RateLimitPerMinute)
	}

	return nil
}

// DatabaseURL はPostgreSQLの接続URLを構築する。
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// IsDevelopment は開発環境かどうかを返す。
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// IsProduction は本番環境かどうかを返す。
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
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

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvList はカンマ区切りの環境変数をスライスとして読み込む。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return defaultVal
	}
	return result
}
