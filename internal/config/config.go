package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Identity provider (Ory Kratos)
	KratosPublicURL      string
	KratosTimeout        time.Duration
	SessionCheckInterval time.Duration

	// Session context
	LoginTimeout      time.Duration
	RegisterTimeout   time.Duration
	SessionIdleTTL    time.Duration
	AvatarSeedBaseURL string

	// Connectivity
	ConnectivityProbe   bool
	ConnectivityTimeout time.Duration

	// Cache (Redis)。空の場合はインメモリで動作する
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ProfileCacheTTL time.Duration

	// Events (Kafka)。空の場合はイベントを発行しない
	KafkaBrokers      []string
	ProfileEventTopic string

	// Rate Limit（req/min）
	RateLimitGeneral    int
	RateLimitCredential int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.KratosPublicURL = os.Getenv("KRATOS_PUBLIC_URL")
	if cfg.KratosPublicURL == "" {
		missing = append(missing, "KRATOS_PUBLIC_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.KratosTimeout = getEnvDuration("KRATOS_TIMEOUT", 30*time.Second)
	cfg.SessionCheckInterval = getEnvDuration("SESSION_CHECK_INTERVAL", time.Minute)
	cfg.LoginTimeout = getEnvDuration("LOGIN_TIMEOUT", 15*time.Second)
	cfg.RegisterTimeout = getEnvDuration("REGISTER_TIMEOUT", 15*time.Second)
	cfg.SessionIdleTTL = getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute)
	cfg.AvatarSeedBaseURL = getEnvString("AVATAR_SEED_BASE_URL", "https://api.dicebear.com/7.x/avataaars/svg?seed=")
	cfg.ConnectivityProbe = getEnvBool("CONNECTIVITY_PROBE", true)
	cfg.ConnectivityTimeout = getEnvDuration("CONNECTIVITY_TIMEOUT", 2*time.Second)
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.ProfileCacheTTL = getEnvDuration("PROFILE_CACHE_TTL", 10*time.Minute)
	cfg.KafkaBrokers = getEnvList("KAFKA_BROKERS")
	cfg.ProfileEventTopic = getEnvString("PROFILE_EVENT_TOPIC", "vidshare.profile")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitCredential = getEnvInt("RATE_LIMIT_CREDENTIAL", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if cfg.LoginTimeout <= 0 || cfg.RegisterTimeout <= 0 {
		return nil, fmt.Errorf("LOGIN_TIMEOUT and REGISTER_TIMEOUT must be positive")
	}

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

// getEnvList はカンマ区切りの環境変数を空要素を除いたスライスとして返す。
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
