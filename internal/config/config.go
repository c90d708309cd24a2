package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// 必須項目は無い。マーケットのトークン未設定はリクエスト単位の設定エラーになる。
type Config struct {
	// Server
	ServerPort string

	// Market (LZT)
	MarketToken   string
	MarketBaseURL string
	MarketTimeout time.Duration

	// Catalog (valorant-api)
	CatalogBaseURL        string
	CatalogMaxAttempts    int
	CatalogRetryDelay     time.Duration
	CatalogAttemptTimeout time.Duration
	CatalogCacheTTL       time.Duration
	// CatalogWarmInterval はキャッシュのバックグラウンド更新間隔。0以下で無効
	CatalogWarmInterval time.Duration

	// Rate Limit（1分あたりのリクエスト数。0以下で無制限）
	RateLimitGeneral int
	RateLimitEnrich  int

	// CORS
	CORSAllowedOrigins []string

	// Logging
	LogFormat string
	LogLevel  string

	// UpstreamSSRFGuard は上流向けHTTPクライアントでプライベートアドレスへの接続を拒否する。
	UpstreamSSRFGuard bool
}

// Load は環境変数からConfigを読み込む。
// envPathを指定した場合はそのファイルを、省略した場合はカレントディレクトリの.envを先に読み込む。
// .envは任意で、存在しなくてもエラーにしない。既に設定済みの環境変数は上書きしない。
func Load(envPath ...string) (*Config, error) {
	if err := loadDotEnv(envPath...); err != nil {
		return nil, err
	}

	cfg := &Config{}

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	cfg.MarketToken = os.Getenv("LZT_MARKET_TOKEN")
	cfg.MarketBaseURL = getEnvString("LZT_API_BASE_URL", "https://prod-api.lzt.market")
	cfg.MarketTimeout = getEnvDuration("MARKET_TIMEOUT", 15*time.Second)

	cfg.CatalogBaseURL = getEnvString("VALORANT_API_BASE_URL", "https://valorant-api.com/v1")
	cfg.CatalogMaxAttempts = getEnvInt("CATALOG_MAX_ATTEMPTS", 3)
	cfg.CatalogRetryDelay = getEnvDuration("CATALOG_RETRY_DELAY", 1*time.Second)
	cfg.CatalogAttemptTimeout = getEnvDuration("CATALOG_ATTEMPT_TIMEOUT", 10*time.Second)
	cfg.CatalogCacheTTL = getEnvDuration("CATALOG_CACHE_TTL", 1*time.Hour)
	cfg.CatalogWarmInterval = getEnvDuration("CATALOG_WARM_INTERVAL", 30*time.Minute)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitEnrich = getEnvInt("RATE_LIMIT_ENRICH", 30)

	cfg.CORSAllowedOrigins = splitList(getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000"))

	cfg.LogFormat = getEnvString("LOG_FORMAT", "json")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	cfg.UpstreamSSRFGuard = getEnvBool("UPSTREAM_SSRF_GUARD", true)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate は値の組み合わせとして成立しない設定を検出する。
func (c *Config) validate() error {
	var invalid []string
	if c.CatalogMaxAttempts < 1 {
		invalid = append(invalid, "CATALOG_MAX_ATTEMPTS")
	}
	if c.CatalogRetryDelay < 0 {
		invalid = append(invalid, "CATALOG_RETRY_DELAY")
	}
	if c.CatalogAttemptTimeout <= 0 {
		invalid = append(invalid, "CATALOG_ATTEMPT_TIMEOUT")
	}
	if c.MarketTimeout <= 0 {
		invalid = append(invalid, "MARKET_TIMEOUT")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		invalid = append(invalid, "LOG_FORMAT")
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid environment variables: %v", invalid)
	}
	return nil
}

func loadDotEnv(envPath ...string) error {
	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath...)
	} else {
		err = godotenv.Load()
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("could not load .env file: %w", err)
	}
	return nil
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

// splitList はカンマ区切りの値を空要素を除いて分割する。
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
