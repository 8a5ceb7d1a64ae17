package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	CartAPIURL     string        // バックエンドのベースURL（.../api）
	CartAPIVariant string        // session / legacy
	CartAPITimeout time.Duration // 1リクエストのタイムアウト

	JWTSecret string // JWT署名シークレット

	GoEnv    string // dev/prod
	FEURL    string // フロントURL（CORSで使う）
	LogLevel string

	CacheDriver string        // memory / file / redis / postgres
	CacheDir    string        // fileドライバの保存先
	CacheTTL    time.Duration // redisのTTL（0なら無期限）
	RedisAddr   string
	RedisDB     int

	OpPolicy       string        // queue / reject
	SessionIdleTTL time.Duration // 使われていないセッションを破棄するまでの時間

	RateLimitRPS   float64 // セッションごとのカート操作上限（0なら無効、Redisを使う）
	RateLimitBurst int
}

const (
	VariantSession = "session"
	VariantLegacy  = "legacy"

	CacheMemory   = "memory"
	CacheFile     = "file"
	CacheRedis    = "redis"
	CachePostgres = "postgres"

	PolicyQueue  = "queue"
	PolicyReject = "reject"
)

// Loadは環境変数
func Load() (Config, error) {
	timeout, err := durationOr("CART_API_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := durationOr("CACHE_TTL", 0)
	if err != nil {
		return Config{}, err
	}
	idleTTL, err := durationOr("SESSION_IDLE_TTL", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}
	redisDB, err := intOr("REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}
	rps, err := floatOr("RATELIMIT_USER_RPS", 0)
	if err != nil {
		return Config{}, err
	}
	burst, err := intOr("RATELIMIT_USER_BURST", 10)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: os.Getenv("PORT"),

		CartAPIURL:     strings.TrimRight(os.Getenv("CART_API_URL"), "/"),
		CartAPIVariant: getenv("CART_API_VARIANT", VariantSession),
		CartAPITimeout: timeout,

		JWTSecret: os.Getenv("JWT_SECRET"),

		GoEnv:    getenv("GO_ENV", "dev"),
		FEURL:    getenv("FE_URL", "http://localhost:3000"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		CacheDriver: getenv("CACHE_DRIVER", CacheMemory),
		CacheDir:    getenv("CACHE_DIR", "./.cartcache"),
		CacheTTL:    cacheTTL,
		RedisAddr:   getenv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     redisDB,

		OpPolicy:       getenv("CART_OP_POLICY", PolicyQueue),
		SessionIdleTTL: idleTTL,

		RateLimitRPS:   rps,
		RateLimitBurst: burst,
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.CartAPIURL == "" {
		return Config{}, fmt.Errorf("CART_API_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	//選択肢チェック
	switch cfg.CartAPIVariant {
	case VariantSession, VariantLegacy:
	default:
		return Config{}, fmt.Errorf("CART_API_VARIANT must be %s or %s", VariantSession, VariantLegacy)
	}
	switch cfg.CacheDriver {
	case CacheMemory, CacheFile, CacheRedis, CachePostgres:
	default:
		return Config{}, fmt.Errorf("CACHE_DRIVER %q is not supported", cfg.CacheDriver)
	}
	switch cfg.OpPolicy {
	case PolicyQueue, PolicyReject:
	default:
		return Config{}, fmt.Errorf("CART_OP_POLICY must be %s or %s", PolicyQueue, PolicyReject)
	}

	if cfg.RateLimitRPS < 0 || cfg.RateLimitBurst < 1 {
		return Config{}, fmt.Errorf("RATELIMIT_USER_RPS must be >= 0 and RATELIMIT_USER_BURST >= 1")
	}

	return cfg, nil
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func intOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func floatOr(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return f, nil
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}
