package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Analytics     AnalyticsConfig
	Scoring       ScoringConfig
	Admission     AdmissionConfig
	Notifications NotificationConfig
	RateLimit     RateLimitConfig
	Exports       ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig describes how access tokens issued by the hosted auth provider are verified.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AnalyticsConfig governs feature flagging and cache behaviour for the application summary.
type AnalyticsConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

// ScoringConfig holds the rubric thresholds.
type ScoringConfig struct {
	PremiumMin     int
	VerifiedMin    int
	AutoApproveMin int
}

// AdmissionConfig toggles submission policies.
type AdmissionConfig struct {
	BlockInvalid bool
	AutoApprove  bool
}

// NotificationConfig configures SMTP delivery and the retry worker.
type NotificationConfig struct {
	Enabled           bool
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPass          string
	From              string
	SkipTLSVerify     bool
	WorkerConcurrency int
	WorkerRetries     int
	RetryInterval     time.Duration
	RetryGrace        time.Duration
}

// RateLimitConfig bounds submission traffic per caller.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
}

// ExportsConfig toggles the application export endpoint.
type ExportsConfig struct {
	Enabled bool
	MaxRows int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Analytics = AnalyticsConfig{
		Enabled:  v.GetBool("ENABLE_ANALYTICS_CACHE"),
		CacheTTL: parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Scoring = ScoringConfig{
		PremiumMin:     v.GetInt("SCORING_PREMIUM_MIN"),
		VerifiedMin:    v.GetInt("SCORING_VERIFIED_MIN"),
		AutoApproveMin: v.GetInt("SCORING_AUTO_APPROVE_MIN"),
	}

	cfg.Admission = AdmissionConfig{
		BlockInvalid: v.GetBool("ADMISSION_BLOCK_INVALID"),
		AutoApprove:  v.GetBool("ADMISSION_AUTO_APPROVE"),
	}

	cfg.Notifications = NotificationConfig{
		Enabled:           v.GetBool("ENABLE_SMTP"),
		SMTPHost:          v.GetString("SMTP_HOST"),
		SMTPPort:          v.GetInt("SMTP_PORT"),
		SMTPUser:          v.GetString("SMTP_USER"),
		SMTPPass:          v.GetString("SMTP_PASS"),
		From:              v.GetString("SMTP_FROM"),
		SkipTLSVerify:     v.GetBool("SMTP_SKIP_TLS_VERIFY"),
		WorkerConcurrency: v.GetInt("NOTIFY_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("NOTIFY_WORKER_RETRIES"),
		RetryInterval:     parseDuration(v.GetString("NOTIFY_RETRY_INTERVAL"), 5*time.Minute),
		RetryGrace:        parseDuration(v.GetString("NOTIFY_RETRY_GRACE"), 2*time.Minute),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled:           v.GetBool("ENABLE_RATE_LIMIT"),
		RequestsPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		Burst:             v.GetInt("RATE_LIMIT_BURST"),
	}

	cfg.Exports = ExportsConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
		MaxRows: v.GetInt("EXPORTS_MAX_ROWS"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "provider_admission")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "authenticated")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_ANALYTICS_CACHE", true)
	v.SetDefault("ANALYTICS_CACHE_TTL", "5m")

	v.SetDefault("SCORING_PREMIUM_MIN", 80)
	v.SetDefault("SCORING_VERIFIED_MIN", 60)
	v.SetDefault("SCORING_AUTO_APPROVE_MIN", 85)

	v.SetDefault("ADMISSION_BLOCK_INVALID", true)
	v.SetDefault("ADMISSION_AUTO_APPROVE", false)

	v.SetDefault("ENABLE_SMTP", false)
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("SMTP_SKIP_TLS_VERIFY", false)
	v.SetDefault("NOTIFY_WORKER_CONCURRENCY", 2)
	v.SetDefault("NOTIFY_WORKER_RETRIES", 3)
	v.SetDefault("NOTIFY_RETRY_INTERVAL", "5m")
	v.SetDefault("NOTIFY_RETRY_GRACE", "2m")

	v.SetDefault("ENABLE_RATE_LIMIT", true)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 6)
	v.SetDefault("RATE_LIMIT_BURST", 3)

	v.SetDefault("ENABLE_EXPORTS", true)
	v.SetDefault("EXPORTS_MAX_ROWS", 5000)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
