// Package config loads service configuration. An optional YAML file is read
// with koanf; environment variables take precedence over file values.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvConfigFile names the environment variable holding the optional YAML path.
const EnvConfigFile = "CHURNBOARD_CONFIG"

// Config is the root service configuration.
type Config struct {
	Env       string
	LogLevel  string
	Server    Server
	Database  Database
	Redis     RedisConfig
	Kafka     Kafka
	Predictor Predictor
	Explain   Explain
	RateLimit RateLimit
	Tracing   Tracing
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	RegulatedMode bool
	JWTSigningKey string
	TokenTTL      time.Duration
	ResetTokenTTL time.Duration

	// TrustedProxyHops is how many reverse proxies sit in front of the
	// service. Zero ignores X-Forwarded-For and X-Real-IP entirely.
	TrustedProxyHops int
}

// Database configures the Postgres record store. An empty URL selects the
// in-memory stores.
type Database struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig configures the optional Redis client used for the ranking
// cache and password-reset tokens.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures prediction event fan-out. No brokers selects the
// in-process notifier.
type Kafka struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Predictor configures the remote model-serving endpoint.
type Predictor struct {
	URL                  string
	Timeout              time.Duration
	DefaultModel         string
	DefaultThresholdType string
}

// RateLimit throttles the unauthenticated account endpoints per client IP.
type RateLimit struct {
	Disabled     bool
	AuthRequests int
	AuthWindow   time.Duration
}

// Explain configures where model explanation files live and how rankings
// are computed and cached.
type Explain struct {
	Source        string
	S3Region      string
	S3Endpoint    string
	S3AccessKeyID string
	S3SecretKey   string
	Workers       int
	CacheTTL      time.Duration
	FetchTimeout  time.Duration
}

// Tracing configures OpenTelemetry export.
type Tracing struct {
	Enabled      bool
	Endpoint     string
	SamplingRate float64
	ServiceName  string
}

var (
	ErrMissingJWTSigningKey = errors.New("JWT_SIGNING_KEY is required outside development")
	ErrInvalidPredictorURL  = errors.New("PREDICTOR_URL must be an absolute http(s) URL")
	ErrInvalidExplainSource = errors.New("EXPLAIN_SOURCE must be an http(s) URL or s3://bucket/prefix")
	ErrPartialS3Credentials = errors.New("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
	ErrInvalidWorkers       = errors.New("EXPLAIN_WORKERS must be at least 1")
	ErrInvalidSamplingRate  = errors.New("OTEL_SAMPLING_RATE must be between 0 and 1")
	ErrInvalidDefaultModel  = errors.New("PREDICTOR_DEFAULT_MODEL must be logistic or randomForest")
	ErrInvalidThresholdType = errors.New("PREDICTOR_DEFAULT_THRESHOLD_TYPE must be f1 or cost")
	ErrMissingKafkaTopic    = errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	ErrNonPositiveTokenTTL  = errors.New("TOKEN_TTL must be positive")
	ErrInvalidRateLimit     = errors.New("RATE_LIMIT_AUTH_REQUESTS and RATE_LIMIT_AUTH_WINDOW must be positive")
	ErrInvalidProxyHops     = errors.New("TRUSTED_PROXY_HOPS must not be negative")
)

// Defaults keep a bare checkout runnable with in-memory stores.
const (
	DefaultEnv                 = "development"
	DefaultAddr                = ":8080"
	DefaultDevSigningKey       = "dev-secret-key-change-in-production"
	DefaultTokenTTL            = 15 * time.Minute
	DefaultResetTokenTTL       = 30 * time.Minute
	DefaultPredictorURL        = "http://localhost:5000/predict"
	DefaultPredictorTimeout    = 10 * time.Second
	DefaultModel               = "logistic"
	DefaultThresholdType       = "f1"
	DefaultExplainSource       = "http://localhost:5000/static/explain"
	DefaultExplainWorkers      = 2
	DefaultExplainCacheTTL     = 24 * time.Hour
	DefaultExplainFetchTimeout = 30 * time.Second
	DefaultKafkaTopic          = "churnboard.predictions"
	DefaultKafkaGroupID        = "churnboard-dashboard"
	DefaultSamplingRate        = 0.1
	DefaultServiceName         = "churnboard"
	DefaultRedisPoolSize       = 10
	DefaultRedisMinIdleConns   = 2
	DefaultRedisDialTimeout    = 5 * time.Second
	DefaultRedisIOTimeout      = 3 * time.Second
	DefaultDBMaxOpenConns      = 20
	DefaultDBMaxIdleConns      = 5
	DefaultAuthRateRequests    = 20
	DefaultAuthRateWindow      = time.Minute
)

// FromEnv loads configuration using the file named by CHURNBOARD_CONFIG.
func FromEnv() (*Config, []error) {
	return Load(os.Getenv(EnvConfigFile))
}

// Load reads configuration from an optional YAML file and the environment.
// It returns the config and every validation error found.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	p := &parser{k: k}
	cfg := &Config{
		Env:      p.str("CHURNBOARD_ENV", "env", DefaultEnv),
		LogLevel: p.str("LOG_LEVEL", "log_level", "info"),
		Server: Server{
			Addr:             p.str("CHURNBOARD_ADDR", "server.addr", DefaultAddr),
			RegulatedMode:    p.boolean("REGULATED_MODE", "server.regulated_mode", false),
			JWTSigningKey:    p.str("JWT_SIGNING_KEY", "server.jwt_signing_key", ""),
			TokenTTL:         p.duration("TOKEN_TTL", "server.token_ttl", DefaultTokenTTL),
			ResetTokenTTL:    p.duration("RESET_TOKEN_TTL", "server.reset_token_ttl", DefaultResetTokenTTL),
			TrustedProxyHops: p.integer("TRUSTED_PROXY_HOPS", "server.trusted_proxy_hops", 0),
		},
		Database: Database{
			URL:          p.str("DATABASE_URL", "database.url", ""),
			MaxOpenConns: p.integer("DATABASE_MAX_OPEN_CONNS", "database.max_open_conns", DefaultDBMaxOpenConns),
			MaxIdleConns: p.integer("DATABASE_MAX_IDLE_CONNS", "database.max_idle_conns", DefaultDBMaxIdleConns),
		},
		Redis: RedisConfig{
			URL:          p.str("REDIS_URL", "redis.url", ""),
			PoolSize:     p.integer("REDIS_POOL_SIZE", "redis.pool_size", DefaultRedisPoolSize),
			MinIdleConns: p.integer("REDIS_MIN_IDLE_CONNS", "redis.min_idle_conns", DefaultRedisMinIdleConns),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", "redis.dial_timeout", DefaultRedisDialTimeout),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", "redis.read_timeout", DefaultRedisIOTimeout),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", "redis.write_timeout", DefaultRedisIOTimeout),
		},
		Kafka: Kafka{
			Brokers: p.list("KAFKA_BROKERS", "kafka.brokers"),
			Topic:   p.str("KAFKA_TOPIC", "kafka.topic", DefaultKafkaTopic),
			GroupID: p.str("KAFKA_GROUP_ID", "kafka.group_id", DefaultKafkaGroupID),
		},
		Predictor: Predictor{
			URL:                  p.str("PREDICTOR_URL", "predictor.url", DefaultPredictorURL),
			Timeout:              p.duration("PREDICTOR_TIMEOUT", "predictor.timeout", DefaultPredictorTimeout),
			DefaultModel:         p.str("PREDICTOR_DEFAULT_MODEL", "predictor.default_model", DefaultModel),
			DefaultThresholdType: p.str("PREDICTOR_DEFAULT_THRESHOLD_TYPE", "predictor.default_threshold_type", DefaultThresholdType),
		},
		Explain: Explain{
			Source:        p.str("EXPLAIN_SOURCE", "explain.source", DefaultExplainSource),
			S3Region:      p.str("S3_REGION", "explain.s3_region", "us-east-1"),
			S3Endpoint:    p.str("S3_ENDPOINT", "explain.s3_endpoint", ""),
			S3AccessKeyID: p.str("S3_ACCESS_KEY_ID", "explain.s3_access_key_id", ""),
			S3SecretKey:   p.str("S3_SECRET_ACCESS_KEY", "explain.s3_secret_access_key", ""),
			Workers:       p.integer("EXPLAIN_WORKERS", "explain.workers", DefaultExplainWorkers),
			CacheTTL:      p.duration("EXPLAIN_CACHE_TTL", "explain.cache_ttl", DefaultExplainCacheTTL),
			FetchTimeout:  p.duration("EXPLAIN_FETCH_TIMEOUT", "explain.fetch_timeout", DefaultExplainFetchTimeout),
		},
		RateLimit: RateLimit{
			Disabled:     p.boolean("RATE_LIMIT_DISABLED", "rate_limit.disabled", false),
			AuthRequests: p.integer("RATE_LIMIT_AUTH_REQUESTS", "rate_limit.auth_requests", DefaultAuthRateRequests),
			AuthWindow:   p.duration("RATE_LIMIT_AUTH_WINDOW", "rate_limit.auth_window", DefaultAuthRateWindow),
		},
		Tracing: Tracing{
			Enabled:      p.boolean("OTEL_ENABLED", "tracing.enabled", false),
			Endpoint:     p.str("OTEL_EXPORTER_OTLP_ENDPOINT", "tracing.endpoint", ""),
			SamplingRate: p.float("OTEL_SAMPLING_RATE", "tracing.sampling_rate", DefaultSamplingRate),
			ServiceName:  p.str("OTEL_SERVICE_NAME", "tracing.service_name", DefaultServiceName),
		},
	}

	if cfg.Server.JWTSigningKey == "" && cfg.IsDevelopment() {
		cfg.Server.JWTSigningKey = DefaultDevSigningKey
	}

	return cfg, append(p.errs, cfg.Validate()...)
}

// IsDevelopment reports whether the service runs in a development or test
// environment. Password reset tokens are only echoed back in this mode.
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.Env) {
	case "development", "dev", "test", "local":
		return true
	}
	return false
}

// Validate checks cross-field constraints and returns every violation.
func (c *Config) Validate() []error {
	var errs []error

	if c.Server.JWTSigningKey == "" {
		errs = append(errs, ErrMissingJWTSigningKey)
	}
	if c.Server.TokenTTL <= 0 {
		errs = append(errs, ErrNonPositiveTokenTTL)
	}
	if c.Server.TrustedProxyHops < 0 {
		errs = append(errs, ErrInvalidProxyHops)
	}
	if u, err := url.Parse(c.Predictor.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ErrInvalidPredictorURL)
	}
	if c.Predictor.DefaultModel != "logistic" && c.Predictor.DefaultModel != "randomForest" {
		errs = append(errs, ErrInvalidDefaultModel)
	}
	if c.Predictor.DefaultThresholdType != "f1" && c.Predictor.DefaultThresholdType != "cost" {
		errs = append(errs, ErrInvalidThresholdType)
	}
	if !validExplainSource(c.Explain.Source) {
		errs = append(errs, ErrInvalidExplainSource)
	}
	if (c.Explain.S3AccessKeyID == "") != (c.Explain.S3SecretKey == "") {
		errs = append(errs, ErrPartialS3Credentials)
	}
	if c.Explain.Workers < 1 {
		errs = append(errs, ErrInvalidWorkers)
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		errs = append(errs, ErrInvalidSamplingRate)
	}
	if !c.RateLimit.Disabled && (c.RateLimit.AuthRequests < 1 || c.RateLimit.AuthWindow <= 0) {
		errs = append(errs, ErrInvalidRateLimit)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, ErrMissingKafkaTopic)
	}

	return errs
}

// LogSummary returns a loggable view of the configuration with secrets masked.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"env":              c.Env,
		"addr":             c.Server.Addr,
		"trusted_proxies":  strconv.Itoa(c.Server.TrustedProxyHops),
		"database":         maskURL(c.Database.URL),
		"redis":            maskURL(c.Redis.URL),
		"kafka_brokers":    strings.Join(c.Kafka.Brokers, ","),
		"predictor_url":    c.Predictor.URL,
		"explain_source":   c.Explain.Source,
		"s3_access_key_id": maskSecret(c.Explain.S3AccessKeyID),
		"tracing_enabled":  strconv.FormatBool(c.Tracing.Enabled),
	}
}

func validExplainSource(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https", "s3":
		return u.Host != ""
	}
	return false
}

func maskURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "****"
	}
	return u.Redacted()
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return s[:4] + "****"
}

// parser resolves each value from env first, then the koanf file, then the
// default, collecting parse errors instead of failing fast.
type parser struct {
	k    *koanf.Koanf
	errs []error
}

func (p *parser) str(envKey, koanfKey, def string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if v := p.k.String(koanfKey); v != "" {
		return v
	}
	return def
}

func (p *parser) integer(envKey, koanfKey string, def int) int {
	if v := os.Getenv(envKey); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s must be a valid integer: %w", envKey, err))
			return def
		}
		return i
	}
	if p.k.Exists(koanfKey) {
		return p.k.Int(koanfKey)
	}
	return def
}

func (p *parser) float(envKey, koanfKey string, def float64) float64 {
	if v := os.Getenv(envKey); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s must be a valid float: %w", envKey, err))
			return def
		}
		return f
	}
	if p.k.Exists(koanfKey) {
		return p.k.Float64(koanfKey)
	}
	return def
}

func (p *parser) boolean(envKey, koanfKey string, def bool) bool {
	if v := os.Getenv(envKey); v != "" {
		switch strings.ToLower(v) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
		p.errs = append(p.errs, fmt.Errorf("%s must be a boolean", envKey))
		return def
	}
	if p.k.Exists(koanfKey) {
		return p.k.Bool(koanfKey)
	}
	return def
}

func (p *parser) duration(envKey, koanfKey string, def time.Duration) time.Duration {
	if v := os.Getenv(envKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s must be a valid duration: %w", envKey, err))
			return def
		}
		return d
	}
	if p.k.Exists(koanfKey) {
		return p.k.Duration(koanfKey)
	}
	return def
}

func (p *parser) list(envKey, koanfKey string) []string {
	if v := os.Getenv(envKey); v != "" {
		var out []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return p.k.Strings(koanfKey)
}
