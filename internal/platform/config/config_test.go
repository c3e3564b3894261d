package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"CHURNBOARD_ENV", "CHURNBOARD_ADDR", "JWT_SIGNING_KEY", "TOKEN_TTL", "DATABASE_URL",
	"REDIS_URL", "KAFKA_BROKERS", "KAFKA_TOPIC", "PREDICTOR_URL", "PREDICTOR_DEFAULT_MODEL",
	"PREDICTOR_DEFAULT_THRESHOLD_TYPE", "EXPLAIN_SOURCE", "EXPLAIN_WORKERS",
	"S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "OTEL_SAMPLING_RATE", "OTEL_ENABLED",
	"RATE_LIMIT_DISABLED", "RATE_LIMIT_AUTH_REQUESTS", "RATE_LIMIT_AUTH_WINDOW",
	"TRUSTED_PROXY_HOPS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, errs := Load("")
	require.Empty(t, errs)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultDevSigningKey, cfg.Server.JWTSigningKey)
	assert.Equal(t, DefaultModel, cfg.Predictor.DefaultModel)
	assert.Equal(t, DefaultExplainWorkers, cfg.Explain.Workers)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_ProductionRequiresSigningKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHURNBOARD_ENV", "production")

	_, errs := Load("")
	assert.Contains(t, errs, ErrMissingJWTSigningKey)
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
env: production
server:
  addr: ":9090"
  jwt_signing_key: from-file
  token_ttl: 1h
kafka:
  brokers: ["broker-1:9092", "broker-2:9092"]
explain:
  source: s3://models/explain
  workers: 4
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("CHURNBOARD_ADDR", ":7070")

	cfg, errs := Load(path)
	require.Empty(t, errs)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "from-file", cfg.Server.JWTSigningKey)
	assert.Equal(t, time.Hour, cfg.Server.TokenTTL)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "s3://models/explain", cfg.Explain.Source)
	assert.Equal(t, 4, cfg.Explain.Workers)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, errs := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Len(t, errs, 1)
}

func TestLoad_CollectsAllErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("PREDICTOR_URL", "not a url")
	t.Setenv("PREDICTOR_DEFAULT_MODEL", "xgboost")
	t.Setenv("PREDICTOR_DEFAULT_THRESHOLD_TYPE", "recall")
	t.Setenv("EXPLAIN_SOURCE", "ftp://x")
	t.Setenv("EXPLAIN_WORKERS", "0")
	t.Setenv("S3_ACCESS_KEY_ID", "AKIA")
	t.Setenv("OTEL_SAMPLING_RATE", "1.5")

	_, errs := Load("")
	assert.ElementsMatch(t, []error{
		ErrInvalidPredictorURL,
		ErrInvalidDefaultModel,
		ErrInvalidThresholdType,
		ErrInvalidExplainSource,
		ErrInvalidWorkers,
		ErrPartialS3Credentials,
		ErrInvalidSamplingRate,
	}, errs)
}

func TestLoad_RateLimit(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_AUTH_REQUESTS", "0")

	_, errs := Load("")
	assert.Equal(t, []error{ErrInvalidRateLimit}, errs)

	t.Setenv("RATE_LIMIT_DISABLED", "true")
	cfg, errs := Load("")
	require.Empty(t, errs)
	assert.True(t, cfg.RateLimit.Disabled)
	assert.Equal(t, DefaultAuthRateWindow, cfg.RateLimit.AuthWindow)
}

func TestLoad_TrustedProxyHops(t *testing.T) {
	clearEnv(t)

	cfg, errs := Load("")
	require.Empty(t, errs)
	assert.Zero(t, cfg.Server.TrustedProxyHops, "forwarding headers are ignored unless proxies are declared")

	t.Setenv("TRUSTED_PROXY_HOPS", "2")
	cfg, errs = Load("")
	require.Empty(t, errs)
	assert.Equal(t, 2, cfg.Server.TrustedProxyHops)

	t.Setenv("TRUSTED_PROXY_HOPS", "-1")
	_, errs = Load("")
	assert.Equal(t, []error{ErrInvalidProxyHops}, errs)
}

func TestLoad_InvalidNumberIsReported(t *testing.T) {
	clearEnv(t)
	t.Setenv("EXPLAIN_WORKERS", "many")

	_, errs := Load("")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "EXPLAIN_WORKERS")
}

func TestLogSummaryMasksSecrets(t *testing.T) {
	cfg := &Config{
		Database: Database{URL: "postgres://app:hunter2@db:5432/churn"},
		Explain:  Explain{S3AccessKeyID: "AKIAEXAMPLE"},
	}
	summary := cfg.LogSummary()
	assert.NotContains(t, summary["database"], "hunter2")
	assert.Equal(t, "AKIA****", summary["s3_access_key_id"])
}
