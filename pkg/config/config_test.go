package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
environment: test
server:
  port: 9090
  shutdown_timeout: 5s
kafka:
  brokers: ["broker:9092"]
  outcome_topic: outcomes
  run_topic: runs
clickhouse:
  host: ch
  database: tradepulse
redis:
  addr: redis:6379
marketdata:
  base_url: http://md:9100
  rate_per_sec: 5
run:
  symbols: ["AAPL", "MSFT"]
  lookback: 168h
  dispatcher: local
  dispatch_timeout: 5s
aggregator:
  bucket_size: 24h
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))

	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Run.Symbols)
	assert.Equal(t, "local", cfg.Run.Dispatcher)
	assert.Equal(t, 168*time.Hour, cfg.Run.Lookback)
	assert.Equal(t, 24*time.Hour, cfg.Aggregator.BucketSize)
	assert.Equal(t, "outcomes", cfg.Kafka.OutcomeTopic)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsUnknownDispatcher(t *testing.T) {
	body := validYAML + "\n"
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)

	cfg.Run.Dispatcher = "rabbit"
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresSymbols(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	cfg.Run.Symbols = nil
	require.Error(t, cfg.Validate())
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("SYMBOLS", "TSLA,NVDA")
	t.Setenv("DISPATCHER", "redis")
	t.Setenv("MARKETDATA_API_KEY", "k123")

	cfg, err := LoadWithEnv(writeConfig(t, validYAML))

	require.NoError(t, err)
	assert.Equal(t, []string{"TSLA", "NVDA"}, cfg.Run.Symbols)
	assert.Equal(t, "redis", cfg.Run.Dispatcher)
	assert.Equal(t, "k123", cfg.MarketData.APIKey)
}
