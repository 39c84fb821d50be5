package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, name := range []string{
		"SERVICE_NAME", "HTTP_PORT", "KAFKA_BROKERS", "ORDERING_RETRY_ATTEMPTS",
		"ORDERING_RETRY_DELAY", "BOOTSTRAP_DELAY", "BOOTSTRAP_ENABLED", "LIVE_DEBOUNCE",
		"CHANGE_CHANNEL", "WRITE_POSTGRES_DSN", "READ_POSTGRES_DSN",
	} {
		t.Setenv(name, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "shopgate-replicator", cfg.ServiceName)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "db.changes", cfg.ChangeChannel)
	assert.Equal(t, 20, cfg.OrderingRetryAttempts)
	assert.Equal(t, time.Second, cfg.OrderingRetryDelay)
	assert.Equal(t, 5*time.Second, cfg.BootstrapDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.LiveDebounce)
	assert.True(t, cfg.BootstrapEnabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("ORDERING_RETRY_ATTEMPTS", "5")
	t.Setenv("ORDERING_RETRY_DELAY", "250ms")
	t.Setenv("BOOTSTRAP_ENABLED", "off")
	t.Setenv("CHANGE_CHANNEL", "replica.changes")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5, cfg.OrderingRetryAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.OrderingRetryDelay)
	assert.False(t, cfg.BootstrapEnabled)
	assert.Equal(t, "replica.changes", cfg.ChangeChannel)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("ORDERING_RETRY_DELAY", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "ORDERING_RETRY_DELAY")

	t.Setenv("ORDERING_RETRY_DELAY", "")
	t.Setenv("ORDERING_RETRY_ATTEMPTS", "0")
	_, err = Load()
	assert.ErrorContains(t, err, "ORDERING_RETRY_ATTEMPTS")
}

func TestValidateRequiresBothStores(t *testing.T) {
	err := Config{WritePostgresDSN: "postgres://write"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READ_POSTGRES_DSN")
	assert.NotContains(t, err.Error(), "WRITE_POSTGRES_DSN")

	assert.NoError(t, Config{WritePostgresDSN: "a", ReadPostgresDSN: "b"}.Validate())
}
