package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "STORE_DRIVER", "REDIS_ADDR", "KAFKA_BROKERS", "OUTBOX_BATCH", "OUTBOX_INTERVAL", "SEED_DEMO", "CACHESYNC_WORKERS"} {
		t.Setenv(k, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 100, cfg.OutboxBatch)
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxInterval)
	assert.False(t, cfg.SeedDemo)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("OUTBOX_BATCH", "25")
	t.Setenv("OUTBOX_INTERVAL", "2s")
	t.Setenv("SEED_DEMO", "true")
	t.Setenv("CACHESYNC_WORKERS", "8")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 25, cfg.OutboxBatch)
	assert.Equal(t, 2*time.Second, cfg.OutboxInterval)
	assert.True(t, cfg.SeedDemo)
	assert.Equal(t, 8, cfg.CacheSyncWorkers)
}

func TestFromEnvRejects(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknownDriver", key: "STORE_DRIVER", val: "mongo"},
		{name: "zeroBatch", key: "OUTBOX_BATCH", val: "0"},
		{name: "textBatch", key: "OUTBOX_BATCH", val: "many"},
		{name: "badInterval", key: "OUTBOX_INTERVAL", val: "soon"},
		{name: "badSeed", key: "SEED_DEMO", val: "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := FromEnv()
			assert.ErrorContains(t, err, tt.key)
		})
	}
}
