package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "")
	t.Setenv("KAFKA_BROKER", "")

	cfg := FromEnv()
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, "images.tasks", cfg.InputTopic)
	assert.Equal(t, "images.results", cfg.OutputTopic)
	assert.Equal(t, "geolocate-worker-group", cfg.Group)
	assert.NotEmpty(t, cfg.WorkerID)
	assert.False(t, cfg.BlobConfigured())
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_BrokerList(t *testing.T) {
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "kafka-1:9092, kafka-2:9092 ,,kafka-3:9092")

	cfg := FromEnv()
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092", "kafka-3:9092"}, cfg.Brokers)
}

func TestFromEnv_LegacyBrokerVar(t *testing.T) {
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "")
	t.Setenv("KAFKA_BROKER", "legacy:9092")

	cfg := FromEnv()
	assert.Equal(t, []string{"legacy:9092"}, cfg.Brokers)
}

func TestFromEnv_WorkerIDFromEnv(t *testing.T) {
	t.Setenv("WORKER_ID", "worker-7")
	assert.Equal(t, "worker-7", FromEnv().WorkerID)
}

func TestFromEnv_Blob(t *testing.T) {
	t.Setenv("MINIO_URL", "http://minio:9000")
	t.Setenv("MINIO_ACCESS_KEY", "ak")
	t.Setenv("MINIO_SECRET_KEY", "sk")
	t.Setenv("MINIO_BUCKET", "images")

	cfg := FromEnv()
	assert.True(t, cfg.BlobConfigured())
	assert.Equal(t, "images", cfg.BlobBucket)
}

func TestValidate(t *testing.T) {
	cfg := Config{Brokers: []string{"b:9092"}, InputTopic: "in", OutputTopic: "out", Group: "g"}
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.Brokers = nil
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.InputTopic = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Group = ""
	assert.Error(t, bad.Validate())
}
