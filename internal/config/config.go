// Package config assembles worker configuration from the environment, with
// command-line flags overriding individual fields.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Config is everything the worker needs to run. The processing core only
// ever sees the collaborators built from it, never the config itself.
type Config struct {
	// Kafka
	Brokers     []string
	InputTopic  string
	OutputTopic string
	Group       string
	WorkerID    string

	// Object store; empty access key disables it and bare paths are read
	// from the local filesystem.
	BlobEndpoint  string
	BlobAccessKey string
	BlobSecretKey string
	BlobBucket    string

	// Detector; empty model path selects the stub.
	ModelPath   string
	ModelLabels []string

	// Enrichers
	OCREnabled bool
	GeocodeURL string // empty disables reverse geocoding
}

// FromEnv reads the recognized environment variables and fills defaults.
func FromEnv() Config {
	cfg := Config{
		Brokers:       splitList(envOr("KAFKA_BOOTSTRAP_SERVERS", envOr("KAFKA_BROKER", "localhost:9092"))),
		InputTopic:    envOr("KAFKA_INPUT_TOPIC", "images.tasks"),
		OutputTopic:   envOr("KAFKA_OUTPUT_TOPIC", "images.results"),
		Group:         envOr("KAFKA_CONSUMER_GROUP", "geolocate-worker-group"),
		WorkerID:      envOr("WORKER_ID", ""),
		BlobEndpoint:  os.Getenv("MINIO_URL"),
		BlobAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		BlobSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		BlobBucket:    os.Getenv("MINIO_BUCKET"),
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = defaultWorkerID()
	}
	return cfg
}

// Validate checks the fields the worker cannot run without.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	if c.InputTopic == "" || c.OutputTopic == "" {
		return fmt.Errorf("input and output topics are required")
	}
	if c.Group == "" {
		return fmt.Errorf("consumer group is required")
	}
	return nil
}

// BlobConfigured reports whether object-store credentials are present.
func (c *Config) BlobConfigured() bool {
	return c.BlobAccessKey != "" && c.BlobSecretKey != ""
}

func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + uuid.NewString()[:8]
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
