// Package bus carries the Kafka wire schemas and thin consumer/producer
// wrappers. One task comes in per image; one result goes out per detection.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/tgagor/groundsight/internal/detect"
	"github.com/tgagor/groundsight/internal/geo"
	"github.com/tgagor/groundsight/internal/pipeline"
)

// ErrBadTask marks a message that was read and committed but cannot be
// processed. Callers skip it without backing off.
var ErrBadTask = errors.New("bad task message")

// Task is one inbound analysis request.
type Task struct {
	ImageID  string          `json:"image_id"`
	ImageURL string          `json:"image_url"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Validate checks the required task fields.
func (t *Task) Validate() error {
	if t.ImageID == "" {
		return fmt.Errorf("task missing image_id")
	}
	if t.ImageURL == "" {
		return fmt.Errorf("task missing image_url")
	}
	return nil
}

// Result is one outbound message, one per detection.
type Result struct {
	ImageID     string           `json:"image_id"`
	Detection   detect.Detection `json:"detection"`
	Geolocation *geo.Location    `json:"geolocation"`
	Address     *string          `json:"address"`
	Metadata    json.RawMessage  `json:"metadata"`
	Worker      string           `json:"worker"`
	ProcessedAt string           `json:"processed_at"`
}

// NewResult builds the result envelope for one detection. The timestamp is
// UTC RFC3339 to second precision.
func NewResult(imageID string, dr pipeline.DetectionResult, metadata json.RawMessage,
	worker string, now time.Time) Result {

	return Result{
		ImageID:     imageID,
		Detection:   dr.Detection,
		Geolocation: dr.Geolocation,
		Address:     dr.Address,
		Metadata:    metadata,
		Worker:      worker,
		ProcessedAt: now.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// Consumer reads tasks from the input topic as part of a consumer group.
type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, group string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     group,
			StartOffset: kafka.FirstOffset,
			MinBytes:    1,
			MaxBytes:    10 << 20,
		}),
	}
}

// Next blocks for the next task. A malformed or invalid message is returned
// as an error with a nil task so the caller can skip it; the offset is
// already committed by the group reader.
func (c *Consumer) Next(ctx context.Context) (*Task, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, err
	}

	var task Task
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		return nil, fmt.Errorf("%w at offset %d: %v", ErrBadTask, msg.Offset, err)
	}
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("%w at offset %d: %v", ErrBadTask, msg.Offset, err)
	}
	return &task, nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Producer writes results to the output topic, keyed by image id so all
// detections of one image land in one partition.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Emit publishes one result.
func (p *Producer) Emit(ctx context.Context, r Result) error {
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(r.ImageID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	log.Debug().Str("image_id", r.ImageID).Msg("Emitted result")
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
