// Package app wires the collaborators together and runs the two entry
// modes: the bus worker and the local batch run.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tgagor/groundsight/internal/blob"
	"github.com/tgagor/groundsight/internal/bus"
	"github.com/tgagor/groundsight/internal/config"
	"github.com/tgagor/groundsight/internal/detect"
	"github.com/tgagor/groundsight/internal/geocode"
	"github.com/tgagor/groundsight/internal/ocr"
	"github.com/tgagor/groundsight/internal/pipeline"
)

// errorBackoff throttles the consume loop after transport errors.
const errorBackoff = 5 * time.Second

// Run starts the bus worker and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	pipe, closeDetector, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer closeDetector()

	fetcher, err := buildFetcher(cfg)
	if err != nil {
		return err
	}

	consumer := bus.NewConsumer(cfg.Brokers, cfg.InputTopic, cfg.Group)
	defer consumer.Close()
	producer := bus.NewProducer(cfg.Brokers, cfg.OutputTopic)
	defer producer.Close()

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("input_topic", cfg.InputTopic).
		Str("output_topic", cfg.OutputTopic).
		Str("worker", cfg.WorkerID).
		Msg("Worker started, polling")

	for {
		task, err := consumer.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("Shutting down")
				return nil
			}
			log.Error().Err(err).Msg("Failed to read task")
			if !errors.Is(err, bus.ErrBadTask) {
				sleep(ctx, errorBackoff)
			}
			continue
		}

		processTask(ctx, task, fetcher, pipe, producer, cfg.WorkerID)
	}
}

// processTask runs one task end to end. Every failure is terminal for the
// task only: it is logged and nothing is emitted.
func processTask(ctx context.Context, task *bus.Task, fetcher blob.Fetcher,
	pipe *pipeline.Pipeline, producer *bus.Producer, workerID string) {

	log.Info().Str("image_id", task.ImageID).Str("image_url", task.ImageURL).Msg("Received task")

	data, err := fetcher.Get(ctx, task.ImageURL)
	if err != nil {
		log.Error().Err(err).Str("image_id", task.ImageID).Msg("Failed to fetch image")
		return
	}

	out, err := pipe.Process(ctx, data, pipeline.ParseMetadata(task.Metadata))
	if err != nil {
		log.Error().Err(err).Str("image_id", task.ImageID).Msg("Processing failed")
		return
	}

	for _, dr := range out.Detections {
		result := bus.NewResult(task.ImageID, dr, task.Metadata, workerID, time.Now())
		if err := producer.Emit(ctx, result); err != nil {
			log.Error().Err(err).Str("image_id", task.ImageID).Msg("Failed to emit result")
		}
	}

	log.Info().Str("image_id", task.ImageID).
		Int("detections", len(out.Detections)).
		Bool("image_geolocation", out.ImageGeolocation != nil).
		Msg("Processed image")
}

// buildPipeline assembles the processing core from config. The returned
// closer releases the detector model, if any.
func buildPipeline(cfg config.Config) (*pipeline.Pipeline, func(), error) {
	var det detect.Detector = detect.Stub{}
	closer := func() {}

	if cfg.ModelPath != "" {
		onnx, err := detect.NewONNX(detect.ONNXConfig{
			ModelPath: cfg.ModelPath,
			Labels:    cfg.ModelLabels,
		})
		if err != nil {
			return nil, nil, err
		}
		det = onnx
		closer = onnx.Close
	} else {
		log.Warn().Msg("No detection model configured, using stub detector")
	}

	pipe := pipeline.New(det)
	if cfg.OCREnabled {
		pipe.OCR = ocr.NewTesseract()
	}
	if cfg.GeocodeURL != "" {
		pipe.Geocoder = geocode.NewClient(cfg.GeocodeURL)
	}
	return pipe, closer, nil
}

func buildFetcher(cfg config.Config) (blob.Fetcher, error) {
	if !cfg.BlobConfigured() {
		log.Warn().Msg("Object store credentials not provided, reading bare paths from local filesystem")
		return blob.Local{}, nil
	}
	return blob.NewStore(cfg.BlobEndpoint, cfg.BlobAccessKey, cfg.BlobSecretKey, cfg.BlobBucket)
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
