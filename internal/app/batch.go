package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/tgagor/groundsight/internal/config"
	"github.com/tgagor/groundsight/internal/discovery"
	"github.com/tgagor/groundsight/internal/pipeline"
)

// BatchConfig drives a local directory run: every image under InputDir goes
// through the same pipeline as a bus task, and results are written as JSON
// lines instead of being emitted to a topic.
type BatchConfig struct {
	InputDir   string
	OutputFile string // empty writes to stdout
	Workers    int
	IgnoreFile string

	ModelPath   string
	ModelLabels []string
	OCREnabled  bool
	GeocodeURL  string
}

// batchRecord is one JSONL line of batch output.
type batchRecord struct {
	ImageID string          `json:"image_id"`
	Output  pipeline.Output `json:"output"`
	Error   string          `json:"error,omitempty"`
}

// RunBatch processes a local directory with a pool of workers.
func RunBatch(ctx context.Context, cfg BatchConfig) error {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	pipe, closeDetector, err := buildPipeline(config.Config{
		ModelPath:   cfg.ModelPath,
		ModelLabels: cfg.ModelLabels,
		OCREnabled:  cfg.OCREnabled,
		GeocodeURL:  cfg.GeocodeURL,
	})
	if err != nil {
		return err
	}
	defer closeDetector()

	out := os.Stdout
	if cfg.OutputFile != "" {
		f, err := os.Create(cfg.OutputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	var encMu sync.Mutex

	matcher, err := discovery.NewIgnoreMatcher(cfg.IgnoreFile, cfg.InputDir)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load .groundsightignore")
		matcher = &discovery.IgnoreMatcher{}
	}

	files := make(chan discovery.File, 1000)

	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetDescription("Processing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(10),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
	)

	go discovery.WalkFiles(cfg.InputDir, files, matcher)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range files {
				rec := processLocal(ctx, pipe, file)

				encMu.Lock()
				if err := enc.Encode(rec); err != nil {
					log.Error().Err(err).Str("file", file.Path).Msg("Failed to write record")
				}
				encMu.Unlock()
				bar.Add(1)
			}
		}()
	}

	wg.Wait()
	bar.Finish()
	return nil
}

func processLocal(ctx context.Context, pipe *pipeline.Pipeline, file discovery.File) batchRecord {
	rec := batchRecord{ImageID: file.RelativePath}

	data, err := os.ReadFile(file.Path)
	if err != nil {
		log.Error().Err(err).Str("file", file.Path).Msg("Failed to read file")
		rec.Error = err.Error()
		return rec
	}

	out, err := pipe.Process(ctx, data, pipeline.Metadata{})
	if err != nil {
		log.Error().Err(err).Str("file", file.Path).Msg("Failed to process file")
		rec.Error = err.Error()
		return rec
	}
	rec.Output = out
	return rec
}
