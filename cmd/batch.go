package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tgagor/groundsight/internal/app"
)

var (
	batchInput   string
	batchOutput  string
	batchWorkers int
	batchIgnore  string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process a local directory of images instead of consuming from Kafka",
	Long: `Batch mode runs the same pipeline over every image found under the
input directory and writes one JSON line per image. Useful for backfills and
for exercising a model against a local corpus.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := app.BatchConfig{
			InputDir:    batchInput,
			OutputFile:  batchOutput,
			Workers:     batchWorkers,
			IgnoreFile:  batchIgnore,
			ModelPath:   modelPath,
			ModelLabels: modelLabels,
			OCREnabled:  ocrEnabled,
			GeocodeURL:  geocodeURL,
		}

		log.Info().
			Str("input", cfg.InputDir).
			Str("output", cfg.OutputFile).
			Int("workers", cfg.Workers).
			Msg("Starting batch run")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := app.RunBatch(ctx, cfg); err != nil {
			log.Fatal().Err(err).Msg("Batch run failed")
		}
	},
}

func init() {
	batchCmd.Flags().StringVarP(&batchInput, "input", "i", ".", "Source directory path")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "Output JSONL file (default stdout)")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "j", 0, "Number of concurrent workers (0 = auto)")
	batchCmd.Flags().StringVar(&batchIgnore, "ignore-file", "", "Path to .groundsightignore file")
	rootCmd.AddCommand(batchCmd)
}
