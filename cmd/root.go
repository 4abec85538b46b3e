package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tgagor/groundsight/internal/app"
	"github.com/tgagor/groundsight/internal/config"
)

var (
	brokers     []string
	inputTopic  string
	outputTopic string
	group       string
	workerID    string
	modelPath   string
	modelLabels []string
	ocrEnabled  bool
	geocodeURL  string
)

var rootCmd = &cobra.Command{
	Use:   "groundsight",
	Short: "Geolocate detected objects in images streamed over Kafka",
	Long: `Groundsight is a stateless stream worker. It consumes image-analysis
tasks from Kafka, fetches the image from MinIO/S3 or the local filesystem,
detects objects, geolocates each detection through a cascade of estimators
(EXIF-corrected, INS ray-casting, visual retrieval, coarse regression), and
emits one result message per detection.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Setup logging
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	},
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.FromEnv()
		if cmd.Flags().Changed("brokers") {
			cfg.Brokers = brokers
		}
		if cmd.Flags().Changed("input-topic") {
			cfg.InputTopic = inputTopic
		}
		if cmd.Flags().Changed("output-topic") {
			cfg.OutputTopic = outputTopic
		}
		if cmd.Flags().Changed("group") {
			cfg.Group = group
		}
		if cmd.Flags().Changed("worker-id") {
			cfg.WorkerID = workerID
		}
		cfg.ModelPath = modelPath
		cfg.ModelLabels = modelLabels
		cfg.OCREnabled = ocrEnabled
		cfg.GeocodeURL = geocodeURL

		log.Info().
			Str("brokers", strings.Join(cfg.Brokers, ",")).
			Str("input_topic", cfg.InputTopic).
			Str("output_topic", cfg.OutputTopic).
			Str("group", cfg.Group).
			Str("worker_id", cfg.WorkerID).
			Bool("ocr", cfg.OCREnabled).
			Msg("Starting Groundsight")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := app.Run(ctx, cfg); err != nil {
			log.Fatal().Err(err).Msg("Worker failed")
		}
	},
}

func Execute(appName string, version string) {
	rootCmd.Use = appName
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringSliceVar(&brokers, "brokers", nil, "Kafka bootstrap servers (default $KAFKA_BOOTSTRAP_SERVERS)")
	rootCmd.Flags().StringVar(&inputTopic, "input-topic", "", "Task topic (default $KAFKA_INPUT_TOPIC)")
	rootCmd.Flags().StringVar(&outputTopic, "output-topic", "", "Result topic (default $KAFKA_OUTPUT_TOPIC)")
	rootCmd.Flags().StringVar(&group, "group", "", "Consumer group (default $KAFKA_CONSUMER_GROUP)")
	rootCmd.Flags().StringVar(&workerID, "worker-id", "", "Worker id stamped on results (default $WORKER_ID)")
	rootCmd.PersistentFlags().StringVarP(&modelPath, "model", "m", "", "ONNX detection model path (empty = stub detector)")
	rootCmd.PersistentFlags().StringSliceVar(&modelLabels, "labels", nil, "Detection class labels, in model order")
	rootCmd.PersistentFlags().BoolVar(&ocrEnabled, "ocr", false, "Run OCR over each detection")
	rootCmd.PersistentFlags().StringVar(&geocodeURL, "geocode-url", "", "Nominatim base URL (empty disables reverse geocoding)")
}
