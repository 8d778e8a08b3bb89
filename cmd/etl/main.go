package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/config"
	"github.com/raaihank/pii-sentinel/internal/etl"
	"github.com/raaihank/pii-sentinel/internal/logger"
	"github.com/raaihank/pii-sentinel/internal/privacy"
	"github.com/raaihank/pii-sentinel/internal/sink"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) != 2 {
		fmt.Fprintf(stderr, "Usage: %s <input_dataset>\n", filepath.Base(args[0]))
		fmt.Fprintf(stderr, "\nThe input is a CSV, Parquet or JSON lines file with record_id and data_json columns.\n")
		return 1
	}
	inputFile := args[1]

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	config.Watch(func(updated *config.Config) {
		if err := log.SetLevel(updated.Logging.Level); err == nil {
			log.Info("Log level reloaded", zap.String("level", updated.Logging.Level))
		}
	})

	log.Info("Starting PII Sentinel ETL",
		zap.String("version", version),
		zap.String("input", inputFile))

	result, outputFile, err := process(ctx, cfg, log, inputFile)
	if err != nil {
		log.Error("ETL processing failed", zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "[+] Processed %d records\n", result.TotalRecords)
	fmt.Fprintf(stdout, "[+] PII records: %d\n", result.PIIRecords)
	fmt.Fprintf(stdout, "[+] Output saved -> %s\n", outputFile)
	return 0
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: true,
			Path:    cfg.Logging.File.Path,
		}
	}
	return logger.New(loggerConfig)
}

// process wires the detector, sinks and pipeline for one input file
func process(ctx context.Context, cfg *config.Config, log *logger.Logger, inputFile string) (*etl.ProcessingResult, string, error) {
	detector, err := privacy.New(cfg.Privacy, log.WithComponent("privacy"))
	if err != nil {
		return nil, "", err
	}

	outputFile := etl.OutputPath(inputFile, cfg.Output.Path)
	if err := etl.CheckPaths(inputFile, outputFile); err != nil {
		return nil, "", err
	}

	format := etl.FileFormat(cfg.Output.Format)
	if format == "" {
		format = etl.DetectFileFormat(outputFile)
	}

	sinks, err := sink.Open(ctx, cfg, outputFile, format, log.Logger)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open sinks: %w", err)
	}

	pipeline := etl.NewPipeline(
		detector,
		sinks,
		nil,
		&etl.Config{
			BatchSize:      cfg.Pipeline.BatchSize,
			WorkerCount:    cfg.Pipeline.Workers,
			ProgressReport: cfg.Pipeline.ProgressReport,
		},
		log.WithComponent("etl").Logger,
	)

	result, err := pipeline.ProcessFile(ctx, inputFile)
	if closeErr := sinks.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("failed to close sinks: %w", closeErr)
	}
	if err != nil {
		return result, outputFile, err
	}

	if result.SkippedRows > 0 {
		log.Warn("Processing completed with skipped rows", zap.Int64("skipped", result.SkippedRows))
	}

	return result, outputFile, nil
}
