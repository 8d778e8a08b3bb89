package etl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// InputRecord represents a single row of the input dataset
type InputRecord struct {
	RecordID string `parquet:"record_id" json:"record_id"`
	DataJSON string `parquet:"data_json" json:"data_json"`
}

// OutputRecord is the redacted form of an InputRecord
type OutputRecord struct {
	RecordID         string `parquet:"record_id" json:"record_id"`
	RedactedDataJSON string `parquet:"redacted_data_json" json:"redacted_data_json"`
	IsPII            bool   `parquet:"is_pii" json:"is_pii"`
}

// Source yields input records. Read returns io.EOF when exhausted.
type Source interface {
	Read() (*InputRecord, error)
	Close() error
}

// Sink accepts redacted records
type Sink interface {
	Name() string
	Write(ctx context.Context, records []OutputRecord) error
	Close() error
}

// MaxReportedErrors caps ProcessingResult.Errors. SkippedRows keeps the full count.
const MaxReportedErrors = 100

// ProcessingResult represents the result of processing a dataset
type ProcessingResult struct {
	TotalRecords   int64         `json:"total_records"`
	PIIRecords     int64         `json:"pii_records"`
	CompositeHits  int64         `json:"composite_hits"`
	DecodeFailures int64         `json:"decode_failures"`
	SkippedRows    int64         `json:"skipped_rows"`
	Duration       time.Duration `json:"duration"`
	RedactionTime  time.Duration `json:"redaction_time"`
	WriteTime      time.Duration `json:"write_time"`
	Errors         []string      `json:"errors,omitempty"`
}

// Config contains ETL pipeline configuration
type Config struct {
	BatchSize      int `yaml:"batch_size" mapstructure:"batch_size"`           // 1000
	WorkerCount    int `yaml:"worker_count" mapstructure:"worker_count"`       // 4
	ProgressReport int `yaml:"progress_report" mapstructure:"progress_report"` // 10000
}

// ProcessingStats tracks real-time processing statistics
type ProcessingStats struct {
	StartTime      time.Time `json:"start_time"`
	RecordsRead    int64     `json:"records_read"`
	RecordsWritten int64     `json:"records_written"`
	CurrentBatch   int64     `json:"current_batch"`
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".parquet":
		return FormatParquet
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON
	default:
		return FormatCSV // Default to CSV
	}
}

// OutputPath returns the configured output path, or redacted_output with the
// input's extension when none is configured
func OutputPath(inputPath, configured string) string {
	if configured != "" {
		return configured
	}
	ext := filepath.Ext(inputPath)
	if ext == "" {
		ext = ".csv"
	}
	return "redacted_output" + ext
}

// ErrSameFile is returned when the output would overwrite the input dataset
var ErrSameFile = errors.New("output path resolves to the input dataset")

// CheckPaths refuses an output path that names the same file as the input.
// A missing output file is fine.
func CheckPaths(inputPath, outputPath string) error {
	in, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("input file is not readable: %w", err)
	}
	out, err := os.Stat(outputPath)
	if err != nil {
		return nil
	}
	if os.SameFile(in, out) {
		return fmt.Errorf("%w: %s", ErrSameFile, outputPath)
	}
	return nil
}
