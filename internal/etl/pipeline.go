package etl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/raaihank/pii-sentinel/internal/metrics"
	"github.com/raaihank/pii-sentinel/internal/privacy"
)

// emptyPayload is written for records whose payload could not be decoded
const emptyPayload = "{}"

// Pipeline reads records, redacts them and writes them to every sink
type Pipeline struct {
	detector *privacy.Detector
	sinks    []Sink
	metrics  *metrics.Metrics
	config   *Config
	logger   *zap.Logger
	stats    *ProcessingStats
	mu       sync.RWMutex
}

// NewPipeline creates a new ETL pipeline
func NewPipeline(
	detector *privacy.Detector,
	sinks []Sink,
	m *metrics.Metrics,
	config *Config,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		detector: detector,
		sinks:    sinks,
		metrics:  m,
		config:   config,
		logger:   logger,
		stats: &ProcessingStats{
			StartTime: time.Now(),
		},
	}
}

// Redacted is the outcome of redacting one input record
type Redacted struct {
	Output       OutputRecord
	Result       privacy.RecordResult
	DecodeFailed bool
}

// Redact decodes, classifies and re-serializes one record. It never fails:
// an undecodable payload becomes an empty, non-PII mapping.
func Redact(detector *privacy.Detector, in InputRecord) Redacted {
	result, err := detector.AnalyzePayload([]byte(in.DataJSON))
	out := Redacted{
		Output:       OutputRecord{RecordID: in.RecordID, IsPII: result.IsPII},
		Result:       result,
		DecodeFailed: err != nil,
	}

	data, err := result.Redacted.MarshalJSON()
	if err != nil {
		// Values come from a decoded payload, so this only happens for
		// records built in code with unencodable values
		out.Output.RedactedDataJSON = emptyPayload
		return out
	}
	out.Output.RedactedDataJSON = string(data)
	return out
}

// ProcessFile processes a dataset file (CSV, Parquet, or JSON lines)
func (p *Pipeline) ProcessFile(ctx context.Context, filePath string) (*ProcessingResult, error) {
	format := DetectFileFormat(filePath)
	p.logger.Info("Starting ETL pipeline",
		zap.String("file", filePath),
		zap.String("format", string(format)),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("workers", p.config.WorkerCount))

	src, err := OpenSource(filePath, format)
	if err != nil {
		return &ProcessingResult{}, err
	}
	defer src.Close()

	return p.Process(ctx, src)
}

// Process drains src in batches
func (p *Pipeline) Process(ctx context.Context, src Source) (*ProcessingResult, error) {
	start := time.Now()
	result := &ProcessingResult{}
	p.resetStats()

	for {
		select {
		case <-ctx.Done():
			result.Duration = time.Since(start)
			return result, ctx.Err()
		default:
		}

		batch, eof, err := p.readBatch(src, result)
		if err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("failed to read batch: %w", err)
		}

		if len(batch) > 0 {
			if err := p.processBatch(ctx, batch, result); err != nil {
				result.Duration = time.Since(start)
				return result, err
			}
		}

		if eof {
			break
		}
	}

	result.Duration = time.Since(start)

	p.logger.Info("ETL pipeline completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("pii_records", result.PIIRecords),
		zap.Int64("composite_hits", result.CompositeHits),
		zap.Int64("decode_failures", result.DecodeFailures),
		zap.Int64("skipped_rows", result.SkippedRows),
		zap.Duration("total_duration", result.Duration),
		zap.Duration("redaction_time", result.RedactionTime),
		zap.Duration("write_time", result.WriteTime))

	return result, nil
}

// readBatch reads up to BatchSize records. Rows the source marks as
// skippable are logged and counted.
func (p *Pipeline) readBatch(src Source, result *ProcessingResult) ([]InputRecord, bool, error) {
	batch := make([]InputRecord, 0, p.config.BatchSize)

	for len(batch) < p.config.BatchSize {
		record, err := src.Read()
		if err == io.EOF {
			return batch, true, nil
		}
		if errors.Is(err, ErrSkipRow) {
			p.logger.Warn("Skipping unreadable row", zap.Error(err))
			result.SkippedRows++
			if len(result.Errors) < MaxReportedErrors {
				result.Errors = append(result.Errors, err.Error())
			}
			continue
		}
		if err != nil {
			return batch, false, err
		}
		batch = append(batch, *record)
	}

	return batch, false, nil
}

// processBatch redacts a batch across the worker pool and writes it in input order
func (p *Pipeline) processBatch(ctx context.Context, batch []InputRecord, result *ProcessingResult) error {
	redactStart := time.Now()
	redacted := make([]Redacted, len(batch))

	g := new(errgroup.Group)
	g.SetLimit(max(p.config.WorkerCount, 1))
	for i := range batch {
		g.Go(func() error {
			redacted[i] = Redact(p.detector, batch[i])
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(redactStart)
	result.RedactionTime += elapsed
	p.metrics.ObserveBatch(elapsed)

	outputs := make([]OutputRecord, len(redacted))
	for i, r := range redacted {
		outputs[i] = r.Output
		p.metrics.ObserveResult(r.Result, r.DecodeFailed)

		if r.DecodeFailed {
			result.DecodeFailures++
			p.logger.Warn("Record payload could not be decoded, emitting empty mapping",
				zap.String("record_id", r.Output.RecordID))
		}
		if r.Result.IsPII {
			result.PIIRecords++
		}
		if r.Result.Composite {
			result.CompositeHits++
		}
	}

	writeStart := time.Now()
	for _, sink := range p.sinks {
		if err := sink.Write(ctx, outputs); err != nil {
			return fmt.Errorf("sink %s write failed: %w", sink.Name(), err)
		}
	}
	result.WriteTime += time.Since(writeStart)

	before := result.TotalRecords
	result.TotalRecords += int64(len(batch))
	p.updateStats(int64(len(batch)))

	if p.config.ProgressReport > 0 && before/int64(p.config.ProgressReport) != result.TotalRecords/int64(p.config.ProgressReport) {
		p.reportProgress(result)
	}

	p.logger.Debug("Batch processed",
		zap.Int("batch_size", len(batch)),
		zap.Duration("redaction_time", elapsed))

	return nil
}

// reportProgress reports current processing progress
func (p *Pipeline) reportProgress(result *ProcessingResult) {
	elapsed := time.Since(p.GetStats().StartTime)
	rate := float64(result.TotalRecords) / elapsed.Seconds()

	p.logger.Info("Processing progress",
		zap.Int64("records_processed", result.TotalRecords),
		zap.Int64("pii_records", result.PIIRecords),
		zap.Float64("rate_per_sec", rate),
		zap.Duration("elapsed", elapsed))
}

func (p *Pipeline) updateStats(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.RecordsRead += n
	p.stats.RecordsWritten += n
	p.stats.CurrentBatch++
}

// resetStats resets processing statistics
func (p *Pipeline) resetStats() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats = &ProcessingStats{
		StartTime: time.Now(),
	}
}

// GetStats returns current processing statistics
func (p *Pipeline) GetStats() *ProcessingStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := *p.stats
	return &stats
}
