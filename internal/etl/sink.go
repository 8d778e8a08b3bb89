package etl

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/segmentio/parquet-go"
)

// OpenFileSink creates the output dataset file in the given format
func OpenFileSink(path string, format FileFormat) (Sink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	switch format {
	case FormatCSV:
		sink, err := newCSVSink(file)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case FormatParquet:
		return &parquetSink{file: file, writer: parquet.NewGenericWriter[OutputRecord](file)}, nil
	case FormatJSON:
		buf := bufio.NewWriter(file)
		enc := json.NewEncoder(buf)
		enc.SetEscapeHTML(false)
		return &jsonSink{file: file, buf: buf, enc: enc}, nil
	default:
		file.Close()
		return nil, fmt.Errorf("unsupported file format: %s", format)
	}
}

// csvSink writes record_id,redacted_data_json,is_pii rows
type csvSink struct {
	file   *os.File
	writer *csv.Writer
}

func newCSVSink(file *os.File) (*csvSink, error) {
	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"record_id", "redacted_data_json", "is_pii"}); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	return &csvSink{file: file, writer: writer}, nil
}

func (s *csvSink) Name() string { return "csv:" + s.file.Name() }

func (s *csvSink) Write(_ context.Context, records []OutputRecord) error {
	for _, r := range records {
		if err := s.writer.Write([]string{r.RecordID, r.RedactedDataJSON, strconv.FormatBool(r.IsPII)}); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	s.writer.Flush()
	return s.writer.Error()
}

func (s *csvSink) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// parquetSink writes OutputRecord rows
type parquetSink struct {
	file   *os.File
	writer *parquet.GenericWriter[OutputRecord]
}

func (s *parquetSink) Name() string { return "parquet:" + s.file.Name() }

func (s *parquetSink) Write(_ context.Context, records []OutputRecord) error {
	if _, err := s.writer.Write(records); err != nil {
		return fmt.Errorf("failed to write Parquet rows: %w", err)
	}
	return nil
}

func (s *parquetSink) Close() error {
	if err := s.writer.Close(); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to finalize Parquet file: %w", err)
	}
	return s.file.Close()
}

// jsonSink writes one JSON object per line
type jsonSink struct {
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
}

func (s *jsonSink) Name() string { return "json:" + s.file.Name() }

func (s *jsonSink) Write(_ context.Context, records []OutputRecord) error {
	for _, r := range records {
		if err := s.enc.Encode(r); err != nil {
			return fmt.Errorf("failed to write JSON line: %w", err)
		}
	}
	return nil
}

func (s *jsonSink) Close() error {
	if err := s.buf.Flush(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
