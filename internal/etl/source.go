package etl

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/segmentio/parquet-go"
)

// ErrSkipRow is returned by a Source for a row that cannot be read but does
// not stop the run
var ErrSkipRow = errors.New("row skipped")

// OpenSource opens a dataset file in the given format
func OpenSource(path string, format FileFormat) (Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	var src Source
	switch format {
	case FormatCSV:
		src, err = newCSVSource(file)
	case FormatParquet:
		src, err = newParquetSource(file)
	case FormatJSON:
		src = newJSONSource(file)
	default:
		err = fmt.Errorf("unsupported file format: %s", format)
	}
	if err != nil {
		file.Close()
		return nil, err
	}
	return src, nil
}

// csvSource reads rows with record_id and data_json columns
type csvSource struct {
	file      *os.File
	reader    *csv.Reader
	idCol     int
	dataCol   int
	rowNumber int64
}

func newCSVSource(file *os.File) (*csvSource, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	src := &csvSource{file: file, reader: reader, idCol: -1, dataCol: -1}
	for i, col := range header {
		switch strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")) {
		case "record_id":
			src.idCol = i
		case "data_json":
			src.dataCol = i
		}
	}
	if src.idCol < 0 || src.dataCol < 0 {
		return nil, fmt.Errorf("CSV header must contain record_id and data_json columns, got %v", header)
	}
	return src, nil
}

func (s *csvSource) Read() (*InputRecord, error) {
	row, err := s.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	s.rowNumber++
	if err != nil {
		return nil, fmt.Errorf("%w: CSV row %d: %v", ErrSkipRow, s.rowNumber, err)
	}
	if len(row) <= s.idCol || len(row) <= s.dataCol {
		return nil, fmt.Errorf("%w: CSV row %d has %d columns", ErrSkipRow, s.rowNumber, len(row))
	}
	return &InputRecord{
		RecordID: strings.TrimSpace(row[s.idCol]),
		DataJSON: row[s.dataCol],
	}, nil
}

func (s *csvSource) Close() error {
	return s.file.Close()
}

// parquetSource reads rows with record_id and data_json columns
type parquetSource struct {
	file   *os.File
	reader *parquet.Reader
}

func newParquetSource(file *os.File) (*parquetSource, error) {
	return &parquetSource{file: file, reader: parquet.NewReader(file)}, nil
}

func (s *parquetSource) Read() (*InputRecord, error) {
	var record InputRecord
	if err := s.reader.Read(&record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *parquetSource) Close() error {
	s.reader.Close()
	return s.file.Close()
}

// jsonSource reads one JSON object per line. data_json may be a string
// holding the payload or the payload object itself.
type jsonSource struct {
	file       *os.File
	scanner    *bufio.Scanner
	lineNumber int64
}

type jsonLine struct {
	RecordID json.RawMessage `json:"record_id"`
	DataJSON json.RawMessage `json:"data_json"`
}

func newJSONSource(file *os.File) *jsonSource {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &jsonSource{file: file, scanner: scanner}
}

func (s *jsonSource) Read() (*InputRecord, error) {
	for s.scanner.Scan() {
		s.lineNumber++
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}

		var raw jsonLine
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, fmt.Errorf("%w: JSON line %d: %v", ErrSkipRow, s.lineNumber, err)
		}

		return &InputRecord{
			RecordID: rawText(raw.RecordID),
			DataJSON: payloadText(raw.DataJSON),
		}, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read JSON lines: %w", err)
	}
	return nil, io.EOF
}

func (s *jsonSource) Close() error {
	return s.file.Close()
}

// rawText returns a JSON string unquoted, or any other JSON value as written
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if n, err := strconv.ParseFloat(string(raw), 64); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return string(raw)
}

// payloadText returns the serialized payload whether it was embedded as a
// string or as an object
func payloadText(raw json.RawMessage) string {
	if len(raw) > 0 && raw[0] == '"' {
		return rawText(raw)
	}
	return string(raw)
}
