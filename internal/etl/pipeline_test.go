package etl

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/config"
	"github.com/raaihank/pii-sentinel/internal/logger"
	"github.com/raaihank/pii-sentinel/internal/metrics"
	"github.com/raaihank/pii-sentinel/internal/privacy"
)

var testRecords = []InputRecord{
	{RecordID: "1", DataJSON: `{"phone":"9876543210","order_value":250}`},
	{RecordID: "2", DataJSON: `{"name":"Dhruv Chauhan","email":"d.c@example.com"}`},
	{RecordID: "3", DataJSON: `{"upi_id":"user123@bank"}`},
	{RecordID: "4", DataJSON: `not json`},
	{RecordID: "5", DataJSON: `{"city":"Pune","name":"Dhruv"}`},
}

var wantOutputs = []OutputRecord{
	{RecordID: "1", RedactedDataJSON: `{"phone":"98XXXXXX10","order_value":250}`, IsPII: true},
	{RecordID: "2", RedactedDataJSON: `{"name":"DXXX CXXX","email":"d.XXX@example.com"}`, IsPII: true},
	{RecordID: "3", RedactedDataJSON: `{"upi_id":"usXXX@bank"}`, IsPII: true},
	{RecordID: "4", RedactedDataJSON: `{}`, IsPII: false},
	{RecordID: "5", RedactedDataJSON: `{"city":"Pune","name":"Dhruv"}`, IsPII: false},
}

type memorySink struct {
	mu      sync.Mutex
	records []OutputRecord
	err     error
	closed  bool
}

func (s *memorySink) Name() string { return "memory" }

func (s *memorySink) Write(_ context.Context, records []OutputRecord) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

func (s *memorySink) Close() error {
	s.closed = true
	return nil
}

type sliceSource struct {
	records []InputRecord
	pos     int
}

func (s *sliceSource) Read() (*InputRecord, error) {
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return &r, nil
}

func (s *sliceSource) Close() error { return nil }

func newTestDetector(t *testing.T) *privacy.Detector {
	t.Helper()
	d, err := privacy.New(config.PrivacyConfig{Enabled: true, Detectors: []string{"all"}}, logger.NewNop())
	require.NoError(t, err)
	return d
}

func newTestPipeline(t *testing.T, m *metrics.Metrics, sinks ...Sink) *Pipeline {
	t.Helper()
	return NewPipeline(newTestDetector(t), sinks, m, &Config{
		BatchSize:      2,
		WorkerCount:    3,
		ProgressReport: 2,
	}, zap.NewNop())
}

func writeCSVInput(t *testing.T, path string, records []InputRecord) {
	t.Helper()
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	w := csv.NewWriter(file)
	require.NoError(t, w.Write([]string{"record_id", "data_json"}))
	for _, r := range records {
		require.NoError(t, w.Write([]string{r.RecordID, r.DataJSON}))
	}
	w.Flush()
	require.NoError(t, w.Error())
}

func TestRedact(t *testing.T) {
	d := newTestDetector(t)

	t.Run("pii record", func(t *testing.T) {
		out := Redact(d, testRecords[0])
		assert.Equal(t, wantOutputs[0], out.Output)
		assert.False(t, out.DecodeFailed)
	})

	t.Run("malformed payload", func(t *testing.T) {
		out := Redact(d, InputRecord{RecordID: "bad", DataJSON: `{"phone":`})
		assert.Equal(t, OutputRecord{RecordID: "bad", RedactedDataJSON: "{}", IsPII: false}, out.Output)
		assert.True(t, out.DecodeFailed)
	})
}

func TestProcessKeepsInputOrder(t *testing.T) {
	sink := &memorySink{}
	m := metrics.New("test", nil)
	p := newTestPipeline(t, m, sink)

	result, err := p.Process(context.Background(), &sliceSource{records: testRecords})
	require.NoError(t, err)

	assert.Equal(t, wantOutputs, sink.records)
	assert.Equal(t, int64(5), result.TotalRecords)
	assert.Equal(t, int64(3), result.PIIRecords)
	assert.Equal(t, int64(1), result.CompositeHits)
	assert.Equal(t, int64(1), result.DecodeFailures)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.RecordsProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeFailures))

	stats := p.GetStats()
	assert.Equal(t, int64(5), stats.RecordsWritten)
	assert.Equal(t, int64(3), stats.CurrentBatch)
}

func TestProcessFileCSV(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.csv")
	output := filepath.Join(dir, "redacted_output.csv")
	writeCSVInput(t, input, testRecords)

	sink, err := OpenFileSink(output, FormatCSV)
	require.NoError(t, err)

	p := newTestPipeline(t, nil, sink)
	result, err := p.ProcessFile(context.Background(), input)
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	assert.Equal(t, int64(5), result.TotalRecords)

	file, err := os.Open(output)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(wantOutputs)+1)
	assert.Equal(t, []string{"record_id", "redacted_data_json", "is_pii"}, rows[0])
	for i, want := range wantOutputs {
		isPII := "false"
		if want.IsPII {
			isPII = "true"
		}
		assert.Equal(t, []string{want.RecordID, want.RedactedDataJSON, isPII}, rows[i+1])
	}
}

func TestProcessFileCSVColumnOrder(t *testing.T) {
	input := filepath.Join(t.TempDir(), "input.csv")
	content := "\ufeffdata_json,extra,record_id\n" +
		`"{""phone"":""9876543210""}",x,r-1` + "\n" +
		"short\n"
	require.NoError(t, os.WriteFile(input, []byte(content), 0o644))

	sink := &memorySink{}
	p := newTestPipeline(t, nil, sink)

	result, err := p.ProcessFile(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.SkippedRows)
	assert.Equal(t, []OutputRecord{{RecordID: "r-1", RedactedDataJSON: `{"phone":"98XXXXXX10"}`, IsPII: true}}, sink.records)
}

func TestProcessFileCSVMissingColumns(t *testing.T) {
	input := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(input, []byte("id,payload\n1,{}\n"), 0o644))

	p := newTestPipeline(t, nil, &memorySink{})
	_, err := p.ProcessFile(context.Background(), input)
	assert.ErrorContains(t, err, "record_id and data_json")
}

func TestProcessFileJSONLines(t *testing.T) {
	input := filepath.Join(t.TempDir(), "input.jsonl")
	lines := strings.Join([]string{
		`{"record_id":"1","data_json":"{\"phone\":\"9876543210\"}"}`,
		``,
		`{"record_id":2,"data_json":{"upi_id":"user123@bank"}}`,
		`{broken`,
		`{"record_id":"3","data_json":"not json"}`,
	}, "\n")
	require.NoError(t, os.WriteFile(input, []byte(lines), 0o644))

	sink := &memorySink{}
	p := newTestPipeline(t, nil, sink)

	result, err := p.ProcessFile(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.TotalRecords)
	assert.Equal(t, int64(1), result.SkippedRows)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, []OutputRecord{
		{RecordID: "1", RedactedDataJSON: `{"phone":"98XXXXXX10"}`, IsPII: true},
		{RecordID: "2", RedactedDataJSON: `{"upi_id":"usXXX@bank"}`, IsPII: true},
		{RecordID: "3", RedactedDataJSON: `{}`, IsPII: false},
	}, sink.records)
}

func TestProcessFileParquet(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.parquet")
	output := filepath.Join(dir, "redacted_output.parquet")
	require.NoError(t, parquet.WriteFile(input, testRecords))

	sink, err := OpenFileSink(output, FormatParquet)
	require.NoError(t, err)

	p := newTestPipeline(t, nil, sink)
	_, err = p.ProcessFile(context.Background(), input)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	rows, err := parquet.ReadFile[OutputRecord](output)
	require.NoError(t, err)
	assert.Equal(t, wantOutputs, rows)
}

func TestProcessStopsOnSinkError(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	p := newTestPipeline(t, nil, sink)

	_, err := p.Process(context.Background(), &sliceSource{records: testRecords})
	assert.ErrorContains(t, err, "sink memory write failed: disk full")
}

func TestProcessCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &memorySink{}
	p := newTestPipeline(t, nil, sink)

	_, err := p.Process(ctx, &sliceSource{records: testRecords})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.records)
}

func TestProcessFileCapsReportedErrors(t *testing.T) {
	input := filepath.Join(t.TempDir(), "input.jsonl")
	lines := make([]string, 0, MaxReportedErrors+51)
	for i := 0; i < MaxReportedErrors+50; i++ {
		lines = append(lines, `{broken`)
	}
	lines = append(lines, `{"record_id":"1","data_json":"{\"phone\":\"9876543210\"}"}`)
	require.NoError(t, os.WriteFile(input, []byte(strings.Join(lines, "\n")), 0o644))

	sink := &memorySink{}
	p := newTestPipeline(t, nil, sink)

	result, err := p.ProcessFile(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.TotalRecords)
	assert.Equal(t, int64(MaxReportedErrors+50), result.SkippedRows)
	assert.Len(t, result.Errors, MaxReportedErrors)
	assert.Len(t, sink.records, 1)
}
