package sink

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/config"
	"github.com/raaihank/pii-sentinel/internal/etl"
)

func TestBuildUpsert(t *testing.T) {
	rows := []etl.OutputRecord{
		{RecordID: "1", RedactedDataJSON: `{"phone":"98XXXXXX10"}`, IsPII: true},
		{RecordID: "2", RedactedDataJSON: `{}`, IsPII: false},
	}

	query, args := buildUpsert(`"redacted_records"`, rows)

	assert.Contains(t, query, `INSERT INTO "redacted_records" (record_id, redacted_data, is_pii)`)
	assert.Contains(t, query, "VALUES ($1, $2::jsonb, $3),($4, $5::jsonb, $6)")
	assert.Contains(t, query, "ON CONFLICT (record_id) DO UPDATE")
	assert.Equal(t, []interface{}{"1", `{"phone":"98XXXXXX10"}`, true, "2", `{}`, false}, args)
}

func TestCreateTableSQL(t *testing.T) {
	sql := createTableSQL(`"results"`)
	assert.Contains(t, sql, `CREATE TABLE IF NOT EXISTS "results"`)
	assert.Contains(t, sql, "record_id     TEXT PRIMARY KEY")
}

func TestDedupeByID(t *testing.T) {
	t.Run("unique ids are returned as is", func(t *testing.T) {
		rows := []etl.OutputRecord{{RecordID: "1"}, {RecordID: "2"}}
		assert.Equal(t, rows, dedupeByID(rows))
	})

	t.Run("last record wins", func(t *testing.T) {
		rows := []etl.OutputRecord{
			{RecordID: "1", RedactedDataJSON: "first"},
			{RecordID: "2", RedactedDataJSON: "other"},
			{RecordID: "1", RedactedDataJSON: "second", IsPII: true},
		}
		assert.Equal(t, []etl.OutputRecord{
			{RecordID: "2", RedactedDataJSON: "other"},
			{RecordID: "1", RedactedDataJSON: "second", IsPII: true},
		}, dedupeByID(rows))
	})
}

func TestStreamArgs(t *testing.T) {
	args := streamArgs("pii:test", 500, etl.OutputRecord{
		RecordID:         "r-1",
		RedactedDataJSON: `{"upi_id":"usXXX@bank"}`,
		IsPII:            true,
	})

	assert.Equal(t, "pii:test", args.Stream)
	assert.Equal(t, int64(500), args.MaxLen)
	assert.True(t, args.Approx)
	assert.Equal(t, map[string]interface{}{
		"record_id":          "r-1",
		"redacted_data_json": `{"upi_id":"usXXX@bank"}`,
		"is_pii":             "true",
	}, args.Values)

	unbounded := streamArgs("pii:test", 0, etl.OutputRecord{RecordID: "r-2"})
	assert.False(t, unbounded.Approx)
	assert.Equal(t, "false", unbounded.Values.(map[string]interface{})["is_pii"])
}

func TestMaskURL(t *testing.T) {
	assert.Equal(t, "redis://:xxxxx@cache:6379/0", maskURL("redis://:secret@cache:6379/0"))
	assert.Equal(t, "postgres://app:xxxxx@db:5432/sentinel", maskURL("postgres://app:secret@db:5432/sentinel"))
	assert.Equal(t, "redis://localhost:6379/0", maskURL("redis://localhost:6379/0"))
	assert.Equal(t, "[unparseable url]", maskURL("://bad"))
}

func TestNewRedisStreamInvalidURL(t *testing.T) {
	_, err := NewRedisStream(context.Background(), config.RedisSinkConfig{RedisURL: "http://nope"}, zap.NewNop())
	assert.ErrorContains(t, err, "failed to parse Redis URL")
}

func TestOpenFileOnly(t *testing.T) {
	cfg := config.GetDefaults()
	path := filepath.Join(t.TempDir(), "redacted_output.jsonl")

	sinks, err := Open(context.Background(), cfg, path, etl.FormatJSON, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, sinks, 1)
	assert.True(t, strings.HasPrefix(sinks[0].Name(), "json:"))

	require.NoError(t, sinks[0].Write(context.Background(), []etl.OutputRecord{{RecordID: "1", RedactedDataJSON: "{}"}}))
	assert.NoError(t, sinks.Close())
}
