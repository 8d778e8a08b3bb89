package sink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/config"
	"github.com/raaihank/pii-sentinel/internal/etl"
)

// maxRowsPerInsert keeps a single statement below the PostgreSQL limit of
// 65535 bind parameters
const maxRowsPerInsert = 1000

// Postgres stores redacted records in a PostgreSQL table
type Postgres struct {
	db     *sqlx.DB
	table  string
	logger *zap.Logger
}

// NewPostgres connects to the database and ensures the results table exists
func NewPostgres(ctx context.Context, cfg config.PostgresSinkConfig, logger *zap.Logger) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := &Postgres{
		db:     db,
		table:  pq.QuoteIdentifier(cfg.Table),
		logger: logger,
	}

	if err := store.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Postgres sink initialized",
		zap.String("database_url", maskURL(cfg.DatabaseURL)),
		zap.String("table", cfg.Table),
		zap.Int("max_open_conns", cfg.MaxOpenConns))

	return store, nil
}

func (s *Postgres) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createTableSQL(s.table))
	return err
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			record_id     TEXT PRIMARY KEY,
			redacted_data JSONB NOT NULL,
			is_pii        BOOLEAN NOT NULL,
			processed_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, table)
}

// Name identifies the sink in logs
func (s *Postgres) Name() string { return "postgres:" + s.table }

// Write upserts a batch of records
func (s *Postgres) Write(ctx context.Context, records []etl.OutputRecord) error {
	rows := dedupeByID(records)
	start := time.Now()

	for i := 0; i < len(rows); i += maxRowsPerInsert {
		end := min(i+maxRowsPerInsert, len(rows))
		query, args := buildUpsert(s.table, rows[i:end])

		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			s.logger.Error("Batch upsert failed", zap.Error(err), zap.Int("rows", end-i))
			return fmt.Errorf("batch upsert failed: %w", err)
		}
	}

	s.logger.Debug("Batch upsert completed",
		zap.Int("rows", len(rows)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// Close closes the database connection
func (s *Postgres) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// buildUpsert builds a multi-row upsert for rows
func buildUpsert(table string, rows []etl.OutputRecord) (string, []interface{}) {
	valueStrings := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*3)

	for i, r := range rows {
		valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d::jsonb, $%d)", i*3+1, i*3+2, i*3+3))
		args = append(args, r.RecordID, r.RedactedDataJSON, r.IsPII)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (record_id, redacted_data, is_pii)
		VALUES %s
		ON CONFLICT (record_id) DO UPDATE
		SET redacted_data = EXCLUDED.redacted_data,
			is_pii = EXCLUDED.is_pii,
			processed_at = now()`,
		table, strings.Join(valueStrings, ","))

	return query, args
}

// dedupeByID keeps the last record for every id, since one upsert statement
// cannot touch the same row twice
func dedupeByID(records []etl.OutputRecord) []etl.OutputRecord {
	last := make(map[string]int, len(records))
	for i, r := range records {
		last[r.RecordID] = i
	}
	if len(last) == len(records) {
		return records
	}

	out := make([]etl.OutputRecord, 0, len(last))
	for i, r := range records {
		if last[r.RecordID] == i {
			out = append(out, r)
		}
	}
	return out
}
