package sink

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/config"
	"github.com/raaihank/pii-sentinel/internal/etl"
)

// RedisStream publishes redacted records to a Redis stream
type RedisStream struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewRedisStream connects to Redis and verifies the connection
func NewRedisStream(ctx context.Context, cfg config.RedisSinkConfig, logger *zap.Logger) (*RedisStream, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.MaxConnections
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis stream sink initialized",
		zap.String("redis_url", maskURL(cfg.RedisURL)),
		zap.String("stream", cfg.Stream),
		zap.Int64("max_len", cfg.MaxLen))

	return &RedisStream{
		client: client,
		stream: cfg.Stream,
		maxLen: cfg.MaxLen,
		logger: logger,
	}, nil
}

// Name identifies the sink in logs
func (s *RedisStream) Name() string { return "redis:" + s.stream }

// Write appends every record to the stream in one pipeline
func (s *RedisStream) Write(ctx context.Context, records []etl.OutputRecord) error {
	if len(records) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, r := range records {
		pipe.XAdd(ctx, streamArgs(s.stream, s.maxLen, r))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("Stream publish failed", zap.Error(err))
		return fmt.Errorf("stream publish failed: %w", err)
	}

	s.logger.Debug("Batch published", zap.Int("records", len(records)))
	return nil
}

// Close closes the Redis connection
func (s *RedisStream) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// streamArgs builds the XADD arguments for one record
func streamArgs(stream string, maxLen int64, r etl.OutputRecord) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: maxLen > 0,
		Values: map[string]interface{}{
			"record_id":          r.RecordID,
			"redacted_data_json": r.RedactedDataJSON,
			"is_pii":             strconv.FormatBool(r.IsPII),
		},
	}
}

// maskURL hides the password of a connection URL for logging
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable url]"
	}
	return u.Redacted()
}
