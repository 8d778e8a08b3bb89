// Package sink provides the result destinations that sit alongside the
// output dataset file: a Redis stream and a PostgreSQL table.
package sink

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/config"
	"github.com/raaihank/pii-sentinel/internal/etl"
)

// Set is the list of sinks a run writes to
type Set []etl.Sink

// Open creates the output file sink plus every sink enabled in cfg
func Open(ctx context.Context, cfg *config.Config, outputPath string, format etl.FileFormat, logger *zap.Logger) (Set, error) {
	var sinks Set

	file, err := etl.OpenFileSink(outputPath, format)
	if err != nil {
		return nil, err
	}
	sinks = append(sinks, file)

	if cfg.Sinks.Redis.Enabled {
		redisSink, err := NewRedisStream(ctx, cfg.Sinks.Redis, logger.With(zap.String("component", "redis_sink")))
		if err != nil {
			sinks.Close()
			return nil, fmt.Errorf("failed to initialize redis sink: %w", err)
		}
		sinks = append(sinks, redisSink)
	}

	if cfg.Sinks.Postgres.Enabled {
		pgSink, err := NewPostgres(ctx, cfg.Sinks.Postgres, logger.With(zap.String("component", "postgres_sink")))
		if err != nil {
			sinks.Close()
			return nil, fmt.Errorf("failed to initialize postgres sink: %w", err)
		}
		sinks = append(sinks, pgSink)
	}

	return sinks, nil
}

// Close closes every sink and joins their errors
func (s Set) Close() error {
	var errs []error
	for _, sink := range s {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}
