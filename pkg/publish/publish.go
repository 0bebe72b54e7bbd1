// Package publish streams run outcomes to Redis so dashboards and other
// tools can follow a fleet run as it progresses.
//
// Each outcome becomes one entry on the outcome stream (XADD). A per-run
// hash keeps category tallies. Both writes go through one MULTI/EXEC
// pipeline so a reader never sees an entry without its tally.
package publish

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/fireblade-network/fireblade/pkg/fireblade/outcome"
)

const (
	// DefaultStream is the stream key outcomes are appended to.
	DefaultStream = "fireblade:outcomes"

	// DefaultMaxLen caps the stream length (approximate trimming).
	DefaultMaxLen = 100000

	runKeyPrefix = "fireblade:run:"
	runTTL       = 7 * 24 * time.Hour
)

// RedisSink publishes outcomes for one run.
type RedisSink struct {
	client    *redis.Client
	ctx       context.Context
	stream    string
	maxLen    int64
	runID     string
	operation string
}

// NewRedisSink creates a sink for run runID. It does not connect; call
// Connect to check the server is reachable.
func NewRedisSink(addr, runID, operation string) *RedisSink {
	return &RedisSink{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
		ctx:       context.Background(),
		stream:    DefaultStream,
		maxLen:    DefaultMaxLen,
		runID:     runID,
		operation: operation,
	}
}

// WithStream overrides the stream key.
func (s *RedisSink) WithStream(stream string) *RedisSink {
	s.stream = stream
	return s
}

// Connect tests the connection.
func (s *RedisSink) Connect() error {
	if err := s.client.Ping(s.ctx).Err(); err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	return nil
}

// Close closes the connection.
func (s *RedisSink) Close() error {
	return s.client.Close()
}

// RunKey returns the hash key holding this run's tallies.
func (s *RedisSink) RunKey() string {
	return runKeyPrefix + s.runID
}

// Write appends o to the stream and bumps its category tally.
func (s *RedisSink) Write(o outcome.Outcome) error {
	pipe := s.client.TxPipeline()
	pipe.XAdd(s.ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: Fields(s.runID, s.operation, o),
	})
	pipe.HIncrBy(s.ctx, s.RunKey(), string(o.Category), 1)
	pipe.HIncrBy(s.ctx, s.RunKey(), "total", 1)
	pipe.Expire(s.ctx, s.RunKey(), runTTL)

	if _, err := pipe.Exec(s.ctx); err != nil {
		return fmt.Errorf("publishing %s: %w", o.Device, err)
	}
	return nil
}

// Tallies reads back the category counts recorded for this run.
func (s *RedisSink) Tallies() (map[string]int, error) {
	vals, err := s.client.HGetAll(s.ctx, s.RunKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.RunKey(), err)
	}
	counts := make(map[string]int, len(vals))
	for k, v := range vals {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("reading %s: field %s: %w", s.RunKey(), k, err)
		}
		counts[k] = n
	}
	return counts, nil
}

// Fields flattens an outcome into stream entry fields. Empty payload fields
// are left out.
func Fields(runID, operation string, o outcome.Outcome) map[string]interface{} {
	f := map[string]interface{}{
		"run":         runID,
		"operation":   operation,
		"device":      o.Device,
		"category":    string(o.Category),
		"timestamp":   o.At.UTC().Format(time.RFC3339),
		"duration_ms": o.Duration.Milliseconds(),
	}
	if o.Detail != "" {
		f["detail"] = o.Detail
	}
	if o.Diff != "" {
		f["diff"] = o.Diff
	}
	if o.Output != "" {
		f["output"] = o.Output
	}
	if o.Pending {
		f["pending"] = "true"
	}
	return f
}
