package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink stores each row as a hash under Prefix+battery_id.
type RedisSink struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSink connects to addr and checks the connection. A zero ttl keeps the
// hashes forever.
func NewRedisSink(ctx context.Context, addr, prefix string, ttl time.Duration) (*RedisSink, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	if prefix == "" {
		prefix = "cyclelife:battery:"
	}
	return &RedisSink{client: client, prefix: prefix, ttl: ttl}, nil
}

// Key is the hash key of a battery.
func (s *RedisSink) Key(batteryID string) string { return s.prefix + batteryID }

func (s *RedisSink) Put(ctx context.Context, runID string, row Row) error {
	key := s.Key(row.BatteryID)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, rowFields(runID, row))
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisSink) Close() error { return s.client.Close() }

func rowFields(runID string, row Row) map[string]interface{} {
	fields := make(map[string]interface{}, len(row.Features)+5)
	fields["run_id"] = runID
	fields["dataset"] = string(row.Dataset)
	fields["cycle_life"] = strconv.Itoa(row.CycleLife)
	fields["fallbacks"] = strings.Join(row.Fallbacks, ",")
	fields["source"] = row.Source
	for i, v := range row.Features {
		fields["F"+strconv.Itoa(i+1)] = formatFloat(v)
	}
	return fields
}
