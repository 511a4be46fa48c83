package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the Pub/Sub channel downstream executors listen on.
const DefaultRedisChannel = "mevscope:opportunities"

// RedisSink publishes emitted opportunities as JSON on a Redis Pub/Sub
// channel for out-of-process consumers.
type RedisSink struct {
	rdb     *redis.Client
	channel string
}

// NewRedisSink creates a sink on the given client; an empty channel uses
// the default.
func NewRedisSink(rdb *redis.Client, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisSink{rdb: rdb, channel: channel}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Publish(ctx context.Context, opp *types.MEVOpportunity) error {
	payload, err := json.Marshal(opp)
	if err != nil {
		return fmt.Errorf("redis sink: encode %s: %w", opp.ID, err)
	}
	if err := s.rdb.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis sink: publish %s: %w", s.channel, err)
	}
	return nil
}
