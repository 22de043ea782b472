package redisbus

import (
	"context"
	"fmt"
	"time"

	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	"github.com/cristianortiz/marketplace/internal/shared/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Publisher mirrors committed envelopes onto a redis channel so projections in
// every instance (websocket fan-out) observe the same stream.
type Publisher struct {
	rdb      *redis.Client
	channel  string
	registry *eventsourcing.Registry
}

func New(ctx context.Context, addr, channel string, registry *eventsourcing.Registry) (*Publisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Publisher{rdb: rdb, channel: channel, registry: registry}, nil
}

func (p *Publisher) Publish(ctx context.Context, envs ...eventsourcing.Envelope) {
	for _, env := range envs {
		raw, err := eventsourcing.MarshalEnvelope(env)
		if err != nil {
			log.Error("redisbus: marshal envelope failed",
				zap.String("eventType", env.Event.EventType()),
				zap.Error(err))
			continue
		}
		if err := p.rdb.Publish(ctx, p.channel, raw).Err(); err != nil {
			log.Error("redisbus: publish failed",
				zap.String("channel", p.channel),
				zap.String("eventType", env.Event.EventType()),
				zap.Error(err))
		}
	}
}

// Forward subscribes to the channel and hands every decoded envelope to onEnv until ctx is done.
func (p *Publisher) Forward(ctx context.Context, onEnv eventsourcing.Handler) error {
	sub := p.rdb.Subscribe(ctx, p.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				env, err := p.registry.UnmarshalEnvelope([]byte(m.Payload))
				if err != nil {
					log.Warn("redisbus: bad payload", zap.Error(err))
					continue
				}
				if err := onEnv(ctx, env); err != nil {
					log.Error("redisbus: forward handler failed",
						zap.String("eventType", env.Event.EventType()),
						zap.Error(err))
				}
			}
		}
	}()

	return nil
}

func (p *Publisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}
