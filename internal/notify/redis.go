package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

func NewRedisClient(addr, username, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     username,
		Password:     password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}

// publisher is the slice of redis.Client the dispatcher needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisDispatcher publishes events as JSON on one pub/sub channel. The
// circuit breaker keeps a dead broker from adding latency to every booking:
// once open, publishes fail fast and are dropped.
type RedisDispatcher struct {
	pub     publisher
	channel string
	breaker *gobreaker.CircuitBreaker
}

func NewRedisDispatcher(pub publisher, channel string) *RedisDispatcher {
	return &RedisDispatcher{
		pub:     pub,
		channel: channel,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "notify",
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (d *RedisDispatcher) BookingConfirmed(ctx context.Context, ev Event) error {
	ev.Type = EventBookingConfirmed
	return d.publish(ctx, ev)
}

func (d *RedisDispatcher) BookingCancelled(ctx context.Context, ev Event) error {
	ev.Type = EventBookingCancelled
	return d.publish(ctx, ev)
}

func (d *RedisDispatcher) publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}

	_, err = d.breaker.Execute(func() (any, error) {
		return nil, d.pub.Publish(ctx, d.channel, payload).Err()
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}
