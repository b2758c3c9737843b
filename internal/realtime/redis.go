// Package realtime delivers job progress events to users over Redis pub/sub.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tastycreative/genflow/internal/domain"
	"github.com/tastycreative/genflow/internal/repository"
)

const channelPrefix = "genflow:events:"

var _ repository.Notifier = (*RedisNotifier)(nil)

// Channel returns the pub/sub channel carrying events for userID.
func Channel(userID string) string {
	return channelPrefix + userID
}

// RedisNotifier publishes events with PUBLISH.
type RedisNotifier struct {
	client goredis.UniversalClient
	logger *zap.Logger
}

// NewRedisNotifier creates a notifier on the given client.
func NewRedisNotifier(client goredis.UniversalClient, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, logger: logger}
}

// Publish sends event to every live subscriber of userID. Having no
// subscribers is not an error.
func (n *RedisNotifier) Publish(ctx context.Context, userID string, event *domain.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("realtime: marshal event: %w", err)
	}

	receivers, err := n.client.Publish(ctx, Channel(userID), body).Result()
	if err != nil {
		return fmt.Errorf("realtime: publish: %w", err)
	}

	n.logger.Debug("Published realtime event",
		zap.String("user_id", userID),
		zap.String("job_id", event.JobID.String()),
		zap.String("type", string(event.Type)),
		zap.Int64("receivers", receivers),
	)
	return nil
}

// RedisSubscriber streams a user's events out of Redis.
type RedisSubscriber struct {
	client goredis.UniversalClient
	logger *zap.Logger
}

// NewRedisSubscriber creates a subscriber on the given client.
func NewRedisSubscriber(client goredis.UniversalClient, logger *zap.Logger) *RedisSubscriber {
	return &RedisSubscriber{client: client, logger: logger}
}

// Subscribe returns a channel of events for userID. The channel is closed when
// ctx is done or the returned close func is called.
func (s *RedisSubscriber) Subscribe(ctx context.Context, userID string) (<-chan *domain.Event, func() error, error) {
	sub := s.client.Subscribe(ctx, Channel(userID))

	// Wait for the subscription confirmation so no event published right after
	// Subscribe returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("realtime: subscribe: %w", err)
	}

	events := make(chan *domain.Event, 16)
	go func() {
		defer close(events)
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event domain.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					s.logger.Warn("Dropping malformed realtime event", zap.Error(err), zap.String("user_id", userID))
					continue
				}
				select {
				case events <- &event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, sub.Close, nil
}
