package feed

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisChannelPrefix = "impostor:room:"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis carries changes over Redis pub/sub, one channel per room.
type Redis struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedis(cfg RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Redis{client: client, logger: logger}
}

// Ping checks the connection before the feed is handed out.
func (f *Redis) Ping(ctx context.Context) error {
	return f.client.Ping(ctx).Err()
}

func redisChannel(roomID string) string {
	return redisChannelPrefix + roomID
}

func (f *Redis) Publish(ctx context.Context, change Change) error {
	data, err := encodeChange(change)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, redisChannel(change.RoomID), data).Err()
}

func (f *Redis) Subscribe(ctx context.Context, roomID string) (Subscription, error) {
	pubsub := f.client.Subscribe(ctx, redisChannel(roomID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	sub := &redisSubscription{
		pubsub: pubsub,
		ch:     make(chan Change, subscriptionBuffer),
		done:   make(chan struct{}),
	}
	go sub.run(f.logger)
	return sub, nil
}

func (f *Redis) Close() error {
	return f.client.Close()
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan Change
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) run(logger *zap.Logger) {
	defer close(s.ch)
	messages := s.pubsub.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			change, err := decodeChange([]byte(msg.Payload))
			if err != nil {
				logger.Warn("dropping malformed change", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			deliver(s.ch, change)
		}
	}
}

func (s *redisSubscription) Changes() <-chan Change {
	return s.ch
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}
