package feed

import (
	"context"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	natsSubjectPrefix = "impostor.room."
	natsFlushTimeout  = 2 * time.Second
)

type NATSConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

// NATS carries changes between server instances over core NATS subjects,
// one subject per room.
type NATS struct {
	conn   *nats.Conn
	logger *zap.Logger
}

func NewNATS(cfg NATSConfig, logger *zap.Logger) (*NATS, error) {
	opts := []nats.Option{
		nats.Name("find-the-impostor"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}
	return &NATS{conn: conn, logger: logger}, nil
}

func natsSubject(roomID string) string {
	return natsSubjectPrefix + roomID
}

func (f *NATS) Publish(ctx context.Context, change Change) error {
	data, err := encodeChange(change)
	if err != nil {
		return err
	}
	return f.conn.Publish(natsSubject(change.RoomID), data)
}

func (f *NATS) Subscribe(ctx context.Context, roomID string) (Subscription, error) {
	sub := &natsSubscription{ch: make(chan Change, subscriptionBuffer)}
	natsSub, err := f.conn.Subscribe(natsSubject(roomID), func(msg *nats.Msg) {
		change, err := decodeChange(msg.Data)
		if err != nil {
			f.logger.Warn("dropping malformed change", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		sub.send(change)
	})
	if err != nil {
		return nil, err
	}
	sub.sub = natsSub
	// the server must know the interest before changes from other
	// instances can reach it
	if err := f.conn.FlushTimeout(natsFlushTimeout); err != nil {
		_ = sub.Close()
		return nil, err
	}
	return sub, nil
}

func (f *NATS) Close() error {
	return f.conn.Drain()
}

type natsSubscription struct {
	mu     sync.Mutex
	sub    *nats.Subscription
	ch     chan Change
	closed bool
}

func (s *natsSubscription) send(change Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	deliver(s.ch, change)
}

func (s *natsSubscription) Changes() <-chan Change {
	return s.ch
}

func (s *natsSubscription) Close() error {
	err := s.sub.Unsubscribe()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return err
}
