package feed

import (
	"context"
	"sync"
	"time"
)

// Local is an in-process feed for single-node deployments and tests.
type Local struct {
	mu     sync.Mutex
	subs   map[string]map[*localSubscription]struct{}
	closed bool
}

func NewLocal() *Local {
	return &Local{subs: make(map[string]map[*localSubscription]struct{})}
}

type localSubscription struct {
	feed   *Local
	roomID string
	ch     chan Change
	once   sync.Once
}

func (f *Local) Publish(ctx context.Context, change Change) error {
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	for sub := range f.subs[change.RoomID] {
		deliver(sub.ch, change)
	}
	return nil
}

func (f *Local) Subscribe(ctx context.Context, roomID string) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	sub := &localSubscription{
		feed:   f,
		roomID: roomID,
		ch:     make(chan Change, subscriptionBuffer),
	}
	if f.subs[roomID] == nil {
		f.subs[roomID] = make(map[*localSubscription]struct{})
	}
	f.subs[roomID][sub] = struct{}{}
	return sub, nil
}

func (f *Local) Close() error {
	f.mu.Lock()
	subs := f.subs
	f.subs = make(map[string]map[*localSubscription]struct{})
	f.closed = true
	f.mu.Unlock()
	for _, set := range subs {
		for sub := range set {
			sub.closeChannel()
		}
	}
	return nil
}

func (s *localSubscription) Changes() <-chan Change {
	return s.ch
}

func (s *localSubscription) Close() error {
	s.feed.mu.Lock()
	if set, ok := s.feed.subs[s.roomID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(s.feed.subs, s.roomID)
		}
	}
	s.feed.mu.Unlock()
	s.closeChannel()
	return nil
}

func (s *localSubscription) closeChannel() {
	s.once.Do(func() {
		close(s.ch)
	})
}
