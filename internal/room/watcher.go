package room

import (
	"context"
	"errors"
	"sync"

	"find-the-impostor/internal/feed"
	"find-the-impostor/internal/game"

	"go.uber.org/zap"
)

// Listener receives every fresh snapshot of a watched room.
type Listener interface {
	RoomChanged(snap game.Snapshot)
	RoomClosed(roomID string)
}

// Watcher owns the single feed subscription of one room. Its goroutine turns
// bursts of changes into one snapshot read, then drives bots and listeners
// from that snapshot.
type Watcher struct {
	roomID  string
	service *Service
	sub     feed.Subscription
	bots    *BotDriver
	logger  *zap.Logger

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int

	refresh chan struct{}
	done    chan struct{}
	once    sync.Once
	onClose func()
}

func (w *Watcher) RoomID() string {
	return w.roomID
}

// AddListener registers l and returns the function that removes it.
func (w *Watcher) AddListener(l Listener) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = l
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.listeners, id)
	}
}

// Refresh asks the watcher to re-read the room even without a feed change.
func (w *Watcher) Refresh() {
	select {
	case w.refresh <- struct{}{}:
	default:
	}
}

func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) Close() {
	w.once.Do(func() {
		close(w.done)
		if err := w.sub.Close(); err != nil {
			w.logger.Warn("close subscription failed", zap.String("room_id", w.roomID), zap.Error(err))
		}
		w.bots.Close()
		if w.onClose != nil {
			w.onClose()
		}
	})
}

func (w *Watcher) run(ctx context.Context) {
	if !w.update(ctx) {
		w.Close()
		return
	}
	for {
		select {
		case <-ctx.Done():
			w.Close()
			return
		case <-w.done:
			return
		case _, ok := <-w.sub.Changes():
			if !ok {
				w.Close()
				return
			}
			w.drain()
		case <-w.refresh:
		}
		if !w.update(ctx) {
			w.Close()
			return
		}
	}
}

// drain swallows changes that queued up while the previous snapshot was
// being processed; one read covers all of them.
func (w *Watcher) drain() {
	for {
		select {
		case _, ok := <-w.sub.Changes():
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (w *Watcher) update(ctx context.Context) bool {
	snap, err := w.service.Snapshot(ctx, w.roomID)
	if errors.Is(err, game.ErrRoomNotFound) {
		w.logger.Info("room gone, closing watcher", zap.String("room_id", w.roomID))
		for _, l := range w.snapshotListeners() {
			l.RoomClosed(w.roomID)
		}
		w.Close()
		return false
	}
	if err != nil {
		w.logger.Warn("room refresh failed", zap.String("room_id", w.roomID), zap.Error(err))
		return ctx.Err() == nil
	}
	w.bots.Observe(snap)
	for _, l := range w.snapshotListeners() {
		l.RoomChanged(snap)
	}
	return true
}

func (w *Watcher) snapshotListeners() []Listener {
	w.mu.Lock()
	defer w.mu.Unlock()
	listeners := make([]Listener, 0, len(w.listeners))
	for _, l := range w.listeners {
		listeners = append(listeners, l)
	}
	return listeners
}

// Manager opens at most one watcher per room on demand and closes them all
// on shutdown.
type Manager struct {
	service   *Service
	scheduler Scheduler
	bots      BotConfig
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	watchers map[string]*Watcher
	wg       sync.WaitGroup
}

func NewManager(service *Service, scheduler Scheduler, bots BotConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		service:   service,
		scheduler: scheduler,
		bots:      bots,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		watchers:  make(map[string]*Watcher),
	}
}

// Watch returns the room's watcher, starting it if needed.
func (m *Manager) Watch(ctx context.Context, roomID string) (*Watcher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx.Err() != nil {
		return nil, feed.ErrClosed
	}
	if w, ok := m.watchers[roomID]; ok {
		return w, nil
	}
	sub, err := m.service.Feed().Subscribe(ctx, roomID)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		roomID:    roomID,
		service:   m.service,
		sub:       sub,
		bots:      NewBotDriver(roomID, m.service, m.scheduler, m.bots, m.logger),
		logger:    m.logger,
		listeners: make(map[int]Listener),
		refresh:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	w.onClose = func() {
		m.forget(roomID, w)
	}
	m.watchers[roomID] = w
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		w.run(m.ctx)
	}()
	m.logger.Debug("watching room", zap.String("room_id", roomID))
	return w, nil
}

// Listen attaches l to the room's watcher.
func (m *Manager) Listen(ctx context.Context, roomID string, l Listener) (func(), error) {
	w, err := m.Watch(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return w.AddListener(l), nil
}

// Forget stops watching a room, typically after it was deleted.
func (m *Manager) Forget(roomID string) {
	m.mu.Lock()
	w, ok := m.watchers[roomID]
	m.mu.Unlock()
	if ok {
		w.Close()
	}
}

func (m *Manager) Watching() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchers)
}

func (m *Manager) Close() {
	m.cancel()
	m.mu.Lock()
	watchers := make([]*Watcher, 0, len(m.watchers))
	for _, w := range m.watchers {
		watchers = append(watchers, w)
	}
	m.mu.Unlock()
	for _, w := range watchers {
		w.Close()
	}
	m.wg.Wait()
}

func (m *Manager) forget(roomID string, w *Watcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.watchers[roomID]; ok && current == w {
		delete(m.watchers, roomID)
	}
}
