package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"find-the-impostor/internal/game"
	"find-the-impostor/internal/room"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsReadLimit    = 4096
)

type wsClient struct {
	conn   *websocket.Conn
	userID string
	mu     sync.Mutex
}

func (c *wsClient) send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

type wsGroup struct {
	clients map[*wsClient]struct{}
	watcher *room.Watcher
	detach  func()
}

// wsHub fans room snapshots out to connected clients. It registers itself as
// a listener on a room's watcher while at least one client is connected, and
// renders a separate view per client.
type wsHub struct {
	manager *room.Manager
	logger  *zap.Logger
	mu      sync.Mutex
	groups  map[string]*wsGroup
}

func newWSHub(manager *room.Manager, logger *zap.Logger) *wsHub {
	return &wsHub{
		manager: manager,
		logger:  logger,
		groups:  make(map[string]*wsGroup),
	}
}

func (h *wsHub) Add(ctx context.Context, roomID string, client *wsClient) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[roomID]
	if group == nil {
		group = &wsGroup{clients: make(map[*wsClient]struct{})}
		if h.manager != nil {
			w, err := h.manager.Watch(ctx, roomID)
			if err != nil {
				return err
			}
			group.watcher = w
			group.detach = w.AddListener(h)
		}
		h.groups[roomID] = group
	}
	group.clients[client] = struct{}{}
	if group.watcher != nil {
		group.watcher.Refresh()
	}
	return nil
}

func (h *wsHub) Remove(roomID string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = client.conn.Close()
	group := h.groups[roomID]
	if group == nil {
		return
	}
	delete(group.clients, client)
	if len(group.clients) == 0 {
		if group.detach != nil {
			group.detach()
		}
		delete(h.groups, roomID)
	}
}

func (h *wsHub) Count(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if group := h.groups[roomID]; group != nil {
		return len(group.clients)
	}
	return 0
}

func (h *wsHub) clients(roomID string) []*wsClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[roomID]
	if group == nil {
		return nil
	}
	clients := make([]*wsClient, 0, len(group.clients))
	for client := range group.clients {
		clients = append(clients, client)
	}
	return clients
}

// RoomChanged implements room.Listener.
func (h *wsHub) RoomChanged(snap game.Snapshot) {
	for _, client := range h.clients(snap.Room.ID) {
		if err := client.send(snapshotMessage(snap, client.userID)); err != nil {
			h.logger.Debug("ws send failed", zap.String("room_id", snap.Room.ID), zap.Error(err))
			h.Remove(snap.Room.ID, client)
		}
	}
}

// RoomClosed implements room.Listener.
func (h *wsHub) RoomClosed(roomID string) {
	h.mu.Lock()
	group := h.groups[roomID]
	delete(h.groups, roomID)
	h.mu.Unlock()
	if group == nil {
		return
	}
	for client := range group.clients {
		_ = client.send(map[string]any{"type": "closed", "room_id": roomID})
		_ = client.conn.Close()
	}
}

func (h *wsHub) CloseAll() {
	h.mu.Lock()
	groups := h.groups
	h.groups = make(map[string]*wsGroup)
	h.mu.Unlock()
	for _, group := range groups {
		if group.detach != nil {
			group.detach()
		}
		for client := range group.clients {
			_ = client.conn.Close()
		}
	}
}

func snapshotMessage(snap game.Snapshot, userID string) map[string]any {
	return map[string]any{
		"type": "snapshot",
		"room": roomView(snap, userID),
	}
}

func (s *Server) handleWebsocket(c *gin.Context) {
	rm, ok := s.roomFromURI(c)
	if !ok {
		return
	}
	guest := currentGuest(c)
	snap, err := s.service.Snapshot(c.Request.Context(), rm.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(wsReadLimit)
	client := &wsClient{conn: conn, userID: guest.UserID}
	if s.manager == nil {
		_ = client.send(snapshotMessage(snap, guest.UserID))
	}
	if err := s.ws.Add(c.Request.Context(), rm.ID, client); err != nil {
		s.logger.Warn("ws attach failed", zap.String("room_id", rm.ID), zap.Error(err))
		_ = conn.Close()
		return
	}
	s.logger.Info("ws connected",
		zap.String("room_id", rm.ID),
		zap.String("user_id", guest.UserID),
		zap.String("remote", c.Request.RemoteAddr),
	)
	go s.readWS(rm.ID, client)
}

func (s *Server) readWS(roomID string, client *wsClient) {
	defer s.ws.Remove(roomID, client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			s.logger.Debug("ws disconnected", zap.String("room_id", roomID), zap.Error(err))
			return
		}
	}
}
