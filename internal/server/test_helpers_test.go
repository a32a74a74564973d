package server

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"find-the-impostor/internal/config"
	"find-the-impostor/internal/feed"
	"find-the-impostor/internal/game"
	"find-the-impostor/internal/room"
	"find-the-impostor/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testWords = []game.WordCategory{
	{Name: "animals", Words: []string{"Cat", "Dog", "Horse"}},
}

type testApp struct {
	srv     *Server
	ts      *httptest.Server
	store   *store.Memory
	service *room.Service
	manager *room.Manager
}

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	st := store.NewMemory(testWords)
	changes := feed.NewLocal()
	cfg := room.DefaultConfig()
	cfg.SnapshotBackoff = time.Millisecond
	service := room.NewService(st, changes, game.NewSeededRand(7), zap.NewNop(), cfg)
	manager := room.NewManager(service, room.NewClockScheduler(), room.BotConfig{
		ClueDelayMin: time.Millisecond,
		ClueDelayMax: 5 * time.Millisecond,
		VoteDelayMin: time.Millisecond,
		VoteDelayMax: 5 * time.Millisecond,
	}, zap.NewNop())

	srv := New(service, manager, config.Default(), zap.NewNop())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
		manager.Close()
		_ = changes.Close()
	})
	return &testApp{
		srv:     srv,
		ts:      ts,
		store:   st,
		service: service,
		manager: manager,
	}
}
