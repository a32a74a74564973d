package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestJanitorSweepsIdleRooms(t *testing.T) {
	app := newTestApp(t)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	app.store.SetClock(func() time.Time { return start })

	host := createSession(t, app.ts, "Host")
	stale := createRoom(t, app.ts, &host)
	app.store.SetClock(func() time.Time { return start.Add(2 * time.Hour) })
	other := createSession(t, app.ts, "Other")
	fresh := createRoom(t, app.ts, &other)

	janitor := NewJanitor(app.service, app.manager, time.Hour, zap.NewNop())
	janitor.now = func() time.Time { return start.Add(150 * time.Minute) }
	deleted, err := janitor.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected one room deleted, got %d", deleted)
	}

	resp := doRequest(t, app.ts, http.MethodGet, "/api/rooms/"+stale, host.token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected stale room gone, got %d", resp.StatusCode)
	}
	fetchRoom(t, app.ts, fresh, other)
	if got := app.manager.Watching(); got != 1 {
		t.Fatalf("expected one watched room, got %d", got)
	}
}

func TestJanitorStartRejectsBadSchedule(t *testing.T) {
	janitor := NewJanitor(nil, nil, time.Hour, nil)
	if err := janitor.Start("not a schedule"); err == nil {
		t.Fatalf("expected schedule error")
	}
	janitor.Stop()
}
