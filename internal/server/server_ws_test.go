package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialRoom(t *testing.T, ts *httptest.Server, code, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/rooms/" + code
	if token != "" {
		url += "?token=" + token
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Cleanup(func() {
			_ = conn.Close()
		})
	}
	return conn, resp, err
}

// readUntil reads messages until match accepts one or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, match func(map[string]any) bool) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read ws message: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func TestWebsocketRequiresSession(t *testing.T) {
	app := newTestApp(t)
	host := createSession(t, app.ts, "Host")
	code := createRoom(t, app.ts, &host)

	_, resp, err := dialRoom(t, app.ts, code, "")
	if err == nil {
		t.Fatalf("expected dial without token to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %v", http.StatusUnauthorized, resp)
	}
}

func TestWebsocketPushesViewerSnapshots(t *testing.T) {
	app := newTestApp(t)
	host := createSession(t, app.ts, "Host")
	guest := createSession(t, app.ts, "Guest")
	code := createRoom(t, app.ts, &host)
	joinRoom(t, app.ts, code, &guest)

	hostConn, _, err := dialRoom(t, app.ts, code, host.token)
	if err != nil {
		t.Fatalf("dial host: %v", err)
	}
	guestConn, _, err := dialRoom(t, app.ts, code, guest.token)
	if err != nil {
		t.Fatalf("dial guest: %v", err)
	}

	isSnapshot := func(msg map[string]any) bool { return msg["type"] == "snapshot" }
	first := readUntil(t, guestConn, isSnapshot)
	viewer := first["room"].(map[string]any)["viewer"].(map[string]any)
	if viewer["participant_id"] != guest.participantID || viewer["is_host"] != false {
		t.Fatalf("expected guest view, got %#v", viewer)
	}
	readUntil(t, hostConn, isSnapshot)

	postAction(t, app.ts, code, "ready", guest, nil, http.StatusOK)
	guestReady := func(msg map[string]any) bool {
		if msg["type"] != "snapshot" {
			return false
		}
		for _, raw := range msg["room"].(map[string]any)["participants"].([]any) {
			p := raw.(map[string]any)
			if p["id"] == guest.participantID && p["ready"] == true {
				return true
			}
		}
		return false
	}
	msg := readUntil(t, hostConn, guestReady)
	if hv := msg["room"].(map[string]any)["viewer"].(map[string]any); hv["is_host"] != true {
		t.Fatalf("expected host view, got %#v", hv)
	}
	readUntil(t, guestConn, guestReady)

	if got := app.srv.ws.Count(first["room"].(map[string]any)["room_id"].(string)); got != 2 {
		t.Fatalf("expected two connected clients, got %d", got)
	}
}

func TestWebsocketClosedWhenRoomDeleted(t *testing.T) {
	app := newTestApp(t)
	host := createSession(t, app.ts, "Host")
	code := createRoom(t, app.ts, &host)

	conn, _, err := dialRoom(t, app.ts, code, host.token)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	readUntil(t, conn, func(msg map[string]any) bool { return msg["type"] == "snapshot" })

	resp := doRequest(t, app.ts, http.MethodPost, "/api/rooms/"+code+"/leave", host.token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, resp.StatusCode)
	}
	readUntil(t, conn, func(msg map[string]any) bool { return msg["type"] == "closed" })
}
