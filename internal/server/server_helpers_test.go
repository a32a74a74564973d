package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type player struct {
	token         string
	userID        string
	participantID string
}

func createSession(t *testing.T, ts *httptest.Server, name string) player {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/sessions", "", map[string]string{"name": name})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	return player{
		token:  body["token"].(string),
		userID: body["user_id"].(string),
	}
}

func createRoom(t *testing.T, ts *httptest.Server, host *player) string {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms", host.token, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	host.participantID = body["participant_id"].(string)
	return body["code"].(string)
}

func joinRoom(t *testing.T, ts *httptest.Server, code string, p *player) {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/join", p.token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	viewer := roomOf(t, decodeBody(t, resp))["viewer"].(map[string]any)
	p.participantID = viewer["participant_id"].(string)
}

func fetchRoom(t *testing.T, ts *httptest.Server, code string, p player) map[string]any {
	t.Helper()
	resp := doRequest(t, ts, http.MethodGet, "/api/rooms/"+code, p.token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	return roomOf(t, decodeBody(t, resp))
}

func postAction(t *testing.T, ts *httptest.Server, code, action string, p player, payload any, want int) map[string]any {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/"+action, p.token, payload)
	body := decodeBody(t, resp)
	if resp.StatusCode != want {
		t.Fatalf("%s: expected status %d, got %d (%v)", action, want, resp.StatusCode, body["error"])
	}
	return body
}

func waitForPhase(t *testing.T, ts *httptest.Server, code string, p player, phase string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		view := fetchRoom(t, ts, code, p)
		if view["phase"] == phase {
			return view
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for phase %s", phase)
	return nil
}

func doRequest(t *testing.T, ts *httptest.Server, method, path, token string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func roomOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	view, ok := body["room"].(map[string]any)
	if !ok {
		t.Fatalf("expected room payload, got %#v", body)
	}
	return view
}

func assertString(t *testing.T, value any) {
	t.Helper()
	if _, ok := value.(string); !ok {
		t.Fatalf("expected string, got %T", value)
	}
}
