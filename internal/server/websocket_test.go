package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"directory-server-lite/internal/auth"
	"directory-server-lite/internal/directory"
)

type wsMessage struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body"`
}

func dialDirectory(t *testing.T, env *testEnv, token string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/directory/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil skips messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(wsMessage) bool) wsMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func viewMatching(t *testing.T, pred func(directory.ListView) bool) func(wsMessage) bool {
	return func(msg wsMessage) bool {
		if msg.Type != "view" {
			return false
		}
		var v directory.ListView
		if err := json.Unmarshal(msg.Body, &v); err != nil {
			t.Fatalf("unmarshal view: %v", err)
		}
		return pred(v)
	}
}

func TestWebSocketPingPong(t *testing.T) {
	env := newTestEnv(t)
	tok := env.mount(t).Token
	conn := dialDirectory(t, env, tok)

	readUntil(t, conn, func(m wsMessage) bool { return m.Type == "view" })

	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	readUntil(t, conn, func(m wsMessage) bool { return m.Type == "pong" })
}

func TestWebSocketPushesViews(t *testing.T) {
	env := newTestEnv(t)
	tok := env.mount(t).Token
	conn := dialDirectory(t, env, tok)

	readUntil(t, conn, viewMatching(t, func(v directory.ListView) bool {
		return v.Kind == "list" && len(v.Rows) == 3
	}))

	if err := conn.WriteJSON(map[string]any{"type": "query", "query": "Smith"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	readUntil(t, conn, viewMatching(t, func(v directory.ListView) bool {
		return v.Phase == "client-filtering" && len(v.Rows) == 1 && v.Rows[0].ID == 2
	}))

	if err := conn.WriteJSON(map[string]any{"type": "escalate"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	readUntil(t, conn, viewMatching(t, func(v directory.ListView) bool {
		return v.Phase == "server-searching" && v.Kind == "list" && len(v.Rows) == 1
	}))

	if err := conn.WriteJSON(map[string]any{"type": "more"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	msg := readUntil(t, conn, func(m wsMessage) bool { return m.Type == "result" })
	if msg.Event != "more" {
		t.Fatalf("expected result for more, got %q", msg.Event)
	}
}

func TestWebSocketRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/directory/ws?token=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 response, got %+v", resp)
	}
}

func TestWebSocketClosedOnUnmount(t *testing.T) {
	env := newTestEnv(t)
	tok := env.mount(t).Token
	conn := dialDirectory(t, env, tok)
	readUntil(t, conn, func(m wsMessage) bool { return m.Type == "view" })

	deadline := time.Now().Add(time.Second)
	for env.hub.Count(mountedSession(t, tok, env)) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	w := env.do(t, http.MethodDelete, "/v1/directory/sessions", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func mountedSession(t *testing.T, token string, env *testEnv) string {
	t.Helper()
	claims, err := auth.VerifyToken(token, env.tokenCfg)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	return claims.SessionID
}

func TestWebSocketEscalateSharesSessionRateLimit(t *testing.T) {
	env := newTestEnvWithLimit(t, 1)
	tok := env.mount(t).Token

	decodeView(t, env.do(t, http.MethodPut, "/v1/directory/query", tok, map[string]string{"query": "xyz"}))
	w := env.do(t, http.MethodPost, "/v1/directory/escalate", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/v1/directory/escalate", tok, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	conn := dialDirectory(t, env, tok)
	readUntil(t, conn, func(m wsMessage) bool { return m.Type == "view" })
	if err := conn.WriteJSON(map[string]any{"type": "escalate"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	msg := readUntil(t, conn, func(m wsMessage) bool { return m.Type == "error" })
	if msg.Event != "escalate" || !strings.Contains(string(msg.Body), "Rate limit exceeded") {
		t.Fatalf("unexpected error message %+v", msg)
	}
}
