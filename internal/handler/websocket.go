package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"directory-server-lite/internal/directory"
	"directory-server-lite/internal/hub"
	"directory-server-lite/internal/middleware"
)

// WebSocketHandler serves the view push channel. EscalateLimiter is the
// limiter of the HTTP escalate route so both paths share one budget.
type WebSocketHandler struct {
	Hub             *hub.Hub
	Service         *directory.Service
	EscalateLimiter *middleware.RateLimiter
}

type clientMessage struct {
	Type  string `json:"type"`
	Query string `json:"query,omitempty"`
}

type serverMessage struct {
	Type  string      `json:"type"`
	Event string      `json:"event,omitempty"`
	Body  interface{} `json:"body,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsWriter serializes writes: views are pushed from the screen while the
// read loop answers requests.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (w *wsWriter) send(msg serverMessage) error {
	out, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return w.Write(out)
}

// HubNotifier pushes screen changes to the session's websocket connections.
type HubNotifier struct {
	Hub *hub.Hub
}

func (n HubNotifier) ViewChanged(sessionID string, view directory.ListView) {
	out, err := json.Marshal(serverMessage{Type: "view", Body: view})
	if err != nil {
		slog.Error("marshal view failed", "session_id", sessionID, "error", err)
		return
	}
	n.Hub.Broadcast(sessionID, out)
}

func (n HubNotifier) SessionClosed(sessionID string) {
	n.Hub.CloseSession(sessionID)
}

func (h *WebSocketHandler) Serve(c *gin.Context) {
	sessionID, ok := middleware.SessionIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	screen, err := h.Service.Screen(sessionID)
	if err != nil {
		respondScreenError(c, err)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	writer := &wsWriter{conn: ws}
	conn := &hub.Connection{SessionID: sessionID, Writer: writer}
	h.Hub.Register(conn)
	defer func() {
		h.Hub.Unregister(conn)
		_ = ws.Close()
	}()

	if err := writer.send(serverMessage{Type: "view", Body: screen.View()}); err != nil {
		return
	}

	ws.SetReadLimit(64 * 1024)
	const pongWait = 60 * time.Second
	const writeWait = 10 * time.Second
	pingPeriod := (pongWait * 9) / 10

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() {
		closeOnce.Do(func() {
			close(done)
		})
	}
	defer closeDone()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		var opErr error
		switch msg.Type {
		case "ping":
			_ = writer.send(serverMessage{Type: "pong"})
			continue
		case "query":
			if len([]rune(msg.Query)) > 100 {
				_ = writer.send(serverMessage{Type: "error", Event: msg.Type, Body: gin.H{"error": "Invalid request"}})
				continue
			}
			opErr = screen.SetQuery(msg.Query)
		case "escalate":
			if h.EscalateLimiter != nil && !h.EscalateLimiter.Allow(middleware.SessionLimitKey(sessionID)) {
				_ = writer.send(serverMessage{Type: "error", Event: msg.Type, Body: gin.H{"error": "Rate limit exceeded"}})
				continue
			}
			opErr = screen.EscalateToServer()
		case "clear":
			opErr = screen.Clear()
		case "more", "refresh":
			op := screen.LoadMore
			if msg.Type == "refresh" {
				op = screen.Refresh
			}
			var accepted bool
			accepted, opErr = op()
			if opErr == nil {
				_ = writer.send(serverMessage{Type: "result", Event: msg.Type, Body: gin.H{"accepted": accepted}})
			}
		default:
			continue
		}

		if opErr != nil {
			_ = writer.send(serverMessage{Type: "error", Event: msg.Type, Body: gin.H{"error": "Session not found"}})
			return
		}
	}
}
