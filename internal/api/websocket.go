package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/mattgrd/watchcrew/internal/models"
)

// ──────────────────── WebSocket Hub ────────────────────

// WSHub fans list events out to connected clients. Clients subscribe to the
// lists they are viewing; events for other lists are not delivered to them.
// The hub implements lists.Events.
type WSHub struct {
	mu      sync.RWMutex
	clients map[*WSClient]bool
}

type WSClient struct {
	conn   *websocket.Conn
	userID uuid.UUID
	send   chan []byte

	mu   sync.Mutex
	subs map[uuid.UUID]bool
}

func (c *WSClient) subscribed(listID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[listID]
}

func (c *WSClient) setSubscribed(listID uuid.UUID, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.subs[listID] = true
	} else {
		delete(c.subs, listID)
	}
}

func NewWSHub() *WSHub {
	return &WSHub{clients: make(map[*WSClient]bool)}
}

// Publish delivers a list event to every subscribed client. Slow clients are
// skipped, never waited on.
func (h *WSHub) Publish(ev models.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.subscribed(ev.ListID) {
			continue
		}
		select {
		case client.send <- msg:
		default:
		}
	}
}

func (h *WSHub) addClient(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *WSHub) removeClient(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ──────────────────── WebSocket Handler ────────────────────

// wsCommand is what clients send: subscribe/unsubscribe to a list's events.
type wsCommand struct {
	Action string    `json:"action"`
	ListID uuid.UUID `json:"list_id"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	claims, err := s.verifier.Verify(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[api] websocket accept error: %v", err)
		return
	}

	client := &WSClient{
		conn:   conn,
		userID: claims.UserID,
		send:   make(chan []byte, 64),
		subs:   make(map[uuid.UUID]bool),
	}
	s.wsHub.addClient(client)

	ctx := r.Context()

	go func() {
		defer conn.Close(websocket.StatusNormalClosure, "")
		for msg := range client.send {
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		var cmd wsCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}
		s.handleWSCommand(ctx, client, cmd)
	}

	s.wsHub.removeClient(client)
}

// handleWSCommand applies a subscribe/unsubscribe. Subscription reuses the
// read-visibility rule: members always, anyone for public lists.
func (s *Server) handleWSCommand(ctx context.Context, client *WSClient, cmd wsCommand) {
	switch cmd.Action {
	case "subscribe":
		if cmd.ListID == uuid.Nil {
			return
		}
		if _, err := s.svc.GetList(ctx, client.userID, cmd.ListID); err != nil {
			return
		}
		client.setSubscribed(cmd.ListID, true)
	case "unsubscribe":
		client.setSubscribed(cmd.ListID, false)
	}
}
