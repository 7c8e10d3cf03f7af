// Package websocket pushes store updates to each player's open sockets.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tahcohcat/meechain/internal/auth"
	"github.com/tahcohcat/meechain/internal/logger"
	"github.com/tahcohcat/meechain/internal/progress"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origins are enforced by the CORS layer and the session cookie.
		return true
	},
}

// Envelope is the frame every message is wrapped in.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SnapshotFunc supplies the state sent to a socket right after it connects.
type SnapshotFunc func(ctx context.Context, playerID string) (progress.Update, error)

type message struct {
	playerID string
	payload  []byte
}

type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	snapshot   SnapshotFunc
	logger     *logger.Log
}

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	playerID string
	send     chan []byte
}

func NewHub(snapshot SnapshotFunc) *Hub {
	return &Hub{
		broadcast:  make(chan message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string]map[*Client]bool),
		snapshot:   snapshot,
		logger:     logger.New().With("component", "websocket"),
	}
}

// Run owns the client set until ctx is cancelled, then closes every socket.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			room := h.clients[client.playerID]
			if room == nil {
				room = make(map[*Client]bool)
				h.clients[client.playerID] = room
			}
			room[client] = true
			h.logger.With("player", client.playerID).Debug("client connected")

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			for client := range h.clients[msg.playerID] {
				select {
				case client.send <- msg.payload:
				default:
					h.remove(client)
				}
			}

		case <-ctx.Done():
			for _, room := range h.clients {
				for client := range room {
					close(client.send)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	room, ok := h.clients[client.playerID]
	if !ok || !room[client] {
		return
	}
	delete(room, client)
	close(client.send)
	if len(room) == 0 {
		delete(h.clients, client.playerID)
	}
	h.logger.With("player", client.playerID).Debug("client disconnected")
}

// StateChanged implements progress.Listener. It never blocks the store: a
// full broadcast queue drops the update.
func (h *Hub) StateChanged(u progress.Update) {
	payload, err := json.Marshal(Envelope{Type: "state", Data: u})
	if err != nil {
		h.logger.WithError(err).Error("failed to encode state update")
		return
	}

	select {
	case h.broadcast <- message{playerID: u.State.PlayerID, payload: payload}:
	default:
		h.logger.With("player", u.State.PlayerID).Warn("broadcast queue full, dropping update")
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).Warn("websocket read error")
			}
			break
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.hub.logger.WithError(err).Warn("websocket write error")
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ServeHTTP upgrades the request. It must sit behind auth.Middleware.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	playerID, ok := auth.PlayerFromContext(r.Context())
	if !ok {
		http.Error(w, "Wallet not connected", http.StatusUnauthorized)
		return
	}

	var first []byte
	if h.snapshot != nil {
		u, err := h.snapshot(r.Context(), playerID)
		if err != nil {
			h.logger.WithError(err).Error("failed to load initial state")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		first, _ = json.Marshal(Envelope{Type: "state", Data: u})
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade error")
		return
	}

	client := &Client{hub: h, conn: conn, playerID: playerID, send: make(chan []byte, 256)}
	if first != nil {
		client.send <- first
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
