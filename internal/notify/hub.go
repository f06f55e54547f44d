package notify

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub maintains active connections per user and delivers notifications.
type Hub struct {
	// Map of userId -> set of connections (a user may have several devices)
	users map[string]map[*Client]bool
	mu    sync.RWMutex

	register   chan *Client
	unregister chan *Client
	deliver    chan *delivery

	upgrader websocket.Upgrader
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

type delivery struct {
	userID  string
	message []byte
}

// NewHub creates a Hub that accepts browser upgrades from allowedOrigin only.
// An empty allowedOrigin disables the check (local dev). Requests without an
// Origin header (non-browser clients) are always accepted.
func NewHub(allowedOrigin string) *Hub {
	return &Hub{
		users:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan *delivery),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowedOrigin == "" {
					return true
				}
				return origin == allowedOrigin
			},
		},
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.users[client.userID] == nil {
				h.users[client.userID] = make(map[*Client]bool)
			}
			h.users[client.userID][client] = true
			h.mu.Unlock()
			log.Printf("Notify client registered: user=%s", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.users[client.userID]; ok {
				if _, ok := conns[client]; ok {
					delete(conns, client)
					close(client.send)
					if len(conns) == 0 {
						delete(h.users, client.userID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("Notify client unregistered: user=%s", client.userID)

		case d := <-h.deliver:
			h.mu.RLock()
			if conns, ok := h.users[d.userID]; ok {
				for client := range conns {
					select {
					case client.send <- d.message:
					default:
						close(client.send)
						delete(conns, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Send queues a message for every open connection of userID. No-op when the
// user has none.
func (h *Hub) Send(userID string, message []byte) {
	h.deliver <- &delivery{userID: userID, message: message}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Serve upgrades a subscription request and registers the connection under
// userID. The caller supplies the identity resolved by the identity
// middleware or the userId query parameter.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	if userID == "" {
		http.Error(w, "Missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 256),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}
