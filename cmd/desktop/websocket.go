// Package main provides WebSocket server for real-time sync events (desktop only).
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Only allow connections from localhost
		host := r.Host
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		return host == "localhost" || host == "127.0.0.1"
	},
}

// WSClient represents a WebSocket client connection.
type WSClient struct {
	id            string
	conn          *websocket.Conn
	send          chan []byte
	hub           *WSHub
	mu            sync.Mutex
	subscriptions map[string]bool
}

// wsMessage pairs an event name with its encoded envelope so the hub
// can filter per-client subscriptions at broadcast time.
type wsMessage struct {
	event   string
	payload []byte
}

// WSHub maintains active client connections and broadcasts messages.
type WSHub struct {
	clients    map[string]*WSClient
	broadcast  chan wsMessage
	register   chan *WSClient
	unregister chan *WSClient
	mu         sync.Mutex
}

// WSEnvelope wraps all WebSocket messages.
type WSEnvelope struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// =====================================================
// WebSocket Event Types
// =====================================================

const (
	// Sync drain lifecycle events
	EventSyncStarted   = "sync.started"
	EventSyncProgress  = "sync.progress"
	EventSyncCompleted = "sync.completed"
	EventSyncFailed    = "sync.failed"

	// Connectivity events
	EventNetworkChanged = "network.changed"

	// Queue administration events
	EventQueueUpdated   = "queue.updated"
	EventQueueCorrupted = "queue.corrupted"
)

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	hub := &WSHub{
		clients:    make(map[string]*WSClient),
		broadcast:  make(chan wsMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
	go hub.run()
	return hub
}

// run manages client connections and broadcasts.
func (h *WSHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] Client connected: %s (total: %d)", client.id, total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] Client disconnected: %s (total: %d)", client.id, total)

		case message := <-h.broadcast:
			h.mu.Lock()
			for _, client := range h.clients {
				if !client.wants(message.event) {
					continue
				}
				select {
				case client.send <- message.payload:
				default:
					// Client send buffer is full, close connection
					close(client.send)
					delete(h.clients, client.id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event to all subscribed clients.
func (h *WSHub) Broadcast(eventType string, data map[string]interface{}) {
	envelope := WSEnvelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("[WS] Failed to marshal message: %v", err)
		return
	}

	h.broadcast <- wsMessage{event: eventType, payload: bytes}
}

// =====================================================
// Sync Event Broadcasters
// =====================================================

// BroadcastSyncStarted notifies clients that a drain pass has started.
func (h *WSHub) BroadcastSyncStarted(pending int) {
	h.Broadcast(EventSyncStarted, map[string]interface{}{
		"pending": pending,
	})
}

// BroadcastSyncProgress notifies clients that a queue item settled
// during the current drain.
func (h *WSHub) BroadcastSyncProgress(pending int) {
	h.Broadcast(EventSyncProgress, map[string]interface{}{
		"pending": pending,
	})
}

// BroadcastSyncCompleted notifies clients that the drain pass finished.
// pending carries the items still queued, usually failures awaiting a
// retry.
func (h *WSHub) BroadcastSyncCompleted(pending int) {
	h.Broadcast(EventSyncCompleted, map[string]interface{}{
		"pending": pending,
	})
}

// BroadcastSyncFailed notifies clients that a requested sync could not
// run at all, e.g. offline or already in progress.
func (h *WSHub) BroadcastSyncFailed(errorCode string, message string) {
	h.Broadcast(EventSyncFailed, map[string]interface{}{
		"error_code": errorCode,
		"message":    message,
	})
}

// =====================================================
// Network and Queue Event Broadcasters
// =====================================================

// BroadcastNetworkChanged notifies clients of a connectivity observation.
func (h *WSHub) BroadcastNetworkChanged(online bool) {
	h.Broadcast(EventNetworkChanged, map[string]interface{}{
		"online": online,
	})
}

// BroadcastQueueUpdated notifies clients that queue contents changed
// outside a drain, e.g. an item was removed or reset for retry.
func (h *WSHub) BroadcastQueueUpdated(pending int) {
	h.Broadcast(EventQueueUpdated, map[string]interface{}{
		"pending": pending,
	})
}

// BroadcastQueueCorrupted notifies clients that a persisted store was
// unreadable and has been reset to empty.
func (h *WSHub) BroadcastQueueCorrupted(store string, errMsg string) {
	h.Broadcast(EventQueueCorrupted, map[string]interface{}{
		"store": store,
		"error": errMsg,
	})
}

// wants reports whether the client should receive the event. A client
// with no explicit subscriptions receives everything.
func (c *WSClient) wants(event string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subscriptions) == 0 {
		return true
	}
	return c.subscriptions[event]
}

// readPump pumps messages from the WebSocket connection.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Read error: %v", err)
			}
			break
		}

		// Handle client messages
		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("[WS] Invalid message format: %v", err)
			continue
		}

		action, ok := msg["action"].(string)
		if !ok {
			continue
		}

		switch action {
		case "subscribe":
			if events, ok := msg["events"].([]interface{}); ok {
				c.mu.Lock()
				for _, e := range events {
					if eventStr, ok := e.(string); ok {
						c.subscriptions[eventStr] = true
					}
				}
				c.mu.Unlock()
				// Send acknowledgment
				c.sendAck("subscribe_ack", events)
			}

		case "unsubscribe":
			if events, ok := msg["events"].([]interface{}); ok {
				c.mu.Lock()
				for _, e := range events {
					if eventStr, ok := e.(string); ok {
						delete(c.subscriptions, eventStr)
					}
				}
				c.mu.Unlock()
			}

		case "ping":
			// Respond with pong
			c.sendPong()
		}
	}
}

// writePump pumps messages to the WebSocket connection.
func (c *WSClient) writePump() {
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

// sendAck sends a subscription acknowledgment.
func (c *WSClient) sendAck(action string, events []interface{}) {
	envelope := map[string]interface{}{
		"action":     action,
		"subscribed": events,
		"timestamp":  time.Now().Unix(),
	}

	bytes, _ := json.Marshal(envelope)
	c.send <- bytes
}

// sendPong sends a pong response.
func (c *WSClient) sendPong() {
	envelope := map[string]interface{}{
		"action":    "pong",
		"timestamp": time.Now().Unix(),
	}

	bytes, _ := json.Marshal(envelope)
	c.send <- bytes
}

// HandleWebSocket handles WebSocket connections.
func HandleWebSocket(hub *WSHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Upgrade to WebSocket
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[WS] Failed to upgrade: %v", err)
			return
		}

		// Generate client ID
		clientID := time.Now().Format("20060102150405") + "-" + r.RemoteAddr

		client := &WSClient{
			id:            clientID,
			conn:          conn,
			send:          make(chan []byte, 256),
			hub:           hub,
			subscriptions: make(map[string]bool),
		}

		hub.register <- client

		// Start pumps
		go client.writePump()
		go client.readPump()
	}
}
