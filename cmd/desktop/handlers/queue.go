// Package handlers provides REST API handlers for the desktop companion UI.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/theonlywayisdigital/donedex-sub004/internal/errors"
	"github.com/theonlywayisdigital/donedex-sub004/internal/syncqueue"
)

// PendingNotifier pushes a fresh pending count to engine subscribers
// after the queue is mutated outside a drain.
type PendingNotifier interface {
	NotifyPending()
}

// WSQueueBroadcaster announces queue administration changes.
type WSQueueBroadcaster interface {
	BroadcastQueueUpdated(pending int)
}

// QueueHandler handles sync queue administration: inspecting queued
// items, removing them, and clearing retry state so exhausted items
// run again.
type QueueHandler struct {
	queue    *syncqueue.Queue
	notifier PendingNotifier
	wsHub    WSQueueBroadcaster
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(queue *syncqueue.Queue, notifier PendingNotifier) *QueueHandler {
	return &QueueHandler{
		queue:    queue,
		notifier: notifier,
		wsHub:    nil, // Set via SetWebSocketHub
	}
}

// SetWebSocketHub sets the WebSocket hub for broadcasting queue events.
func (h *QueueHandler) SetWebSocketHub(wsHub WSQueueBroadcaster) {
	h.wsHub = wsHub
}

// ListItems handles GET /api/queue
// Returns every queued item in FIFO order, retry state included.
func (h *QueueHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	items, err := h.queue.All()
	if err != nil {
		http.Error(w, "Failed to read queue", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"items": items,
		"total": len(items),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// DeleteItem handles DELETE /api/queue/{id}
// Drops a queued item. This is the only way an item leaves the queue
// without being delivered.
func (h *QueueHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		id = r.URL.Path[len("/api/queue/"):]
	}

	items, err := h.queue.All()
	if err != nil {
		http.Error(w, "Failed to read queue", http.StatusInternalServerError)
		return
	}
	found := false
	for _, item := range items {
		if item.ID == id {
			found = true
			break
		}
	}
	if !found {
		http.Error(w, "Queue item not found", http.StatusNotFound)
		return
	}

	if err := h.queue.Remove(id); err != nil {
		http.Error(w, "Failed to remove item", http.StatusInternalServerError)
		return
	}

	h.queueChanged()
	w.WriteHeader(http.StatusNoContent)
}

// RetryItem handles POST /api/queue/{id}/retry
// Zeroes the retry count for one item so the next drain attempts it
// again.
func (h *QueueHandler) RetryItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		path := r.URL.Path[len("/api/queue/"):]
		id = path[:len(path)-len("/retry")]
	}

	if err := h.queue.ResetRetries(id); err != nil {
		if errors.Is(err, errors.ErrQueueItemNotFound) {
			http.Error(w, "Queue item not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to reset retries", http.StatusInternalServerError)
		return
	}

	h.queueChanged()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "success",
	})
}

// RetryAll handles POST /api/queue/retry-all
// Zeroes the retry count for every failed item.
func (h *QueueHandler) RetryAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	count, err := h.queue.RetryAll()
	if err != nil {
		http.Error(w, "Failed to reset retries", http.StatusInternalServerError)
		return
	}

	if count > 0 {
		h.queueChanged()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "success",
		"reset":  count,
	})
}

// queueChanged pushes the new pending count to engine subscribers and
// the WebSocket hub after an administrative mutation.
func (h *QueueHandler) queueChanged() {
	if h.notifier != nil {
		h.notifier.NotifyPending()
	}
	if h.wsHub != nil {
		pending, err := h.queue.Size()
		if err != nil {
			return
		}
		h.wsHub.BroadcastQueueUpdated(pending)
	}
}
