// Package handlers provides REST API handlers for the desktop companion UI.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/theonlywayisdigital/donedex-sub004/internal/errors"
	"github.com/theonlywayisdigital/donedex-sub004/internal/netmon"
	syncpkg "github.com/theonlywayisdigital/donedex-sub004/internal/sync"
)

// SyncService is the engine surface the sync endpoints drive.
type SyncService interface {
	SyncNow(ctx context.Context) (syncpkg.DrainResult, error)
	Status() syncpkg.Status
}

// WSSyncBroadcaster announces sync triggers that never reached the
// engine, so the UI hears about rejected requests too.
type WSSyncBroadcaster interface {
	BroadcastSyncFailed(errorCode string, message string)
}

// SyncHandler handles sync status and manual trigger operations.
type SyncHandler struct {
	engine  SyncService
	monitor *netmon.Monitor
	wsHub   WSSyncBroadcaster
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(engine SyncService, monitor *netmon.Monitor) *SyncHandler {
	return &SyncHandler{
		engine:  engine,
		monitor: monitor,
		wsHub:   nil, // Set via SetWebSocketHub
	}
}

// SetWebSocketHub sets the WebSocket hub for broadcasting sync events.
func (h *SyncHandler) SetWebSocketHub(wsHub WSSyncBroadcaster) {
	h.wsHub = wsHub
}

// GetStatus handles GET /api/sync/status
// Returns the drain state, pending count, last successful sync and the
// current network observation.
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := h.engine.Status()

	response := map[string]interface{}{
		"is_syncing":    status.IsSyncing,
		"pending_count": status.PendingCount,
		"network":       string(h.monitor.State()),
	}
	if status.LastSync != nil {
		response["last_sync"] = status.LastSync.Unix()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// TriggerSync handles POST /api/sync/now
// Runs a manual drain. Manual drains attempt every queued item,
// including ones past the retry ceiling.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := h.engine.SyncNow(r.Context())
	if err != nil {
		code := errors.CodeOf(err)
		if h.wsHub != nil {
			h.wsHub.BroadcastSyncFailed(string(code), err.Error())
		}

		switch {
		case errors.Is(err, errors.ErrSyncInProgress):
			http.Error(w, "Sync already in progress", http.StatusConflict)
		case errors.Is(err, errors.ErrSyncOffline):
			http.Error(w, "Network unreachable", http.StatusServiceUnavailable)
		default:
			http.Error(w, "Sync failed: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	response := map[string]interface{}{
		"status":  "success",
		"success": result.Success,
		"failed":  result.Failed,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
