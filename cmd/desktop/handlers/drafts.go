// Package handlers provides REST API handlers for the desktop companion UI.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/theonlywayisdigital/donedex-sub004/internal/drafts"
	"github.com/theonlywayisdigital/donedex-sub004/internal/models"
)

// DraftHandler handles in-progress inspection draft CRUD for the local
// UI. Drafts are keyed by report id.
type DraftHandler struct {
	drafts *drafts.Store
}

// NewDraftHandler creates a new DraftHandler.
func NewDraftHandler(store *drafts.Store) *DraftHandler {
	return &DraftHandler{drafts: store}
}

// ListDrafts handles GET /api/drafts
func (h *DraftHandler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	all, err := h.drafts.ListAll()
	if err != nil {
		http.Error(w, "Failed to read drafts", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"drafts": all,
		"total":  len(all),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// GetDraft handles GET /api/drafts/{reportId}
func (h *DraftHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reportID := h.reportID(r)
	draft, err := h.drafts.Load(reportID)
	if err != nil {
		http.Error(w, "Failed to read draft", http.StatusInternalServerError)
		return
	}
	if draft == nil {
		http.Error(w, "Draft not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(draft)
}

// PutDraft handles PUT /api/drafts/{reportId}
// Replaces the stored draft for the report. The report id in the path
// wins over any id in the body.
func (h *DraftHandler) PutDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reportID := h.reportID(r)
	if reportID == "" {
		http.Error(w, "reportId is required", http.StatusBadRequest)
		return
	}

	var request struct {
		Responses []models.ResponseEntry `json:"responses"`
		Version   int                    `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	draft := models.InspectionDraft{
		ReportID:  reportID,
		Responses: request.Responses,
		Version:   request.Version,
	}
	if err := h.drafts.Save(draft); err != nil {
		http.Error(w, "Failed to save draft", http.StatusInternalServerError)
		return
	}

	// Re-read so the response carries the stamped LastUpdated.
	saved, err := h.drafts.Load(reportID)
	if err != nil || saved == nil {
		http.Error(w, "Failed to read saved draft", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(saved)
}

// DeleteDraft handles DELETE /api/drafts/{reportId}
// Deleting an absent draft succeeds; the store treats it as a no-op.
func (h *DraftHandler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reportID := h.reportID(r)
	if err := h.drafts.Delete(reportID); err != nil {
		http.Error(w, "Failed to delete draft", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// reportID extracts the report id path parameter.
func (h *DraftHandler) reportID(r *http.Request) string {
	id := r.PathValue("reportId")
	if id == "" && len(r.URL.Path) > len("/api/drafts/") {
		id = r.URL.Path[len("/api/drafts/"):]
	}
	return id
}
