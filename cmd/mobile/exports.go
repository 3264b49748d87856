// Package main FFI exports for draft, queue and sync operations.
// All exported functions use C calling convention and can be called
// from Dart/Kotlin/Swift FFI. Results are JSON strings the caller must
// free with FreeString; nil signals an error readable via GetLastError.
package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/theonlywayisdigital/donedex-sub004/internal/models"
)

// =====================================================
// Draft Operations
// =====================================================

//export DraftSave
// DraftSave stores the draft JSON under its report id.
// Returns the stored draft (LastUpdated stamped) as JSON.
func DraftSave(draftJSON *C.char) *C.char {
	if core == nil {
		setLastError("Core not initialized")
		return nil
	}

	var draft models.InspectionDraft
	if err := json.Unmarshal([]byte(C.GoString(draftJSON)), &draft); err != nil {
		setLastError(fmt.Sprintf("Invalid draft JSON: %v", err))
		return nil
	}

	if err := core.drafts.Save(draft); err != nil {
		setLastError(fmt.Sprintf("Failed to save draft: %v", err))
		return nil
	}

	stored, err := core.drafts.Load(draft.ReportID)
	if err != nil || stored == nil {
		setLastError(fmt.Sprintf("Failed to read saved draft: %v", err))
		return nil
	}

	data, err := json.Marshal(stored)
	if err != nil {
		setLastError(fmt.Sprintf("Failed to serialize: %v", err))
		return nil
	}

	return C.CString(string(data))
}

//export DraftLoad
// DraftLoad returns the draft for a report id as JSON.
func DraftLoad(reportID *C.char) *C.char {
	if core == nil {
		setLastError("Core not initialized")
		return nil
	}

	draft, err := core.drafts.Load(C.GoString(reportID))
	if err != nil {
		setLastError(fmt.Sprintf("Failed to load draft: %v", err))
		return nil
	}
	if draft == nil {
		setLastError("Draft not found")
		return nil
	}

	data, err := json.Marshal(draft)
	if err != nil {
		setLastError(fmt.Sprintf("Failed to serialize: %v", err))
		return nil
	}

	return C.CString(string(data))
}

//export DraftDelete
// DraftDelete removes the draft for a report id.
// Returns 0 on success, non-zero on error. Deleting an absent draft
// succeeds.
func DraftDelete(reportID *C.char) int32 {
	if core == nil {
		setLastError("Core not initialized")
		return 1
	}

	if err := core.drafts.Delete(C.GoString(reportID)); err != nil {
		setLastError(fmt.Sprintf("Failed to delete draft: %v", err))
		return 1
	}

	return 0
}

//export DraftList
// DraftList returns every stored draft as JSON.
func DraftList() *C.char {
	if core == nil {
		setLastError("Core not initialized")
		return nil
	}

	all, err := core.drafts.ListAll()
	if err != nil {
		setLastError(fmt.Sprintf("Failed to list drafts: %v", err))
		return nil
	}

	response := map[string]interface{}{
		"drafts": all,
		"total":  len(all),
	}

	data, err := json.Marshal(response)
	if err != nil {
		setLastError(fmt.Sprintf("Failed to serialize: %v", err))
		return nil
	}

	return C.CString(string(data))
}

// =====================================================
// Queue Operations
// =====================================================

//export QueueEnqueue
// QueueEnqueue appends a sync item. kind is Response, Photo or
// ReportSubmit; payloadJSON must match the kind. Returns the queued
// item as JSON.
func QueueEnqueue(kind *C.char, payloadJSON *C.char) *C.char {
	if core == nil {
		setLastError("Core not initialized")
		return nil
	}

	syncKind := models.SyncKind(C.GoString(kind))
	raw := json.RawMessage(C.GoString(payloadJSON))

	// Reject malformed payloads at the door instead of at dispatch.
	if _, err := models.DecodePayload(syncKind, raw); err != nil {
		setLastError(fmt.Sprintf("Invalid payload: %v", err))
		return nil
	}

	item, err := core.queue.Enqueue(syncKind, raw)
	if err != nil {
		setLastError(fmt.Sprintf("Failed to enqueue: %v", err))
		return nil
	}

	core.engine.NotifyPending()

	data, err := json.Marshal(item)
	if err != nil {
		setLastError(fmt.Sprintf("Failed to serialize: %v", err))
		return nil
	}

	return C.CString(string(data))
}

//export QueuePending
// QueuePending returns the queued item count as JSON.
func QueuePending() *C.char {
	if core == nil {
		setLastError("Core not initialized")
		return nil
	}

	pending, err := core.queue.Size()
	if err != nil {
		setLastError(fmt.Sprintf("Failed to read queue: %v", err))
		return nil
	}

	data, err := json.Marshal(map[string]interface{}{"pending": pending})
	if err != nil {
		setLastError(fmt.Sprintf("Failed to serialize: %v", err))
		return nil
	}

	return C.CString(string(data))
}

// =====================================================
// Sync Operations
// =====================================================

//export SyncNow
// SyncNow runs a manual drain and returns {success, failed} as JSON.
// Manual drains attempt every queued item, including ones past the
// retry ceiling.
func SyncNow() *C.char {
	if core == nil {
		setLastError("Core not initialized")
		return nil
	}

	result, err := core.engine.SyncNow(context.Background())
	if err != nil {
		setLastError(fmt.Sprintf("Sync failed: %v", err))
		return nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		setLastError(fmt.Sprintf("Failed to serialize: %v", err))
		return nil
	}

	return C.CString(string(data))
}

//export SyncStatus
// SyncStatus returns {isSyncing, pendingCount, lastSync} as JSON.
func SyncStatus() *C.char {
	if core == nil {
		setLastError("Core not initialized")
		return nil
	}

	data, err := json.Marshal(core.engine.Status())
	if err != nil {
		setLastError(fmt.Sprintf("Failed to serialize: %v", err))
		return nil
	}

	return C.CString(string(data))
}

//export SetNetworkState
// SetNetworkState pushes a connectivity observation from the host
// platform. An offline to online transition triggers a background
// drain.
func SetNetworkState(online int32) {
	if core == nil {
		setLastError("Core not initialized")
		return
	}

	core.monitor.SetState(online != 0)
}
