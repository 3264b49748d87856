// Package models provides data model definitions for the DoneDex sync core.
package models

import "time"

// ResponseEntry is one checklist item response within a draft.
// Entries are keyed by TemplateItemID; FieldUpdatedAt (epoch millis) orders
// concurrent edits of the same entry.
type ResponseEntry struct {
	TemplateItemID string   `json:"templateItemId"`
	ResponseValue  string   `json:"responseValue"`
	Photos         []string `json:"photos,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	Severity       string   `json:"severity,omitempty"`
	FieldUpdatedAt int64    `json:"fieldUpdatedAt"`
}

// InspectionDraft is the locally persisted working copy of an inspection
// report, keyed by ReportID. Version is maintained by the caller and must
// only ever increase for a given report.
type InspectionDraft struct {
	ReportID    string          `json:"reportId"`
	Responses   []ResponseEntry `json:"responses"`
	Version     int             `json:"version"`
	LastUpdated int64           `json:"lastUpdated"`
}

// LastUpdatedTime returns the LastUpdated as time.Time.
func (d *InspectionDraft) LastUpdatedTime() time.Time {
	return time.UnixMilli(d.LastUpdated)
}

// Touch updates the LastUpdated timestamp.
func (d *InspectionDraft) Touch() {
	d.LastUpdated = time.Now().UnixMilli()
}

// Response returns the entry for a template item, if present.
func (d *InspectionDraft) Response(templateItemID string) (ResponseEntry, bool) {
	for _, entry := range d.Responses {
		if entry.TemplateItemID == templateItemID {
			return entry, true
		}
	}
	return ResponseEntry{}, false
}

// SetResponse upserts an entry keyed by its TemplateItemID. An existing
// entry keeps its position in the list; new entries append.
func (d *InspectionDraft) SetResponse(entry ResponseEntry) {
	for i, existing := range d.Responses {
		if existing.TemplateItemID == entry.TemplateItemID {
			d.Responses[i] = entry
			return
		}
	}
	d.Responses = append(d.Responses, entry)
}
