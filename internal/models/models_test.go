// Package models tests for data model definitions.
package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// =====================================================
// SyncKind Tests
// =====================================================

// TestSyncKind_Valid verifies kind validation.
func TestSyncKind_Valid(t *testing.T) {
	tests := []struct {
		name string
		kind SyncKind
		want bool
	}{
		{"response", KindResponse, true},
		{"photo", KindPhoto, true},
		{"report submit", KindReportSubmit, true},
		{"empty", SyncKind(""), false},
		{"unknown", SyncKind("Upload"), false},
		{"lowercase response", SyncKind("response"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.kind.Valid(); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

// =====================================================
// SyncItem Tests
// =====================================================

// TestSyncItem_CreatedAtTime verifies timestamp conversion.
func TestSyncItem_CreatedAtTime(t *testing.T) {
	expected := time.UnixMilli(1609459200000) // 2021-01-01 00:00:00 UTC
	item := SyncItem{CreatedAt: 1609459200000}

	result := item.CreatedAtTime()
	if !result.Equal(expected) {
		t.Errorf("CreatedAtTime() = %v, want %v", result, expected)
	}
}

// TestSyncItem_CanRetry verifies the retry ceiling check.
func TestSyncItem_CanRetry(t *testing.T) {
	tests := []struct {
		name       string
		retryCount int
		want       bool
	}{
		{"fresh item", 0, true},
		{"one failure", 1, true},
		{"two failures", 2, true},
		{"at ceiling", 3, false},
		{"beyond ceiling", 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := SyncItem{RetryCount: tt.retryCount}
			if got := item.CanRetry(); got != tt.want {
				t.Errorf("CanRetry() with retryCount=%d = %v, want %v", tt.retryCount, got, tt.want)
			}
			if got := item.Exhausted(); got == tt.want {
				t.Errorf("Exhausted() with retryCount=%d = %v, want %v", tt.retryCount, got, !tt.want)
			}
		})
	}
}

// TestSyncItem_RecordFailure verifies retry accounting below the ceiling.
func TestSyncItem_RecordFailure(t *testing.T) {
	item := SyncItem{}

	item.RecordFailure("remote returned 503")

	if item.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", item.RetryCount)
	}

	if item.LastError != "remote returned 503" {
		t.Errorf("LastError = %q, want 'remote returned 503'", item.LastError)
	}
}

// TestSyncItem_RecordFailure_ceiling verifies the sentinel at the ceiling.
func TestSyncItem_RecordFailure_ceiling(t *testing.T) {
	item := SyncItem{}

	item.RecordFailure("first failure")
	item.RecordFailure("second failure")
	item.RecordFailure("third failure")

	if item.RetryCount != MaxRetryCount {
		t.Errorf("RetryCount = %d, want %d", item.RetryCount, MaxRetryCount)
	}

	if item.LastError != MaxRetriesMessage {
		t.Errorf("LastError = %q, want %q", item.LastError, MaxRetriesMessage)
	}

	// The item is never dropped; a further failure keeps the sentinel.
	item.RecordFailure("fourth failure")

	if item.RetryCount != 4 {
		t.Errorf("RetryCount after 4th failure = %d, want 4", item.RetryCount)
	}

	if item.LastError != MaxRetriesMessage {
		t.Errorf("LastError after 4th failure = %q, want %q", item.LastError, MaxRetriesMessage)
	}
}

// TestSyncItem_ResetRetries verifies manual retry clears failure state.
func TestSyncItem_ResetRetries(t *testing.T) {
	item := SyncItem{RetryCount: 3, LastError: MaxRetriesMessage}

	item.ResetRetries()

	if item.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", item.RetryCount)
	}

	if item.LastError != "" {
		t.Errorf("LastError = %q, want empty", item.LastError)
	}
}

// TestSyncItem_jsonRoundTrip verifies wire field names match the mobile clients.
func TestSyncItem_jsonRoundTrip(t *testing.T) {
	item := SyncItem{
		ID:         "f47ac10b-58cc-4372-a567-0e02b2c3d479",
		Kind:       KindResponse,
		Payload:    json.RawMessage(`{"reportId":"R1","templateItemId":"T1","responseValue":"pass"}`),
		CreatedAt:  1609459200000,
		RetryCount: 2,
		LastError:  "remote returned 503",
	}

	data, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	for _, field := range []string{`"id"`, `"kind"`, `"payload"`, `"createdAt"`, `"retryCount"`, `"lastError"`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("Marshal() output missing field %s: %s", field, data)
		}
	}

	var decoded SyncItem
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if decoded.ID != item.ID || decoded.Kind != item.Kind || decoded.RetryCount != item.RetryCount {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, item)
	}
}

// TestSyncItem_lastErrorOmitted verifies empty lastError is not serialized.
func TestSyncItem_lastErrorOmitted(t *testing.T) {
	item := SyncItem{ID: "id-1", Kind: KindPhoto, CreatedAt: 1}

	data, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	if strings.Contains(string(data), `"lastError"`) {
		t.Errorf("Marshal() should omit empty lastError: %s", data)
	}
}

// =====================================================
// Payload Tests
// =====================================================

// TestResponsePayload_Validate verifies required response keys.
func TestResponsePayload_Validate(t *testing.T) {
	tests := []struct {
		name    string
		payload ResponsePayload
		wantErr bool
	}{
		{
			name:    "valid",
			payload: ResponsePayload{ReportID: "R1", TemplateItemID: "T1", ResponseValue: "pass"},
			wantErr: false,
		},
		{
			name:    "missing reportId",
			payload: ResponsePayload{TemplateItemID: "T1"},
			wantErr: true,
		},
		{
			name:    "missing templateItemId",
			payload: ResponsePayload{ReportID: "R1"},
			wantErr: true,
		},
		{
			name:    "empty value allowed",
			payload: ResponsePayload{ReportID: "R1", TemplateItemID: "T1"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestPhotoPayload_Validate verifies required photo keys.
func TestPhotoPayload_Validate(t *testing.T) {
	tests := []struct {
		name    string
		payload PhotoPayload
		wantErr bool
	}{
		{
			name:    "valid",
			payload: PhotoPayload{ReportID: "R1", ResponseID: "resp-1", LocalPath: "/tmp/p.jpg", CapturedAt: 1},
			wantErr: false,
		},
		{
			name:    "missing reportId",
			payload: PhotoPayload{ResponseID: "resp-1", LocalPath: "/tmp/p.jpg"},
			wantErr: true,
		},
		{
			name:    "missing responseId",
			payload: PhotoPayload{ReportID: "R1", LocalPath: "/tmp/p.jpg"},
			wantErr: true,
		},
		{
			name:    "missing localPath",
			payload: PhotoPayload{ReportID: "R1", ResponseID: "resp-1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestReportSubmitPayload_Validate verifies required submit keys.
func TestReportSubmitPayload_Validate(t *testing.T) {
	valid := ReportSubmitPayload{ReportID: "R1"}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}

	invalid := ReportSubmitPayload{}
	if err := invalid.Validate(); err == nil {
		t.Error("Validate() with missing reportId should return error")
	}
}

// TestDecodePayload verifies kind-directed payload decoding.
func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		kind    SyncKind
		raw     string
		wantErr bool
	}{
		{
			name:    "response payload",
			kind:    KindResponse,
			raw:     `{"reportId":"R1","templateItemId":"T1","responseValue":"fail","severity":"high"}`,
			wantErr: false,
		},
		{
			name:    "photo payload",
			kind:    KindPhoto,
			raw:     `{"reportId":"R1","responseId":"resp-1","localPath":"/data/p.jpg","capturedAt":1700000000000}`,
			wantErr: false,
		},
		{
			name:    "report submit payload",
			kind:    KindReportSubmit,
			raw:     `{"reportId":"R1"}`,
			wantErr: false,
		},
		{
			name:    "malformed json",
			kind:    KindResponse,
			raw:     `{not json`,
			wantErr: true,
		},
		{
			name:    "missing required key",
			kind:    KindPhoto,
			raw:     `{"reportId":"R1"}`,
			wantErr: true,
		},
		{
			name:    "unknown kind",
			kind:    SyncKind("Unknown"),
			raw:     `{}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := DecodePayload(tt.kind, json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodePayload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && payload == nil {
				t.Error("DecodePayload() returned nil payload without error")
			}
		})
	}
}

// TestDecodePayload_typedResult verifies the concrete type matches the kind.
func TestDecodePayload_typedResult(t *testing.T) {
	raw := json.RawMessage(`{"reportId":"R1","templateItemId":"T1","responseValue":"pass"}`)

	payload, err := DecodePayload(KindResponse, raw)
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}

	resp, ok := payload.(*ResponsePayload)
	if !ok {
		t.Fatalf("DecodePayload() returned %T, want *ResponsePayload", payload)
	}

	if resp.ReportID != "R1" || resp.TemplateItemID != "T1" || resp.ResponseValue != "pass" {
		t.Errorf("DecodePayload() = %+v, want R1/T1/pass", resp)
	}
}

// =====================================================
// InspectionDraft Tests
// =====================================================

// TestInspectionDraft_LastUpdatedTime verifies timestamp conversion.
func TestInspectionDraft_LastUpdatedTime(t *testing.T) {
	expected := time.UnixMilli(1609459200000)
	d := InspectionDraft{LastUpdated: 1609459200000}

	result := d.LastUpdatedTime()
	if !result.Equal(expected) {
		t.Errorf("LastUpdatedTime() = %v, want %v", result, expected)
	}
}

// TestInspectionDraft_Touch verifies Touch() updates the timestamp.
func TestInspectionDraft_Touch(t *testing.T) {
	d := InspectionDraft{LastUpdated: 1609459200000}

	before := time.Now().UnixMilli()
	d.Touch()
	after := time.Now().UnixMilli()

	if d.LastUpdated < before || d.LastUpdated > after {
		t.Errorf("Touch() LastUpdated = %d, want between %d and %d", d.LastUpdated, before, after)
	}
}

// TestInspectionDraft_Response verifies entry lookup by template item.
func TestInspectionDraft_Response(t *testing.T) {
	d := InspectionDraft{
		ReportID: "R1",
		Responses: []ResponseEntry{
			{TemplateItemID: "T1", ResponseValue: "pass"},
			{TemplateItemID: "T2", ResponseValue: "fail", Severity: "high"},
		},
	}

	entry, ok := d.Response("T2")
	if !ok {
		t.Fatal("Response('T2') not found")
	}
	if entry.ResponseValue != "fail" {
		t.Errorf("ResponseValue = %q, want 'fail'", entry.ResponseValue)
	}

	if _, ok := d.Response("T9"); ok {
		t.Error("Response('T9') should not be found")
	}
}

// TestInspectionDraft_SetResponse_insert verifies a new entry appends.
func TestInspectionDraft_SetResponse_insert(t *testing.T) {
	d := InspectionDraft{ReportID: "R1"}

	d.SetResponse(ResponseEntry{TemplateItemID: "T1", ResponseValue: "pass"})
	d.SetResponse(ResponseEntry{TemplateItemID: "T2", ResponseValue: "fail"})

	if len(d.Responses) != 2 {
		t.Fatalf("len(Responses) = %d, want 2", len(d.Responses))
	}

	if d.Responses[0].TemplateItemID != "T1" || d.Responses[1].TemplateItemID != "T2" {
		t.Error("SetResponse() should append new entries in order")
	}
}

// TestInspectionDraft_SetResponse_update verifies an existing entry keeps its position.
func TestInspectionDraft_SetResponse_update(t *testing.T) {
	d := InspectionDraft{
		ReportID: "R1",
		Responses: []ResponseEntry{
			{TemplateItemID: "T1", ResponseValue: "pass"},
			{TemplateItemID: "T2", ResponseValue: "fail"},
			{TemplateItemID: "T3", ResponseValue: "n/a"},
		},
	}

	d.SetResponse(ResponseEntry{TemplateItemID: "T2", ResponseValue: "pass", Notes: "fixed on site"})

	if len(d.Responses) != 3 {
		t.Fatalf("len(Responses) = %d, want 3", len(d.Responses))
	}

	if d.Responses[1].TemplateItemID != "T2" {
		t.Error("SetResponse() should keep the entry position")
	}

	if d.Responses[1].ResponseValue != "pass" || d.Responses[1].Notes != "fixed on site" {
		t.Errorf("SetResponse() did not replace entry: %+v", d.Responses[1])
	}
}

// TestInspectionDraft_jsonRoundTrip verifies wire field names match the mobile clients.
func TestInspectionDraft_jsonRoundTrip(t *testing.T) {
	d := InspectionDraft{
		ReportID: "R1",
		Responses: []ResponseEntry{
			{
				TemplateItemID: "T1",
				ResponseValue:  "fail",
				Photos:         []string{"/data/photos/p1.jpg"},
				Notes:          "crack in beam",
				Severity:       "high",
				FieldUpdatedAt: 1700000000000,
			},
		},
		Version:     7,
		LastUpdated: 1700000001000,
	}

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	for _, field := range []string{`"reportId"`, `"responses"`, `"version"`, `"lastUpdated"`, `"templateItemId"`, `"responseValue"`, `"fieldUpdatedAt"`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("Marshal() output missing field %s: %s", field, data)
		}
	}

	var decoded InspectionDraft
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if decoded.ReportID != "R1" || decoded.Version != 7 || len(decoded.Responses) != 1 {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}
