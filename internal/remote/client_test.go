package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/theonlywayisdigital/donedex-sub004/internal/errors"
	"github.com/theonlywayisdigital/donedex-sub004/internal/models"
)

// =====================================================
// Record client tests
// =====================================================

// TestUpsertResponse verifies the PUT request shape.
func TestUpsertResponse(t *testing.T) {
	var gotMethod, gotPath, gotAuth string
	var gotBody models.ResponsePayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, Token: "dx-test-token"})
	payload := models.ResponsePayload{
		ReportID:       "report-1",
		TemplateItemID: "item-1",
		ResponseValue:  "fail",
		Severity:       "major",
		FieldUpdatedAt: 1724567890123,
	}

	if err := client.UpsertResponse(context.Background(), payload); err != nil {
		t.Fatalf("UpsertResponse failed: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
	if want := "/api/v1/reports/report-1/responses/item-1"; gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
	if gotAuth != "Bearer dx-test-token" {
		t.Errorf("authorization = %q, want bearer token", gotAuth)
	}
	if gotBody.ResponseValue != "fail" || gotBody.Severity != "major" {
		t.Errorf("body = %+v, want the payload echoed", gotBody)
	}
}

// TestCreatePhotoRecord verifies the POST request shape.
func TestCreatePhotoRecord(t *testing.T) {
	var gotPath string
	var gotBody PhotoRecord
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})
	record := PhotoRecord{
		ReportID:   "report-1",
		ResponseID: "resp-9",
		Path:       PhotoBlobPath("report-1", "resp-9", 1724567890123),
		CapturedAt: 1724567890123,
		Width:      1920,
		Height:     1080,
	}

	if err := client.CreatePhotoRecord(context.Background(), record); err != nil {
		t.Fatalf("CreatePhotoRecord failed: %v", err)
	}
	if want := "/api/v1/reports/report-1/photos"; gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
	if gotBody.Path != record.Path {
		t.Errorf("body path = %q, want %q", gotBody.Path, record.Path)
	}
}

// TestMarkReportSubmitted verifies the POST with no body.
func TestMarkReportSubmitted(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})
	if err := client.MarkReportSubmitted(context.Background(), "report-1"); err != nil {
		t.Fatalf("MarkReportSubmitted failed: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if want := "/api/v1/reports/report-1/submit"; gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
}

// TestStatusMapping verifies each response class maps onto its error
// code and retry class.
func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCode  errors.ErrorCode
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, errors.ErrSyncAuthFailed, false},
		{"forbidden", http.StatusForbidden, errors.ErrSyncAuthFailed, false},
		{"conflict", http.StatusConflict, errors.ErrSyncConflict, true},
		{"rate limited", http.StatusTooManyRequests, errors.ErrSyncQuotaExceeded, true},
		{"server error", http.StatusInternalServerError, errors.ErrSyncFailed, true},
		{"bad gateway", http.StatusBadGateway, errors.ErrSyncFailed, true},
		{"not found", http.StatusNotFound, errors.ErrSyncFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(ClientConfig{BaseURL: server.URL})
			err := client.MarkReportSubmitted(context.Background(), "report-1")
			if err == nil {
				t.Fatalf("status %d produced no error", tt.status)
			}
			if !errors.Is(err, tt.wantCode) {
				t.Errorf("error code = %q, want %q", errors.CodeOf(err), tt.wantCode)
			}
			if got := errors.Retryable(err); got != tt.retryable {
				t.Errorf("Retryable = %v, want %v", got, tt.retryable)
			}
		})
	}
}

// TestErrorDetail verifies the server's message reaches the error.
func TestErrorDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte("report already submitted"))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})
	err := client.MarkReportSubmitted(context.Background(), "report-1")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "report already submitted") {
		t.Errorf("error %q does not carry the server detail", err.Error())
	}
	if !strings.Contains(err.Error(), "409") {
		t.Errorf("error %q does not carry the status", err.Error())
	}
}

// TestTransportError verifies an unreachable server maps to the
// retryable failure code.
func TestTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := NewClient(ClientConfig{BaseURL: baseURL, Timeout: time.Second})
	err := client.MarkReportSubmitted(context.Background(), "report-1")
	if !errors.Is(err, errors.ErrSyncFailed) {
		t.Errorf("error = %v, want code %q", err, errors.ErrSyncFailed)
	}
}

// TestDeadlineExceeded verifies a blown context deadline gets the
// timeout code.
func TestDeadlineExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(ClientConfig{BaseURL: server.URL})
	err := client.MarkReportSubmitted(ctx, "report-1")
	if !errors.Is(err, errors.ErrSyncTimeout) {
		t.Errorf("error = %v, want code %q", err, errors.ErrSyncTimeout)
	}
}

// TestNewClient_trailingSlash verifies base URLs with a trailing slash
// do not produce double slashes.
func TestNewClient_trailingSlash(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL + "/"})
	client.MarkReportSubmitted(context.Background(), "report-1")
	if strings.Contains(gotPath, "//") {
		t.Errorf("path = %q contains a double slash", gotPath)
	}
}

// TestPhotoBlobPath verifies the blob naming convention.
func TestPhotoBlobPath(t *testing.T) {
	got := PhotoBlobPath("report-1", "resp-9", 1724567890123)
	want := "reports/report-1/responses/resp-9/1724567890123.jpg"
	if got != want {
		t.Errorf("PhotoBlobPath = %q, want %q", got, want)
	}
}
