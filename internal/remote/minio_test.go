package remote

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/theonlywayisdigital/donedex-sub004/internal/errors"
)

// =====================================================
// MinIO blob store tests
// =====================================================

// TestNewMinIOStore verifies a bare host endpoint is accepted.
func TestNewMinIOStore(t *testing.T) {
	s, err := NewMinIOStore("localhost:9000", "photos", "minioadmin", "minioadmin", false)
	if err != nil {
		t.Fatalf("NewMinIOStore failed: %v", err)
	}
	if got := s.client.EndpointURL().Scheme; got != "http" {
		t.Errorf("scheme = %q, want %q", got, "http")
	}
}

// TestNewMinIOStore_schemeOverridesSSL verifies an explicit scheme on
// the endpoint wins over the useSSL flag.
func TestNewMinIOStore_schemeOverridesSSL(t *testing.T) {
	tests := []struct {
		name       string
		endpoint   string
		useSSL     bool
		wantScheme string
		wantHost   string
	}{
		{"https endpoint, ssl off", "https://blobs.example.com", false, "https", "blobs.example.com"},
		{"http endpoint, ssl on", "http://localhost:9000", true, "http", "localhost:9000"},
		{"bare endpoint, ssl on", "blobs.example.com", true, "https", "blobs.example.com"},
		{"trailing slash", "localhost:9000/", false, "http", "localhost:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewMinIOStore(tt.endpoint, "photos", "key", "secret", tt.useSSL)
			if err != nil {
				t.Fatalf("NewMinIOStore failed: %v", err)
			}
			u := s.client.EndpointURL()
			if u.Scheme != tt.wantScheme {
				t.Errorf("scheme = %q, want %q", u.Scheme, tt.wantScheme)
			}
			if u.Host != tt.wantHost {
				t.Errorf("host = %q, want %q", u.Host, tt.wantHost)
			}
		})
	}
}

// TestNewMinIOStore_invalidConfig verifies missing endpoint or bucket
// is rejected.
func TestNewMinIOStore_invalidConfig(t *testing.T) {
	if _, err := NewMinIOStore("", "photos", "key", "secret", false); !errors.Is(err, errors.ErrInvalid) {
		t.Errorf("empty endpoint error = %v, want code %q", err, errors.ErrInvalid)
	}
	if _, err := NewMinIOStore("localhost:9000", "", "key", "secret", false); !errors.Is(err, errors.ErrInvalid) {
		t.Errorf("empty bucket error = %v, want code %q", err, errors.ErrInvalid)
	}
}

// TestMinIOStore_upload verifies the PUT path and success handling
// against a stub S3 endpoint.
func TestMinIOStore_upload(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := newStubStore(t, server)
	data := []byte("jpeg bytes")
	err := s.Upload(context.Background(), "reports/report-1/responses/resp-9/123.jpg", bytes.NewReader(data), int64(len(data)), "image/jpeg")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
	if want := "/photos/reports/report-1/responses/resp-9/123.jpg"; gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
}

// TestMinIOStore_uploadError verifies failures carry the upload error
// code.
func TestMinIOStore_uploadError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := newStubStore(t, server)
	data := []byte("jpeg bytes")
	err := s.Upload(context.Background(), "reports/x.jpg", bytes.NewReader(data), int64(len(data)), "image/jpeg")
	if err == nil {
		t.Fatal("Upload against failing endpoint succeeded")
	}
	if !errors.Is(err, errors.ErrBlobUploadFailed) {
		t.Errorf("error code = %q, want %q", errors.CodeOf(err), errors.ErrBlobUploadFailed)
	}
}

// TestMinIOStore_delete verifies the DELETE path.
func TestMinIOStore_delete(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	s := newStubStore(t, server)
	if err := s.Delete(context.Background(), "reports/report-1/responses/resp-9/123.jpg"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %q, want DELETE", gotMethod)
	}
	if !strings.HasSuffix(gotPath, "/123.jpg") {
		t.Errorf("path = %q, want the blob key", gotPath)
	}
}

// TestMinIOStore_list verifies keys are read out of the listing.
func TestMinIOStore_list(t *testing.T) {
	listing := `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>photos</Name>
  <Prefix>reports/report-1/</Prefix>
  <KeyCount>2</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents>
    <Key>reports/report-1/responses/resp-1/100.jpg</Key>
    <LastModified>2026-08-01T00:00:00.000Z</LastModified>
    <ETag>&quot;aaa&quot;</ETag>
    <Size>100</Size>
    <StorageClass>STANDARD</StorageClass>
  </Contents>
  <Contents>
    <Key>reports/report-1/responses/resp-2/200.jpg</Key>
    <LastModified>2026-08-01T00:00:00.000Z</LastModified>
    <ETag>&quot;bbb&quot;</ETag>
    <Size>200</Size>
    <StorageClass>STANDARD</StorageClass>
  </Contents>
</ListBucketResult>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(listing))
	}))
	defer server.Close()

	s := newStubStore(t, server)
	keys, err := s.List(context.Background(), "reports/report-1/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("keys = %d, want 2", len(keys))
	}
	if keys[0] != "reports/report-1/responses/resp-1/100.jpg" {
		t.Errorf("keys[0] = %q, want the first listed key", keys[0])
	}
}

// =====================================================
// Test helpers
// =====================================================

// newStubStore points a MinIOStore at a stub HTTP endpoint.
func newStubStore(t *testing.T, server *httptest.Server) *MinIOStore {
	t.Helper()
	endpoint := strings.TrimPrefix(server.URL, "http://")
	s, err := NewMinIOStore(endpoint, "photos", "test-access", "test-secret", false)
	if err != nil {
		t.Fatalf("NewMinIOStore failed: %v", err)
	}
	return s
}
