// Package remote defines the two remote surfaces a drain talks to:
// the record API (rows about reports, responses, photos) and the blob
// store (photo bytes). Both are injected into the sync engine as
// interfaces so dispatch can be tested without a network.
package remote

import (
	"context"
	"fmt"
	"io"

	"github.com/theonlywayisdigital/donedex-sub004/internal/models"
)

// PhotoRecord is the row created for an uploaded photo. Path is the
// blob location the bytes were uploaded to.
type PhotoRecord struct {
	ReportID   string `json:"reportId"`
	ResponseID string `json:"responseId"`
	Path       string `json:"path"`
	CapturedAt int64  `json:"capturedAt"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	SizeBytes  int64  `json:"sizeBytes,omitempty"`
}

// RecordStore is the record API. Every operation must be idempotent or
// safely retryable: the engine re-dispatches failed items on later
// drains.
type RecordStore interface {
	// UpsertResponse creates or replaces the response row keyed by
	// (reportId, templateItemId) server-side.
	UpsertResponse(ctx context.Context, payload models.ResponsePayload) error
	// CreatePhotoRecord records an uploaded photo.
	CreatePhotoRecord(ctx context.Context, record PhotoRecord) error
	// MarkReportSubmitted flags the report submitted; the server
	// stamps the submission time.
	MarkReportSubmitted(ctx context.Context, reportID string) error
}

// BlobStore stores raw photo bytes.
type BlobStore interface {
	Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
	Download(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// PhotoBlobPath builds the blob location for a captured photo.
func PhotoBlobPath(reportID, responseID string, capturedAt int64) string {
	return fmt.Sprintf("reports/%s/responses/%s/%d.jpg", reportID, responseID, capturedAt)
}
