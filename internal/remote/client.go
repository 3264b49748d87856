package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/theonlywayisdigital/donedex-sub004/internal/errors"
	"github.com/theonlywayisdigital/donedex-sub004/internal/logging"
	"github.com/theonlywayisdigital/donedex-sub004/internal/models"
)

// ClientConfig holds record API connection configuration.
type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client implements RecordStore over HTTP with bearer auth. Response
// statuses map onto error codes so the engine can tell retryable
// failures from hard ones.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewClient creates a record API client. Timeout <= 0 uses 30 seconds.
func NewClient(config ClientConfig) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

var _ RecordStore = (*Client)(nil)

// UpsertResponse PUTs the response row; the server replaces any prior
// row for the same (reportId, templateItemId).
func (c *Client) UpsertResponse(ctx context.Context, payload models.ResponsePayload) error {
	path := fmt.Sprintf("/api/v1/reports/%s/responses/%s",
		url.PathEscape(payload.ReportID), url.PathEscape(payload.TemplateItemID))
	return c.doJSON(ctx, http.MethodPut, path, payload)
}

// CreatePhotoRecord POSTs the photo row. The server keys on the blob
// path, so a retried create after a half-finished dispatch is safe.
func (c *Client) CreatePhotoRecord(ctx context.Context, record PhotoRecord) error {
	path := fmt.Sprintf("/api/v1/reports/%s/photos", url.PathEscape(record.ReportID))
	return c.doJSON(ctx, http.MethodPost, path, record)
}

// MarkReportSubmitted POSTs the submission; the server stamps the
// time.
func (c *Client) MarkReportSubmitted(ctx context.Context, reportID string) error {
	path := fmt.Sprintf("/api/v1/reports/%s/submit", url.PathEscape(reportID))
	return c.doJSON(ctx, http.MethodPost, path, nil)
}

// doJSON executes one request and maps the outcome onto error codes.
func (c *Client) doJSON(ctx context.Context, method, path string, payload interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(errors.ErrInternal, "failed to encode request body", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return errors.Wrap(errors.ErrInternal, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.Wrap(errors.ErrSyncTimeout, "request deadline exceeded", err)
		}
		return errors.Wrap(errors.ErrSyncFailed, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	logging.Warn("record API rejected request", map[string]interface{}{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
	})
	return statusError(resp.StatusCode, string(detail))
}

// statusError maps a non-2xx response onto an error code. Auth
// failures, conflicts, and quota rejections get their own codes; the
// rest collapse into the retryable SYNC_FAILED.
func statusError(status int, detail string) error {
	message := fmt.Sprintf("remote returned status %d", status)
	if detail = strings.TrimSpace(detail); detail != "" {
		message = fmt.Sprintf("%s: %s", message, detail)
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.New(errors.ErrSyncAuthFailed, message)
	case http.StatusConflict:
		return errors.New(errors.ErrSyncConflict, message)
	case http.StatusTooManyRequests:
		return errors.New(errors.ErrSyncQuotaExceeded, message)
	default:
		return errors.New(errors.ErrSyncFailed, message)
	}
}
