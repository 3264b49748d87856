package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/theonlywayisdigital/donedex-sub004/internal/errors"
	"github.com/theonlywayisdigital/donedex-sub004/internal/logging"
	"github.com/theonlywayisdigital/donedex-sub004/internal/models"
	"github.com/theonlywayisdigital/donedex-sub004/internal/remote"
)

// dispatch routes one item through its kind handler under the per-item
// timeout.
func (e *Engine) dispatch(ctx context.Context, item models.SyncItem) error {
	itemCtx, cancel := context.WithTimeout(ctx, e.itemTimeout)
	defer cancel()

	switch item.Kind {
	case models.KindResponse:
		return e.syncResponse(itemCtx, item)
	case models.KindPhoto:
		return e.syncPhoto(itemCtx, item)
	case models.KindReportSubmit:
		return e.syncReportSubmit(itemCtx, item)
	}
	return errors.New(errors.ErrQueueItemInvalid,
		fmt.Sprintf("no handler for sync kind %q", item.Kind))
}

// syncResponse upserts one checklist response on the record API.
func (e *Engine) syncResponse(ctx context.Context, item models.SyncItem) error {
	var p models.ResponsePayload
	if err := json.Unmarshal(item.Payload, &p); err != nil {
		return errors.Wrap(errors.ErrQueueItemInvalid, "response payload unreadable", err)
	}

	if err := e.records.UpsertResponse(ctx, p); err != nil {
		return err
	}

	logging.Debug("response delivered", map[string]interface{}{
		"report_id":        p.ReportID,
		"template_item_id": p.TemplateItemID,
	})
	return nil
}

// syncPhoto reads the staged photo, uploads its bytes and creates the
// remote record, then removes the local copy. The blob path is derived
// from the payload, so a retried item overwrites the same object
// instead of duplicating it. Any step failing fails the whole item.
func (e *Engine) syncPhoto(ctx context.Context, item models.SyncItem) error {
	var p models.PhotoPayload
	if err := json.Unmarshal(item.Payload, &p); err != nil {
		return errors.Wrap(errors.ErrQueueItemInvalid, "photo payload unreadable", err)
	}

	src, err := e.photos.Open(p.LocalPath)
	if err != nil {
		return err
	}

	var (
		body io.Reader
		size int64 = -1
	)
	record := remote.PhotoRecord{
		ReportID:   p.ReportID,
		ResponseID: p.ResponseID,
		CapturedAt: p.CapturedAt,
	}
	if e.compressor != nil {
		result, cerr := e.compressor.Compress(src)
		src.Close()
		if cerr != nil {
			return cerr
		}
		body = bytes.NewReader(result.Data)
		size = int64(len(result.Data))
		record.Width = result.Width
		record.Height = result.Height
		record.SizeBytes = size
	} else {
		defer src.Close()
		body = src
	}

	record.Path = remote.PhotoBlobPath(p.ReportID, p.ResponseID, p.CapturedAt)
	if err := e.blobs.Upload(ctx, record.Path, body, size, "image/jpeg"); err != nil {
		return err
	}

	if err := e.records.CreatePhotoRecord(ctx, record); err != nil {
		return err
	}

	if err := e.photos.Remove(p.LocalPath); err != nil {
		return errors.Wrap(errors.ErrSyncFailed, "delivered photo not cleaned up", err)
	}

	logging.Debug("photo delivered", map[string]interface{}{
		"report_id": p.ReportID,
		"path":      record.Path,
	})
	return nil
}

// syncReportSubmit marks the report submitted and clears its local
// draft. A draft cleanup failure only logs; the item is delivered.
func (e *Engine) syncReportSubmit(ctx context.Context, item models.SyncItem) error {
	var p models.ReportSubmitPayload
	if err := json.Unmarshal(item.Payload, &p); err != nil {
		return errors.Wrap(errors.ErrQueueItemInvalid, "report submit payload unreadable", err)
	}

	if err := e.records.MarkReportSubmitted(ctx, p.ReportID); err != nil {
		return err
	}

	if err := e.drafts.Delete(p.ReportID); err != nil {
		logging.Warn("submitted report draft not cleaned up", map[string]interface{}{
			"report_id": p.ReportID,
			"error":     err.Error(),
		})
	}

	logging.Info("report submitted", map[string]interface{}{"report_id": p.ReportID})
	return nil
}
