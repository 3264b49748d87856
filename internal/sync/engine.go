// Package sync drives delivery of the offline queue to the remote
// record API and blob store. A drain walks a snapshot of the queue in
// FIFO order, dispatches each item through its kind handler, and
// records per-item failures without ever dropping an item.
package sync

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/theonlywayisdigital/donedex-sub004/internal/drafts"
	"github.com/theonlywayisdigital/donedex-sub004/internal/errors"
	"github.com/theonlywayisdigital/donedex-sub004/internal/kvstore"
	"github.com/theonlywayisdigital/donedex-sub004/internal/logging"
	"github.com/theonlywayisdigital/donedex-sub004/internal/media"
	"github.com/theonlywayisdigital/donedex-sub004/internal/models"
	"github.com/theonlywayisdigital/donedex-sub004/internal/netmon"
	"github.com/theonlywayisdigital/donedex-sub004/internal/remote"
	"github.com/theonlywayisdigital/donedex-sub004/internal/syncqueue"
)

// DefaultItemTimeout bounds the dispatch of a single queue item.
const DefaultItemTimeout = 30 * time.Second

// PhotoSource resolves the localPath reference of a photo payload to
// the staged bytes on this device.
type PhotoSource interface {
	Open(ref string) (io.ReadCloser, error)
	Remove(ref string) error
}

// Deps carries the collaborators a drain needs. Queue, Drafts, Monitor,
// Records, Blobs and Store are required; the rest have defaults.
type Deps struct {
	Queue   *syncqueue.Queue
	Drafts  *drafts.Store
	Monitor *netmon.Monitor
	Records remote.RecordStore
	Blobs   remote.BlobStore

	// Compressor prepares photo bytes before upload. Nil uploads the
	// staged bytes as captured.
	Compressor *media.Compressor

	// Photos resolves photo payload references. Defaults to bare
	// filesystem paths.
	Photos PhotoSource

	// Store holds the last_sync stamp.
	Store kvstore.Store

	// Clock defaults to time.Now.
	Clock func() time.Time

	// ItemTimeout bounds each item dispatch. Defaults to
	// DefaultItemTimeout.
	ItemTimeout time.Duration
}

// DrainResult counts the items settled by one drain pass.
type DrainResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// DrainOpts tunes one drain pass.
type DrainOpts struct {
	// SkipExhausted leaves items at the retry ceiling untouched
	// instead of attempting them. Automatic triggers set it; manual
	// drains attempt everything.
	SkipExhausted bool
}

// Status is a point-in-time snapshot for surfaces that poll.
type Status struct {
	IsSyncing    bool       `json:"isSyncing"`
	PendingCount int        `json:"pendingCount"`
	LastSync     *time.Time `json:"lastSync,omitempty"`
}

// Engine drains the offline queue. All state is explicit and injected;
// two engines over the same store coordinate only through the queue.
type Engine struct {
	queue      *syncqueue.Queue
	drafts     *drafts.Store
	monitor    *netmon.Monitor
	records    remote.RecordStore
	blobs      remote.BlobStore
	compressor *media.Compressor
	photos     PhotoSource
	store      kvstore.Store

	clock       func() time.Time
	itemTimeout time.Duration

	mu       sync.Mutex
	draining bool
	lastSync *time.Time

	subMu   sync.Mutex
	subs    map[int]func(isSyncing bool, pendingCount int)
	nextSub int
}

// New creates an Engine and restores the last sync stamp from the
// store.
func New(deps Deps) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	timeout := deps.ItemTimeout
	if timeout <= 0 {
		timeout = DefaultItemTimeout
	}
	photos := deps.Photos
	if photos == nil {
		photos = media.NewLocalSource(nil)
	}

	e := &Engine{
		queue:       deps.Queue,
		drafts:      deps.Drafts,
		monitor:     deps.Monitor,
		records:     deps.Records,
		blobs:       deps.Blobs,
		compressor:  deps.Compressor,
		photos:      photos,
		store:       deps.Store,
		clock:       clock,
		itemTimeout: timeout,
		subs:        make(map[int]func(bool, int)),
	}
	e.loadLastSync()
	return e
}

// Drain delivers every pending item it can reach. See DrainWith.
func (e *Engine) Drain(ctx context.Context) DrainResult {
	return e.DrainWith(ctx, DrainOpts{})
}

// DrainWith walks a snapshot of the queue in FIFO order and dispatches
// each item through its kind handler. A drain already in progress or an
// unreachable network yields a zero result with nothing touched. Items
// enqueued while the pass runs wait for the next one. Cancelling ctx
// stops the pass between items; the remaining items are untouched.
func (e *Engine) DrainWith(ctx context.Context, opts DrainOpts) DrainResult {
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		logging.Debug("drain skipped, already in progress")
		return DrainResult{}
	}
	e.mu.Unlock()

	if !e.monitor.IsOnline(ctx) {
		logging.Debug("drain skipped, network unreachable")
		return DrainResult{}
	}

	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		return DrainResult{}
	}
	e.draining = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.draining = false
		e.mu.Unlock()
		e.notify()
	}()

	e.notify()

	snapshot, err := e.queue.All()
	if err != nil {
		logging.Error("drain aborted, queue unreadable", err)
		return DrainResult{}
	}
	if len(snapshot) == 0 {
		return DrainResult{}
	}

	logging.Info("drain started", map[string]interface{}{"pending": len(snapshot)})

	var res DrainResult
drain:
	for i, item := range snapshot {
		select {
		case <-ctx.Done():
			logging.Warn("drain cancelled", map[string]interface{}{
				"settled":   res.Success + res.Failed,
				"remaining": len(snapshot) - i,
			})
			break drain
		default:
		}

		if opts.SkipExhausted && item.Exhausted() {
			continue
		}

		if err := e.dispatch(ctx, item); err != nil {
			res.Failed++
			e.recordFailure(item, err)
		} else {
			res.Success++
			if err := e.queue.Remove(item.ID); err != nil {
				logging.Error("delivered item not removed from queue", err,
					map[string]interface{}{"item_id": item.ID})
			}
		}
		e.notify()
	}

	if res.Success > 0 {
		e.stampLastSync()
	}

	logging.Info("drain finished", map[string]interface{}{
		"delivered": res.Success,
		"failed":    res.Failed,
	})
	return res
}

// SyncNow runs a manual drain. Unlike automatic triggers it attempts
// exhausted items too. Rejected while a drain is running or the network
// is unreachable.
func (e *Engine) SyncNow(ctx context.Context) (DrainResult, error) {
	e.mu.Lock()
	draining := e.draining
	e.mu.Unlock()
	if draining {
		return DrainResult{}, errors.New(errors.ErrSyncInProgress, "sync already in progress")
	}
	if !e.monitor.IsOnline(ctx) {
		return DrainResult{}, errors.New(errors.ErrSyncOffline, "network unreachable")
	}
	return e.DrainWith(ctx, DrainOpts{}), nil
}

// Status reports the engine state for surfaces that poll.
func (e *Engine) Status() Status {
	e.mu.Lock()
	s := Status{IsSyncing: e.draining, LastSync: e.lastSync}
	e.mu.Unlock()
	if n, err := e.queue.Size(); err == nil {
		s.PendingCount = n
	}
	return s
}

// LastSync returns the time of the last drain that delivered at least
// one item, or nil if none has.
func (e *Engine) LastSync() *time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync
}

// Pending returns the number of queued items.
func (e *Engine) Pending() (int, error) {
	return e.queue.Size()
}

// Subscribe registers a listener for sync state changes. Listeners are
// notified on drain start, after every settled item, on drain end, and
// through NotifyPending. The returned function removes the
// subscription; calling it twice is safe.
func (e *Engine) Subscribe(fn func(isSyncing bool, pendingCount int)) func() {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		delete(e.subs, id)
	}
}

// NotifyPending pushes a fresh queue count to subscribers. Callers that
// enqueue outside a drain use it to surface the new pending count.
func (e *Engine) NotifyPending() {
	e.notify()
}

// notify delivers the current (isSyncing, pendingCount) pair to every
// subscriber. Callbacks run without engine locks held, so a subscriber
// may call back into the engine.
func (e *Engine) notify() {
	e.mu.Lock()
	syncing := e.draining
	e.mu.Unlock()

	pending := 0
	if n, err := e.queue.Size(); err == nil {
		pending = n
	}

	e.subMu.Lock()
	subs := make([]func(bool, int), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.subMu.Unlock()

	for _, fn := range subs {
		fn(syncing, pending)
	}
}

// recordFailure bumps the item's retry state in the queue and logs the
// outcome. The item itself is never dropped.
func (e *Engine) recordFailure(item models.SyncItem, cause error) {
	retries := item.RetryCount
	if err := e.queue.Update(item.ID, func(it *models.SyncItem) {
		it.RecordFailure(cause.Error())
		retries = it.RetryCount
	}); err != nil {
		logging.Error("item failure not recorded", err,
			map[string]interface{}{"item_id": item.ID})
		return
	}

	fields := map[string]interface{}{
		"item_id":     item.ID,
		"kind":        string(item.Kind),
		"retry_count": retries,
	}
	if retries >= models.MaxRetryCount {
		logging.ErrorWithCode("sync item out of retries, held for manual retry",
			string(errors.CodeOf(cause)), cause, fields)
	} else {
		fields["error"] = cause.Error()
		logging.Warn("sync item failed, will retry", fields)
	}
}

// stampLastSync persists the successful-drain timestamp as unix
// seconds.
func (e *Engine) stampLastSync() {
	now := e.clock()
	raw, _ := json.Marshal(now.Unix())
	if err := e.store.Set(kvstore.KeyLastSync, raw); err != nil {
		logging.Error("last sync stamp not persisted", err)
		return
	}
	e.mu.Lock()
	e.lastSync = &now
	e.mu.Unlock()
	logging.Debug("last sync stamped", map[string]interface{}{"at": now.Unix()})
}

// loadLastSync restores the persisted stamp. An unreadable value is
// treated as never synced.
func (e *Engine) loadLastSync() {
	raw, err := e.store.Get(kvstore.KeyLastSync)
	if err != nil || raw == nil {
		return
	}
	var secs int64
	if err := json.Unmarshal(raw, &secs); err != nil {
		logging.Warn("stored last sync unreadable, treating as never synced",
			map[string]interface{}{"error": err.Error()})
		return
	}
	t := time.Unix(secs, 0)
	e.lastSync = &t
}
