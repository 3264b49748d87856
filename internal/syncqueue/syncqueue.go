// Package syncqueue provides the durable FIFO queue of mutations
// waiting to reach the remote store. The whole queue is persisted as
// one JSON envelope under a single well-known key, so every mutation
// is a read-modify-write of the full list. All mutations are
// serialized through the queue's mutex, and each persisted envelope
// carries a revision so writes from another process are detected and
// adopted instead of silently overwritten.
package syncqueue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/theonlywayisdigital/donedex-sub004/internal/errors"
	"github.com/theonlywayisdigital/donedex-sub004/internal/kvstore"
	"github.com/theonlywayisdigital/donedex-sub004/internal/logging"
	"github.com/theonlywayisdigital/donedex-sub004/internal/models"
	"github.com/theonlywayisdigital/donedex-sub004/internal/uuid"
)

// SchemaVersion is the envelope format this build reads and writes.
const SchemaVersion = 1

// CorruptKeySuffix is appended to the queue key when an unreadable
// blob is preserved for inspection.
const CorruptKeySuffix = ".corrupt"

// envelope is the persisted form of the queue.
type envelope struct {
	SchemaVersion int               `json:"schema_version"`
	Revision      int64             `json:"revision"`
	Items         []models.SyncItem `json:"items"`
}

// Queue is the single writer for the persisted sync queue. Items keep
// insertion order; ids are unique and never reused.
type Queue struct {
	mu    sync.Mutex
	store kvstore.Store

	// lastRevision is the envelope revision this instance last saw.
	// A stored revision that differs means another writer touched the
	// queue; the stored state is adopted before mutating.
	lastRevision int64
	primed       bool

	corrupted bool
	onCorrupt func(err error)
}

// New returns a queue backed by the given store. Nothing is read until
// the first operation.
func New(store kvstore.Store) *Queue {
	return &Queue{store: store}
}

// OnCorruption registers a callback fired once when a corrupt
// persisted blob is detected and the queue resets to empty.
func (q *Queue) OnCorruption(fn func(err error)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onCorrupt = fn
}

// Corrupted reports whether a corrupt blob was ever detected. The flag
// is sticky for the lifetime of this instance.
func (q *Queue) Corrupted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.corrupted
}

// Enqueue appends a new item with a fresh id, zero retries, and the
// current timestamp, then persists the full list.
func (q *Queue) Enqueue(kind models.SyncKind, payload interface{}) (models.SyncItem, error) {
	if !kind.Valid() {
		return models.SyncItem{}, errors.New(errors.ErrQueueItemInvalid, fmt.Sprintf("unknown sync kind %q", kind))
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return models.SyncItem{}, errors.Wrap(errors.ErrQueueItemInvalid, "failed to encode payload", err)
	}
	if _, err := models.DecodePayload(kind, raw); err != nil {
		return models.SyncItem{}, errors.Wrap(errors.ErrQueueItemInvalid, "invalid payload", err)
	}

	item := models.SyncItem{
		ID:        uuid.New(),
		Kind:      kind,
		Payload:   raw,
		CreatedAt: time.Now().UnixMilli(),
	}

	err = q.mutate(func(env *envelope) error {
		env.Items = append(env.Items, item)
		return nil
	})
	if err != nil {
		return models.SyncItem{}, err
	}

	logging.Info("enqueued sync item", map[string]interface{}{
		"item_id": item.ID,
		"kind":    string(kind),
	})
	return item, nil
}

// All returns a snapshot of the pending items in insertion order.
func (q *Queue) All() ([]models.SyncItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	env, err := q.load()
	if err != nil {
		return nil, err
	}
	items := make([]models.SyncItem, len(env.Items))
	copy(items, env.Items)
	return items, nil
}

// Size returns the number of pending items.
func (q *Queue) Size() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	env, err := q.load()
	if err != nil {
		return 0, err
	}
	return len(env.Items), nil
}

// Remove filters the item out and persists the updated list. Removing
// an absent id is a no-op.
func (q *Queue) Remove(id string) error {
	removed := false
	err := q.mutate(func(env *envelope) error {
		kept := env.Items[:0]
		for _, item := range env.Items {
			if item.ID == id {
				removed = true
				continue
			}
			kept = append(kept, item)
		}
		env.Items = kept
		return nil
	})
	if err != nil {
		return err
	}
	if removed {
		logging.Info("removed sync item", map[string]interface{}{"item_id": id})
	}
	return nil
}

// Update applies the mutator to the item with the given id and
// persists. Item ids are immutable; any id change made by the mutator
// is discarded.
func (q *Queue) Update(id string, fn func(item *models.SyncItem)) error {
	return q.mutate(func(env *envelope) error {
		for i := range env.Items {
			if env.Items[i].ID != id {
				continue
			}
			fn(&env.Items[i])
			env.Items[i].ID = id
			return nil
		}
		return errors.New(errors.ErrQueueItemNotFound, fmt.Sprintf("item %s not found", id))
	})
}

// Clear empties the queue. Administrative and test use.
func (q *Queue) Clear() error {
	err := q.mutate(func(env *envelope) error {
		env.Items = nil
		return nil
	})
	if err != nil {
		return err
	}
	logging.Info("sync queue cleared")
	return nil
}

// ResetRetries zeroes the retry count and clears the last error for
// one item, making an exhausted item eligible for dispatch again.
func (q *Queue) ResetRetries(id string) error {
	err := q.Update(id, func(item *models.SyncItem) {
		item.ResetRetries()
	})
	if err != nil {
		return err
	}
	logging.Info("reset retries for sync item", map[string]interface{}{"item_id": id})
	return nil
}

// RetryAll resets every item that has recorded a failure and returns
// how many were reset.
func (q *Queue) RetryAll() (int, error) {
	count := 0
	err := q.mutate(func(env *envelope) error {
		for i := range env.Items {
			if env.Items[i].RetryCount > 0 || env.Items[i].LastError != "" {
				env.Items[i].ResetRetries()
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if count > 0 {
		logging.Info("reset retries for all failed sync items", map[string]interface{}{"count": count})
	}
	return count, nil
}

// mutate runs one serialized read-modify-write cycle: load the stored
// envelope (adopting any foreign write), apply fn, bump the revision,
// persist.
func (q *Queue) mutate(fn func(env *envelope) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	env, err := q.load()
	if err != nil {
		return err
	}
	if err := fn(&env); err != nil {
		return err
	}

	env.SchemaVersion = SchemaVersion
	env.Revision++
	raw, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(errors.ErrInternal, "failed to encode sync queue", err)
	}
	if err := q.store.Set(kvstore.KeySyncQueue, raw); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to persist sync queue", err)
	}
	q.lastRevision = env.Revision
	q.primed = true
	return nil
}

// load reads the stored envelope. Missing key yields an empty queue.
// Legacy blobs holding a bare item list are migrated in place. A blob
// that is neither is preserved under the corrupt key and the queue
// resets to empty rather than refusing to start.
func (q *Queue) load() (envelope, error) {
	raw, err := q.store.Get(kvstore.KeySyncQueue)
	if err != nil {
		return envelope{}, errors.Wrap(errors.ErrDatabase, "failed to read sync queue", err)
	}
	if len(raw) == 0 {
		q.primed = true
		return envelope{SchemaVersion: SchemaVersion}, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.SchemaVersion != 0 {
		if env.SchemaVersion != SchemaVersion {
			return q.recoverCorrupt(raw, errors.New(errors.ErrStoreCorrupted,
				fmt.Sprintf("unsupported sync queue schema version %d", env.SchemaVersion)))
		}
		if q.primed && env.Revision != q.lastRevision {
			logging.Warn("sync queue changed by another writer, adopting stored state", map[string]interface{}{
				"stored_revision": env.Revision,
				"last_seen":       q.lastRevision,
			})
		}
		q.lastRevision = env.Revision
		q.primed = true
		return env, nil
	}

	// Blobs written before the envelope format held the item list
	// directly.
	var items []models.SyncItem
	if err := json.Unmarshal(raw, &items); err == nil {
		logging.Info("migrated legacy sync queue blob", map[string]interface{}{"items": len(items)})
		q.primed = true
		return envelope{SchemaVersion: SchemaVersion, Items: items}, nil
	}

	return q.recoverCorrupt(raw, errors.New(errors.ErrStoreCorrupted, "sync queue blob is not valid JSON"))
}

// recoverCorrupt preserves the unreadable blob for inspection, resets
// the persisted queue to empty, and fires the corruption callback on
// first detection. Queued work is lost; losing it is preferred over a
// queue that can never drain again.
func (q *Queue) recoverCorrupt(raw []byte, cause error) (envelope, error) {
	preserveKey := kvstore.KeySyncQueue + CorruptKeySuffix
	if err := q.store.Set(preserveKey, raw); err != nil {
		logging.Error("failed to preserve corrupt sync queue blob", err)
	}

	env := envelope{SchemaVersion: SchemaVersion, Revision: q.lastRevision + 1}
	reset, err := json.Marshal(env)
	if err == nil {
		err = q.store.Set(kvstore.KeySyncQueue, reset)
	}
	if err != nil {
		return envelope{}, errors.Wrap(errors.ErrDatabase, "failed to reset corrupt sync queue", err)
	}
	q.lastRevision = env.Revision
	q.primed = true

	logging.ErrorWithCode("sync queue corrupt, reset to empty", string(errors.ErrStoreCorrupted), cause,
		map[string]interface{}{"preserved_under": preserveKey})

	first := !q.corrupted
	q.corrupted = true
	if first && q.onCorrupt != nil {
		// The queue lock is held here; the callback may call back in.
		go q.onCorrupt(cause)
	}
	return env, nil
}
