// Package kvstore provides the durable key-value storage contract that the
// sync queue, draft store and sync engine persist through.
//
// Values are opaque JSON blobs; the store must return exactly the bytes that
// were written. A missing key is not an error: Get returns (nil, nil).
package kvstore

// Well-known keys. All durable sync state lives under these three keys.
const (
	// KeySyncQueue holds the serialized sync queue envelope.
	KeySyncQueue = "sync_queue"
	// KeyDrafts holds the serialized inspection draft envelope.
	KeyDrafts = "inspection_drafts"
	// KeyLastSync holds the timestamp of the last successful sync.
	KeyLastSync = "last_sync"
)

// Store is the durable key-value contract.
//
// Implementations must preserve values byte-for-byte and treat an absent
// key as (nil, nil) from Get. Remove of an absent key is not an error.
type Store interface {
	// Get returns the value stored under key, or (nil, nil) if absent.
	Get(key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error

	// Remove deletes the value under key. Removing an absent key succeeds.
	Remove(key string) error

	// Close releases the underlying storage.
	Close() error
}
