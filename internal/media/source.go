package media

import (
	"io"
	"os"

	"github.com/theonlywayisdigital/donedex-sub004/internal/errors"
)

// LocalSource resolves the localPath reference carried by a queued photo
// payload into this device's bytes. Desktop callers stage photos through
// the FileStore and enqueue the content hash it returns; mobile callers
// enqueue the absolute path of the captured file. Both reference shapes
// resolve through the same source.
type LocalSource struct {
	store *FileStore
}

// NewLocalSource creates a LocalSource. The file store may be nil when
// only bare filesystem paths will be resolved.
func NewLocalSource(store *FileStore) *LocalSource {
	return &LocalSource{store: store}
}

// Open returns a reader for the referenced photo.
func (s *LocalSource) Open(ref string) (io.ReadCloser, error) {
	if s.store != nil && isContentHash(ref) {
		return s.store.Retrieve(ref)
	}
	f, err := os.Open(ref)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrFileNotFound, "photo file missing", err)
		}
		return nil, errors.Wrap(errors.ErrSyncFailed, "photo file unreadable", err)
	}
	return f, nil
}

// Remove deletes the referenced photo from the device. Removing an
// already-deleted photo succeeds, so a re-dispatched item can finish its
// cleanup step without failing.
func (s *LocalSource) Remove(ref string) error {
	if s.store != nil && isContentHash(ref) {
		return s.store.Delete(ref)
	}
	if err := os.Remove(ref); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrSyncFailed, "photo file not removed", err)
	}
	return nil
}

// isContentHash reports whether ref has the shape of a FileStore content
// hash rather than a filesystem path.
func isContentHash(ref string) bool {
	if len(ref) != 64 {
		return false
	}
	for _, c := range ref {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
