package media

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/theonlywayisdigital/donedex-sub004/internal/errors"
)

// FileStore stages captured photos on local disk under SHA-256 content
// addressing: baseDir/<hash[:2]>/<hash>. Identical captures
// deduplicate to one file. Queue payloads reference staged files by
// the absolute path from Path.
type FileStore struct {
	baseDir string
}

// NewFileStore creates the base directory and returns the store.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "failed to create photo directory", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Store writes the reader's content under its hash and returns the
// hash and size. Content is staged to a temp file in the base
// directory first so the final rename never crosses filesystems.
func (s *FileStore) Store(r io.Reader) (string, int64, error) {
	tmp, err := os.CreateTemp(s.baseDir, ".staging-*")
	if err != nil {
		return "", 0, errors.Wrap(errors.ErrInternal, "failed to create staging file", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		return "", 0, errors.Wrap(errors.ErrInternal, "failed to read photo data", err)
	}
	if size == 0 {
		return "", 0, errors.New(errors.ErrInvalid, "photo file is empty")
	}
	if size < 16 {
		return "", 0, errors.New(errors.ErrInvalid, fmt.Sprintf("photo file too small (%d bytes)", size))
	}

	hash := hex.EncodeToString(hasher.Sum(nil))
	dir := filepath.Join(s.baseDir, hash[:2])
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, errors.Wrap(errors.ErrInternal, "failed to create hash directory", err)
	}

	path := filepath.Join(dir, hash)
	if _, err := os.Stat(path); err == nil {
		// Same content already staged.
		return hash, size, nil
	}
	if err := tmp.Close(); err != nil {
		return "", 0, errors.Wrap(errors.ErrInternal, "failed to finish staging file", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", 0, errors.Wrap(errors.ErrInternal, "failed to move photo into store", err)
	}
	return hash, size, nil
}

// Retrieve opens a staged photo. The caller closes the reader.
func (s *FileStore) Retrieve(hash string) (io.ReadCloser, error) {
	path, err := s.hashPath(hash)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrFileNotFound, "photo not staged", err)
	}
	return f, nil
}

// Exists reports whether a photo with this hash is staged.
func (s *FileStore) Exists(hash string) (bool, error) {
	path, err := s.hashPath(hash)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrap(errors.ErrInternal, "failed to stat photo", err)
}

// Delete removes a staged photo. Deleting an absent hash is a no-op.
// An emptied hash directory is removed too.
func (s *FileStore) Delete(hash string) error {
	path, err := s.hashPath(hash)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrInternal, "failed to delete photo", err)
	}
	os.Remove(filepath.Dir(path))
	return nil
}

// Path returns the absolute path of a staged photo, verifying it
// exists. Queue payloads carry this path as their local reference.
func (s *FileStore) Path(hash string) (string, error) {
	path, err := s.hashPath(hash)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", errors.Wrap(errors.ErrFileNotFound, "photo not staged", err)
	}
	return path, nil
}

// Stats reports how many photos are staged and their total size.
func (s *FileStore) Stats() (files int, bytes int64, err error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return 0, 0, errors.Wrap(errors.ErrInternal, "failed to read photo directory", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || len(entry.Name()) != 2 {
			continue
		}
		staged, err := os.ReadDir(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		for _, f := range staged {
			if f.IsDir() {
				continue
			}
			files++
			if info, err := f.Info(); err == nil {
				bytes += info.Size()
			}
		}
	}
	return files, bytes, nil
}

func (s *FileStore) hashPath(hash string) (string, error) {
	if len(hash) != 64 {
		return "", errors.New(errors.ErrInvalid, fmt.Sprintf("invalid content hash length: %d", len(hash)))
	}
	return filepath.Join(s.baseDir, hash[:2], hash), nil
}
