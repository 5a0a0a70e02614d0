// Package store provides the atomic-write and advisory-locking primitives
// that every domain package (session, task, context, wave, project,
// mailbox) composes on top of. It knows nothing about document shape: the
// byte-level primitives read and write raw bytes under lock, and the JSON
// helpers (ReadJSON, WriteJSON, UpdateJSON, AppendJSONL) marshal whatever
// value the caller supplies.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/mnthe/agentcore/internal/kernelerr"
)

// DefaultLockTimeout bounds how long WithLock waits to acquire an
// advisory lock before failing with kernelerr.ErrLockTimeout.
const DefaultLockTimeout = 5 * time.Second

const lockRetryInterval = 25 * time.Millisecond

// Store composes the atomic-write and advisory-lock primitives over
// caller-supplied paths. It carries no entity-specific knowledge.
type Store struct {
	LockTimeout time.Duration
}

// New returns a Store with the default lock timeout.
func New() *Store {
	return &Store{LockTimeout: DefaultLockTimeout}
}

// Read returns the bytes at path, or kernelerr.ErrNotFound if it does not
// exist.
func (s *Store) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, kernelerr.ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// WriteAtomic writes data to path via a sibling temp file, fsync, and
// rename, so concurrent readers never observe a partial document. It
// creates the containing directory if absent.
func (s *Store) WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// lockPath returns the sibling lock file used to guard path.
func lockPath(path string) string {
	return path + ".lock"
}

// WithLock acquires an advisory exclusive lock on path's sibling lock
// file, invokes fn, and releases the lock on every exit path (including
// panics unwinding past this frame, since the deferred Unlock always
// runs). Acquisition retries with bounded backoff up to s.LockTimeout; a
// failure to acquire within that bound returns kernelerr.ErrLockTimeout.
func (s *Store) WithLock(path string, fn func() error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	fl := flock.New(lockPath(path))
	timeout := s.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	deadline := time.Now().Add(timeout)
	locked := false
	for {
		ok, err := fl.TryLock()
		if err != nil {
			return err
		}
		if ok {
			locked = true
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s: %w", path, kernelerr.ErrLockTimeout)
		}
		time.Sleep(lockRetryInterval)
	}
	if !locked {
		return fmt.Errorf("%s: %w", path, kernelerr.ErrLockTimeout)
	}
	defer fl.Unlock()

	return fn()
}

// Update performs the canonical lock -> read -> parse -> mutate ->
// serialize -> writeAtomic -> unlock pipeline. mutator receives the
// current document bytes (nil if the document does not yet exist) and
// returns the new document bytes to write. If mutator returns
// (nil, nil), the write is skipped (a no-op update).
//
// Update does not parse JSON itself; callers typed over a specific
// model (session, task, ...) do that so a parse failure can be reported
// as kernelerr.ErrCorrupt with the right document's identity attached.
func (s *Store) Update(path string, mutator func(current []byte) ([]byte, error)) error {
	return s.WithLock(path, func() error {
		var current []byte
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			current = data
		case errors.Is(err, os.ErrNotExist):
			current = nil
		default:
			return err
		}

		next, err := mutator(current)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		return s.WriteAtomic(path, next)
	})
}

// ReadJSON reads and unmarshals path into v. A missing file yields
// kernelerr.ErrNotFound; a malformed file yields kernelerr.ErrCorrupt.
func (s *Store) ReadJSON(path string, v any) error {
	data, err := s.Read(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w: %v", path, kernelerr.ErrCorrupt, err)
	}
	return nil
}

// WriteJSON marshals v with two-space indentation (per the persisted
// format convention) and writes it atomically to path.
func (s *Store) WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return s.WriteAtomic(path, data)
}

// UpdateJSON locks path, decodes the current document into v (leaving v
// as passed if the document does not exist yet), lets mutator adjust it
// in place, and writes the result back atomically. mutator returning an
// error aborts the write.
func (s *Store) UpdateJSON(path string, v any, mutator func() error) error {
	return s.WithLock(path, func() error {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, v); err != nil {
				return fmt.Errorf("%s: %w: %v", path, kernelerr.ErrCorrupt, err)
			}
		case errors.Is(err, os.ErrNotExist):
			// v is left as passed; mutator is responsible for
			// populating a fresh document.
		default:
			return err
		}

		if err := mutator(); err != nil {
			return err
		}

		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		out = append(out, '\n')
		return s.WriteAtomic(path, out)
	})
}

// AppendJSONL appends one JSON-encoded line to path under lock, creating
// the file if absent, for append-only streams.
func (s *Store) AppendJSONL(path string, v any) error {
	return s.WithLock(path, func() error {
		line, err := json.Marshal(v)
		if err != nil {
			return err
		}
		line = append(line, '\n')

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := f.Write(line); err != nil {
			return err
		}
		return f.Sync()
	})
}
