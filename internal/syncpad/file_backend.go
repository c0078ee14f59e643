package syncpad

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"
)

// JSONFileDatabase persists every snapshot into a single JSON file.
// Saves go through a temp file and rename, guarded by an advisory flock
// so that two processes pointed at the same file cannot interleave
// writes. A directory watch invalidates the in-memory cache whenever
// the file is rewritten by someone else.
type JSONFileDatabase struct {
	path    string
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	loaded bool
	docs   map[string]PersistedDocument
}

type jsonFileState struct {
	Documents map[string]PersistedDocument `json:"documents"`
}

func NewJSONFileDatabase(path string) (*JSONFileDatabase, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrInvalidInput
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	d := &JSONFileDatabase{path: path}
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if err := watcher.Add(filepath.Dir(path)); err == nil {
			d.watcher = watcher
			go d.watch()
		} else {
			_ = watcher.Close()
		}
	}
	return d, nil
}

func (d *JSONFileDatabase) watch() {
	for {
		select {
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Name != d.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				d.mu.Lock()
				d.loaded = false
				d.mu.Unlock()
			}
		case _, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (d *JSONFileDatabase) Load(ctx context.Context, id string) (PersistedDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureLoadedLocked(); err != nil {
		return PersistedDocument{}, err
	}
	doc, ok := d.docs[id]
	if !ok {
		return PersistedDocument{}, ErrNotFound
	}
	return doc, nil
}

func (d *JSONFileDatabase) Store(ctx context.Context, id string, doc PersistedDocument) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidInput
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureLoadedLocked(); err != nil {
		return err
	}
	previous, existed := d.docs[id]
	d.docs[id] = doc
	if err := d.saveLocked(); err != nil {
		if existed {
			d.docs[id] = previous
		} else {
			delete(d.docs, id)
		}
		return err
	}
	return nil
}

func (d *JSONFileDatabase) Close() error {
	if d == nil || d.watcher == nil {
		return nil
	}
	return d.watcher.Close()
}

func (d *JSONFileDatabase) ensureLoadedLocked() error {
	if d.loaded {
		return nil
	}
	unlock, err := d.flock(unix.LOCK_SH)
	if err != nil {
		return err
	}
	defer unlock()

	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			d.docs = map[string]PersistedDocument{}
			d.loaded = true
			return nil
		}
		return err
	}
	var state jsonFileState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	if state.Documents == nil {
		state.Documents = map[string]PersistedDocument{}
	}
	d.docs = state.Documents
	d.loaded = true
	return nil
}

func (d *JSONFileDatabase) saveLocked() error {
	data, err := json.Marshal(jsonFileState{Documents: d.docs})
	if err != nil {
		return err
	}
	unlock, err := d.flock(unix.LOCK_EX)
	if err != nil {
		return err
	}
	defer unlock()

	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.path)
}

// flock takes an advisory lock on a sidecar lock file for the duration
// of one load or save.
func (d *JSONFileDatabase) flock(how int) (func(), error) {
	lockFile, err := os.OpenFile(d.path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(lockFile.Fd()), how); err != nil {
		_ = lockFile.Close()
		return nil, err
	}
	return func() {
		if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_UN); err != nil {
			log.Printf("syncpad: failed to release file lock: %v", err)
		}
		_ = lockFile.Close()
	}, nil
}
