package watch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// SnapshotStore holds the last committed visible state so a new Controller
// can show it before its first navigation completes. Save runs on every
// commit, Load once when a Controller is built, Clear on explicit reset.
type SnapshotStore interface {
	Save(v Visible) error
	// Load returns false when nothing was saved.
	Load() (Visible, bool, error)
	Clear() error
}

// MemorySnapshots is an in-process SnapshotStore.
type MemorySnapshots struct {
	mu  sync.Mutex
	v   Visible
	set bool
}

// NewMemorySnapshots returns an empty store.
func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{}
}

func (s *MemorySnapshots) Save(v Visible) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v = v.clone()
	s.set = true
	return nil
}

func (s *MemorySnapshots) Load() (Visible, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return Visible{}, false, nil
	}
	return s.v.clone(), true, nil
}

func (s *MemorySnapshots) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v = Visible{}
	s.set = false
	return nil
}

// FileSnapshots persists the snapshot as JSON so it survives restarts.
type FileSnapshots struct {
	mu   sync.Mutex
	path string
}

// NewFileSnapshots returns a store backed by path. The file is created on the
// first Save.
func NewFileSnapshots(path string) *FileSnapshots {
	return &FileSnapshots{path: path}
}

// Load returns false when the file does not exist or is empty. A file that
// cannot be parsed is an error so callers can log it.
func (s *FileSnapshots) Load() (Visible, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var v Visible
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return v, false, nil
		}
		return v, false, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return v, false, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) == 0 {
		return v, false, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return Visible{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return v, v.VideoID != "", nil
}

// Save writes the snapshot atomically.
func (s *FileSnapshots) Save(v Visible) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open tmp: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&v); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename tmp: %w", err)
	}
	return nil
}

func (s *FileSnapshots) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}
