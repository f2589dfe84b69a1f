// SPDX-License-Identifier: MPL-2.0

package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	markerNotInProgress = "0"
	markerInProgress    = "1"
)

type (
	// Store reads and writes the update-progress marker.
	Store interface {
		// InProgress reports whether a previous run entered its destructive
		// phase without completing the restore.
		InProgress() (bool, error)

		// SetInProgress persists the marker. True must be written before any
		// destructive source-tree mutation; false only after a successful
		// restore.
		SetInProgress(v bool) error
	}

	// FileStore persists the marker as a single-line file containing the
	// literal "0" or "1". A missing file is initialized to "0" on first read.
	FileStore struct {
		path string
	}

	// MemStore is an in-memory Store for tests.
	MemStore struct {
		mu         sync.Mutex
		inProgress bool
	}
)

// NewFileStore creates a FileStore backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the marker file location.
func (s *FileStore) Path() string {
	return s.path
}

// InProgress reads the marker, creating it as "0" if absent.
func (s *FileStore) InProgress() (bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		if err := s.SetInProgress(false); err != nil {
			return false, err
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading update marker %s: %w", s.path, err)
	}

	switch strings.TrimSpace(string(data)) {
	case markerNotInProgress:
		return false, nil
	case markerInProgress:
		return true, nil
	default:
		// Unrecognized content means the marker can no longer be trusted.
		// Fail rather than guess which side of the destructive phase a
		// previous run stopped on.
		return false, fmt.Errorf("update marker %s has unrecognized content %q", s.path, strings.TrimSpace(string(data)))
	}
}

// SetInProgress writes the marker, creating parent directories as needed.
func (s *FileStore) SetInProgress(v bool) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating marker directory: %w", err)
	}

	content := markerNotInProgress
	if v {
		content = markerInProgress
	}

	if err := os.WriteFile(s.path, []byte(content+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing update marker %s: %w", s.path, err)
	}
	return nil
}

// NewMemStore creates a MemStore with the marker initially cleared.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// InProgress returns the in-memory marker value.
func (s *MemStore) InProgress() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inProgress, nil
}

// SetInProgress updates the in-memory marker value.
func (s *MemStore) SetInProgress(v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inProgress = v
	return nil
}
