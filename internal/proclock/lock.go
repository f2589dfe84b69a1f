// SPDX-License-Identifier: MPL-2.0

package proclock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrAlreadyRunning is the sentinel wrapped by HeldError when the lock
// belongs to a live process.
var ErrAlreadyRunning = errors.New("another updater instance is already running")

type (
	// Prober answers whether a process identifier currently belongs to an
	// active process on this host.
	Prober interface {
		Alive(pid int) bool
	}

	// HeldError reports lock contention with the owning PID.
	HeldError struct {
		Path string
		PID  int
	}

	// Lock is a PID-stamped advisory lock file. At most one live-process
	// lock record exists per path at any time.
	Lock struct {
		path     string
		pid      int
		prober   Prober
		acquired bool
	}

	// Option configures a Lock during construction.
	Option func(*Lock)
)

// Error returns the contention message for HeldError.
func (e *HeldError) Error() string {
	return fmt.Sprintf("lock %s held by running process %d: %v", e.Path, e.PID, ErrAlreadyRunning)
}

// Unwrap returns ErrAlreadyRunning for errors.Is compatibility.
func (e *HeldError) Unwrap() error {
	return ErrAlreadyRunning
}

// WithProber overrides the process-liveness probe (tests).
func WithProber(p Prober) Option {
	return func(l *Lock) {
		l.prober = p
	}
}

// WithPID overrides the recorded owner PID (tests).
func WithPID(pid int) Option {
	return func(l *Lock) {
		l.pid = pid
	}
}

// New creates a Lock at path. The lock is not held until Acquire succeeds.
func New(path string, opts ...Option) *Lock {
	l := &Lock{
		path:   path,
		pid:    os.Getpid(),
		prober: newSignalProber(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Acquire takes the lock or fails immediately. An existing record owned by
// a live process yields a HeldError; a stale record is removed first.
// Contention is not retried — the intent is "run at most once concurrently",
// not to serialize runs.
func (l *Lock) Acquire() error {
	pid, err := l.readOwner()
	switch {
	case err == nil:
		if l.prober.Alive(pid) {
			return &HeldError{Path: l.path, PID: pid}
		}
		// Stale record from a dead process; reclaim it.
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing stale lock %s (PID %d): %w", l.path, pid, err)
		}
	case os.IsNotExist(err):
		// No existing record.
	default:
		// Unreadable or garbage record; treat it as stale.
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing unreadable lock %s: %w", l.path, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}

	// O_EXCL catches the race where another process recreates the lock
	// between the staleness check and this write.
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return &HeldError{Path: l.path, PID: 0}
		}
		return fmt.Errorf("creating lock file %s: %w", l.path, err)
	}

	_, writeErr := fmt.Fprintf(f, "%d\n", l.pid)
	closeErr := f.Close()
	if writeErr != nil || closeErr != nil {
		_ = os.Remove(l.path)
		return fmt.Errorf("writing PID to lock file %s: %w", l.path, errors.Join(writeErr, closeErr))
	}

	l.acquired = true
	return nil
}

// Release removes the lock record. Safe to call multiple times and from a
// deferred path regardless of whether Acquire succeeded.
func (l *Lock) Release() error {
	if !l.acquired {
		return nil
	}
	l.acquired = false

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file %s: %w", l.path, err)
	}
	return nil
}

// Owner returns the PID stored in the lock record, if one exists.
func (l *Lock) Owner() (pid int, ok bool) {
	pid, err := l.readOwner()
	return pid, err == nil
}

// OwnerAlive reports whether the recorded owner is a live process.
func (l *Lock) OwnerAlive() bool {
	pid, err := l.readOwner()
	return err == nil && l.prober.Alive(pid)
}

// readOwner reads and parses the PID from the lock record. A record with
// unparseable content is reported as an error; callers treat that the same
// as a stale lock.
func (l *Lock) readOwner() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in lock file %s: %w", l.path, err)
	}
	return pid, nil
}
