// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"stationup/internal/testutil"
)

const (
	// DefaultAttempts is the total attempt bound when Options.Attempts is zero.
	DefaultAttempts = 3
	// DefaultBackoff is the fixed wait between attempts when Options.Backoff is zero.
	DefaultBackoff = 2 * time.Second

	compareChunkSize = 64 << 10
)

// ErrExhausted is the sentinel wrapped by Copy when every attempt failed.
// The destination is guaranteed untouched in that case.
var ErrExhausted = errors.New("verified transfer retries exhausted")

// copyFn is a test seam for injecting transient copy failures and
// corrupted copies.
var copyFn = copyFile

type (
	// Options configures a Copier. Attempts and Backoff are configuration
	// parameters rather than literals so tests can drive the retry loop.
	Options struct {
		// Attempts is the total number of copy attempts (not extra retries).
		Attempts int
		// Backoff is the fixed wait between attempts.
		Backoff time.Duration
		// Clock injects sleeping; defaults to testutil.RealClock.
		Clock testutil.Clock
	}

	// Copier performs verified file transfers.
	Copier struct {
		attempts int
		backoff  time.Duration
		clock    testutil.Clock
	}
)

// New creates a Copier, filling zero Options fields with defaults.
func New(opts Options) *Copier {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Clock == nil {
		opts.Clock = testutil.RealClock{}
	}
	return &Copier{
		attempts: opts.Attempts,
		backoff:  opts.Backoff,
		clock:    opts.Clock,
	}
}

// Copy transfers the content of src to dst. Each attempt copies src to a
// temporary sibling of dst, byte-compares the copy against src, and
// atomically renames it over dst (replacing any existing file). Failed
// attempts discard the temporary file and wait the fixed backoff before
// retrying, up to the attempt bound. On exhaustion the destination keeps
// its pre-transfer content and the error wraps ErrExhausted.
func (c *Copier) Copy(ctx context.Context, src, dst string) error {
	tmp := dst + ".tmp"

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			if err := c.clock.Sleep(ctx, c.backoff); err != nil {
				return fmt.Errorf("transfer %s -> %s aborted: %w", src, dst, err)
			}
		}

		lastErr = c.attemptOnce(src, dst, tmp)
		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("%w: %s -> %s after %d attempts: %v", ErrExhausted, src, dst, c.attempts, lastErr)
}

// attemptOnce performs a single copy-verify-promote cycle. Any failure
// removes the temporary file so no partial artifact outlives the attempt.
func (c *Copier) attemptOnce(src, dst, tmp string) (err error) {
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err := copyFn(src, tmp); err != nil {
		return fmt.Errorf("copying: %w", err)
	}

	same, err := sameContents(src, tmp)
	if err != nil {
		return fmt.Errorf("verifying: %w", err)
	}
	if !same {
		return errors.New("verification mismatch between source and copy")
	}

	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("promoting verified copy: %w", err)
	}
	return nil
}

// copyFile copies src to dst, preserving the source file mode.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		// Read-only handle; close errors are exotic.
		_ = in.Close()
	}()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}

// sameContents compares two files chunk by chunk.
func sameContents(a, b string) (bool, error) {
	fa, err := os.Open(a)
	if err != nil {
		return false, err
	}
	defer func() { _ = fa.Close() }()

	fb, err := os.Open(b)
	if err != nil {
		return false, err
	}
	defer func() { _ = fb.Close() }()

	bufA := make([]byte, compareChunkSize)
	bufB := make([]byte, compareChunkSize)

	for {
		nA, errA := io.ReadFull(fa, bufA)
		nB, errB := io.ReadFull(fb, bufB)

		if nA != nB || !bytes.Equal(bufA[:nA], bufB[:nB]) {
			return false, nil
		}

		endA := errors.Is(errA, io.EOF) || errors.Is(errA, io.ErrUnexpectedEOF)
		endB := errors.Is(errB, io.EOF) || errors.Is(errB, io.ErrUnexpectedEOF)
		switch {
		case endA && endB:
			return true, nil
		case errA != nil && !endA:
			return false, errA
		case errB != nil && !endB:
			return false, errB
		case endA != endB:
			return false, nil
		}
	}
}
