// SPDX-License-Identifier: MPL-2.0

// Package state persists the update-progress marker that makes the
// backup/restore cycle crash-recoverable.
//
// The marker is a single persisted bit: "0" means no update is in progress,
// "1" means a run has entered its destructive phase but has not yet
// completed the restore. A fresh install starts at "0". The Store interface
// keeps the marker injectable so the orchestrator can be tested against an
// in-memory implementation.
package state
