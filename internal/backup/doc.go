// SPDX-License-Identifier: MPL-2.0

// Package backup saves and restores the critical user-mutable files across
// an update, gated by the persisted update-progress marker so an
// interrupted run never re-captures a possibly corrupted live file as the
// backup of record.
package backup
