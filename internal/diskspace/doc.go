// SPDX-License-Identifier: MPL-2.0

// Package diskspace verifies free filesystem space before the updater
// takes any destructive action.
package diskspace
