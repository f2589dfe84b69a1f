// SPDX-License-Identifier: MPL-2.0

// Package transfer moves file contents with verification and bounded retry.
//
// A transfer copies the source to a temporary sibling of the destination,
// byte-compares the copy against the source, and only then renames it over
// the destination. External readers therefore observe the destination
// either in its pre-transfer state or fully verified — never partially
// written. This is the load-bearing safety mechanism of the updater.
package transfer
