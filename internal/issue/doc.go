// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing error types and a catalog of known
// fatal conditions with rendered guidance.
package issue
