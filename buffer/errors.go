// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package buffer

import "errors"

var (
	// ErrOutOfRange is returned when a line or column lies outside the
	// current buffer bounds. Indices are never clamped.
	ErrOutOfRange = errors.New("out of range")

	// ErrInvariantViolation signals corrupted bookkeeping in a structure
	// derived from the buffer (e.g. a non-contiguous chunk partition).
	ErrInvariantViolation = errors.New("invariant violation")
)
