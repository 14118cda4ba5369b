// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: buffer/shift.go
// Summary: Translating positions and ranges across an edit.

package buffer

// ShiftPosition moves a position that lies at or after the end of the
// edited range into post-edit coordinates. Positions before the edit are
// returned unchanged.
func ShiftPosition(p Position, c Change) Position {
	old, nw := c.OldRange, c.NewRange
	if p.Before(old.End()) {
		return p
	}
	if p.Line == old.EndLine {
		return Position{Line: nw.EndLine, Column: p.Column - old.EndColumn + nw.EndColumn}
	}
	return Position{Line: p.Line + c.LinesDelta(), Column: p.Column}
}

// ShiftRange translates r across the edit c. ok is false when the edit
// touched the interior of r (or replaced the whole document), in which case
// r no longer describes the same text.
func ShiftRange(r TextRange, c Change) (shifted TextRange, ok bool) {
	if c.Reset {
		return TextRange{}, false
	}
	r = r.Normalize()
	old := c.OldRange
	switch {
	case r.End().Compare(old.Start()) <= 0:
		return r, true
	case r.Start().Compare(old.End()) >= 0:
		return NewRange(ShiftPosition(r.Start(), c), ShiftPosition(r.End(), c)), true
	}
	return TextRange{}, false
}
