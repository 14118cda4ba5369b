// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: highlight/detect.go
// Summary: Language detection and token style resolution.

package highlight

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/go-enry/go-enry/v2"
)

// DetectLanguage returns the chroma lexer name for a document, using the
// file name first and the content as a tie-breaker. Returns "" when no
// lexer matches; the Chroma highlighter then analyses content itself.
func DetectLanguage(filename string, content []byte) string {
	lang := enry.GetLanguage(filename, content)
	if lang == "" {
		return ""
	}
	if l := lexers.Get(lang); l != nil {
		return l.Config().Name
	}
	return ""
}

// TokenStyle is the resolved presentation of a token class.
type TokenStyle struct {
	Colour    chroma.Colour
	Bold      bool
	Italic    bool
	Underline bool
}

// ResolveStyle looks up class in style. ok is false for plain text, unknown
// classes, and entries that add neither a distinct colour nor attributes.
func ResolveStyle(style *chroma.Style, class string) (ts TokenStyle, ok bool) {
	if style == nil || class == "" {
		return TokenStyle{}, false
	}
	tt, err := chroma.TokenTypeString(class)
	if err != nil {
		return TokenStyle{}, false
	}
	base := style.Get(chroma.Text).Colour
	entry := style.Get(tt)
	ts = TokenStyle{
		Bold:      entry.Bold == chroma.Yes,
		Italic:    entry.Italic == chroma.Yes,
		Underline: entry.Underline == chroma.Yes,
	}
	if entry.Colour.IsSet() && entry.Colour != base {
		ts.Colour = entry.Colour
	}
	ok = ts.Colour.IsSet() || ts.Bold || ts.Italic || ts.Underline
	return ts, ok
}
