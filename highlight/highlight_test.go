// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package highlight

import (
	"errors"
	"strings"
	"testing"

	"github.com/framegrace/texeledit/buffer"
)

func TestPlain_ReturnsEmptyLines(t *testing.T) {
	src := buffer.New("a\nb\nc")
	got, err := Plain{}.HighlightLines(src, 1, 3)
	if err != nil {
		t.Fatalf("HighlightLines: %v", err)
	}
	if len(got) != 2 || got[0] != nil || got[1] != nil {
		t.Errorf("expected two empty lines, got %v", got)
	}
}

func TestChroma_TokenizesGo(t *testing.T) {
	src := buffer.New("package main\n\nfunc main() {}")
	h := NewChroma("go", DefaultContextLines)

	got, err := h.HighlightLines(src, 0, 3)
	if err != nil {
		t.Fatalf("HighlightLines: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(got))
	}
	if len(got[0]) == 0 {
		t.Fatal("expected tokens on line 0")
	}
	first := got[0][0]
	if first.Offset != 0 || first.Length != 7 || !strings.HasPrefix(first.Type, "Keyword") {
		t.Errorf("expected keyword token for 'package', got %+v", first)
	}
	if len(got[1]) != 0 {
		t.Errorf("expected no tokens on empty line, got %v", got[1])
	}
	if len(got[2]) == 0 || !strings.HasPrefix(got[2][0].Type, "Keyword") {
		t.Errorf("expected keyword token for 'func', got %v", got[2])
	}
}

func TestChroma_TokensAreSortedAndDisjoint(t *testing.T) {
	src := buffer.New(`x := "a" + "b" // done`)
	got, err := NewChroma("go", 0).HighlightLines(src, 0, 1)
	if err != nil {
		t.Fatalf("HighlightLines: %v", err)
	}
	end := 0
	for _, tok := range got[0] {
		if tok.Offset < end || tok.Length <= 0 {
			t.Errorf("token %+v overlaps previous end %d", tok, end)
		}
		end = tok.End()
	}
	if end > buffer.UTF16Len(`x := "a" + "b" // done`) {
		t.Errorf("token past end of line: %d", end)
	}
}

func TestChroma_UsesPrecedingContext(t *testing.T) {
	src := buffer.New("/* open\nstill comment */\nx := 1")

	withContext, err := NewChroma("go", DefaultContextLines).HighlightLines(src, 1, 2)
	if err != nil {
		t.Fatalf("HighlightLines: %v", err)
	}
	if len(withContext) != 1 || len(withContext[0]) != 1 {
		t.Fatalf("expected one comment token, got %v", withContext)
	}
	tok := withContext[0][0]
	if !strings.HasPrefix(tok.Type, "Comment") || tok.Offset != 0 || tok.Length != 16 {
		t.Errorf("expected whole line as comment, got %+v", tok)
	}

	noContext, err := NewChroma("go", 0).HighlightLines(src, 1, 2)
	if err != nil {
		t.Fatalf("HighlightLines: %v", err)
	}
	for _, tok := range noContext[0] {
		if tok.Offset == 0 && tok.Length == 16 && strings.HasPrefix(tok.Type, "Comment") {
			t.Error("line highlighted as comment without context")
		}
	}
}

func TestChroma_UTF16Columns(t *testing.T) {
	src := buffer.New(`s := "😀" + x`)
	got, err := NewChroma("go", 0).HighlightLines(src, 0, 1)
	if err != nil {
		t.Fatalf("HighlightLines: %v", err)
	}
	var str *Token
	for i := range got[0] {
		if strings.HasPrefix(got[0][i].Type, "LiteralString") {
			str = &got[0][i]
			break
		}
	}
	if str == nil {
		t.Fatalf("no string token in %v", got[0])
	}
	// Quotes plus a surrogate pair.
	if str.Offset != 5 || str.Length != 4 {
		t.Errorf("expected string token at 5 with length 4, got %+v", *str)
	}
}

func TestChroma_RejectsBadRange(t *testing.T) {
	src := buffer.New("a")
	if _, err := NewChroma("", 0).HighlightLines(src, 0, 2); !errors.Is(err, buffer.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		filename string
		content  string
		want     string
	}{
		{"main.go", "package main\n", "Go"},
		{"script.py", "import os\nprint(os.getcwd())\n", "Python"},
		{"notes.unknownext", "", ""},
	}
	for _, tt := range tests {
		if got := DetectLanguage(tt.filename, []byte(tt.content)); got != tt.want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestResolveStyle(t *testing.T) {
	style := Style("")
	if style == nil {
		t.Fatal("expected default style")
	}
	if _, ok := ResolveStyle(style, "Keyword"); !ok {
		t.Error("expected keyword to have a distinct style")
	}
	if _, ok := ResolveStyle(style, ""); ok {
		t.Error("plain text must not resolve")
	}
	if _, ok := ResolveStyle(style, "NotAToken"); ok {
		t.Error("unknown class must not resolve")
	}
}
