// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: highlight/chroma.go
// Summary: Chroma-backed Highlighter with bounded lexer context.
//
// Architecture:
//
//	Lines are tokenized as one block so the lexer sees multi-line structure
//	(comments, strings, heredocs). Up to ContextLines lines before the
//	requested range are prepended as lexer context; tokens that fall in the
//	context are discarded. Tokens are split at line breaks and converted
//	from runes to UTF-16 columns.

package highlight

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/framegrace/texeledit/buffer"
)

const (
	// DefaultStyleName is the chroma style used when none is configured.
	DefaultStyleName = "catppuccin-mocha"
	// DefaultContextLines is the number of preceding lines fed to the lexer.
	DefaultContextLines = 50
)

// Chroma highlights lines with a chroma lexer.
type Chroma struct {
	// LexerName selects the lexer; empty means auto-detect from content.
	LexerName string
	// ContextLines bounds the preceding lines used as lexer context.
	ContextLines int

	lexer chroma.Lexer
}

// NewChroma creates a highlighter for lexerName.
func NewChroma(lexerName string, contextLines int) *Chroma {
	if contextLines < 0 {
		contextLines = DefaultContextLines
	}
	return &Chroma{LexerName: lexerName, ContextLines: contextLines}
}

// Style resolves a style name to a chroma style, falling back to the default.
func Style(name string) *chroma.Style {
	if name == "" {
		name = DefaultStyleName
	}
	return styles.Get(name)
}

// HighlightLines tokenizes lines [from, to) of src.
func (h *Chroma) HighlightLines(src LineSource, from, to int) ([][]Token, error) {
	if from < 0 || to > src.LineCount() || from > to {
		return nil, fmt.Errorf("lines [%d, %d) not in [0, %d): %w", from, to, src.LineCount(), buffer.ErrOutOfRange)
	}
	out := make([][]Token, to-from)
	if from == to {
		return out, nil
	}

	start := max(0, from-h.ContextLines)
	var sb strings.Builder
	for i := start; i < to; i++ {
		line, err := src.Line(i)
		if err != nil {
			return nil, err
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	text := sb.String()

	lexer := h.resolveLexer(text)
	iter, err := chroma.Coalesce(lexer).Tokenise(nil, text)
	if err != nil {
		return nil, fmt.Errorf("tokenise lines [%d, %d): %w", from, to, err)
	}

	line := start
	col := 0
	for tok := iter(); tok != chroma.EOF; tok = iter() {
		typ := tokenClass(tok.Type)
		value := tok.Value
		for {
			seg, rest, brk := strings.Cut(value, "\n")
			n := buffer.UTF16Len(seg)
			if n > 0 && typ != "" && line >= from && line < to {
				out[line-from] = appendToken(out[line-from], Token{Offset: col, Length: n, Type: typ})
			}
			col += n
			if !brk {
				break
			}
			line++
			col = 0
			value = rest
		}
		if line >= to {
			break
		}
	}
	return out, nil
}

func (h *Chroma) resolveLexer(text string) chroma.Lexer {
	if h.lexer != nil {
		return h.lexer
	}
	h.lexer = getLexer(h.LexerName, text)
	return h.lexer
}

// appendToken adds t, merging it with the previous token when both are
// adjacent and of the same type.
func appendToken(tokens []Token, t Token) []Token {
	if n := len(tokens); n > 0 {
		last := &tokens[n-1]
		if last.Type == t.Type && last.End() == t.Offset {
			last.Length += t.Length
			return tokens
		}
	}
	return append(tokens, t)
}

// tokenClass maps a chroma token type to a token class name. Plain text
// and whitespace map to "".
func tokenClass(tt chroma.TokenType) string {
	switch tt {
	case chroma.Text, chroma.TextWhitespace, chroma.Error:
		return ""
	}
	return tt.String()
}

// getLexer returns a chroma lexer by name, or auto-detects from content.
func getLexer(name, text string) chroma.Lexer {
	if name != "" {
		if l := lexers.Get(name); l != nil {
			return l
		}
	}
	if l := lexers.Analyse(text); l != nil {
		return l
	}
	return lexers.Fallback
}
