// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: editor/options.go
// Summary: Editor settings and their mapping from the config store.

package editor

import (
	"time"

	"github.com/framegrace/texeledit/chunks"
	"github.com/framegrace/texeledit/config"
	"github.com/framegrace/texeledit/highlight"
	"github.com/framegrace/texeledit/scheduler"
	"github.com/framegrace/texeledit/search"
	"github.com/framegrace/texeledit/surface"
	"github.com/framegrace/texeledit/viewport"
)

// Options configures an Editor.
type Options struct {
	ChunkSize        int
	StrictInvariants bool

	Viewport viewport.Options
	Surface  surface.Options
	Search   search.Options

	// CaseSensitive is the default for new queries.
	CaseSensitive bool
	// UseIndex enables the line store prefilter.
	UseIndex bool

	Highlight    bool
	ContextLines int

	// SnapshotDelay debounces line store snapshots after edits.
	SnapshotDelay time.Duration
	// FlashDuration is how long HighlightLine keeps its highlight.
	FlashDuration time.Duration
}

// DefaultOptions returns the built-in settings.
func DefaultOptions() Options {
	return Options{
		ChunkSize:     chunks.DefaultChunkSize,
		Viewport:      viewport.DefaultOptions(),
		Surface:       surface.Options{TabWidth: 4, StyleName: highlight.DefaultStyleName},
		Search:        search.DefaultOptions(),
		UseIndex:      true,
		Highlight:     true,
		ContextLines:  highlight.DefaultContextLines,
		SnapshotDelay: time.Second,
		FlashDuration: 2 * time.Second,
	}
}

// OptionsFromConfig reads settings from cfg, keeping the defaults for
// missing keys.
func OptionsFromConfig(cfg config.Config) Options {
	o := DefaultOptions()

	o.ChunkSize = cfg.GetInt("editor", "chunk_size", o.ChunkSize)
	o.StrictInvariants = cfg.GetBool("editor", "strict_invariants", o.StrictInvariants)

	v := &o.Viewport
	v.Overscan = cfg.GetFloat("viewport", "overscan", v.Overscan)
	v.ScrollDebounce = cfg.GetMillis("viewport", "scroll_debounce_ms", v.ScrollDebounce)
	v.RowHeight = cfg.GetInt("viewport", "row_height", v.RowHeight)
	o.Surface.Wrap = cfg.GetBool("viewport", "wrap", o.Surface.Wrap)
	o.Surface.TabWidth = cfg.GetInt("viewport", "tab_width", o.Surface.TabWidth)

	v.Budget = scheduler.BudgetConfig{
		Initial: cfg.GetInt("paint", "initial_credit", v.Budget.Initial),
		Min:     cfg.GetInt("paint", "min_credit", v.Budget.Min),
		Max:     cfg.GetInt("paint", "max_credit", v.Budget.Max),
		Slice:   cfg.GetMillis("paint", "slice_ms", v.Budget.Slice),
	}
	v.RetryDelay = cfg.GetMillis("paint", "retry_ms", v.RetryDelay)
	v.MaxLineLength = cfg.GetInt("paint", "max_line_length", v.MaxLineLength)

	o.Search.BatchSize = cfg.GetInt("search", "batch_size", o.Search.BatchSize)
	o.Search.IndexMinLines = cfg.GetInt("search", "index_min_lines", o.Search.IndexMinLines)
	o.Search.Budget = scheduler.BudgetConfig{
		Initial: cfg.GetInt("search", "initial_credit", o.Search.Budget.Initial),
		Min:     cfg.GetInt("search", "min_credit", o.Search.Budget.Min),
		Max:     cfg.GetInt("search", "max_credit", o.Search.Budget.Max),
		Slice:   cfg.GetMillis("search", "slice_ms", o.Search.Budget.Slice),
	}
	o.CaseSensitive = cfg.GetBool("search", "case_sensitive", o.CaseSensitive)
	o.UseIndex = cfg.GetBool("search", "use_index", o.UseIndex)

	o.Highlight = cfg.GetBool("highlight", "enabled", o.Highlight)
	o.Surface.StyleName = cfg.GetString("highlight", "style", o.Surface.StyleName)
	o.ContextLines = cfg.GetInt("highlight", "context_lines", o.ContextLines)

	o.SnapshotDelay = cfg.GetMillis("index", "snapshot_delay_ms", o.SnapshotDelay)
	return o
}
