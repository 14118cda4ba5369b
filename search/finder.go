// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: search/finder.go
// Summary: Finder scans the buffer for a query in time-sliced batches.
//
// Architecture:
//
//	A search never runs synchronously. Start posts the first step to the
//	scheduler; each step scans lines until either a batch of matches has
//	been found or the line credit of the tick is spent, appends what it
//	found to the Index, and posts the next step. Every step scans at least
//	one line, so a search always terminates.
//
//	Starting a new search (or Cancel) begins a new operation; steps that
//	captured an older operation id return without doing anything.
//
//	For literal queries on large documents a Prefilter (the SQLite line
//	store) narrows the scan to candidate lines, provided its snapshot is of
//	the current buffer version. Candidates are always verified.

package search

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/framegrace/texeledit/buffer"
	"github.com/framegrace/texeledit/scheduler"
)

// ErrEmptyQuery is returned for a query with no pattern.
var ErrEmptyQuery = errors.New("search: empty query")

// Query describes what to search for.
type Query struct {
	Pattern       string
	Regexp        bool
	CaseSensitive bool
}

// Compile returns the regular expression matching q.
func (q Query) Compile() (*regexp.Regexp, error) {
	if q.Pattern == "" {
		return nil, ErrEmptyQuery
	}
	expr := q.Pattern
	if !q.Regexp {
		expr = regexp.QuoteMeta(expr)
	}
	if !q.CaseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("search: invalid pattern %q: %w", q.Pattern, err)
	}
	return re, nil
}

// Prefilter returns lines that may contain a literal query.
type Prefilter interface {
	IndexedVersion() int64
	CandidateLines(query string) ([]int, error)
}

// Options configures a Finder.
type Options struct {
	// BatchSize is the number of matches after which a step yields.
	BatchSize int
	// Budget bounds the lines scanned per step.
	Budget scheduler.BudgetConfig
	// IndexMinLines is the document size from which the prefilter is used.
	IndexMinLines int
}

// DefaultOptions returns the standard search settings.
func DefaultOptions() Options {
	return Options{
		BatchSize: 500,
		Budget: scheduler.BudgetConfig{
			Initial: 2000,
			Min:     500,
			Max:     20000,
			Slice:   50 * time.Millisecond,
		},
		IndexMinLines: 5000,
	}
}

// Progress reports the state of a running search.
type Progress struct {
	Matches int
	// Scanned is the number of lines scanned so far.
	Scanned int
	Done    bool
}

// Finder runs searches on the scheduler and fills an Index.
type Finder struct {
	buf       *buffer.LineBuffer
	index     *Index
	sched     *scheduler.Scheduler
	opts      Options
	op        scheduler.Operation
	budget    *scheduler.Budget
	prefilter Prefilter
	running   bool
}

// NewFinder creates a finder writing into index.
func NewFinder(buf *buffer.LineBuffer, index *Index, sched *scheduler.Scheduler, opts Options) *Finder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}
	return &Finder{
		buf:    buf,
		index:  index,
		sched:  sched,
		opts:   opts,
		budget: scheduler.NewBudget(opts.Budget, sched.Clock()),
	}
}

// SetPrefilter installs a candidate line source. nil disables it.
func (f *Finder) SetPrefilter(p Prefilter) { f.prefilter = p }

// Running reports whether a search is in progress.
func (f *Finder) Running() bool { return f.running }

// Cancel stops the running search. Matches found so far stay in the index.
func (f *Finder) Cancel() {
	f.op.Cancel()
	f.running = false
}

type scan struct {
	re      *regexp.Regexp
	query   Query
	version int64
	// lines lists candidate lines; nil means every line.
	lines   []int
	next    int
	found   int
	scanned int
}

func (s *scan) nextLine(lineCount int) (int, bool) {
	if s.lines == nil {
		if s.next >= lineCount {
			return 0, false
		}
		s.next++
		return s.next - 1, true
	}
	for s.next < len(s.lines) {
		line := s.lines[s.next]
		s.next++
		if line < lineCount {
			return line, true
		}
	}
	return 0, false
}

// Start clears the index and begins searching for q. progress, if non-nil,
// is called after every step.
func (f *Finder) Start(q Query, progress func(Progress)) error {
	re, err := q.Compile()
	if err != nil {
		return err
	}
	f.index.Clear()
	op := f.op.Begin()
	s := &scan{re: re, query: q}
	f.prepare(s)
	f.running = true
	f.sched.Post(func() { f.step(op, s, progress) })
	return nil
}

// prepare resets s to scan the current buffer version.
func (f *Finder) prepare(s *scan) {
	s.version = f.buf.Version()
	s.lines = nil
	s.next = 0
	s.found = 0
	s.scanned = 0
	if lines, ok := f.candidates(s.query); ok {
		s.lines = lines
		if s.lines == nil {
			s.lines = []int{}
		}
	}
}

func (f *Finder) candidates(q Query) ([]int, bool) {
	if f.prefilter == nil || q.Regexp || f.buf.LineCount() < f.opts.IndexMinLines {
		return nil, false
	}
	if !q.CaseSensitive && !isASCII(q.Pattern) {
		return nil, false
	}
	if f.prefilter.IndexedVersion() != f.buf.Version() {
		return nil, false
	}
	lines, err := f.prefilter.CandidateLines(q.Pattern)
	if err != nil {
		log.Printf("[SEARCH] Prefilter failed, scanning every line: %v", err)
		return nil, false
	}
	return lines, true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func (f *Finder) step(op uint64, s *scan, progress func(Progress)) {
	if !f.op.Valid(op) {
		return
	}
	if f.buf.Version() != s.version {
		// The document changed under the scan; start over.
		f.index.Clear()
		f.prepare(s)
	}

	lineCount := f.buf.LineCount()
	f.budget.Restore()
	var batch []buffer.TextRange
	found := 0
	done := false
	for {
		line, ok := s.nextLine(lineCount)
		if !ok {
			done = true
			break
		}
		text, err := f.buf.Line(line)
		if err != nil {
			done = true
			break
		}
		s.scanned++
		hits := s.re.FindAllStringIndex(text, -1)
		for _, m := range hits {
			if m[0] == m[1] {
				continue
			}
			batch = append(batch, buffer.TextRange{
				StartLine:   line,
				StartColumn: buffer.ByteToUTF16(text, m[0]),
				EndLine:     line,
				EndColumn:   buffer.ByteToUTF16(text, m[1]),
			})
			found++
		}
		f.budget.Spend(1 + len(hits))
		if found >= f.opts.BatchSize || f.budget.Exhausted() {
			break
		}
	}
	f.budget.Adjust()
	f.index.Append(batch...)
	s.found += found

	if done {
		f.running = false
		log.Printf("[SEARCH] Search %q finished: %d matches in %d lines", s.query.Pattern, s.found, s.scanned)
	} else {
		f.sched.Post(func() { f.step(op, s, progress) })
	}
	if progress != nil {
		progress(Progress{Matches: s.found, Scanned: s.scanned, Done: done})
	}
}
