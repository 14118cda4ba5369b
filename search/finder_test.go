// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/framegrace/texeledit/buffer"
	"github.com/framegrace/texeledit/scheduler"
)

func newFinder(t *testing.T, text string, opts Options) (*buffer.LineBuffer, *Index, *Finder, *scheduler.Scheduler) {
	t.Helper()
	buf := buffer.New(text)
	x := NewIndex(buf)
	t.Cleanup(x.Close)
	sched := scheduler.New(scheduler.NewManualClock(time.Unix(0, 0)))
	return buf, x, NewFinder(buf, x, sched, opts), sched
}

func runToCompletion(t *testing.T, f *Finder, sched *scheduler.Scheduler, maxTicks int) int {
	t.Helper()
	ticks := 0
	for f.Running() {
		if ticks >= maxTicks {
			t.Fatalf("search still running after %d ticks", maxTicks)
		}
		sched.Tick()
		ticks++
	}
	return ticks
}

func TestFinder_FindsMatches(t *testing.T) {
	_, x, f, sched := newFinder(t, "foo\nbar foo\nFOO", DefaultOptions())

	var last Progress
	if err := f.Start(Query{Pattern: "foo"}, func(p Progress) { last = p }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if x.Len() != 0 || !f.Running() {
		t.Fatal("expected the search to run on the scheduler, not synchronously")
	}
	runToCompletion(t, f, sched, 10)

	got := x.Matches()
	want := []buffer.TextRange{rng(0, 0, 3), rng(1, 4, 7), rng(2, 0, 3)}
	if len(got) != len(want) {
		t.Fatalf("expected %d matches, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("match %d: got %s, want %s", i, got[i], want[i])
		}
	}
	if !last.Done || last.Matches != 3 || last.Scanned != 3 {
		t.Errorf("unexpected final progress %+v", last)
	}
}

func TestFinder_QueryModes(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  int
	}{
		{"case sensitive", Query{Pattern: "foo", CaseSensitive: true}, 2},
		{"literal metacharacters", Query{Pattern: "a.b"}, 1},
		{"regexp", Query{Pattern: `f[o0]+`, Regexp: true}, 4},
		{"utf16 columns", Query{Pattern: "é"}, 1},
	}
	for _, tt := range tests {
		_, x, f, sched := newFinder(t, "foo f00\nFOO\na.b axb\nfoo é", DefaultOptions())
		if err := f.Start(tt.query, nil); err != nil {
			t.Fatalf("%s: Start: %v", tt.name, err)
		}
		runToCompletion(t, f, sched, 10)
		if x.Len() != tt.want {
			t.Errorf("%s: expected %d matches, got %v", tt.name, tt.want, x.Matches())
		}
	}
}

func TestFinder_RejectsBadQueries(t *testing.T) {
	_, _, f, _ := newFinder(t, "x", DefaultOptions())
	if err := f.Start(Query{}, nil); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
	if err := f.Start(Query{Pattern: "(", Regexp: true}, nil); err == nil {
		t.Error("expected error for invalid regexp")
	}
	if f.Running() {
		t.Error("expected no search running after rejected queries")
	}
}

func TestFinder_LargeDocumentIsTimeSliced(t *testing.T) {
	lines := make([]string, 100_000)
	for i := range lines {
		if i%10 == 0 {
			lines[i] = fmt.Sprintf("line %d needle", i)
		} else {
			lines[i] = fmt.Sprintf("line %d", i)
		}
	}
	opts := DefaultOptions()
	opts.Budget = scheduler.BudgetConfig{Initial: 1000, Min: 1000, Max: 1000, Slice: 50 * time.Millisecond}
	_, x, f, sched := newFinder(t, strings.Join(lines, "\n"), opts)

	if err := f.Start(Query{Pattern: "needle"}, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ticks := runToCompletion(t, f, sched, 10_000)
	if ticks < 50 {
		t.Errorf("expected the scan spread over many ticks, took %d", ticks)
	}
	if x.Len() != 10_000 {
		t.Errorf("expected 10000 matches, got %d", x.Len())
	}
}

func TestFinder_BatchSizeYields(t *testing.T) {
	opts := DefaultOptions()
	opts.BatchSize = 2
	_, x, f, sched := newFinder(t, "a a a a a", opts)
	if err := f.Start(Query{Pattern: "a"}, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sched.Tick()
	if x.Len() != 5 {
		t.Errorf("expected the line scanned in full even past the batch size, got %d", x.Len())
	}
	if !f.Running() {
		t.Error("expected the step to yield after a full batch")
	}
	runToCompletion(t, f, sched, 5)
	if x.Len() != 5 {
		t.Errorf("expected 5 matches, got %d", x.Len())
	}
}

func TestFinder_Cancel(t *testing.T) {
	opts := DefaultOptions()
	opts.Budget = scheduler.BudgetConfig{Initial: 10, Min: 10, Max: 10, Slice: 50 * time.Millisecond}
	_, x, f, sched := newFinder(t, strings.Repeat("hit\n", 100), opts)
	if err := f.Start(Query{Pattern: "hit"}, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sched.Tick()
	found := x.Len()
	if found == 0 || found >= 100 {
		t.Fatalf("expected a partial first batch, got %d", found)
	}
	f.Cancel()
	for range 20 {
		sched.Tick()
	}
	if x.Len() != found {
		t.Errorf("expected cancelled search to stop at %d matches, got %d", found, x.Len())
	}
}

func TestFinder_RestartsAfterEdit(t *testing.T) {
	opts := DefaultOptions()
	opts.Budget = scheduler.BudgetConfig{Initial: 10, Min: 10, Max: 10, Slice: 50 * time.Millisecond}
	buf, x, f, sched := newFinder(t, strings.Repeat("hit\n", 50)+"hit", opts)
	if err := f.Start(Query{Pattern: "hit"}, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sched.Tick()
	if _, err := buf.ReplaceRange(buffer.TextRange{EndLine: 10}, ""); err != nil {
		t.Fatalf("ReplaceRange: %v", err)
	}
	runToCompletion(t, f, sched, 100)
	if x.Len() != 41 || x.StaleCount() != 0 {
		t.Errorf("expected 41 matches in the edited document, got %d (stale %d)", x.Len(), x.StaleCount())
	}
}

type fakePrefilter struct {
	version int64
	lines   []int
	err     error
	calls   int
}

func (p *fakePrefilter) IndexedVersion() int64 { return p.version }

func (p *fakePrefilter) CandidateLines(string) ([]int, error) {
	p.calls++
	return p.lines, p.err
}

func TestFinder_UsesPrefilter(t *testing.T) {
	opts := DefaultOptions()
	opts.IndexMinLines = 0
	buf, x, f, sched := newFinder(t, "foo\nfoo\nfoo", opts)
	pf := &fakePrefilter{version: buf.Version(), lines: []int{1, 7}}
	f.SetPrefilter(pf)

	if err := f.Start(Query{Pattern: "foo"}, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	runToCompletion(t, f, sched, 10)
	if pf.calls != 1 || x.Len() != 1 || x.Matches()[0].StartLine != 1 {
		t.Errorf("expected only candidate line 1 scanned, got %v (calls %d)", x.Matches(), pf.calls)
	}

	// A snapshot of an older version is ignored.
	pf.version = buf.Version() - 1
	if err := f.Start(Query{Pattern: "foo"}, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	runToCompletion(t, f, sched, 10)
	if x.Len() != 3 {
		t.Errorf("expected full scan with a stale prefilter, got %d matches", x.Len())
	}

	// Regexp queries never use it.
	pf.version = buf.Version()
	if err := f.Start(Query{Pattern: "fo+", Regexp: true}, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	runToCompletion(t, f, sched, 10)
	if x.Len() != 3 || pf.calls != 1 {
		t.Errorf("expected regexp to bypass the prefilter, got %d matches (calls %d)", x.Len(), pf.calls)
	}
}

func TestFinder_PrefilterErrorScansEveryLine(t *testing.T) {
	opts := DefaultOptions()
	opts.IndexMinLines = 0
	buf, x, f, sched := newFinder(t, "foo\nbar\nfoo", opts)
	// Version still matches, but the lines now belong to someone else.
	pf := &fakePrefilter{version: buf.Version(), lines: []int{}, err: errors.New("snapshot belongs to another session")}
	f.SetPrefilter(pf)

	if err := f.Start(Query{Pattern: "foo"}, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	runToCompletion(t, f, sched, 10)
	if pf.calls != 1 || x.Len() != 2 {
		t.Errorf("expected a full scan after the prefilter failed, got %d matches (calls %d)", x.Len(), pf.calls)
	}
}
