// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: chunks/index.go
// Summary: Index partitions the buffer's lines into chunks.
//
// Architecture:
//
//	Index keeps an ordered slice of chunks that partition [0, lineCount)
//	contiguously. Chunk lookup by line is a binary search over chunk start
//	lines: O(log numChunks).
//
//	Chunks start at a default size. A single line can be isolated into a
//	singleton chunk (SplitAt) so that it is revealed, decorated or expanded
//	independently of its neighbours.
//
//	ApplyEdit patches the partition after a buffer edit:
//	  1. Find the damaged chunks overlapping the old range.
//	  2. If the line count did not change and a single chunk is damaged,
//	     keep boundaries and report a content change only.
//	  3. Otherwise shift the chunks after the damage by the line delta,
//	     replace the damaged chunks with evenly sized new ones, and merge
//	     an under-full trailing chunk into its undecorated successor.
//
//	The Observer (the renderer) is told about every replaced run of chunks
//	so it can release rows owned by removed chunks.

package chunks

import (
	"fmt"
	"log"
	"slices"
	"sort"

	"github.com/framegrace/texeledit/buffer"
)

// DefaultChunkSize is the number of lines in a freshly built chunk.
const DefaultChunkSize = 50

// Observer is notified of structural and content changes.
type Observer interface {
	// ChunksReplaced reports that removed chunks were replaced by added,
	// starting at chunk number at.
	ChunksReplaced(at int, removed, added []*Chunk)
	// ChunkContentChanged reports that lines [from, to) of c changed text
	// without changing chunk boundaries.
	ChunkContentChanged(c *Chunk, from, to int)
}

// Index partitions lines into chunks.
type Index struct {
	chunks    []*Chunk
	lineCount int
	chunkSize int
	observer  Observer

	// Strict makes partition invariant violations panic after logging.
	Strict bool
}

// New creates an index over lineCount lines. A chunkSize <= 0 uses
// DefaultChunkSize.
func New(lineCount, chunkSize int) *Index {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	ci := &Index{chunkSize: chunkSize}
	ci.chunks = ci.makeChunks(0, lineCount)
	ci.lineCount = lineCount
	return ci
}

// SetObserver registers the observer. Passing nil removes it.
func (ci *Index) SetObserver(o Observer) {
	ci.observer = o
}

// Build rebuilds the partition from scratch for lineCount lines.
func (ci *Index) Build(lineCount int) {
	removed := ci.chunks
	ci.chunks = ci.makeChunks(0, lineCount)
	ci.lineCount = lineCount
	ci.notifyReplaced(0, removed, ci.chunks)
}

// Len returns the number of chunks.
func (ci *Index) Len() int { return len(ci.chunks) }

// At returns chunk number i.
func (ci *Index) At(i int) *Chunk { return ci.chunks[i] }

// Chunks returns a copy of the chunk list.
func (ci *Index) Chunks() []*Chunk { return slices.Clone(ci.chunks) }

// LineCount returns the number of lines covered.
func (ci *Index) LineCount() int { return ci.lineCount }

// ChunkSize returns the default chunk size.
func (ci *Index) ChunkSize() int { return ci.chunkSize }

// IndexOf returns the chunk number of c, or -1.
func (ci *Index) IndexOf(c *Chunk) int {
	n, err := ci.ChunkNumberForLine(c.startLine)
	if err != nil || ci.chunks[n] != c {
		return -1
	}
	return n
}

// ChunkNumberForLine returns the number of the chunk containing line.
func (ci *Index) ChunkNumberForLine(line int) (int, error) {
	if line < 0 || line >= ci.lineCount {
		return 0, fmt.Errorf("line %d not in [0, %d): %w", line, ci.lineCount, buffer.ErrOutOfRange)
	}
	i := sort.Search(len(ci.chunks), func(j int) bool {
		return ci.chunks[j].startLine > line
	})
	return i - 1, nil
}

// ChunkForLine returns the chunk containing line.
func (ci *Index) ChunkForLine(line int) (*Chunk, error) {
	n, err := ci.ChunkNumberForLine(line)
	if err != nil {
		return nil, err
	}
	return ci.chunks[n], nil
}

// SplitAt isolates line into a singleton chunk, splitting its chunk into
// up to three parts (prefix, singleton, suffix). All parts inherit the
// expanded flag of the split chunk. A line that already is a singleton is
// returned as is.
func (ci *Index) SplitAt(line int) (*Chunk, error) {
	n, err := ci.ChunkNumberForLine(line)
	if err != nil {
		return nil, err
	}
	if ci.chunks[n].IsSingleton() {
		return ci.chunks[n], nil
	}
	return ci.split(n, line, true), nil
}

// SplitBefore makes line the first line of a chunk, splitting its chunk into
// a prefix and the remainder. When line already starts a chunk, that chunk
// is returned unchanged.
func (ci *Index) SplitBefore(line int) (*Chunk, error) {
	n, err := ci.ChunkNumberForLine(line)
	if err != nil {
		return nil, err
	}
	if ci.chunks[n].startLine == line {
		return ci.chunks[n], nil
	}
	return ci.split(n, line, false), nil
}

func (ci *Index) split(n, line int, singleton bool) *Chunk {
	old := ci.chunks[n]
	end := old.EndLine()
	if singleton {
		end = line + 1
	}

	parts := make([]*Chunk, 0, 3)
	if line > old.startLine {
		parts = append(parts, newChunk(old.startLine, line))
	}
	target := newChunk(line, end)
	parts = append(parts, target)
	if old.EndLine() > end {
		parts = append(parts, newChunk(end, old.EndLine()))
	}
	for _, p := range parts {
		p.expanded = old.expanded
	}

	ci.chunks = slices.Replace(ci.chunks, n, n+1, parts...)
	ci.notifyReplaced(n, []*Chunk{old}, parts)
	return target
}

// ApplyEdit patches the partition for a buffer edit that replaced oldRange
// (pre-edit coordinates) by newRange (post-edit coordinates).
func (ci *Index) ApplyEdit(oldRange, newRange buffer.TextRange) error {
	if len(ci.chunks) == 0 {
		ci.Build(newRange.EndLine + 1)
		return ci.check()
	}

	delta := newRange.LinesCount() - oldRange.LinesCount()
	first, err := ci.ChunkNumberForLine(oldRange.StartLine)
	if err != nil {
		return err
	}
	last := first
	for last+1 < len(ci.chunks) && ci.chunks[last+1].startLine <= oldRange.EndLine {
		last++
	}

	if delta != 0 {
		for _, c := range ci.chunks[last+1:] {
			c.startLine += delta
		}
		ci.lineCount += delta
	}

	firstDamaged := ci.chunks[first]
	lastDamaged := ci.chunks[last]

	if delta == 0 && first == last {
		if ci.observer != nil {
			ci.observer.ChunkContentChanged(firstDamaged, newRange.StartLine, newRange.EndLine+1)
		}
		return ci.check()
	}

	start := firstDamaged.startLine
	end := lastDamaged.EndLine() + delta
	removed := slices.Clone(ci.chunks[first : last+1])
	added := ci.makeChunks(start, end)
	ci.chunks = slices.Replace(ci.chunks, first, last+1, added...)
	ci.notifyReplaced(first, removed, added)

	ci.mergeWithSuccessor(first + len(added) - 1)
	return ci.check()
}

// mergeWithSuccessor folds an under-full chunk n into chunk n+1 when neither
// carries decorations and the result does not exceed the default size.
func (ci *Index) mergeWithSuccessor(n int) {
	if n < 0 || n+1 >= len(ci.chunks) {
		return
	}
	a, b := ci.chunks[n], ci.chunks[n+1]
	if a.lineCount >= ci.chunkSize || a.IsDecorated() || b.IsDecorated() {
		return
	}
	if a.lineCount+b.lineCount > ci.chunkSize {
		return
	}
	merged := newChunk(a.startLine, b.EndLine())
	ci.chunks = slices.Replace(ci.chunks, n, n+2, merged)
	ci.notifyReplaced(n, []*Chunk{a, b}, []*Chunk{merged})
}

// makeChunks covers [start, end) with evenly sized chunks no larger than
// the default size.
func (ci *Index) makeChunks(start, end int) []*Chunk {
	span := end - start
	if span <= 0 {
		return nil
	}
	count := (span + ci.chunkSize - 1) / ci.chunkSize
	size := (span + count - 1) / count
	out := make([]*Chunk, 0, count)
	for i := start; i < end; i += size {
		out = append(out, newChunk(i, min(end, i+size)))
	}
	return out
}

func (ci *Index) notifyReplaced(at int, removed, added []*Chunk) {
	if ci.observer != nil {
		ci.observer.ChunksReplaced(at, removed, added)
	}
}

// Validate checks that chunks partition [0, LineCount()) contiguously.
func (ci *Index) Validate() error {
	next := 0
	for i, c := range ci.chunks {
		if c.lineCount <= 0 {
			return fmt.Errorf("chunk %d at line %d is empty: %w", i, c.startLine, buffer.ErrInvariantViolation)
		}
		if c.startLine != next {
			return fmt.Errorf("chunk %d starts at line %d, expected %d: %w", i, c.startLine, next, buffer.ErrInvariantViolation)
		}
		next = c.EndLine()
	}
	if next != ci.lineCount {
		return fmt.Errorf("chunks cover %d lines, expected %d: %w", next, ci.lineCount, buffer.ErrInvariantViolation)
	}
	return nil
}

func (ci *Index) check() error {
	err := ci.Validate()
	if err == nil {
		return nil
	}
	log.Printf("[CHUNKS] %v", err)
	if ci.Strict {
		panic(err)
	}
	return err
}
