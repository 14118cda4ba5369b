// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: chunks/chunk.go
// Summary: Chunk is a contiguous run of lines managed as one render unit.

package chunks

import (
	"fmt"
	"maps"
	"slices"
)

// DecorationID identifies a decoration attached to a singleton chunk.
type DecorationID uint64

// Chunk covers lines [StartLine, StartLine+LineCount).
// Chunks are owned by an Index; callers must not mutate boundaries.
type Chunk struct {
	startLine   int
	lineCount   int
	expanded    bool
	decorations map[DecorationID]struct{}
}

func newChunk(startLine, endLine int) *Chunk {
	return &Chunk{startLine: startLine, lineCount: endLine - startLine}
}

// StartLine returns the first line of the chunk.
func (c *Chunk) StartLine() int { return c.startLine }

// LineCount returns the number of lines in the chunk.
func (c *Chunk) LineCount() int { return c.lineCount }

// EndLine returns the line just past the chunk.
func (c *Chunk) EndLine() int { return c.startLine + c.lineCount }

// ContainsLine reports whether line belongs to the chunk.
func (c *Chunk) ContainsLine(line int) bool {
	return line >= c.startLine && line < c.EndLine()
}

// IsSingleton reports whether the chunk covers exactly one line.
func (c *Chunk) IsSingleton() bool { return c.lineCount == 1 }

// Expanded reports whether the chunk is materialized into per-line rows.
func (c *Chunk) Expanded() bool { return c.expanded }

// SetExpanded records the materialization state. Only the renderer that
// owns the rows calls this.
func (c *Chunk) SetExpanded(expanded bool) { c.expanded = expanded }

// AddDecoration attaches id. Only singleton chunks can carry decorations.
func (c *Chunk) AddDecoration(id DecorationID) error {
	if !c.IsSingleton() {
		return fmt.Errorf("decoration on %d-line chunk at line %d", c.lineCount, c.startLine)
	}
	if c.decorations == nil {
		c.decorations = make(map[DecorationID]struct{})
	}
	c.decorations[id] = struct{}{}
	return nil
}

// RemoveDecoration detaches id.
func (c *Chunk) RemoveDecoration(id DecorationID) {
	delete(c.decorations, id)
}

// IsDecorated reports whether any decoration is attached.
func (c *Chunk) IsDecorated() bool { return len(c.decorations) > 0 }

// Decorations returns the attached ids in ascending order.
func (c *Chunk) Decorations() []DecorationID {
	return slices.Sorted(maps.Keys(c.decorations))
}

func (c *Chunk) String() string {
	state := "collapsed"
	if c.expanded {
		state = "expanded"
	}
	return fmt.Sprintf("chunk[%d,%d) %s", c.startLine, c.EndLine(), state)
}
