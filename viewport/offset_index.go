// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: viewport/offset_index.go
// Summary: offsetIndex maps chunk numbers to cumulative rendered offsets.
//
// Architecture:
//
//	offsetIndex caches per-chunk heights and their prefix sums so that the
//	offset of a chunk is O(1) and the chunk at an offset is O(log N).
//
//	Heights come from the renderer: expanded chunks contribute the sum of
//	their measured rows, collapsed chunks their placeholder extent. Any
//	change to chunks or row heights marks the index dirty; the next query
//	rebuilds it in one O(N) pass.

package viewport

import "sort"

type offsetIndex struct {
	count  func() int
	height func(i int) int

	// prefixSum[i] = sum of heights of chunks [0, i). Length = n + 1.
	prefixSum []int
	n         int
	dirty     bool
}

func newOffsetIndex(count func() int, height func(i int) int) *offsetIndex {
	return &offsetIndex{count: count, height: height, dirty: true}
}

func (idx *offsetIndex) invalidate() { idx.dirty = true }

func (idx *offsetIndex) ensure() {
	if !idx.dirty {
		return
	}
	n := idx.count()
	if cap(idx.prefixSum) >= n+1 {
		idx.prefixSum = idx.prefixSum[:n+1]
	} else {
		idx.prefixSum = make([]int, n+1)
	}
	idx.prefixSum[0] = 0
	for i := range n {
		idx.prefixSum[i+1] = idx.prefixSum[i] + idx.height(i)
	}
	idx.n = n
	idx.dirty = false
}

// total returns the height of the whole document.
func (idx *offsetIndex) total() int {
	idx.ensure()
	return idx.prefixSum[idx.n]
}

// offsetOf returns the offset of chunk i. i == n yields the total.
func (idx *offsetIndex) offsetOf(i int) int {
	idx.ensure()
	i = max(0, min(i, idx.n))
	return idx.prefixSum[i]
}

// chunkAt returns the chunk whose interval contains offset, clamped to the
// first and last chunk.
func (idx *offsetIndex) chunkAt(offset int) int {
	idx.ensure()
	if idx.n == 0 {
		return 0
	}
	i := sort.Search(idx.n, func(j int) bool {
		return idx.prefixSum[j+1] > offset
	})
	if i >= idx.n {
		i = idx.n - 1
	}
	return i
}
