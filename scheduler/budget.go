// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: scheduler/budget.go
// Summary: Adaptive per-tick operation credit.

package scheduler

import "time"

// BudgetConfig bounds the operation credit granted per batch.
type BudgetConfig struct {
	// Initial is the credit of the first batch.
	Initial int
	// Min and Max clamp the recalibrated credit.
	Min int
	Max int
	// Slice is the wall-clock time a batch should take.
	Slice time.Duration
}

// DefaultBudgetConfig returns the paint budget defaults.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		Initial: 250,
		Min:     150,
		Max:     1500,
		Slice:   50 * time.Millisecond,
	}
}

// Budget tracks the credit left in the current batch and recalibrates the
// credit of the next batch from the measured cost of the last one.
type Budget struct {
	cfg     BudgetConfig
	clock   Clock
	refresh int
	credit  int
	started time.Time
}

// NewBudget creates a budget. A nil clock uses the system clock.
func NewBudget(cfg BudgetConfig, clock Clock) *Budget {
	if clock == nil {
		clock = RealClock()
	}
	if cfg.Max < cfg.Min {
		cfg.Max = cfg.Min
	}
	return &Budget{cfg: cfg, clock: clock}
}

// Restore starts a new batch with the current refresh value.
func (b *Budget) Restore() {
	if b.refresh == 0 {
		b.refresh = b.cfg.Initial
	}
	b.credit = b.refresh
	b.started = b.clock.Now()
}

// Spend consumes n units of credit.
func (b *Budget) Spend(n int) { b.credit -= n }

// Exhausted reports whether the batch has used up its credit.
func (b *Budget) Exhausted() bool { return b.credit < 0 }

// Credit returns the credit left in the batch.
func (b *Budget) Credit() int { return b.credit }

// Refresh returns the credit granted to each batch.
func (b *Budget) Refresh() int {
	if b.refresh == 0 {
		return b.cfg.Initial
	}
	return b.refresh
}

// Adjust recalibrates the refresh value so the next batch takes roughly
// Slice of wall-clock time. Batches that did no work or took no measurable
// time leave the value unchanged.
func (b *Budget) Adjust() {
	done := b.Refresh() - b.credit
	if done <= 0 {
		return
	}
	elapsed := b.clock.Now().Sub(b.started)
	if elapsed <= 0 {
		return
	}
	value := int(int64(done) * int64(b.cfg.Slice) / int64(elapsed))
	b.refresh = max(b.cfg.Min, min(value, b.cfg.Max))
}

// Operation hands out monotonically increasing ids. Starting a new
// operation invalidates continuations that captured an older id.
type Operation struct {
	id uint64
}

// Begin starts a new operation and returns its id.
func (o *Operation) Begin() uint64 {
	o.id++
	return o.id
}

// Cancel invalidates the current operation without starting a new one.
func (o *Operation) Cancel() { o.id++ }

// Valid reports whether id belongs to the current operation.
func (o *Operation) Valid(id uint64) bool { return id == o.id }

// Current returns the current operation id.
func (o *Operation) Current() uint64 { return o.id }
