// Package stats holds the atomic counters the emulator keeps for
// ticks and paging activity. They are updated from worker goroutines
// and the memory manager and read by vmstat/process-smi snapshots, so
// every counter here is a plain atomic value rather than something
// guarded by sched_lock or mem_lock.
package stats

import "sync/atomic"

// Counters aggregates the monotonic counters described in spec §2 and
// §4.3.6. The zero value is ready to use.
type Counters struct {
	activeTicks  atomic.Int64
	idleTicks    atomic.Int64
	pagesIn      atomic.Int64
	pagesOut     atomic.Int64
}

// AddActiveTick records one instruction executed on some core.
func (c *Counters) AddActiveTick() { c.activeTicks.Add(1) }

// AddIdleTick records one idle loop iteration on an unassigned core.
func (c *Counters) AddIdleTick() { c.idleTicks.Add(1) }

// AddPageIn records one page read in from the backing store.
func (c *Counters) AddPageIn() { c.pagesIn.Add(1) }

// AddPageOut records one dirty page written back to the backing store.
func (c *Counters) AddPageOut() { c.pagesOut.Add(1) }

// ActiveTicks returns the total number of instructions executed across
// all cores.
func (c *Counters) ActiveTicks() int64 { return c.activeTicks.Load() }

// IdleTicks returns the total number of idle loop iterations across
// all cores.
func (c *Counters) IdleTicks() int64 { return c.idleTicks.Load() }

// TotalTicks returns ActiveTicks + IdleTicks.
func (c *Counters) TotalTicks() int64 { return c.activeTicks.Load() + c.idleTicks.Load() }

// PagesIn returns the total number of pages paged in.
func (c *Counters) PagesIn() int64 { return c.pagesIn.Load() }

// PagesOut returns the total number of pages paged out.
func (c *Counters) PagesOut() int64 { return c.pagesOut.Load() }
