// Package memory implements the paging memory manager: per-process
// allocation, demand-paged translation, page-fault service, eviction,
// deallocation, and paging statistics (spec §4.2–§4.3).
//
// Grounded on the teacher's memory_bus.go: a single mutex guards a
// contiguous physical buffer plus the bookkeeping table layered over
// it, the same shape as SystemBus's RWMutex-guarded memory slice, here
// specialised to frames instead of memory-mapped I/O regions.
package memory

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/coreframe/vcos/internal/backingstore"
	"github.com/coreframe/vcos/internal/process"
	"github.com/coreframe/vcos/internal/stats"
)

// ErrInvalidSize is returned by Allocate when size is not a power of
// two in [64, 65536] (spec §4.3.1, §7 InvalidSize/InvalidMemorySize).
var ErrInvalidSize = errors.New("memory: size must be a power of two in [64, 65536]")

// ErrNoEvictable is the fatal condition of spec §4.3.4/§7: every frame
// holder is BLOCKED (or there are no holders at all) and no free frame
// exists. The caller (internal/system) logs and treats this as fatal.
var ErrNoEvictable = errors.New("memory: no evictable page and no free frame")

// AccessOutcome is the three-way result of a memory access (spec
// §4.3.2).
type AccessOutcome int

const (
	AccessOK AccessOutcome = iota
	AccessPageFault
	AccessSegFault
)

// LiveLister is implemented by the scheduler and registered with the
// Manager so that eviction (spec §4.3.4) can scan "all live,
// non-BLOCKED processes in ready queues and running slots" without the
// memory package importing the scheduler package. Per DESIGN.md's
// open-question resolution, this module's own active-policy queues
// are the whole scan (no cross-policy scanning).
type LiveLister interface {
	LiveNonBlocked() []*process.PCB
}

// Manager is the memory manager: frame table, physical RAM buffer,
// backing store, and paging statistics, all guarded by one mutex.
type Manager struct {
	mu sync.Mutex

	store     *backingstore.Store
	frames    *frameTable
	ram       []byte // contiguous physical RAM, frameCount*frameSize bytes
	frameSize int

	lister LiveLister
	stats  *stats.Counters
}

// NewManager builds a Manager over frameCount frames of frameSize
// bytes each, backed by store.
func NewManager(store *backingstore.Store, frameCount, frameSize int, counters *stats.Counters) *Manager {
	return &Manager{
		store:     store,
		frames:    newFrameTable(frameCount, frameSize),
		ram:       make([]byte, frameCount*frameSize),
		frameSize: frameSize,
		stats:     counters,
	}
}

// SetLiveLister registers the scheduler's live-roster callback used by
// eviction. Must be called once before any Access that could fault.
func (m *Manager) SetLiveLister(l LiveLister) {
	m.mu.Lock()
	m.lister = l
	m.mu.Unlock()
}

// ValidateSize reports whether size is an acceptable process memory
// size (a power of two in [64, 65536], spec §4.3.1/§7) without touching
// the backing store or any Manager state, so callers can reject an
// invalid submission synchronously, before Allocate is ever reached.
func ValidateSize(size int) error {
	if !isPowerOfTwo(size) || size < 64 || size > 65536 {
		return ErrInvalidSize
	}
	return nil
}

// Allocate reserves backing-store space for a newly created process
// and sizes its page table (spec §4.3.1).
func (m *Manager) Allocate(p *process.PCB, size int) error {
	if err := ValidateSize(size); err != nil {
		return err
	}

	offset, err := m.store.Reserve(size)
	if err != nil {
		return err
	}

	pageCount := (size + m.frameSize - 1) / m.frameSize
	m.mu.Lock()
	p.Mem = process.Memory{
		SizeBytes:          size,
		BackingStoreOffset: offset,
		PageTable:          make([]process.PageTableEntry, pageCount),
		CreationTimestamp:  time.Now(),
	}
	m.mu.Unlock()
	return nil
}

func isPowerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }

// Access performs the bounds check, translation, and dirty-bit update
// of spec §4.3.2. On AccessOK, read the translated bytes with
// ReadWord/WriteWord rather than a raw pointer — this implementation
// keeps translation and the byte transfer under the same critical
// section so neither is exposed to a race against eviction.
func (m *Manager) Access(p *process.PCB, vaddr int, isWrite bool) AccessOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	outcome, _, _ := m.translateLocked(p, vaddr, isWrite)
	return outcome
}

// translateLocked must be called with m.mu held. It returns the
// outcome and, on AccessOK, the frame index and in-frame offset.
func (m *Manager) translateLocked(p *process.PCB, vaddr int, isWrite bool) (AccessOutcome, int, int) {
	if vaddr < 0 || vaddr >= p.Mem.SizeBytes {
		p.Mem.TerminatedByError = true
		p.Mem.TerminationReason = "memory access violation"
		p.Mem.InvalidAddress = int64(vaddr)
		p.Mem.TerminationTime = time.Now()
		return AccessSegFault, 0, 0
	}

	page := vaddr / m.frameSize
	offset := vaddr % m.frameSize
	pte := &p.Mem.PageTable[page]
	if !pte.Present {
		return AccessPageFault, 0, 0
	}
	if isWrite {
		pte.Dirty = true
	}
	return AccessOK, pte.FrameIndex, offset
}

// ReadWord translates vaddr and, on success, returns the little-endian
// 16-bit value stored there (spec §4.6's READ instruction).
func (m *Manager) ReadWord(p *process.PCB, vaddr int) (uint16, AccessOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	outcome, frame, off := m.translateLocked(p, vaddr, false)
	if outcome != AccessOK {
		return 0, outcome
	}
	base := frame*m.frameSize + off
	return uint16(m.ram[base]) | uint16(m.ram[base+1])<<8, AccessOK
}

// WriteWord translates vaddr and, on success, stores value as two
// little-endian bytes there (spec §4.6's WRITE instruction).
func (m *Manager) WriteWord(p *process.PCB, vaddr int, value uint16) AccessOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	outcome, frame, off := m.translateLocked(p, vaddr, true)
	if outcome != AccessOK {
		return outcome
	}
	base := frame*m.frameSize + off
	m.ram[base] = byte(value)
	m.ram[base+1] = byte(value >> 8)
	return AccessOK
}

// ServiceFault services the page fault raised by a prior Access/
// ReadWord/WriteWord call for (p, page): it finds or evicts a free
// frame, reads the page in from the backing store, and marks it
// present (spec §4.3.3).
func (m *Manager) ServiceFault(p *process.PCB, page int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.serviceFaultLocked(p, page)
}

func (m *Manager) serviceFaultLocked(p *process.PCB, page int) error {
	frameIdx, ok := m.frames.findFree()
	if !ok {
		var err error
		frameIdx, err = m.evictLocked()
		if err != nil {
			return err
		}
	}

	offset := p.Mem.BackingStoreOffset + int64(page)*int64(m.frameSize)
	data, err := m.store.ReadPage(offset, m.frameSize)
	if err != nil {
		return err
	}
	copy(m.ram[frameIdx*m.frameSize:(frameIdx+1)*m.frameSize], data)

	m.frames.assign(frameIdx, p.ID, page)
	p.Mem.PageTable[page] = process.PageTableEntry{Present: true, Dirty: false, FrameIndex: frameIdx}
	m.stats.AddPageIn()
	return nil
}

// evictLocked selects and evicts the oldest live, non-BLOCKED
// process's lowest-indexed present page, per spec §4.3.4. Must be
// called with m.mu held.
func (m *Manager) evictLocked() (int, error) {
	if m.lister == nil {
		return 0, ErrNoEvictable
	}

	var victim *process.PCB
	var victimPage = -1
	for _, cand := range m.lister.LiveNonBlocked() {
		page := firstPresentPage(cand)
		if page < 0 {
			continue
		}
		if victim == nil || cand.Mem.CreationTimestamp.Before(victim.Mem.CreationTimestamp) {
			victim = cand
			victimPage = page
		}
	}
	if victim == nil {
		return 0, ErrNoEvictable
	}

	pte := &victim.Mem.PageTable[victimPage]
	frameIdx := pte.FrameIndex
	if pte.Dirty {
		offset := victim.Mem.BackingStoreOffset + int64(victimPage)*int64(m.frameSize)
		page := make([]byte, m.frameSize)
		copy(page, m.ram[frameIdx*m.frameSize:(frameIdx+1)*m.frameSize])
		if err := m.store.WritePage(offset, page); err != nil {
			return 0, err
		}
		m.stats.AddPageOut()
	}

	*pte = process.PageTableEntry{}
	m.frames.release(frameIdx)
	return frameIdx, nil
}

func firstPresentPage(p *process.PCB) int {
	for i, pte := range p.Mem.PageTable {
		if pte.Present {
			return i
		}
	}
	return -1
}

// Deallocate frees every frame owned by p (spec §4.3.5). Backing-store
// bytes are not reclaimed.
func (m *Manager) Deallocate(p *process.PCB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range p.Mem.PageTable {
		if p.Mem.PageTable[i].Present {
			m.frames.release(p.Mem.PageTable[i].FrameIndex)
			p.Mem.PageTable[i] = process.PageTableEntry{}
		}
	}
}

// UsedBytes returns the number of bytes currently held in non-free
// frames (spec §4.3.6).
func (m *Manager) UsedBytes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames.usedCount() * m.frameSize
}

// FreeBytes returns M_total - UsedBytes.
func (m *Manager) FreeBytes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ram) - m.frames.usedCount()*m.frameSize
}

// TotalBytes returns M_total.
func (m *Manager) TotalBytes() int {
	return len(m.ram)
}

// FrameSize returns M_frame, immutable after construction.
func (m *Manager) FrameSize() int {
	return m.frameSize
}

// LogFatal is a convenience used by callers that receive
// ErrNoEvictable or a backingstore.FatalError: it logs a diagnostic in
// the shape spec §7 asks for ("abort with diagnostic").
func LogFatal(err error) {
	log.Printf("fatal: %v", err)
}
