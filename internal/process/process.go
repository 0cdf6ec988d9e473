// Package process defines the PCB (process control block) this
// emulator schedules: its identity, lifecycle state, program, symbol
// table, and paging metadata (spec §3).
package process

import (
	"sync"
	"time"
)

// State is a PCB's lifecycle state (spec §3, Invariant I2).
type State int

const (
	New State = iota
	Ready
	Running
	Blocked
	Finished
	Terminated
)

func (s State) String() string {
	switch s {
	case New:
		return "NEW"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Blocked:
		return "BLOCKED"
	case Finished:
		return "FINISHED"
	case Terminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// PageTableEntry maps one virtual page to a physical frame.
type PageTableEntry struct {
	Present    bool
	Dirty      bool
	FrameIndex int // valid only when Present
}

// Memory is the paging metadata embedded in every PCB (spec §3).
type Memory struct {
	SizeBytes          int
	BackingStoreOffset int64
	PageTable          []PageTableEntry
	CreationTimestamp  time.Time

	TerminatedByError bool
	TerminationReason string
	TerminationTime   time.Time
	InvalidAddress    int64
}

// PCB is a process control block. It is owned by whichever container
// (ready/blocked/running/finished queue) currently holds it; frames
// never hold a pointer back to a PCB, only its PID and page index, so
// that freeing a process can never leave a dangling owner reference
// (spec §9's note on replacing raw shared pointers).
//
// Mutex protects fields a worker mutates concurrently with a reader
// (e.g. a CLI snapshot): state, assigned core, program counter,
// variables, and output logs. ID, Name, and Commands are set once at
// creation and are safe to read without the lock; Mem is written by the
// memory manager under its own lock.
type PCB struct {
	mu sync.Mutex

	ID            int
	Name          string
	state         State
	assignedCore  int // -1 when not RUNNING
	Commands      []string
	pc               int
	execThisQuant    int
	variables        map[string]uint16
	outputLogs       []string
	sleepTicks       int
	pendingFaultPage int

	startTime  time.Time
	finishTime time.Time

	Mem Memory
}

// NewPCB creates a PCB in state NEW with an empty symbol table.
func NewPCB(id int, name string, commands []string) *PCB {
	return &PCB{
		ID:           id,
		Name:         name,
		state:        New,
		assignedCore: -1,
		Commands:     commands,
		variables:    make(map[string]uint16),
	}
}

// State returns the PCB's current lifecycle state.
func (p *PCB) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetState transitions the PCB to s.
func (p *PCB) SetState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// AssignedCore returns the core index the PCB is running on, or -1.
func (p *PCB) AssignedCore() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.assignedCore
}

// SetAssignedCore sets the core index the PCB is running on.
func (p *PCB) SetAssignedCore(i int) {
	p.mu.Lock()
	p.assignedCore = i
	p.mu.Unlock()
}

// ProgramCounter returns the index of the next command to execute.
func (p *PCB) ProgramCounter() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pc
}

// SetProgramCounter sets the index of the next command to execute.
func (p *PCB) SetProgramCounter(pc int) {
	p.mu.Lock()
	p.pc = pc
	p.mu.Unlock()
}

// Advance increments the program counter and the per-quantum
// instruction count by one.
func (p *PCB) Advance() {
	p.mu.Lock()
	p.pc++
	p.execThisQuant++
	p.mu.Unlock()
}

// ExecutedThisQuantum returns the instruction count since the last
// dispatch, for round-robin quantum accounting.
func (p *PCB) ExecutedThisQuantum() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.execThisQuant
}

// ResetQuantum zeroes the per-quantum instruction counter; called on
// every dispatch.
func (p *PCB) ResetQuantum() {
	p.mu.Lock()
	p.execThisQuant = 0
	p.mu.Unlock()
}

// Done reports whether the program counter has reached the end of the
// command list (spec Invariant I5).
func (p *PCB) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pc >= len(p.Commands)
}

// CommandAt returns the command at the current program counter. The
// caller must have already checked Done().
func (p *PCB) CommandAt(pc int) string {
	return p.Commands[pc]
}

// Var returns the value of a variable, or 0 if undefined (spec §4.6's
// val() rule for undefined variables).
func (p *PCB) Var(name string) uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.variables[name]
}

// HasVar reports whether name has ever been assigned, distinguishing
// "declared with value 0" from "never declared" for val()'s resolution
// rule (spec §4.6).
func (p *PCB) HasVar(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.variables[name]
	return ok
}

// SetVar sets a variable's value, masked to 16 bits.
func (p *PCB) SetVar(name string, v uint16) {
	p.mu.Lock()
	p.variables[name] = v
	p.mu.Unlock()
}

// AddSleepTicks advances the per-process sleep counter used by the
// SLEEP instruction (spec §4.6); the tick is still counted active by
// the worker loop.
func (p *PCB) AddSleepTicks(n int) {
	p.mu.Lock()
	p.sleepTicks += n
	p.mu.Unlock()
}

// SleepTicks returns the accumulated SLEEP duration requested so far.
func (p *PCB) SleepTicks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sleepTicks
}

// StartTime returns the wall-clock time the PCB was first dispatched,
// or the zero value if it never ran.
func (p *PCB) StartTime() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startTime
}

// SetStartTime records the wall-clock time of first dispatch. A caller
// should only set this once, on the transition into RUNNING for the
// first time.
func (p *PCB) SetStartTime(t time.Time) {
	p.mu.Lock()
	p.startTime = t
	p.mu.Unlock()
}

// FinishTime returns the wall-clock time the PCB reached FINISHED or
// TERMINATED, or the zero value if it has not yet.
func (p *PCB) FinishTime() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finishTime
}

// SetFinishTime records the wall-clock time of finalization.
func (p *PCB) SetFinishTime(t time.Time) {
	p.mu.Lock()
	p.finishTime = t
	p.mu.Unlock()
}

// SetPendingFaultPage records which page a blocked process was waiting
// on, so the scheduler knows what to service (spec §4.5).
func (p *PCB) SetPendingFaultPage(page int) {
	p.mu.Lock()
	p.pendingFaultPage = page
	p.mu.Unlock()
}

// PendingFaultPage returns the page recorded by SetPendingFaultPage.
func (p *PCB) PendingFaultPage() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pendingFaultPage
}

// AppendLog appends one line to the PCB's in-memory output log
// (spec §9: keep output_logs in memory, let the caller persist it).
func (p *PCB) AppendLog(line string) {
	p.mu.Lock()
	p.outputLogs = append(p.outputLogs, line)
	p.mu.Unlock()
}

// OutputLogs returns a copy of the PCB's accumulated PRINT output.
func (p *PCB) OutputLogs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.outputLogs))
	copy(out, p.outputLogs)
	return out
}
