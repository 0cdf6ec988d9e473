// Package scheduler implements the scheduler core of spec §4.4: one
// scheduler goroutine draining creation requests and serviced page
// faults, dispatching ready processes onto C worker goroutines that
// run FCFS or round-robin off the same queues (RR with an infinite
// quantum degenerates to FCFS, so both policies share this one type).
//
// Grounded on the teacher's coprocessor_manager.go: a mutex-guarded set
// of per-slot workers with a stop/done lifecycle, a monotonic ticket
// (here, PCB id) counter, and a bookkeeping map pruned as state
// transitions become terminal — generalised here to PCB queues instead
// of MMIO ticket completions.
package scheduler

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coreframe/vcos/internal/config"
	"github.com/coreframe/vcos/internal/exec"
	"github.com/coreframe/vcos/internal/memory"
	"github.com/coreframe/vcos/internal/process"
	"github.com/coreframe/vcos/internal/stats"
)

const idleSleep = 30 * time.Millisecond

// Request is a creation request posted to the scheduler (spec §3's
// "single shared creation_queue"). Commands is nil for an
// auto-generated program.
type Request struct {
	Name     string
	Size     int
	Commands []string
}

// Registrar is implemented by internal/system.Directory: the scheduler
// calls Register once a requested process has been materialized into a
// real PCB with an assigned id, under the directory's own lock (spec
// §5's dir_lock), so this package never needs to import system.
type Registrar interface {
	Register(p *process.PCB)
}

// FatalErrorHandler is invoked once, from the scheduler goroutine, when
// a process's memory allocation or a page-fault service or eviction
// attempt fails unrecoverably (spec §4.3.4's NoEvictable, or a
// backing-store I/O failure). The scheduler
// itself never calls os.Exit (library code must stay testable); the
// handler is system.System's job (spec §7).
type FatalErrorHandler func(error)

// Scheduler holds the ready/blocked/running/finished queues and
// creation queue of spec §3, guarded by one mutex with a condition
// variable (spec §5's sched_lock).
type Scheduler struct {
	mu   sync.Mutex
	cond *sync.Cond

	policy   config.Policy
	quantum  int // instructions, RR only
	delay    time.Duration
	minIns   int
	maxIns   int

	mm        *memory.Manager
	registrar Registrar
	onFatal   FatalErrorHandler
	counters  *stats.Counters

	nextID atomic.Int64

	rngMu sync.Mutex
	rng   *rand.Rand

	creationQueue []Request
	ready         []*process.PCB
	blocked       []*process.PCB
	running       []*process.PCB
	finished      []*process.PCB

	shuttingDown atomic.Bool
	fatal        atomic.Bool
	wg           sync.WaitGroup
}

// New builds a Scheduler for cfg.NumCPU cores under the given policy.
// mm is shared with the process-creation generator and the CLI layer;
// New registers the Scheduler as mm's memory.LiveLister for eviction
// scans (spec §4.3.4).
func New(cfg config.Config, mm *memory.Manager, registrar Registrar, counters *stats.Counters, onFatal FatalErrorHandler) *Scheduler {
	s := &Scheduler{
		policy:    cfg.Scheduler,
		quantum:   cfg.QuantumCycles,
		delay:     time.Duration(cfg.DelayPerExecMs) * time.Millisecond,
		minIns:    cfg.MinIns,
		maxIns:    cfg.MaxIns,
		mm:        mm,
		registrar: registrar,
		onFatal:   onFatal,
		counters:  counters,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		running:   make([]*process.PCB, cfg.NumCPU),
	}
	s.cond = sync.NewCond(&s.mu)
	mm.SetLiveLister(s)
	return s
}

// Start launches the scheduler goroutine and cfg.NumCPU worker
// goroutines.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.schedulerLoop()
	for i := range s.running {
		s.wg.Add(1)
		go s.workerLoop(i)
	}
}

// Stop requests cooperative shutdown and blocks until every goroutine
// this Scheduler started has exited (spec §5's shutdown protocol).
func (s *Scheduler) Stop() {
	s.shuttingDown.Store(true)
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
	s.wg.Wait()
}

// Submit enqueues a creation request (spec §4.4.1 step 1). It is a
// no-op once shutdown has been requested.
func (s *Scheduler) Submit(req Request) {
	if s.shuttingDown.Load() {
		return
	}
	s.mu.Lock()
	s.creationQueue = append(s.creationQueue, req)
	s.cond.Broadcast()
	s.mu.Unlock()
}

// NextID returns the next monotonically increasing process id (spec
// §3's "single process-wide counter").
func (s *Scheduler) NextID() int {
	return int(s.nextID.Add(1))
}

// LiveNonBlocked implements memory.LiveLister: every PCB currently in
// the ready queue or a running slot (spec §4.3.4's eviction scan
// scope — this policy's own queues only, per DESIGN.md).
func (s *Scheduler) LiveNonBlocked() []*process.PCB {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*process.PCB, 0, len(s.ready)+len(s.running))
	out = append(out, s.ready...)
	for _, p := range s.running {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Snapshot returns copies of the queue contents for reporting (spec
// §6's screen -ls/vmstat/process-smi); callers must not mutate the
// returned PCBs' container membership.
type Snapshot struct {
	Ready    []*process.PCB
	Blocked  []*process.PCB
	Running  []*process.PCB // len == NumCPU, nil entries for idle cores
	Finished []*process.PCB
}

// Snapshot returns the current state of every queue.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Ready:    append([]*process.PCB(nil), s.ready...),
		Blocked:  append([]*process.PCB(nil), s.blocked...),
		Running:  append([]*process.PCB(nil), s.running...),
		Finished: append([]*process.PCB(nil), s.finished...),
	}
}

// BusyCores returns the number of non-idle core slots.
func (s *Scheduler) BusyCores() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.running {
		if p != nil {
			n++
		}
	}
	return n
}

// NumCPU returns C.
func (s *Scheduler) NumCPU() int { return len(s.running) }

// schedulerLoop is the single scheduler goroutine of spec §4.4.1. It
// never holds sched_lock while calling into the Memory Manager: each
// iteration snapshots and clears the creation/blocked queues under the
// lock, releases it, does the allocation/fault-service work, then
// reacquires the lock only to publish results and dispatch. The two
// locks nest in one place only: eviction calls LiveNonBlocked, which
// takes sched_lock while the Memory Manager holds mem_lock, so the
// order in practice is mem_lock -> sched_lock. No code path takes
// mem_lock while holding sched_lock.
func (s *Scheduler) schedulerLoop() {
	defer s.wg.Done()
	for {
		if s.fatal.Load() {
			return
		}

		s.mu.Lock()
		for !s.shuttingDown.Load() &&
			len(s.creationQueue) == 0 &&
			len(s.blocked) == 0 &&
			!(s.hasFreeCoreLocked() && len(s.ready) > 0) {
			s.cond.Wait()
		}

		if s.shuttingDown.Load() && len(s.creationQueue) == 0 && len(s.blocked) == 0 &&
			len(s.ready) == 0 && s.allIdleLocked() {
			s.mu.Unlock()
			return
		}

		reqs := s.creationQueue
		s.creationQueue = nil
		blockedSnap := s.blocked
		s.blocked = nil
		s.mu.Unlock()

		var newlyReady []*process.PCB

		for _, req := range reqs {
			p := s.materialize(req)
			newlyReady = append(newlyReady, p)
			s.registrar.Register(p)
		}

		var stillBlocked []*process.PCB
		for _, p := range blockedSnap {
			if s.fatal.Load() {
				stillBlocked = append(stillBlocked, p)
				continue
			}
			if err := s.mm.ServiceFault(p, p.PendingFaultPage()); err != nil {
				log.Printf("scheduler: page fault service failed for %s: %v", p.Name, err)
				if s.fatal.CompareAndSwap(false, true) && s.onFatal != nil {
					s.onFatal(err)
				}
				s.shuttingDown.Store(true)
				stillBlocked = append(stillBlocked, p)
				continue
			}
			p.SetState(process.Ready)
			newlyReady = append(newlyReady, p)
		}

		s.mu.Lock()
		s.blocked = append(s.blocked, stillBlocked...)
		s.ready = append(s.ready, newlyReady...)
		s.dispatchLocked()
		s.mu.Unlock()
	}
}

func (s *Scheduler) hasFreeCoreLocked() bool {
	for _, p := range s.running {
		if p == nil {
			return true
		}
	}
	return false
}

func (s *Scheduler) allIdleLocked() bool {
	for _, p := range s.running {
		if p != nil {
			return false
		}
	}
	return true
}

// dispatchLocked assigns ready processes to free core slots, strictly
// FIFO (spec §4.4.1 step 3). Must be called with s.mu held.
func (s *Scheduler) dispatchLocked() {
	for i := range s.running {
		if s.running[i] != nil || len(s.ready) == 0 {
			continue
		}
		p := s.ready[0]
		s.ready = s.ready[1:]
		p.SetState(process.Running)
		p.SetAssignedCore(i)
		p.ResetQuantum()
		if p.StartTime().IsZero() {
			p.SetStartTime(time.Now())
		}
		s.running[i] = p
	}
}

// materialize turns a creation request into a READY PCB: assigns an
// id, allocates memory, and fills in a program (spec §4.4.1 step 1).
// A memory allocation failure is treated as fatal, matching backing-
// store/frame exhaustion's educational "abort with diagnostic" policy.
func (s *Scheduler) materialize(req Request) *process.PCB {
	id := s.NextID()
	commands := req.Commands
	if len(commands) == 0 {
		s.rngMu.Lock()
		commands = exec.RandomProgram(s.minIns, s.maxIns, req.Size, s.rng)
		s.rngMu.Unlock()
	}

	p := process.NewPCB(id, req.Name, commands)
	if err := s.mm.Allocate(p, req.Size); err != nil {
		log.Printf("scheduler: allocate failed for %s: %v", req.Name, err)
		if s.fatal.CompareAndSwap(false, true) && s.onFatal != nil {
			s.onFatal(fmt.Errorf("allocate %s: %w", req.Name, err))
		}
		s.shuttingDown.Store(true)
	}
	p.SetState(process.Ready)
	return p
}

// workerLoop is core i's worker goroutine (spec §4.4.2). It only ever
// holds s.mu briefly, to snapshot or publish state; it never holds it
// while executing an instruction or touching the Memory Manager.
func (s *Scheduler) workerLoop(core int) {
	defer s.wg.Done()
	for {
		p := s.snapshot(core)
		if p == nil {
			if s.shuttingDown.Load() {
				return
			}
			s.counters.AddIdleTick()
			time.Sleep(idleSleep)
			continue
		}

		if p.State() == process.Terminated || p.Done() {
			s.finalize(core, p, p.State() == process.Terminated)
			continue
		}

		cmd := p.CommandAt(p.ProgramCounter())
		instr, err := exec.Parse(cmd)
		if err != nil {
			// Unreachable in practice: every command is validated by
			// exec.Flatten before it ever reaches a PCB's command list.
			log.Printf("worker %d: unparsable command %q for %s: %v", core, cmd, p.Name, err)
			s.finalize(core, p, false)
			continue
		}

		outcome := exec.Execute(p, s.mm, instr)
		switch outcome {
		case exec.Terminated:
			p.SetState(process.Terminated)
			s.finalize(core, p, true)

		case exec.Blocked:
			p.SetPendingFaultPage(instr.Addr / s.mm.FrameSize())
			s.mu.Lock()
			p.SetState(process.Blocked)
			p.SetAssignedCore(-1)
			s.blocked = append(s.blocked, p)
			s.running[core] = nil
			s.cond.Broadcast()
			s.mu.Unlock()

		case exec.Advanced:
			s.counters.AddActiveTick()
			p.Advance()
			if s.delay > 0 {
				time.Sleep(s.delay)
			}
			s.afterAdvance(core, p)
		}
	}
}

// afterAdvance implements spec §4.4.2 step 7: finalize on completion,
// else (RR only) preempt on quantum exhaustion.
func (s *Scheduler) afterAdvance(core int, p *process.PCB) {
	if p.Done() {
		s.finalize(core, p, false)
		return
	}
	if s.policy == config.RR && p.ExecutedThisQuantum() >= s.quantum {
		s.mu.Lock()
		p.SetState(process.Ready)
		p.SetAssignedCore(-1)
		s.ready = append(s.ready, p)
		s.running[core] = nil
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

func (s *Scheduler) snapshot(core int) *process.PCB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[core]
}

// finalize retires a process from its core slot: FINISHED unless it
// was already marked TERMINATED, frames released, pushed onto
// finished, and the scheduler woken to dispatch the freed core (spec
// §4.4.2 step 2).
func (s *Scheduler) finalize(core int, p *process.PCB, terminated bool) {
	if !terminated {
		p.SetState(process.Finished)
	}
	p.SetFinishTime(time.Now())
	s.mm.Deallocate(p)

	s.mu.Lock()
	p.SetAssignedCore(-1)
	s.running[core] = nil
	s.finished = append(s.finished, p)
	s.cond.Broadcast()
	s.mu.Unlock()
}
