package scheduler

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/coreframe/vcos/internal/backingstore"
	"github.com/coreframe/vcos/internal/config"
	"github.com/coreframe/vcos/internal/memory"
	"github.com/coreframe/vcos/internal/process"
	"github.com/coreframe/vcos/internal/stats"
)

type fakeRegistrar struct {
	mu         sync.Mutex
	registered []*process.PCB
}

func (m *fakeRegistrar) Register(p *process.PCB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered = append(m.registered, p)
}

func (m *fakeRegistrar) snapshot() []*process.PCB {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*process.PCB(nil), m.registered...)
}

func newTestScheduler(t *testing.T, cfg config.Config) (*Scheduler, *fakeRegistrar, func()) {
	t.Helper()
	store, err := backingstore.Open(filepath.Join(t.TempDir(), "store.img"))
	if err != nil {
		t.Fatalf("backingstore.Open: %v", err)
	}
	counters := &stats.Counters{}
	mm := memory.NewManager(store, cfg.FrameCount(), cfg.MemPerFrame, counters)
	reg := &fakeRegistrar{}
	sched := New(cfg, mm, reg, counters, func(error) {})
	cleanup := func() { store.Close() }
	return sched, reg, cleanup
}

func baseConfig(numCPU int, policy config.Policy, quantum int) config.Config {
	return config.Config{
		NumCPU:             numCPU,
		Scheduler:          policy,
		QuantumCycles:      quantum,
		BatchProcessFreqMs: 1000,
		MinIns:             1,
		MaxIns:             1,
		DelayPerExecMs:     0,
		MaxOverallMem:      4096,
		MemPerFrame:        64,
		MinMemPerProc:      64,
		MaxMemPerProc:      64,
	}
}

func waitFinished(t *testing.T, s *Scheduler, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(s.Snapshot().Finished) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d finished processes, got %d", n, len(s.Snapshot().Finished))
}

func TestFCFSRunsProcessToCompletion(t *testing.T) {
	cfg := baseConfig(1, config.FCFS, 1)
	s, reg, cleanup := newTestScheduler(t, cfg)
	defer cleanup()
	s.Start()
	defer s.Stop()

	s.Submit(Request{Name: "p1", Size: 64, Commands: []string{"DECLARE x 1", "ADD x x 1"}})
	waitFinished(t, s, 1, 2*time.Second)

	registered := reg.snapshot()
	if len(registered) != 1 || registered[0].Name != "p1" {
		t.Fatalf("registered = %v", registered)
	}
	snap := s.Snapshot()
	if snap.Finished[0].State() != process.Finished {
		t.Fatalf("state = %v, want Finished", snap.Finished[0].State())
	}
	if got := snap.Finished[0].Var("x"); got != 2 {
		t.Fatalf("x = %d, want 2", got)
	}
}

func TestRoundRobinPreemptsAtQuantum(t *testing.T) {
	cfg := baseConfig(1, config.RR, 1) // quantum of 1 instruction
	s, _, cleanup := newTestScheduler(t, cfg)
	defer cleanup()
	s.Start()
	defer s.Stop()

	s.Submit(Request{Name: "p1", Size: 64, Commands: []string{"DECLARE a 1", "DECLARE b 2", "DECLARE c 3"}})
	s.Submit(Request{Name: "p2", Size: 64, Commands: []string{"DECLARE a 1", "DECLARE b 2"}})
	waitFinished(t, s, 2, 2*time.Second)

	snap := s.Snapshot()
	if len(snap.Finished) != 2 {
		t.Fatalf("finished = %d, want 2", len(snap.Finished))
	}
	// Every dispatch is preempted after one instruction, so each process
	// ran exactly one instruction in its final dispatch.
	for _, p := range snap.Finished {
		if got := p.ExecutedThisQuantum(); got > cfg.QuantumCycles {
			t.Fatalf("%s ran %d instructions in its last dispatch, want at most %d", p.Name, got, cfg.QuantumCycles)
		}
	}
}

func TestSubmitRejectedAfterShutdown(t *testing.T) {
	cfg := baseConfig(1, config.FCFS, 1)
	s, _, cleanup := newTestScheduler(t, cfg)
	defer cleanup()
	s.Start()
	s.Stop()

	s.Submit(Request{Name: "late", Size: 64, Commands: []string{"SLEEP 0"}})
	snap := s.Snapshot()
	got := len(snap.Ready) + len(snap.Blocked) + len(snap.Finished)
	for _, p := range snap.Running { // one slot per core, nil when idle
		if p != nil {
			got++
		}
	}
	if got != 0 {
		t.Fatalf("a post-shutdown Submit should be dropped, got %d tracked processes", got)
	}
}

func TestPageFaultIsServicedAndProcessResumes(t *testing.T) {
	cfg := baseConfig(1, config.FCFS, 1)
	s, _, cleanup := newTestScheduler(t, cfg)
	defer cleanup()
	s.Start()
	defer s.Stop()

	s.Submit(Request{Name: "p1", Size: 64, Commands: []string{"WRITE 0x0 1", "READ y 0x0"}})
	waitFinished(t, s, 1, 2*time.Second)

	snap := s.Snapshot()
	if snap.Finished[0].Var("y") != 1 {
		t.Fatalf("y = %d, want 1", snap.Finished[0].Var("y"))
	}
}

func TestSegFaultTerminatesProcess(t *testing.T) {
	cfg := baseConfig(1, config.FCFS, 1)
	s, _, cleanup := newTestScheduler(t, cfg)
	defer cleanup()
	s.Start()
	defer s.Stop()

	s.Submit(Request{Name: "p1", Size: 64, Commands: []string{"WRITE 0x1000 1"}})
	waitFinished(t, s, 1, 2*time.Second)

	snap := s.Snapshot()
	if snap.Finished[0].State() != process.Terminated {
		t.Fatalf("state = %v, want Terminated", snap.Finished[0].State())
	}
}
