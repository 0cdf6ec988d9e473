// Package system assembles the backing store, memory manager, and
// scheduler into one running emulator and exposes the consumer side of
// every shell command in spec §6 as a plain Go method — `initialize`,
// `screen -s`, `screen -c`, `screen -r`, `screen -ls`, `scheduler-start`/
// `-stop`, `vmstat`, `process-smi`, `report-util`, and `exit` — without
// the interactive shell, banner, or marquee that spec.md's Non-goals
// explicitly exclude.
package system

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"

	"github.com/coreframe/vcos/internal/backingstore"
	"github.com/coreframe/vcos/internal/config"
	"github.com/coreframe/vcos/internal/exec"
	"github.com/coreframe/vcos/internal/memory"
	"github.com/coreframe/vcos/internal/process"
	"github.com/coreframe/vcos/internal/scheduler"
	"github.com/coreframe/vcos/internal/stats"
)

// DefaultPaths fills in Config.BackingStorePath/LogPath with XDG
// locations when the caller leaves them blank (spec §6A: these two
// fields are this implementation's concern, not the original config
// table's).
func DefaultPaths(cfg config.Config) config.Config {
	if cfg.BackingStorePath == "" {
		cfg.BackingStorePath = filepath.Join(xdg.DataHome, "vcos", "backing-store.img")
	}
	if cfg.LogPath == "" {
		cfg.LogPath = filepath.Join(xdg.StateHome, "vcos", "csopesy-log.txt")
	}
	return cfg
}

// cout is the package-level console lock of spec §5's cout_lock: the
// only console output the core emits directly is the one-line
// SegmentationFault diagnostic of screen -r; everything else is the
// CLI layer's concern.
var cout sync.Mutex

// System is the emulator aggregate: one per running instance.
type System struct {
	cfg   config.Config
	store *backingstore.Store
	mm    *memory.Manager
	sched *scheduler.Scheduler
	dir   *Directory
	stats *stats.Counters
	gen   *generator

	fatalMu  sync.Mutex
	fatalErr error
}

// New boots a System: opens the backing store, builds the memory
// manager and scheduler, and starts every background goroutine (spec
// §6's `initialize`). The creation generator starts disabled
// (maker_running = false); call SchedulerStart to turn it on.
func New(cfg config.Config) (*System, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.BackingStorePath), 0o755); err != nil {
		return nil, fmt.Errorf("system: create backing-store directory: %w", err)
	}
	store, err := backingstore.Open(cfg.BackingStorePath)
	if err != nil {
		return nil, err
	}

	counters := &stats.Counters{}
	mm := memory.NewManager(store, cfg.FrameCount(), cfg.MemPerFrame, counters)

	sys := &System{
		cfg:   cfg,
		store: store,
		mm:    mm,
		dir:   newDirectory(),
		stats: counters,
	}
	sys.sched = scheduler.New(cfg, mm, sys.dir, counters, sys.recordFatal)
	sys.gen = newGenerator(
		time.Duration(cfg.BatchProcessFreqMs)*time.Millisecond,
		cfg.MinMemPerProc, cfg.MaxMemPerProc,
		sys.CreateAuto,
	)

	sys.sched.Start()
	sys.gen.start()
	return sys, nil
}

func (s *System) recordFatal(err error) {
	s.fatalMu.Lock()
	if s.fatalErr == nil {
		s.fatalErr = err
	}
	s.fatalMu.Unlock()
	log.Printf("fatal: %v", err)
}

// FatalError returns the first unrecoverable error reported by the
// memory manager (spec §7's NoEvictable), or nil if none has occurred.
func (s *System) FatalError() error {
	s.fatalMu.Lock()
	defer s.fatalMu.Unlock()
	return s.fatalErr
}

// CreateAuto submits a creation request with an auto-generated program
// (spec §6's `screen -s NAME SIZE`).
func (s *System) CreateAuto(name string, size int) error {
	return s.create(name, size, nil)
}

// CreateWithProgram submits a creation request with a user-supplied
// program (spec §6's `screen -c NAME SIZE "cmd1; cmd2; ..."`). program
// is the raw, semicolon-joined command string; it is validated and
// flattened before the request is ever enqueued, so a malformed
// program is rejected synchronously.
func (s *System) CreateWithProgram(name string, size int, program string) error {
	literal, err := exec.SplitCommands(program)
	if err != nil {
		return err
	}
	if err := exec.ValidateUserProgram(literal); err != nil {
		return err
	}
	flat, err := exec.Flatten(literal)
	if err != nil {
		return err
	}
	return s.create(name, size, flat)
}

func (s *System) create(name string, size int, commands []string) error {
	if err := memory.ValidateSize(size); err != nil {
		return err
	}
	if err := s.dir.Reserve(name); err != nil {
		return err
	}
	s.sched.Submit(scheduler.Request{Name: name, Size: size, Commands: commands})
	return nil
}

// Query returns the named process for spec §6's `screen -r NAME`.
func (s *System) Query(name string) (*process.PCB, bool) {
	return s.dir.Lookup(name)
}

// SchedulerStart turns maker_running on (spec §6's `scheduler-start`).
func (s *System) SchedulerStart() { s.gen.Enable() }

// SchedulerStop turns maker_running off (spec §6's `scheduler-stop`).
func (s *System) SchedulerStop() { s.gen.Disable() }

// MakerRunning reports the current value of maker_running.
func (s *System) MakerRunning() bool { return s.gen.Enabled() }

// Shutdown stops the creation generator and the scheduler, then closes
// the backing store (spec §5's shutdown protocol, spec §6's `exit`).
func (s *System) Shutdown() error {
	s.gen.close()
	s.sched.Stop()
	return s.store.Close()
}
