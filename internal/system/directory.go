package system

import (
	"errors"
	"sync"

	"github.com/coreframe/vcos/internal/process"
)

// ErrDuplicateName is returned by CreateAuto/CreateWithProgram when the
// requested name is already live or reserved (spec §3 Invariant I7,
// §7 DuplicateName).
var ErrDuplicateName = errors.New("system: process name already in use")

// Directory is the name->PCB lookup spec §3 calls for (used by
// screen -r), guarded by dir_lock. It also tracks names that have been
// admitted but not yet materialized into a PCB by the scheduler, so a
// duplicate submission is rejected before a creation request is ever
// enqueued, per §7's ordering requirement.
type Directory struct {
	mu      sync.Mutex
	byName  map[string]*process.PCB
	pending map[string]bool
}

func newDirectory() *Directory {
	return &Directory{
		byName:  make(map[string]*process.PCB),
		pending: make(map[string]bool),
	}
}

// Reserve admits name for an in-flight creation request. It fails if
// name is already live, finished-and-recorded, or itself pending.
func (d *Directory) Reserve(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending[name] {
		return ErrDuplicateName
	}
	if _, ok := d.byName[name]; ok {
		return ErrDuplicateName
	}
	d.pending[name] = true
	return nil
}

// Register implements scheduler.Registrar: called once the scheduler
// has materialized a reserved name into a real PCB.
func (d *Directory) Register(p *process.PCB) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, p.Name)
	d.byName[p.Name] = p
}

// Lookup returns the PCB registered under name, if any (spec §6's
// screen -r).
func (d *Directory) Lookup(name string) (*process.PCB, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.byName[name]
	return p, ok
}
