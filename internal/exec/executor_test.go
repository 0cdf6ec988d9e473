package exec

import (
	"path/filepath"
	"testing"

	"github.com/coreframe/vcos/internal/backingstore"
	"github.com/coreframe/vcos/internal/memory"
	"github.com/coreframe/vcos/internal/process"
	"github.com/coreframe/vcos/internal/stats"
)

func newTestManager(t *testing.T) *memory.Manager {
	t.Helper()
	store, err := backingstore.Open(filepath.Join(t.TempDir(), "store.img"))
	if err != nil {
		t.Fatalf("backingstore.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return memory.NewManager(store, 4, 64, &stats.Counters{})
}

func TestExecuteDeclareAddSubtract(t *testing.T) {
	p := process.NewPCB(1, "p1", nil)
	mm := newTestManager(t)

	if out := Execute(p, mm, Instruction{Kind: KindDeclare, Dest: "x", Literal: 10}); out != Advanced {
		t.Fatalf("DECLARE: got %v", out)
	}
	if out := Execute(p, mm, Instruction{Kind: KindAdd, Dest: "x", A: "x", B: "5"}); out != Advanced {
		t.Fatalf("ADD: got %v", out)
	}
	if got := p.Var("x"); got != 15 {
		t.Fatalf("x = %d, want 15", got)
	}
	if out := Execute(p, mm, Instruction{Kind: KindSubtract, Dest: "x", A: "x", B: "20"}); out != Advanced {
		t.Fatalf("SUBTRACT: got %v", out)
	}
	if got := p.Var("x"); got != 65531 {
		t.Fatalf("x = %d, want 65531 (15-20 wrapped to 16 bits)", got)
	}
}

func TestExecutePrintAppendsLog(t *testing.T) {
	p := process.NewPCB(1, "p1", nil)
	mm := newTestManager(t)
	p.SetVar("x", 7)

	terms := []PrintTerm{{IsLiteral: true, Literal: "x = "}, {Var: "x"}}
	if out := Execute(p, mm, Instruction{Kind: KindPrint, PrintTerms: terms}); out != Advanced {
		t.Fatalf("PRINT: got %v", out)
	}
	logs := p.OutputLogs()
	if len(logs) != 1 || logs[0] != "x = 7" {
		t.Fatalf("logs = %v, want [\"x = 7\"]", logs)
	}
}

func TestExecuteSleepAccumulates(t *testing.T) {
	p := process.NewPCB(1, "p1", nil)
	mm := newTestManager(t)
	Execute(p, mm, Instruction{Kind: KindSleep, SleepN: 3})
	Execute(p, mm, Instruction{Kind: KindSleep, SleepN: 2})
	if got := p.SleepTicks(); got != 5 {
		t.Fatalf("SleepTicks = %d, want 5", got)
	}
}

func TestExecuteWriteBlocksUntilServiced(t *testing.T) {
	p := process.NewPCB(1, "p1", nil)
	mm := newTestManager(t)
	if err := mm.Allocate(p, 64); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	if out := Execute(p, mm, Instruction{Kind: KindWrite, Addr: 0, Src: "7"}); out != Blocked {
		t.Fatalf("WRITE before fault service: got %v, want Blocked", out)
	}
	if err := mm.ServiceFault(p, 0); err != nil {
		t.Fatalf("ServiceFault: %v", err)
	}
	if out := Execute(p, mm, Instruction{Kind: KindWrite, Addr: 0, Src: "7"}); out != Advanced {
		t.Fatalf("WRITE after fault service: got %v, want Advanced", out)
	}
	if out := Execute(p, mm, Instruction{Kind: KindRead, Dest: "y", Addr: 0}); out != Advanced {
		t.Fatalf("READ: got %v, want Advanced", out)
	}
	if got := p.Var("y"); got != 7 {
		t.Fatalf("y = %d, want 7", got)
	}
}

func TestExecuteWriteOutOfBoundsTerminates(t *testing.T) {
	p := process.NewPCB(1, "p1", nil)
	mm := newTestManager(t)
	if err := mm.Allocate(p, 64); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if out := Execute(p, mm, Instruction{Kind: KindWrite, Addr: 1000, Src: "1"}); out != Terminated {
		t.Fatalf("got %v, want Terminated", out)
	}
	if !p.Mem.TerminatedByError {
		t.Fatal("want TerminatedByError set")
	}
}

func TestValUndefinedVariableIsZero(t *testing.T) {
	p := process.NewPCB(1, "p1", nil)
	if got := val(p, "never_declared"); got != 0 {
		t.Fatalf("val = %d, want 0", got)
	}
	if got := val(p, "42"); got != 42 {
		t.Fatalf("val(\"42\") = %d, want 42", got)
	}
}
