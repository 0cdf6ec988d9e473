package exec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/coreframe/vcos/internal/memory"
	"github.com/coreframe/vcos/internal/process"
)

// Outcome is the worker-facing result of executing one instruction
// (spec §9's state machine replacing a goto-based loop restart).
type Outcome int

const (
	// Advanced means the instruction completed; the caller should
	// increment the program counter and the quantum counter.
	Advanced Outcome = iota
	// Blocked means the instruction raised a page fault; the program
	// counter must NOT move, so the same instruction retries once the
	// fault has been serviced (spec §4.5).
	Blocked
	// Terminated means the instruction raised a segmentation fault;
	// the memory manager has already recorded TerminatedByError, the
	// reason, the invalid address, and the time on p.Mem. The PCB's
	// state is left as is; the caller moves it to TERMINATED.
	Terminated
)

// Execute runs one instruction against p, calling into mm for
// WRITE/READ (spec §4.6).
func Execute(p *process.PCB, mm *memory.Manager, instr Instruction) Outcome {
	switch instr.Kind {
	case KindPrint:
		p.AppendLog(renderPrint(p, instr.PrintTerms))
		return Advanced

	case KindDeclare:
		p.SetVar(instr.Dest, instr.Literal)
		return Advanced

	case KindAdd:
		p.SetVar(instr.Dest, val(p, instr.A)+val(p, instr.B))
		return Advanced

	case KindSubtract:
		p.SetVar(instr.Dest, val(p, instr.A)-val(p, instr.B))
		return Advanced

	case KindSleep:
		p.AddSleepTicks(instr.SleepN)
		return Advanced

	case KindWrite:
		switch mm.WriteWord(p, instr.Addr, val(p, instr.Src)) {
		case memory.AccessOK:
			return Advanced
		case memory.AccessPageFault:
			return Blocked
		default:
			return Terminated
		}

	case KindRead:
		v, outcome := mm.ReadWord(p, instr.Addr)
		switch outcome {
		case memory.AccessOK:
			p.SetVar(instr.Dest, v)
			return Advanced
		case memory.AccessPageFault:
			return Blocked
		default:
			return Terminated
		}

	default:
		panic(fmt.Sprintf("exec: unknown instruction kind %d", instr.Kind))
	}
}

// val resolves a token as a variable name if declared, else as a
// decimal integer literal (undefined variables and unparsable tokens
// both default to 0), per spec §4.6.
func val(p *process.PCB, token string) uint16 {
	if p.HasVar(token) {
		return p.Var(token)
	}
	n, err := strconv.ParseInt(token, 10, 32)
	if err != nil {
		return 0
	}
	return uint16(uint32(n) & 0xFFFF)
}

func renderPrint(p *process.PCB, terms []PrintTerm) string {
	var b strings.Builder
	for _, t := range terms {
		if t.IsLiteral {
			b.WriteString(t.Literal)
		} else {
			b.WriteString(strconv.Itoa(int(p.Var(t.Var))))
		}
	}
	return b.String()
}
