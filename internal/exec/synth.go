package exec

import (
	"fmt"
	"math/rand"
)

// RandomProgram synthesizes a command list of length in [minIns, maxIns]
// for a process created without a user-supplied program (spec §4.4.1's
// "synthesize a randomized program (see §4.6)"). size is the process's
// allocated virtual address space in bytes; generated WRITE/READ addresses
// are kept within it so the program actually drives demand paging, mirroring
// the original batch generator's rr_create_processes, which hands every
// auto-created process a fixed "write 0x10 123; read 0x10". Every generated
// line is guaranteed to satisfy Parse, since the worker that later executes
// it re-parses from the same grammar.
func RandomProgram(minIns, maxIns, size int, rng *rand.Rand) []string {
	if maxIns < minIns {
		maxIns = minIns
	}
	n := minIns
	if maxIns > minIns {
		n += rng.Intn(maxIns - minIns + 1)
	}

	vars := []string{"a", "b", "c"}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		v := vars[rng.Intn(len(vars))]
		switch rng.Intn(7) {
		case 0:
			out = append(out, fmt.Sprintf("DECLARE %s %d", v, rng.Intn(1000)))
		case 1:
			out = append(out, fmt.Sprintf(`PRINT("value " + %s)`, v))
		case 2:
			out = append(out, fmt.Sprintf("ADD %s %s %d", v, v, rng.Intn(10)))
		case 3:
			out = append(out, fmt.Sprintf("SUBTRACT %s %s %d", v, v, rng.Intn(10)))
		case 4:
			out = append(out, fmt.Sprintf("SLEEP %d", rng.Intn(3)))
		case 5:
			out = append(out, fmt.Sprintf("WRITE %s %d", randAddr(size, rng), rng.Intn(1000)))
		case 6:
			out = append(out, fmt.Sprintf("READ %s %s", v, randAddr(size, rng)))
		}
	}
	return out
}

// randAddr returns a hex virtual address for a WRITE/READ operand, almost
// always within [0, size-2] since WriteWord/ReadWord bounds-check only the
// low byte of the two-byte word against size. A 1-in-20 draw instead picks
// an address at or past size, deliberately exercising the segfault path the
// way a stray out-of-bounds access would in a real program.
func randAddr(size int, rng *rand.Rand) string {
	if rng.Intn(20) == 0 {
		return fmt.Sprintf("0x%X", size+rng.Intn(256))
	}
	bound := size - 2
	if bound < 1 {
		return "0x0"
	}
	return fmt.Sprintf("0x%X", rng.Intn(bound+1))
}
