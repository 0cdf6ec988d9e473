package exec

import (
	"math/rand"
	"strings"
	"testing"
)

func TestRandomProgramLengthBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		prog := RandomProgram(2, 5, 256, rng)
		if len(prog) < 2 || len(prog) > 5 {
			t.Fatalf("len(prog) = %d, want in [2, 5]", len(prog))
		}
	}
}

func TestRandomProgramAlwaysParses(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	prog := RandomProgram(10, 10, 256, rng)
	for _, line := range prog {
		if _, err := Parse(line); err != nil {
			t.Fatalf("generated line %q does not parse: %v", line, err)
		}
	}
}

func TestRandomProgramMinEqualsMax(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	prog := RandomProgram(4, 4, 256, rng)
	if len(prog) != 4 {
		t.Fatalf("len(prog) = %d, want 4", len(prog))
	}
}

func TestRandomProgramEventuallyTouchesMemory(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	sawAccess := false
	for i := 0; i < 200 && !sawAccess; i++ {
		for _, line := range RandomProgram(20, 20, 256, rng) {
			if strings.HasPrefix(line, "WRITE") || strings.HasPrefix(line, "READ") {
				sawAccess = true
				break
			}
		}
	}
	if !sawAccess {
		t.Fatal("RandomProgram never generated a WRITE/READ across 200 runs")
	}
}

func TestRandomProgramAddressesMostlyRespectSize(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const size = 64
	oob := 0
	total := 0
	for i := 0; i < 200; i++ {
		for _, line := range RandomProgram(15, 15, size, rng) {
			if !strings.HasPrefix(line, "WRITE") && !strings.HasPrefix(line, "READ") {
				continue
			}
			ins, err := Parse(line)
			if err != nil {
				t.Fatalf("generated line %q does not parse: %v", line, err)
			}
			total++
			if ins.Addr >= size {
				oob++
			}
		}
	}
	if total == 0 {
		t.Fatal("no WRITE/READ instructions generated to check")
	}
	if oob == 0 {
		t.Fatal("expected at least one deliberately out-of-bounds address across 200 runs")
	}
	if oob > total/5 {
		t.Fatalf("oob = %d of %d, want the rare exception, not the common case", oob, total)
	}
}
