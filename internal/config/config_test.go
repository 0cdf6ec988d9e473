package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.txt")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

const validFCFS = `
num-cpu 4
scheduler "fcfs"
quantum-cycles 1
batch-process-freq 1000
min-ins 1
max-ins 10
delay-per-exec 0
max-overall-mem 1024
mem-per-frame 64
min-mem-per-proc 64
max-mem-per-proc 256
`

func TestLoadValidFCFS(t *testing.T) {
	cfg, err := Load(writeConfig(t, validFCFS))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler != FCFS {
		t.Fatalf("Scheduler = %v, want FCFS", cfg.Scheduler)
	}
	if cfg.NumCPU != 4 {
		t.Fatalf("NumCPU = %d, want 4", cfg.NumCPU)
	}
	if got := cfg.FrameCount(); got != 16 {
		t.Fatalf("FrameCount = %d, want 16", got)
	}
}

func TestLoadMissingKey(t *testing.T) {
	body := `
num-cpu 4
scheduler fcfs
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("want error for missing required keys")
	}
}

func TestLoadUnknownKey(t *testing.T) {
	body := validFCFS + "\nbogus-key 1\n"
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("want error for unknown key")
	}
}

func TestLoadRRRequiresPositiveQuantum(t *testing.T) {
	body := `
num-cpu 4
scheduler "rr"
quantum-cycles 0
batch-process-freq 1000
min-ins 1
max-ins 10
delay-per-exec 0
max-overall-mem 1024
mem-per-frame 64
min-mem-per-proc 64
max-mem-per-proc 256
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("want error for rr with quantum-cycles 0")
	}
}

func TestValidateRejectsNonPowerOfTwoMemory(t *testing.T) {
	cfg := Config{
		NumCPU: 1, Scheduler: FCFS, MinIns: 1, MaxIns: 1,
		MaxOverallMem: 100, MemPerFrame: 64,
		MinMemPerProc: 64, MaxMemPerProc: 64,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("want error for non-power-of-two max-overall-mem")
	}
}

func TestValidateRejectsFrameNotDividingTotal(t *testing.T) {
	cfg := Config{
		NumCPU: 1, Scheduler: FCFS, MinIns: 1, MaxIns: 1,
		MaxOverallMem: 128, MemPerFrame: 1024, // both powers of two, frame > total
		MinMemPerProc: 64, MaxMemPerProc: 64,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("want error for mem-per-frame not dividing max-overall-mem")
	}
}

func TestPolicyString(t *testing.T) {
	if FCFS.String() != "fcfs" {
		t.Fatalf("FCFS.String() = %q", FCFS.String())
	}
	if RR.String() != "rr" {
		t.Fatalf("RR.String() = %q", RR.String())
	}
}
