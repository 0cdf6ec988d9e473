// Package config reads the emulator's configuration file: a flat,
// whitespace-separated key/value format where values may optionally
// be double-quoted. This is the one format in the module with no
// ecosystem library behind it in the retrieved example pack — it is
// not INI, YAML, JSON, or TOML — so it is hand-parsed in the same
// byte-scanning style the teacher uses for its own small file formats
// (see readFileName in the engine it was grounded on).
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Policy selects the scheduling discipline.
type Policy int

const (
	// FCFS is first-come-first-served: no quantum preemption.
	FCFS Policy = iota
	// RR is round-robin: quantum-based preemption.
	RR
)

func (p Policy) String() string {
	if p == RR {
		return "rr"
	}
	return "fcfs"
}

// Config is the immutable-after-initialization configuration described
// in spec §3 and §6, plus the filesystem locations this implementation
// needs that the original spec leaves to the shell.
type Config struct {
	NumCPU             int
	Scheduler          Policy
	QuantumCycles      int // instructions, RR only
	BatchProcessFreqMs int
	MinIns             int
	MaxIns             int
	DelayPerExecMs     int
	MaxOverallMem      int
	MemPerFrame        int
	MinMemPerProc      int
	MaxMemPerProc      int

	// BackingStorePath and LogPath are not part of spec §6's config
	// table (the shell owns file placement there); this
	// implementation needs concrete paths to open, so they default to
	// XDG locations when left blank and are resolved by the caller
	// (see internal/system.DefaultPaths).
	BackingStorePath string
	LogPath          string
}

// ErrInvalidConfig is returned by Load and Validate for any malformed,
// missing, or out-of-range configuration value (spec §7).
type ErrInvalidConfig struct {
	Reason string
}

func (e *ErrInvalidConfig) Error() string { return "invalid config: " + e.Reason }

var requiredKeys = []string{
	"num-cpu", "scheduler", "quantum-cycles", "batch-process-freq",
	"min-ins", "max-ins", "delay-per-exec", "max-overall-mem",
	"mem-per-frame", "min-mem-per-proc", "max-mem-per-proc",
}

// Load reads and parses the configuration file at path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, &ErrInvalidConfig{Reason: fmt.Sprintf("cannot open %s: %v", path, err)}
	}
	defer f.Close()

	values := make(map[string]string)
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, val, ok := splitKV(text)
		if !ok {
			return Config{}, &ErrInvalidConfig{Reason: fmt.Sprintf("line %d: cannot parse %q", line, text)}
		}
		if !isKnownKey(key) {
			return Config{}, &ErrInvalidConfig{Reason: fmt.Sprintf("line %d: unknown key %q", line, key)}
		}
		values[key] = val
	}
	if err := sc.Err(); err != nil {
		return Config{}, &ErrInvalidConfig{Reason: err.Error()}
	}

	for _, k := range requiredKeys {
		if _, ok := values[k]; !ok {
			return Config{}, &ErrInvalidConfig{Reason: fmt.Sprintf("missing key %q", k)}
		}
	}

	cfg := Config{}
	var perr error
	cfg.NumCPU, perr = atoiField(values, "num-cpu", perr)
	cfg.QuantumCycles, perr = atoiField(values, "quantum-cycles", perr)
	cfg.BatchProcessFreqMs, perr = atoiField(values, "batch-process-freq", perr)
	cfg.MinIns, perr = atoiField(values, "min-ins", perr)
	cfg.MaxIns, perr = atoiField(values, "max-ins", perr)
	cfg.DelayPerExecMs, perr = atoiField(values, "delay-per-exec", perr)
	cfg.MaxOverallMem, perr = atoiField(values, "max-overall-mem", perr)
	cfg.MemPerFrame, perr = atoiField(values, "mem-per-frame", perr)
	cfg.MinMemPerProc, perr = atoiField(values, "min-mem-per-proc", perr)
	cfg.MaxMemPerProc, perr = atoiField(values, "max-mem-per-proc", perr)
	if perr != nil {
		return Config{}, perr
	}

	switch strings.ToLower(values["scheduler"]) {
	case "fcfs":
		cfg.Scheduler = FCFS
	case "rr":
		cfg.Scheduler = RR
	default:
		return Config{}, &ErrInvalidConfig{Reason: fmt.Sprintf("scheduler: want \"fcfs\" or \"rr\", got %q", values["scheduler"])}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func atoiField(values map[string]string, key string, prevErr error) (int, error) {
	if prevErr != nil {
		return 0, prevErr
	}
	n, err := strconv.Atoi(values[key])
	if err != nil {
		return 0, &ErrInvalidConfig{Reason: fmt.Sprintf("%s: not an integer: %q", key, values[key])}
	}
	return n, nil
}

func isKnownKey(key string) bool {
	for _, k := range requiredKeys {
		if k == key {
			return true
		}
	}
	return false
}

// splitKV splits "key value" or `key "quoted value"` on the first run
// of whitespace, stripping a single layer of surrounding quotes.
func splitKV(line string) (key, val string, ok bool) {
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return "", "", false
	}
	key = line[:idx]
	val = strings.TrimSpace(line[idx+1:])
	val = strings.Trim(val, `"`)
	if key == "" || val == "" {
		return "", "", false
	}
	return key, val, true
}

func isPowerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }

// Validate enforces the invariants spec §3 places on configuration:
// power-of-two memory sizing, frame divisibility, per-process bounds
// within [64, 65536], and a core count within [1, 128].
func (c Config) Validate() error {
	if c.NumCPU < 1 || c.NumCPU > 128 {
		return &ErrInvalidConfig{Reason: fmt.Sprintf("num-cpu %d out of range [1, 128]", c.NumCPU)}
	}
	if c.Scheduler == RR && c.QuantumCycles < 1 {
		return &ErrInvalidConfig{Reason: "quantum-cycles must be >= 1 for rr"}
	}
	if c.MinIns < 1 || c.MaxIns < c.MinIns {
		return &ErrInvalidConfig{Reason: "min-ins/max-ins out of range"}
	}
	if !isPowerOfTwo(c.MaxOverallMem) {
		return &ErrInvalidConfig{Reason: fmt.Sprintf("max-overall-mem %d is not a power of two", c.MaxOverallMem)}
	}
	if !isPowerOfTwo(c.MemPerFrame) {
		return &ErrInvalidConfig{Reason: fmt.Sprintf("mem-per-frame %d is not a power of two", c.MemPerFrame)}
	}
	if c.MaxOverallMem%c.MemPerFrame != 0 {
		return &ErrInvalidConfig{Reason: "mem-per-frame does not divide max-overall-mem"}
	}
	for _, n := range []int{c.MinMemPerProc, c.MaxMemPerProc} {
		if !isPowerOfTwo(n) || n < 64 || n > 65536 {
			return &ErrInvalidConfig{Reason: fmt.Sprintf("per-process memory size %d must be a power of two in [64, 65536]", n)}
		}
	}
	if c.MaxMemPerProc < c.MinMemPerProc {
		return &ErrInvalidConfig{Reason: "max-mem-per-proc < min-mem-per-proc"}
	}
	return nil
}

// FrameCount returns F = M_total / M_frame.
func (c Config) FrameCount() int { return c.MaxOverallMem / c.MemPerFrame }
