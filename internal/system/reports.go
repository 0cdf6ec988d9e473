package system

import (
	"fmt"
	"io"
	"time"

	"github.com/coreframe/vcos/internal/process"
)

// ProcessReport is a renderer-agnostic snapshot of one process, used
// by both ScreenList and the `screen -r` diagnostic view.
type ProcessReport struct {
	ID              int
	Name            string
	State           string
	Core            int // -1 when not RUNNING
	ProgramCounter  int
	CommandCount    int
	OutputLogs      []string
	TerminatedNotice string // non-empty only for a SegFault termination
}

// Describe renders the single-process view of spec §6's `screen -r
// NAME`. A SegFault termination takes the fixed diagnostic form the
// spec mandates; otherwise it's id/state/pc/logs.
func Describe(p *process.PCB) ProcessReport {
	r := ProcessReport{
		ID:             p.ID,
		Name:           p.Name,
		State:          p.State().String(),
		Core:           p.AssignedCore(),
		ProgramCounter: p.ProgramCounter(),
		CommandCount:   len(p.Commands),
		OutputLogs:     p.OutputLogs(),
	}
	if p.Mem.TerminatedByError {
		r.TerminatedNotice = fmt.Sprintf(
			"Process %s shut down due to memory access violation error that occurred at %s. 0x%X invalid.",
			p.Name, p.Mem.TerminationTime.Format("15:04:05"), p.Mem.InvalidAddress,
		)
	}
	return r
}

// ReportSegFault writes the one console line a SegFault is allowed to
// print, under cout_lock (spec §5's cout_lock, §6's screen -r).
func ReportSegFault(w io.Writer, r ProcessReport) {
	if r.TerminatedNotice == "" {
		return
	}
	cout.Lock()
	defer cout.Unlock()
	fmt.Fprintln(w, r.TerminatedNotice)
}

// ScreenList is spec §6's `screen -ls` snapshot.
type ScreenList struct {
	CPUUtilPercent float64
	Running        []ProcessReport
	ReadyCount     int
	BlockedCount   int
	Finished       []ProcessReport
}

// ScreenList builds the screen -ls snapshot.
func (s *System) ScreenList() ScreenList {
	snap := s.sched.Snapshot()
	out := ScreenList{
		CPUUtilPercent: 100 * float64(s.sched.BusyCores()) / float64(s.sched.NumCPU()),
		ReadyCount:     len(snap.Ready),
		BlockedCount:   len(snap.Blocked),
	}
	for _, p := range snap.Running {
		if p == nil {
			continue
		}
		out.Running = append(out.Running, Describe(p))
	}
	for _, p := range snap.Finished {
		out.Finished = append(out.Finished, Describe(p))
	}
	return out
}

// VMStat is spec §6's `vmstat` snapshot.
type VMStat struct {
	TotalBytes  int
	UsedBytes   int
	FreeBytes   int
	IdleTicks   int64
	ActiveTicks int64
	TotalTicks  int64
	PagesIn     int64
	PagesOut    int64
}

// VMStat builds the vmstat snapshot.
func (s *System) VMStat() VMStat {
	return VMStat{
		TotalBytes:  s.mm.TotalBytes(),
		UsedBytes:   s.mm.UsedBytes(),
		FreeBytes:   s.mm.FreeBytes(),
		IdleTicks:   s.stats.IdleTicks(),
		ActiveTicks: s.stats.ActiveTicks(),
		TotalTicks:  s.stats.TotalTicks(),
		PagesIn:     s.stats.PagesIn(),
		PagesOut:    s.stats.PagesOut(),
	}
}

// ProcessSMIEntry is one running process's memory footprint.
type ProcessSMIEntry struct {
	Name      string
	Core      int
	SizeBytes int
}

// ProcessSMI is spec §6's `process-smi` snapshot.
type ProcessSMI struct {
	CPUUtilPercent float64
	UsedBytes      int
	TotalBytes     int
	UsedPercent    float64
	Processes      []ProcessSMIEntry
}

// ProcessSMI builds the process-smi snapshot.
func (s *System) ProcessSMI() ProcessSMI {
	snap := s.sched.Snapshot()
	used := s.mm.UsedBytes()
	total := s.mm.TotalBytes()
	out := ProcessSMI{
		CPUUtilPercent: 100 * float64(s.sched.BusyCores()) / float64(s.sched.NumCPU()),
		UsedBytes:      used,
		TotalBytes:     total,
	}
	if total > 0 {
		out.UsedPercent = 100 * float64(used) / float64(total)
	}
	for _, p := range snap.Running {
		if p == nil {
			continue
		}
		out.Processes = append(out.Processes, ProcessSMIEntry{
			Name: p.Name, Core: p.AssignedCore(), SizeBytes: p.Mem.SizeBytes,
		})
	}
	return out
}

// ReportUtil appends a screen -ls-shaped snapshot of the System's
// current state to w (spec §6's `report-util`). The caller (cmd/vcosd)
// owns opening the log file and reporting a failure to stderr without
// aborting the run, per SPEC_FULL §6B.
func (s *System) ReportUtil(w io.Writer) error {
	return writeScreenList(w, s.ScreenList())
}

func writeScreenList(w io.Writer, ls ScreenList) error {
	if _, err := fmt.Fprintf(w, "--- %s ---\n", time.Now().Format(time.RFC3339)); err != nil {
		return err
	}
	fmt.Fprintf(w, "cpu-util: %.1f%%\n", ls.CPUUtilPercent)
	for _, p := range ls.Running {
		fmt.Fprintf(w, "running  %-16s core=%d pc=%d/%d\n", p.Name, p.Core, p.ProgramCounter, p.CommandCount)
	}
	fmt.Fprintf(w, "ready=%d blocked=%d\n", ls.ReadyCount, ls.BlockedCount)
	for _, p := range ls.Finished {
		fmt.Fprintf(w, "finished %-16s state=%s\n", p.Name, p.State)
	}
	return nil
}
