package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coreframe/vcos/internal/config"
	"github.com/coreframe/vcos/internal/system"
)

var (
	runConfigPath string
	runDuration   time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "boot the emulator and run the creation generator",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "path to the emulator config file (required)")
	runCmd.Flags().DurationVar(&runDuration, "duration", 0, "stop the creation generator and drain after this long; 0 runs until interrupted")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return err
	}
	cfg = system.DefaultPaths(cfg)

	sys, err := system.New(cfg)
	if err != nil {
		return err
	}
	sys.SchedulerStart()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	if runDuration > 0 {
		select {
		case <-time.After(runDuration):
		case <-sigCh:
		}
	} else {
		<-sigCh
	}

	sys.SchedulerStop()
	quiesce(sys)

	if err := sys.Shutdown(); err != nil {
		return err
	}

	printVMStat(os.Stdout, sys.VMStat())
	printScreenList(os.Stdout, sys.ScreenList())

	if fatal := sys.FatalError(); fatal != nil {
		return fmt.Errorf("run: %w", fatal)
	}
	return nil
}

// quiesce polls until no process is running, ready, or blocked, so the
// final report reflects a fully drained system rather than a snapshot
// mid-dispatch. A fatal error also ends the wait; Shutdown proceeds
// either way and FatalError is surfaced to the caller afterward.
func quiesce(sys *system.System) {
	const pollInterval = 20 * time.Millisecond
	for {
		if sys.FatalError() != nil {
			return
		}
		ls := sys.ScreenList()
		if len(ls.Running) == 0 && ls.ReadyCount == 0 && ls.BlockedCount == 0 {
			return
		}
		time.Sleep(pollInterval)
	}
}
