package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/coreframe/vcos/internal/config"
	"github.com/coreframe/vcos/internal/system"
)

var (
	reportUtilConfigPath string
	reportUtilLogPath    string
)

var reportUtilCmd = &cobra.Command{
	Use:   "report-util",
	Short: "boot the emulator briefly and append one screen -ls snapshot to a log file",
	RunE:  runReportUtil,
}

func init() {
	reportUtilCmd.Flags().StringVar(&reportUtilConfigPath, "config", "", "path to the emulator config file (required)")
	reportUtilCmd.Flags().StringVar(&reportUtilLogPath, "log", "", "path to append the snapshot to (required)")
	reportUtilCmd.MarkFlagRequired("config")
	reportUtilCmd.MarkFlagRequired("log")
}

func runReportUtil(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(reportUtilConfigPath)
	if err != nil {
		return err
	}
	cfg = system.DefaultPaths(cfg)

	sys, err := system.New(cfg)
	if err != nil {
		return err
	}
	sys.SchedulerStart()
	time.Sleep(2 * time.Duration(cfg.BatchProcessFreqMs) * time.Millisecond)
	sys.SchedulerStop()

	snapshotErr := appendSnapshot(sys)

	if err := sys.Shutdown(); err != nil {
		return err
	}
	if fatal := sys.FatalError(); fatal != nil {
		return fmt.Errorf("report-util: %w", fatal)
	}
	return snapshotErr
}

// appendSnapshot is best-effort per §7: a write failure is reported on
// stderr and otherwise swallowed, not returned, so it never aborts the
// run that produced the snapshot.
func appendSnapshot(sys *system.System) error {
	f, err := os.OpenFile(reportUtilLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "report-util: open %s: %v\n", reportUtilLogPath, err)
		return nil
	}
	defer f.Close()

	if err := sys.ReportUtil(f); err != nil {
		fmt.Fprintf(os.Stderr, "report-util: write %s: %v\n", reportUtilLogPath, err)
	}
	return nil
}
