// Command vcosd is the CLI front end for the emulator in internal/.
// It wraps the System's methods in three subcommands: run, vmstat, and
// report-util (SPEC_FULL §6B). This binary is the only place os.Exit
// is called; every package under internal/ stays a plain library.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "vcosd",
	Short:         "a single-machine CPU scheduler and paging memory manager emulator",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(runCmd, vmstatCmd, reportUtilCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
