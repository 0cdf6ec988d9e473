package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/coreframe/vcos/internal/config"
	"github.com/coreframe/vcos/internal/system"
)

var (
	vmstatConfigPath       string
	vmstatBackingStorePath string
)

var vmstatCmd = &cobra.Command{
	Use:   "vmstat",
	Short: "report memory totals from an existing backing-store file",
	RunE:  runVMStat,
}

func init() {
	vmstatCmd.Flags().StringVar(&vmstatConfigPath, "config", "", "path to the emulator config file (required)")
	vmstatCmd.Flags().StringVar(&vmstatBackingStorePath, "backing-store", "", "path to a backing-store file from a prior run (required)")
	vmstatCmd.MarkFlagRequired("config")
	vmstatCmd.MarkFlagRequired("backing-store")
}

func runVMStat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(vmstatConfigPath)
	if err != nil {
		return err
	}
	v, err := system.VMStatSnapshot(cfg, vmstatBackingStorePath)
	if err != nil {
		return err
	}
	printVMStat(os.Stdout, v)
	return nil
}
