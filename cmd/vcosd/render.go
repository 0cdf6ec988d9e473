package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/coreframe/vcos/internal/system"
)

func printVMStat(w io.Writer, v system.VMStat) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"metric", "value"})
	table.AppendBulk([][]string{
		{"total-bytes", fmt.Sprintf("%d", v.TotalBytes)},
		{"used-bytes", fmt.Sprintf("%d", v.UsedBytes)},
		{"free-bytes", fmt.Sprintf("%d", v.FreeBytes)},
		{"idle-ticks", fmt.Sprintf("%d", v.IdleTicks)},
		{"active-ticks", fmt.Sprintf("%d", v.ActiveTicks)},
		{"total-ticks", fmt.Sprintf("%d", v.TotalTicks)},
		{"pages-in", fmt.Sprintf("%d", v.PagesIn)},
		{"pages-out", fmt.Sprintf("%d", v.PagesOut)},
	})
	table.Render()
}

func printScreenList(w io.Writer, ls system.ScreenList) {
	fmt.Fprintf(w, "cpu utilization: %.1f%%\n", ls.CPUUtilPercent)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"process", "state", "core", "pc"})
	for _, p := range ls.Running {
		table.Append([]string{p.Name, p.State, fmt.Sprintf("%d", p.Core), fmt.Sprintf("%d/%d", p.ProgramCounter, p.CommandCount)})
	}
	for _, p := range ls.Finished {
		table.Append([]string{p.Name, p.State, "-", fmt.Sprintf("%d/%d", p.ProgramCounter, p.CommandCount)})
	}
	table.Render()

	fmt.Fprintf(w, "ready: %d  blocked: %d\n", ls.ReadyCount, ls.BlockedCount)
}
