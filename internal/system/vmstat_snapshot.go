package system

import (
	"github.com/coreframe/vcos/internal/backingstore"
	"github.com/coreframe/vcos/internal/config"
	"github.com/coreframe/vcos/internal/memory"
	"github.com/coreframe/vcos/internal/stats"
)

// VMStatSnapshot opens an existing backing-store file with OpenExisting
// (mapped read/write, not truncated; no page is written to it; no
// process is created, no scheduler runs) and reports the memory
// totals a fresh Manager would compute against it, for the one-shot
// `vcosd vmstat` CLI command of SPEC_FULL §6B. Since no processes are
// reconstructed, UsedBytes is always 0; the command exists to confirm
// M_total/M_frame sizing against a prior run's store without booting
// the full emulator.
func VMStatSnapshot(cfg config.Config, backingStorePath string) (VMStat, error) {
	store, err := backingstore.OpenExisting(backingStorePath)
	if err != nil {
		return VMStat{}, err
	}
	defer store.Close()

	counters := &stats.Counters{}
	mm := memory.NewManager(store, cfg.FrameCount(), cfg.MemPerFrame, counters)
	return VMStat{
		TotalBytes: mm.TotalBytes(),
		UsedBytes:  mm.UsedBytes(),
		FreeBytes:  mm.FreeBytes(),
	}, nil
}
