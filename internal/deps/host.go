package deps

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Host summarizes the machine renders run on.
type Host struct {
	LogicalCPUs     int
	Load1           float64
	MemoryTotal     uint64
	MemoryAvailable uint64
}

// DiskUsage reports capacity for the filesystem holding Path.
type DiskUsage struct {
	Path        string
	Total       uint64
	Free        uint64
	UsedPercent float64
}

// ProbeHost gathers CPU, load, and memory figures. Load is best effort.
func ProbeHost(ctx context.Context) (Host, error) {
	var host Host
	counts, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return host, fmt.Errorf("cpu count: %w", err)
	}
	host.LogicalCPUs = counts

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return host, fmt.Errorf("memory stats: %w", err)
	}
	host.MemoryTotal = vm.Total
	host.MemoryAvailable = vm.Available

	if avg, err := load.AvgWithContext(ctx); err == nil {
		host.Load1 = avg.Load1
	}
	return host, nil
}

// Disk returns filesystem usage for path.
func Disk(ctx context.Context, path string) (DiskUsage, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return DiskUsage{Path: path}, fmt.Errorf("disk usage %s: %w", path, err)
	}
	return DiskUsage{Path: path, Total: usage.Total, Free: usage.Free, UsedPercent: usage.UsedPercent}, nil
}
