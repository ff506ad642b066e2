// Package system samples host resources with gopsutil.
package system

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// Sampler implements app.ResourceSampler for the local host.
type Sampler struct {
	diskPath string
}

// NewSampler creates a sampler that reports usage of the filesystem
// mounted at diskPath.
func NewSampler(diskPath string) *Sampler {
	if diskPath == "" {
		diskPath = "/"
	}
	return &Sampler{diskPath: diskPath}
}

// CPUPercent returns total CPU usage since the previous call.
func (s *Sampler) CPUPercent(ctx context.Context) (float64, error) {
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, fmt.Errorf("cpu percent: %w", err)
	}
	if len(pct) == 0 {
		return 0, fmt.Errorf("cpu percent: no samples")
	}
	return pct[0], nil
}

// MemoryPercent returns used virtual memory.
func (s *Sampler) MemoryPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("virtual memory: %w", err)
	}
	return vm.UsedPercent, nil
}

// DiskPercent returns used space on the configured path.
func (s *Sampler) DiskPercent(ctx context.Context) (float64, error) {
	u, err := disk.UsageWithContext(ctx, s.diskPath)
	if err != nil {
		return 0, fmt.Errorf("disk usage %s: %w", s.diskPath, err)
	}
	return u.UsedPercent, nil
}
