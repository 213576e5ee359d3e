package monitoring

import (
	"os"

	"github.com/shirou/gopsutil/process"
)

// ResourceSampler reads the resource usage of the current process.
type ResourceSampler struct {
	proc *process.Process
}

// NewResourceSampler creates a sampler for the current process.
func NewResourceSampler() (*ResourceSampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	return &ResourceSampler{proc: proc}, nil
}

// ResidentBytes returns the resident set size of the process.
func (s *ResourceSampler) ResidentBytes() (uint64, error) {
	info, err := s.proc.MemoryInfo()
	if err != nil {
		return 0, err
	}

	return info.RSS, nil
}

// Resource is the resource usage reported by the monitor.
type Resource struct {
	CPUPercent float64 `json:"cpu_percent"`
	RSS        uint64  `json:"rss"`
	VMS        uint64  `json:"vms"`
	Swap       uint64  `json:"swap"`
}

// Sample reads CPU and memory usage in one go.
func (s *ResourceSampler) Sample() (Resource, error) {
	cpuPercent, err := s.proc.CPUPercent()
	if err != nil {
		return Resource{}, err
	}

	info, err := s.proc.MemoryInfo()
	if err != nil {
		return Resource{}, err
	}

	return Resource{
		CPUPercent: cpuPercent,
		RSS:        info.RSS,
		VMS:        info.VMS,
		Swap:       info.Swap,
	}, nil
}
