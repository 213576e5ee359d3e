package stress

import (
	"github.com/shirou/gopsutil/mem"
)

// memoryLimit reports the most memory a single Go allocation may ask for.
// The Go runtime cannot recover from running out of memory, so requests
// above this limit are refused before they reach make.
var memoryLimit = func() (uint64, bool) {
	v, err := mem.VirtualMemory()
	if err != nil || v.Total == 0 {
		return 0, false
	}

	s, err := mem.SwapMemory()
	if err != nil {
		return v.Total, true
	}

	return v.Total + s.Total, true
}

func exceedsMemory(size uint64) bool {
	limit, ok := memoryLimit()
	if !ok {
		return false
	}

	return size > limit
}
