package cache

import (
	"fmt"

	"github.com/ivlev/cleo/internal/system"
)

// Stats is a read-only diagnostic snapshot. Not used by normal control flow.
type Stats struct {
	Entries        int    `json:"totalImages"`
	GlobalEntries  int    `json:"totalPreloaded"`
	MemoryBytes    int64  `json:"memoryBytes"`
	MemoryEstimate string `json:"memoryEstimate"`

	// Host view, zero when the probe is unavailable.
	ProcessRSS      uint64  `json:"processRSS,omitempty"`
	HostAvailable   uint64  `json:"hostAvailable,omitempty"`
	HostUsedPercent float64 `json:"hostUsedPercent,omitempty"`
}

// Stats estimates memory as width*height*4 per decoded frame. Global entries
// that are not in the local store are counted once.
func (c *Cache) Stats() Stats {
	local := c.local.snapshot()
	global := c.global.snapshot()

	var total int64
	for _, f := range local {
		total += frameBytes(f)
	}
	for id, f := range global {
		if _, ok := local[id]; ok {
			continue
		}
		total += frameBytes(f)
	}

	st := Stats{
		Entries:        len(local),
		GlobalEntries:  len(global),
		MemoryBytes:    total,
		MemoryEstimate: FormatMB(total),
	}

	if mem, err := system.ProbeMemory(); err == nil {
		st.ProcessRSS = mem.ProcessRSS
		st.HostAvailable = mem.Available
		st.HostUsedPercent = mem.UsedPercent
	}

	return st
}

func frameBytes(f *Frame) int64 {
	if f == nil {
		return 0
	}
	return int64(f.Width) * int64(f.Height) * 4
}

// FormatMB renders a byte count as "12.34 MB".
func FormatMB(n int64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
}
