package system

import (
	"os"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Memory is a point-in-time view of host and process memory.
type Memory struct {
	Total       uint64  `json:"total"`
	Available   uint64  `json:"available"`
	UsedPercent float64 `json:"usedPercent"`
	ProcessRSS  uint64  `json:"processRss"`
}

// ProbeMemory reads host memory and this process's resident set size.
func ProbeMemory() (Memory, error) {
	var m Memory

	vm, err := mem.VirtualMemory()
	if err != nil {
		return m, err
	}
	m.Total = vm.Total
	m.Available = vm.Available
	m.UsedPercent = vm.UsedPercent

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return m, nil
	}
	if info, err := proc.MemoryInfo(); err == nil && info != nil {
		m.ProcessRSS = info.RSS
	}

	return m, nil
}
