//go:build windows

package hostcounters

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// windowsReader samples host and per-process usage via the Win32 API,
// using golang.org/x/sys/windows for the syscall bindings to
// psapi/kernel32.
type windowsReader struct {
	numCores float64

	mu   sync.Mutex
	last map[int32]processSample
	prevIdle, prevKernel, prevUser uint64
	havePrevHost bool
}

type processSample struct {
	at     time.Time
	kernel uint64
	user   uint64
}

// NewReader constructs the production Windows reader. numCores scales
// per-process CPU time into a percentage of total host capacity.
func NewReader(numCores int) (Reader, error) {
	if numCores <= 0 {
		numCores = 1
	}
	return &windowsReader{
		numCores: float64(numCores),
		last:     make(map[int32]processSample),
	}, nil
}

func (r *windowsReader) HostUsage() (float64, float64, error) {
	cpuPct, err := r.hostCPU()
	if err != nil {
		return 0, 0, err
	}
	ramPct, err := r.hostRAM()
	if err != nil {
		return cpuPct, 0, err
	}
	return cpuPct, ramPct, nil
}

func (r *windowsReader) hostCPU() (float64, error) {
	var idle, kernel, user windows.Filetime
	if err := windows.GetSystemTimes(&idle, &kernel, &user); err != nil {
		return 0, fmt.Errorf("hostcounters: GetSystemTimes: %w", err)
	}

	idleTicks := filetimeToUint64(idle)
	kernelTicks := filetimeToUint64(kernel)
	userTicks := filetimeToUint64(user)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.havePrevHost {
		r.prevIdle, r.prevKernel, r.prevUser = idleTicks, kernelTicks, userTicks
		r.havePrevHost = true
		return 0, nil
	}

	deltaIdle := diffUint64(idleTicks, r.prevIdle)
	deltaKernel := diffUint64(kernelTicks, r.prevKernel)
	deltaUser := diffUint64(userTicks, r.prevUser)
	r.prevIdle, r.prevKernel, r.prevUser = idleTicks, kernelTicks, userTicks

	total := deltaKernel + deltaUser
	if total == 0 {
		return 0, nil
	}
	busy := total - deltaIdle
	return clampPct(100 * float64(busy) / float64(total)), nil
}

func (r *windowsReader) hostRAM() (float64, error) {
	var status windows.MemoryStatusEx
	status.Length = uint32(unsafe.Sizeof(status))
	if err := windows.GlobalMemoryStatusEx(&status); err != nil {
		return 0, fmt.Errorf("hostcounters: GlobalMemoryStatusEx: %w", err)
	}
	if status.TotalPhys == 0 {
		return 0, nil
	}
	used := status.TotalPhys - status.AvailPhys
	return clampPct(100 * float64(used) / float64(status.TotalPhys)), nil
}

func (r *windowsReader) ProcessUsage(pid int32) (float64, float64, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION|windows.PROCESS_VM_READ, false, uint32(pid))
	if err != nil {
		return 0, 0, fmt.Errorf("hostcounters: OpenProcess(%d): %w", pid, err)
	}
	defer windows.CloseHandle(h)

	var creation, exit, kernel, user windows.Filetime
	if err := windows.GetProcessTimes(h, &creation, &exit, &kernel, &user); err != nil {
		return 0, 0, fmt.Errorf("hostcounters: GetProcessTimes(%d): %w", pid, err)
	}

	now := time.Now()
	kernelTicks := filetimeToUint64(kernel)
	userTicks := filetimeToUint64(user)

	r.mu.Lock()
	prev, ok := r.last[pid]
	r.last[pid] = processSample{at: now, kernel: kernelTicks, user: userTicks}
	r.mu.Unlock()

	ramPct, ramErr := r.processRAM(h)

	if !ok {
		return 0, ramPct, ramErr
	}

	elapsed := now.Sub(prev.at).Seconds()
	if elapsed <= 0 {
		return 0, ramPct, ramErr
	}
	cpuTicks := diffUint64(kernelTicks, prev.kernel) + diffUint64(userTicks, prev.user)
	// FILETIME ticks are 100ns units.
	cpuSeconds := float64(cpuTicks) / 1e7
	cpuPct := clampPct(100 * cpuSeconds / elapsed / r.numCores)
	return cpuPct, ramPct, ramErr
}

func (r *windowsReader) processRAM(h windows.Handle) (float64, error) {
	var counters windows.PROCESS_MEMORY_COUNTERS
	if err := windows.GetProcessMemoryInfo(h, &counters); err != nil {
		return 0, fmt.Errorf("hostcounters: GetProcessMemoryInfo: %w", err)
	}

	var status windows.MemoryStatusEx
	status.Length = uint32(unsafe.Sizeof(status))
	if err := windows.GlobalMemoryStatusEx(&status); err != nil || status.TotalPhys == 0 {
		return 0, fmt.Errorf("hostcounters: GlobalMemoryStatusEx: %w", err)
	}
	return clampPct(100 * float64(counters.WorkingSetSize) / float64(status.TotalPhys)), nil
}

func (r *windowsReader) ProcessName(pid int32) string {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return ""
	}
	return filepath.Base(windows.UTF16ToString(buf[:size]))
}

func (r *windowsReader) Close() error { return nil }

func filetimeToUint64(ft windows.Filetime) uint64 {
	return uint64(ft.HighDateTime)<<32 | uint64(ft.LowDateTime)
}

func diffUint64(cur, prev uint64) uint64 {
	if cur < prev {
		return 0
	}
	return cur - prev
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

