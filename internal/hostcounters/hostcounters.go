// Package hostcounters reads host-wide and per-process CPU/RAM figures
// from the operating system for C2 to fold into HostSample and
// ProcessSnapshot values. The production path is Windows-only; other
// platforms get an honest "unsupported" stub so the rest of the module
// stays buildable and testable off-target.
package hostcounters

import "errors"

// ErrUnsupported is returned by the non-Windows stub for every call.
var ErrUnsupported = errors.New("hostcounters: not supported on this platform")

// Reader samples host-wide and per-process resource usage.
type Reader interface {
	// HostUsage returns the instantaneous host CPU and RAM utilization
	// as percentages in [0, 100].
	HostUsage() (cpuPct, ramPct float64, err error)

	// ProcessUsage returns pid's CPU share (percent of all cores) and
	// RAM share (percent of total physical RAM) since the previous
	// call for the same pid. The first call for a given pid reports a
	// CPU share of 0 (CPU share needs two samples) alongside the RAM
	// share and any error from the RAM lookup.
	ProcessUsage(pid int32) (cpuPct, ramPct float64, err error)

	// ProcessName resolves pid's image name, or "" if it cannot be
	// determined (the process may have already exited).
	ProcessName(pid int32) string

	// Close releases any OS handles the reader holds open.
	Close() error
}
