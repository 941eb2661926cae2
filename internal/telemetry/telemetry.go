// Package telemetry implements C2: it folds the normalized event
// stream and periodic host/process samples into rolling windows that
// C3 and C4 read from.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/config"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/hostcounters"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/logger"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/metrics"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/pkg/models"
)

// recentEventCap bounds the in-memory event timeline independently of
// the host/process windows; it is not part of the tunable config
// because it is a memory ceiling, not a detection parameter.
const recentEventCap = 8192

type pidAccum struct {
	diskBytes  float64
	netBytes   float64
	eventCount int
}

// Aggregator owns the rolling host sample window, the per-PID snapshot
// windows, and the recent event timeline.
type Aggregator struct {
	cfg      config.TelemetryConfig
	reader   hostcounters.Reader
	counters *metrics.Counters

	mu          sync.RWMutex
	hostSamples []models.HostSample
	procTables  map[int32][]models.ProcessSnapshot
	names       map[int32]string
	accum       map[int32]*pidAccum
	events      []models.Event
	nowFn       func() time.Time

	// Per-PID CPU attribution for the tick in progress: context_switch
	// credits are keyed by the switched-to pid, cpu_sample counts by
	// the sampled pid. Both reset to empty at the close of every tick.
	ctxSwitchCredits map[int32]int
	cpuSampleCounts  map[int32]int
	totalCtxSwitches int
	totalCPUSamples  int
}

// NewAggregator builds an Aggregator. reader may be nil in tests that
// only exercise Ingest and the accessor methods.
func NewAggregator(cfg config.TelemetryConfig, reader hostcounters.Reader, counters *metrics.Counters) *Aggregator {
	return &Aggregator{
		cfg:              cfg,
		reader:           reader,
		counters:         counters,
		procTables:       make(map[int32][]models.ProcessSnapshot),
		names:            make(map[int32]string),
		accum:            make(map[int32]*pidAccum),
		ctxSwitchCredits: make(map[int32]int),
		cpuSampleCounts:  make(map[int32]int),
		nowFn:            time.Now,
	}
}

// Ingest folds one normalized event into the current tick's per-PID
// accumulator, the tick's CPU attribution tallies, and the recent-event
// timeline. Safe for concurrent use alongside Run.
func (a *Aggregator) Ingest(ev models.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.events = append(a.events, ev)
	if over := len(a.events) - recentEventCap; over > 0 {
		a.events = a.events[over:]
	}

	switch ev.Kind {
	case models.EventContextSwitch:
		if newPID, ok := contextSwitchNewPID(ev); ok {
			a.ensureAccumLocked(newPID)
			a.ctxSwitchCredits[newPID]++
			a.totalCtxSwitches++
		}
	case models.EventCPUSample:
		if ev.PID != nil {
			a.cpuSampleCounts[*ev.PID]++
			a.totalCPUSamples++
		}
	}

	if ev.PID == nil {
		return
	}
	acc := a.ensureAccumLocked(*ev.PID)
	acc.eventCount++
	acc.diskBytes += ev.PayloadFloat("disk_bytes")
	acc.netBytes += ev.PayloadFloat("net_bytes")
}

// contextSwitchNewPID reads the pid a context_switch event handed the
// core to; it travels in the payload rather than the event's own pid
// field, which identifies the event's owning thread context.
func contextSwitchNewPID(ev models.Event) (int32, bool) {
	if ev.Payload == nil {
		return 0, false
	}
	v, ok := ev.Payload["new_pid"]
	if !ok {
		return 0, false
	}
	f, ok := v.Float64()
	if !ok {
		return 0, false
	}
	return int32(f), true
}

func (a *Aggregator) ensureAccumLocked(pid int32) *pidAccum {
	acc, ok := a.accum[pid]
	if !ok {
		acc = &pidAccum{}
		a.accum[pid] = acc
	}
	return acc
}

// Run samples the host and every PID seen since the last tick once per
// TickInterval until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) error {
	interval := a.cfg.TickInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.tick()
		}
	}
}

func (a *Aggregator) tick() {
	now := a.nowFn()

	var host models.HostSample
	if a.reader != nil {
		cpuPct, ramPct, err := a.reader.HostUsage()
		if err != nil {
			if a.counters != nil {
				a.counters.RAMUnavailableTicks.Inc()
			}
			logger.Warnf("telemetry: host sample failed: %v", err)
		}
		host = models.HostSample{Wall: now, CPUPct: cpuPct, RAMPct: ramPct}
	} else {
		host = models.HostSample{Wall: now}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.appendHostLocked(host)

	numCores := float64(a.cfg.NumCores)
	if numCores <= 0 {
		numCores = 1
	}

	var cpuPctSum float64
	for pid, acc := range a.accum {
		snap := models.ProcessSnapshot{
			Wall:       now,
			PID:        pid,
			DiskBytes:  acc.diskBytes,
			NetBytes:   acc.netBytes,
			EventCount: acc.eventCount,
			CPUPct:     a.pidCPUPctLocked(pid, numCores),
		}
		cpuPctSum += snap.CPUPct

		if a.reader != nil {
			_, ramPct, err := a.reader.ProcessUsage(pid)
			if err != nil {
				if a.counters != nil {
					a.counters.RAMUnavailableTicks.Inc()
				}
			} else {
				snap.RAMPct = ramPct
			}
			if name, ok := a.names[pid]; ok {
				snap.Name = name
			} else if name := a.reader.ProcessName(pid); name != "" {
				a.names[pid] = name
				snap.Name = name
			}
		}
		a.appendProcessLocked(pid, snap)
	}

	if cpuPctSum > 100*numCores*1.02 {
		logger.Warnf("telemetry: summed per-PID cpu_pct %.2f exceeds 100%%*num_cores=%.2f beyond tolerance", cpuPctSum, 100*numCores)
		if a.counters != nil {
			a.counters.CPUSumImplausible.Inc()
		}
	}

	a.accum = make(map[int32]*pidAccum)
	a.ctxSwitchCredits = make(map[int32]int)
	a.cpuSampleCounts = make(map[int32]int)
	a.totalCtxSwitches = 0
	a.totalCPUSamples = 0

	a.trimProcessTablesLocked(now)
}

// pidCPUPctLocked combines this tick's context_switch credits and
// cpu_sample counts into a cpu_pct: each context_switch to pid credits
// a 1/totalCtxSwitches share of the tick, each cpu_sample for pid
// credits a 1/totalCPUSamples share, and the combined share of a
// single core is scaled down by num_cores.
func (a *Aggregator) pidCPUPctLocked(pid int32, numCores float64) float64 {
	var share float64
	if a.totalCtxSwitches > 0 {
		share += float64(a.ctxSwitchCredits[pid]) / float64(a.totalCtxSwitches)
	}
	if a.totalCPUSamples > 0 {
		share += float64(a.cpuSampleCounts[pid]) / float64(a.totalCPUSamples)
	}
	return share / numCores * 100
}

func (a *Aggregator) appendHostLocked(s models.HostSample) {
	a.hostSamples = append(a.hostSamples, s)
	cutoff := s.Wall.Add(-windowOrDefault(a.cfg.HostWindowSeconds, 300))
	a.hostSamples = trimHostSamples(a.hostSamples, cutoff)
}

func (a *Aggregator) appendProcessLocked(pid int32, s models.ProcessSnapshot) {
	a.procTables[pid] = append(a.procTables[pid], s)
}

func (a *Aggregator) trimProcessTablesLocked(now time.Time) {
	cutoff := now.Add(-windowOrDefault(a.cfg.PIDWindowSeconds, 120))
	for pid, snaps := range a.procTables {
		snaps = trimProcessSnapshots(snaps, cutoff)
		if len(snaps) == 0 {
			delete(a.procTables, pid)
			delete(a.names, pid)
			continue
		}
		a.procTables[pid] = snaps
	}
}

func windowOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

func trimHostSamples(s []models.HostSample, cutoff time.Time) []models.HostSample {
	idx := 0
	for idx < len(s) && s[idx].Wall.Before(cutoff) {
		idx++
	}
	return s[idx:]
}

func trimProcessSnapshots(s []models.ProcessSnapshot, cutoff time.Time) []models.ProcessSnapshot {
	idx := 0
	for idx < len(s) && s[idx].Wall.Before(cutoff) {
		idx++
	}
	return s[idx:]
}

// LatestHostSample returns the most recent host sample, if any.
func (a *Aggregator) LatestHostSample() (models.HostSample, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.hostSamples) == 0 {
		return models.HostSample{}, false
	}
	return a.hostSamples[len(a.hostSamples)-1], true
}

// HostWindow returns host samples from the last `seconds` seconds,
// oldest first.
func (a *Aggregator) HostWindow(seconds int) []models.HostSample {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.hostSamples) == 0 {
		return nil
	}
	cutoff := a.hostSamples[len(a.hostSamples)-1].Wall.Add(-time.Duration(seconds) * time.Second)
	out := trimHostSamples(append([]models.HostSample(nil), a.hostSamples...), cutoff)
	return out
}

// ProcessSnapshots returns pid's snapshots from the last `seconds`
// seconds, oldest first.
func (a *Aggregator) ProcessSnapshots(pid int32, seconds int) []models.ProcessSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snaps := a.procTables[pid]
	if len(snaps) == 0 {
		return nil
	}
	cutoff := snaps[len(snaps)-1].Wall.Add(-time.Duration(seconds) * time.Second)
	return trimProcessSnapshots(append([]models.ProcessSnapshot(nil), snaps...), cutoff)
}

// ActivePIDs returns every PID with at least one snapshot in the last
// `windowSeconds` seconds, measured back from the newest snapshot of
// any PID.
func (a *Aggregator) ActivePIDs(windowSeconds int) []int32 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var latest time.Time
	for _, snaps := range a.procTables {
		if n := len(snaps); n > 0 && snaps[n-1].Wall.After(latest) {
			latest = snaps[n-1].Wall
		}
	}
	cutoff := latest.Add(-time.Duration(windowSeconds) * time.Second)
	var out []int32
	for pid, snaps := range a.procTables {
		if len(snaps) == 0 {
			continue
		}
		if !snaps[len(snaps)-1].Wall.Before(cutoff) {
			out = append(out, pid)
		}
	}
	return out
}

// RecentEvents returns up to max events from the last `windowSeconds`
// seconds, most recent last.
func (a *Aggregator) RecentEvents(windowSeconds, max int) []models.Event {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.events) == 0 {
		return nil
	}
	cutoff := a.events[len(a.events)-1].Wall.Add(-time.Duration(windowSeconds) * time.Second)
	idx := 0
	for idx < len(a.events) && a.events[idx].Wall.Before(cutoff) {
		idx++
	}
	window := a.events[idx:]
	if max > 0 && len(window) > max {
		window = window[len(window)-max:]
	}
	out := make([]models.Event, len(window))
	copy(out, window)
	return out
}
