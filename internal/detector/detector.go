// Package detector implements C3: a robust-statistics spike detector
// that turns a host CPU/RAM baseline into a Normal -> Candidate ->
// Confirmed -> Cooling state machine, emitting a SpikeIncident at each
// Normal-to-Confirmed edge.
package detector

import (
	"math"
	"time"

	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/config"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/logger"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/metrics"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/stats"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/pkg/models"
)

// coldStartMinSamples is the minimum baseline population before the
// detector will trigger at all; below it the median/MAD estimate is
// too noisy to trust.
const coldStartMinSamples = 30

// Detector runs the state machine for one host.
type Detector struct {
	cfg      config.DetectorConfig
	counters *metrics.Counters
	nowFn    func() time.Time

	state          models.SpikeState
	triggerStreak  int
	quietStreak    int
	coolingSince   time.Time
	windowStart    time.Time
	peakCPU        float64
	peakRAM        float64
	lastIncidentAt time.Time
	nextID         int64
}

// NewDetector builds a Detector in the Normal state.
func NewDetector(cfg config.DetectorConfig, counters *metrics.Counters) *Detector {
	return &Detector{
		cfg:      cfg,
		counters: counters,
		nowFn:    time.Now,
		state:    models.StateNormal,
		nextID:   1,
	}
}

// State returns the detector's current state machine state.
func (d *Detector) State() models.SpikeState {
	return d.state
}

// Observe folds one host sample, evaluated against its preceding
// baseline window, through the state machine. It returns a non-nil
// incident exactly when a Confirmed edge is crossed.
func (d *Detector) Observe(baseline []models.HostSample, current models.HostSample) *models.SpikeIncident {
	if len(baseline) < coldStartMinSamples {
		return nil
	}

	cpuSamples := make([]float64, len(baseline))
	ramSamples := make([]float64, len(baseline))
	for i, s := range baseline {
		cpuSamples[i] = s.CPUPct
		ramSamples[i] = s.RAMPct
	}
	cpuMedian, cpuMAD := stats.MedianMAD(cpuSamples)
	ramMedian, ramMAD := stats.MedianMAD(ramSamples)

	cpuZ := stats.RobustZ(current.CPUPct, cpuMedian, cpuMAD)
	ramZ := stats.RobustZ(current.RAMPct, ramMedian, ramMAD)

	triggered := (current.CPUPct >= d.cfg.CPUFloor && cpuZ >= d.cfg.ZThreshold) ||
		(current.RAMPct >= d.cfg.RAMFloor && ramZ >= d.cfg.ZThreshold)

	switch d.state {
	case models.StateNormal:
		return d.observeNormal(triggered, current)
	case models.StateCandidate:
		return d.observeCandidate(triggered, current)
	case models.StateConfirmed:
		return d.observeConfirmed(triggered, current)
	case models.StateCooling:
		return d.observeCooling(triggered, current)
	default:
		return nil
	}
}

func (d *Detector) observeNormal(triggered bool, current models.HostSample) *models.SpikeIncident {
	if !triggered {
		return nil
	}
	if !d.lastIncidentAt.IsZero() {
		gap := time.Duration(d.cfg.MinIncidentGapSeconds) * time.Second
		if current.Wall.Sub(d.lastIncidentAt) < gap {
			return nil
		}
	}
	d.transition(models.StateCandidate)
	d.triggerStreak = 1
	d.windowStart = current.Wall
	d.peakCPU = current.CPUPct
	d.peakRAM = current.RAMPct
	return nil
}

func (d *Detector) observeCandidate(triggered bool, current models.HostSample) *models.SpikeIncident {
	if !triggered {
		d.transition(models.StateNormal)
		d.triggerStreak = 0
		return nil
	}
	d.triggerStreak++
	d.peakCPU = math.Max(d.peakCPU, current.CPUPct)
	d.peakRAM = math.Max(d.peakRAM, current.RAMPct)
	if d.triggerStreak < d.cfg.PersistenceSamples {
		return nil
	}

	d.transition(models.StateConfirmed)
	if d.counters != nil {
		d.counters.IncidentsCreated.Inc()
	}
	incident := &models.SpikeIncident{
		ID:            d.nextID,
		DetectedAt:    current.Wall,
		CPUAtConfirm:  current.CPUPct,
		RAMAtConfirm:  current.RAMPct,
		WindowStart:   d.windowStart,
		WindowEnd:     current.Wall,
		SpikeType:     models.ClassifySpikeType(current.CPUPct, current.RAMPct, d.cfg.CPUFloor, d.cfg.RAMFloor),
		SeverityScore: models.Severity(current.CPUPct, current.RAMPct, d.cfg.CPUFloor, d.cfg.RAMFloor),
	}
	d.nextID++
	d.lastIncidentAt = current.Wall
	logger.Infof("detector: incident %d confirmed cpu=%.1f ram=%.1f type=%s", incident.ID, current.CPUPct, current.RAMPct, incident.SpikeType)
	return incident
}

func (d *Detector) observeConfirmed(triggered bool, current models.HostSample) *models.SpikeIncident {
	d.peakCPU = math.Max(d.peakCPU, current.CPUPct)
	d.peakRAM = math.Max(d.peakRAM, current.RAMPct)
	if triggered {
		d.quietStreak = 0
		return nil
	}
	d.quietStreak++
	if d.quietStreak < d.cfg.CooldownSamples {
		return nil
	}
	d.transition(models.StateCooling)
	d.quietStreak = 0
	d.coolingSince = current.Wall
	return nil
}

func (d *Detector) observeCooling(triggered bool, current models.HostSample) *models.SpikeIncident {
	if triggered {
		d.transition(models.StateConfirmed)
		d.quietStreak = 0
		return nil
	}

	elapsed := current.Wall.Sub(d.coolingSince)
	if elapsed >= time.Duration(d.cfg.CoolingSeconds)*time.Second {
		d.transition(models.StateNormal)
	}
	return nil
}

func (d *Detector) transition(to models.SpikeState) {
	if d.counters != nil {
		d.counters.SpikeTransitions.WithLabelValues(to.String()).Inc()
	}
	d.state = to
}
