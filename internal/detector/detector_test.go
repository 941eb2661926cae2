package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/config"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/pkg/models"
)

func baselineSamples(n int, cpu, ram float64) []models.HostSample {
	base := time.Date(2026, 8, 6, 9, 0, 0, 0, time.UTC)
	out := make([]models.HostSample, n)
	for i := range out {
		out[i] = models.HostSample{Wall: base.Add(time.Duration(i) * time.Second), CPUPct: cpu, RAMPct: ram}
	}
	return out
}

func baseCfg() config.DetectorConfig {
	return config.DetectorConfig{
		ZThreshold:            3.0,
		CPUFloor:              70,
		RAMFloor:              80,
		PersistenceSamples:    3,
		CooldownSamples:       2,
		CoolingSeconds:        0,
		MinIncidentGapSeconds: 0,
	}
}

func TestColdStartSuppressesDetection(t *testing.T) {
	d := NewDetector(baseCfg(), nil)
	baseline := baselineSamples(10, 20, 20)
	current := models.HostSample{Wall: time.Now(), CPUPct: 95, RAMPct: 95}
	incident := d.Observe(baseline, current)
	assert.Nil(t, incident)
	assert.Equal(t, models.StateNormal, d.State())
}

func TestSustainedSpikeConfirmsAfterPersistence(t *testing.T) {
	d := NewDetector(baseCfg(), nil)
	baseline := baselineSamples(40, 20, 20)
	base := time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC)

	var last *models.SpikeIncident
	for i := 0; i < 3; i++ {
		sample := models.HostSample{Wall: base.Add(time.Duration(i) * time.Second), CPUPct: 95, RAMPct: 20}
		last = d.Observe(baseline, sample)
	}

	require.NotNil(t, last)
	assert.Equal(t, models.StateConfirmed, d.State())
	assert.Equal(t, models.SpikeTypeCPU, last.SpikeType)
	// (95-70) + (20-80) = -35, clamped to 0.
	assert.InDelta(t, 0.0, last.SeverityScore, 1e-9)
}

func TestCandidateDropsBackToNormalOnQuiet(t *testing.T) {
	d := NewDetector(baseCfg(), nil)
	baseline := baselineSamples(40, 20, 20)
	base := time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC)

	d.Observe(baseline, models.HostSample{Wall: base, CPUPct: 95, RAMPct: 20})
	assert.Equal(t, models.StateCandidate, d.State())

	d.Observe(baseline, models.HostSample{Wall: base.Add(time.Second), CPUPct: 20, RAMPct: 20})
	assert.Equal(t, models.StateNormal, d.State())
}

func TestConfirmedCoolsBackToNormal(t *testing.T) {
	cfg := baseCfg()
	cfg.CooldownSamples = 2
	d := NewDetector(cfg, nil)
	baseline := baselineSamples(40, 20, 20)
	base := time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		d.Observe(baseline, models.HostSample{Wall: base.Add(time.Duration(i) * time.Second), CPUPct: 95, RAMPct: 20})
	}
	require.Equal(t, models.StateConfirmed, d.State())

	// A single quiet sample doesn't leave Confirmed: cooldown_samples
	// requires two consecutive non-triggering samples.
	d.Observe(baseline, models.HostSample{Wall: base.Add(3 * time.Second), CPUPct: 20, RAMPct: 20})
	assert.Equal(t, models.StateConfirmed, d.State())

	d.Observe(baseline, models.HostSample{Wall: base.Add(4 * time.Second), CPUPct: 20, RAMPct: 20})
	assert.Equal(t, models.StateCooling, d.State())

	// Cooling to Normal is gated on cooling_seconds alone.
	d.Observe(baseline, models.HostSample{Wall: base.Add(5 * time.Second), CPUPct: 20, RAMPct: 20})
	assert.Equal(t, models.StateNormal, d.State())
}

func TestMinIncidentGapSuppressesImmediateReconfirmation(t *testing.T) {
	cfg := baseCfg()
	cfg.MinIncidentGapSeconds = 3600
	d := NewDetector(cfg, nil)
	baseline := baselineSamples(40, 20, 20)
	base := time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		d.Observe(baseline, models.HostSample{Wall: base.Add(time.Duration(i) * time.Second), CPUPct: 95, RAMPct: 20})
	}
	require.Equal(t, models.StateConfirmed, d.State())

	d.Observe(baseline, models.HostSample{Wall: base.Add(3 * time.Second), CPUPct: 20, RAMPct: 20})
	d.Observe(baseline, models.HostSample{Wall: base.Add(4 * time.Second), CPUPct: 20, RAMPct: 20})
	require.Equal(t, models.StateCooling, d.State())

	d.Observe(baseline, models.HostSample{Wall: base.Add(5 * time.Second), CPUPct: 20, RAMPct: 20})
	require.Equal(t, models.StateNormal, d.State())

	incident := d.Observe(baseline, models.HostSample{Wall: base.Add(6 * time.Second), CPUPct: 95, RAMPct: 20})
	assert.Nil(t, incident)
	assert.Equal(t, models.StateNormal, d.State())
}
