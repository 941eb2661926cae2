package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/config"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/pkg/models"
)

func pid(v int32) *int32 { return &v }

func TestAggregatorTicksHostAndProcessWindows(t *testing.T) {
	cfg := config.TelemetryConfig{HostWindowSeconds: 5, PIDWindowSeconds: 5, TickInterval: time.Millisecond}
	agg := NewAggregator(cfg, nil, nil)

	base := time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC)
	clock := base
	agg.nowFn = func() time.Time { return clock }

	agg.Ingest(models.Event{PID: pid(100), Wall: clock, Payload: map[string]models.Scalar{
		"disk_bytes": models.IntScalar(1024),
	}})
	agg.tick()

	clock = clock.Add(time.Second)
	agg.Ingest(models.Event{PID: pid(100), Wall: clock})
	agg.tick()

	host, ok := agg.LatestHostSample()
	require.True(t, ok)
	assert.Equal(t, clock, host.Wall)

	snaps := agg.ProcessSnapshots(100, 10)
	require.Len(t, snaps, 2)
	assert.Equal(t, float64(1024), snaps[0].DiskBytes)

	active := agg.ActivePIDs(10)
	assert.Contains(t, active, int32(100))
}

func TestAggregatorTrimsOldSamplesOutsideWindow(t *testing.T) {
	cfg := config.TelemetryConfig{HostWindowSeconds: 2, PIDWindowSeconds: 2, TickInterval: time.Millisecond}
	agg := NewAggregator(cfg, nil, nil)

	base := time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC)
	clock := base
	agg.nowFn = func() time.Time { return clock }
	agg.tick()

	clock = clock.Add(5 * time.Second)
	agg.nowFn = func() time.Time { return clock }
	agg.tick()

	window := agg.HostWindow(10)
	require.Len(t, window, 1)
	assert.Equal(t, clock, window[0].Wall)
}

func TestTickAttributesCPUFromContextSwitchesAndCPUSamples(t *testing.T) {
	cfg := config.TelemetryConfig{TickInterval: time.Millisecond, NumCores: 2}
	agg := NewAggregator(cfg, nil, nil)

	base := time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC)
	agg.nowFn = func() time.Time { return base }

	// 3 context_switch events hand the core to pid 100 twice and pid
	// 200 once; 2 cpu_sample events are both attributed to pid 100.
	agg.Ingest(models.Event{Wall: base, Payload: map[string]models.Scalar{"new_pid": models.IntScalar(100)}, Kind: models.EventContextSwitch})
	agg.Ingest(models.Event{Wall: base, Payload: map[string]models.Scalar{"new_pid": models.IntScalar(100)}, Kind: models.EventContextSwitch})
	agg.Ingest(models.Event{Wall: base, Payload: map[string]models.Scalar{"new_pid": models.IntScalar(200)}, Kind: models.EventContextSwitch})
	agg.Ingest(models.Event{Wall: base, PID: pid(100), Kind: models.EventCPUSample})
	agg.Ingest(models.Event{Wall: base, PID: pid(100), Kind: models.EventCPUSample})

	agg.tick()

	snaps100 := agg.ProcessSnapshots(100, 10)
	require.Len(t, snaps100, 1)
	// ctx share = 2/3, sample share = 2/2 = 1, combined = 5/3, / 2 cores * 100
	assert.InDelta(t, (2.0/3.0+1.0)/2*100, snaps100[0].CPUPct, 1e-9)

	snaps200 := agg.ProcessSnapshots(200, 10)
	require.Len(t, snaps200, 1)
	// ctx share = 1/3, no cpu_sample credit, / 2 cores * 100
	assert.InDelta(t, (1.0/3.0)/2*100, snaps200[0].CPUPct, 1e-9)
}

func TestRecentEventsRespectsWindowAndMax(t *testing.T) {
	agg := NewAggregator(config.TelemetryConfig{}, nil, nil)

	base := time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		agg.Ingest(models.Event{Wall: base.Add(time.Duration(i) * time.Second), PID: pid(1)})
	}

	events := agg.RecentEvents(10, 2)
	require.Len(t, events, 2)
	assert.Equal(t, base.Add(4*time.Second), events[1].Wall)
}
