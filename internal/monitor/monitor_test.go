package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/config"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/detector"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/rca"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/source"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/store"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/telemetry"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/pkg/models"
)

type fakeReader struct {
	mu               sync.Mutex
	hostCPU, hostRAM float64
	procCPU, procRAM map[int32]float64
}

func (f *fakeReader) HostUsage() (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hostCPU, f.hostRAM, nil
}

func (f *fakeReader) ProcessUsage(pid int32) (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.procCPU[pid], f.procRAM[pid], nil
}

func (f *fakeReader) ProcessName(pid int32) string { return "fake.exe" }
func (f *fakeReader) Close() error                 { return nil }

func pid32(v int32) *int32 { return &v }

func TestSourceSupervisorReturnsContextErrDuringBackoff(t *testing.T) {
	calls := 0
	factory := func() (*source.Source, error) {
		calls++
		return source.NewFromReader(config.TracerConfig{}, strings.NewReader(""), nil), nil
	}
	out := make(chan models.Event, 4)
	sv := &sourceSupervisor{newSource: factory, out: out}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := sv.run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestSourceSupervisorForwardsEventsBeforeRestarting(t *testing.T) {
	lines := `{"ts":"2026-08-06T00:00:00Z","event_type":"cpu_sample","pid":100,"provider":"p1","payload":{}}
{"ts":"2026-08-06T00:00:01Z","event_type":"cpu_sample","pid":100,"provider":"p1","payload":{}}
`
	used := false
	factory := func() (*source.Source, error) {
		if used {
			return source.NewFromReader(config.TracerConfig{}, strings.NewReader(""), nil), nil
		}
		used = true
		return source.NewFromReader(config.TracerConfig{}, strings.NewReader(lines), nil), nil
	}
	out := make(chan models.Event, 4)
	sv := &sourceSupervisor{newSource: factory, out: out}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := sv.run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, out, 2)
}

func TestSourceSupervisorRetriesOnSpawnFailure(t *testing.T) {
	calls := 0
	factory := func() (*source.Source, error) {
		calls++
		return nil, errors.New("spawn failed")
	}
	out := make(chan models.Event, 1)
	sv := &sourceSupervisor{newSource: factory, out: out}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := sv.run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestHandleIncidentWiresRankerAndRCAIntoStore(t *testing.T) {
	reader := &fakeReader{
		hostCPU: 95, hostRAM: 40,
		procCPU: map[int32]float64{42: 90},
		procRAM: map[int32]float64{42: 35},
	}
	agg := telemetry.NewAggregator(config.TelemetryConfig{TickInterval: time.Millisecond}, reader, nil)
	agg.Ingest(models.Event{Wall: time.Now(), PID: pid32(42), Provider: "p"})

	tickCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	_ = agg.Run(tickCtx)
	cancel()

	det := detector.NewDetector(config.DetectorConfig{
		CPUFloor: 70, RAMFloor: 80, ZThreshold: 3, PersistenceSamples: 1, MinIncidentGapSeconds: 0,
	}, nil)
	st := store.NewStore(0)
	orch := rca.NewOrchestrator(config.RCAConfig{Enabled: false, EventSampleMax: 10}, nil, st)

	runCtx, runCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer runCancel()
	go orch.Run(runCtx)

	cfg := config.MonitorConfig{
		Detector: config.DetectorConfig{BaselineSeconds: 60, CPUFloor: 70, RAMFloor: 80},
		Ranker:   config.RankerConfig{AttributionWindowSeconds: 60, TopK: 10},
		RCA:      config.RCAConfig{Enabled: false, EventSampleMax: 10},
	}
	m := New(cfg, func() (*source.Source, error) { return nil, errors.New("unused in this test") }, agg, det, orch, st)

	incident := &models.SpikeIncident{ID: 1, CPUAtConfirm: 95, RAMAtConfirm: 40, DetectedAt: time.Now()}
	m.handleIncident(incident)

	require.Eventually(t, func() bool {
		got, ok := st.Get(1)
		return ok && got.RCA() != nil
	}, 150*time.Millisecond, 5*time.Millisecond, "rca was never attached to the stored incident")

	got, ok := st.Get(1)
	require.True(t, ok)
	assert.Equal(t, "<unavailable: rca disabled>", got.RCA().CauseSummary)
	assert.Equal(t, 0.0, got.RCA().Confidence)
}
