// Package monitor wires C1 through C6 into one running pipeline: event
// ingestion, telemetry aggregation, spike detection, suspect ranking,
// RCA submission, and incident storage. cmd/rcamonitor owns startup and
// shutdown; this package owns the steady-state data flow between them.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/config"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/detector"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/logger"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/ranker"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/rca"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/source"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/store"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/telemetry"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/pkg/models"
)

// Monitor owns the running pipeline's components and the goroutines
// that move data between them.
type Monitor struct {
	cfg          config.MonitorConfig
	newSource    func() (*source.Source, error)
	aggregator   *telemetry.Aggregator
	detector     *detector.Detector
	rcaOrch      *rca.Orchestrator
	store        *store.Store
	tickInterval time.Duration
}

// New assembles a Monitor from its already-constructed components.
// newSource builds a fresh tracer source each time the supervisor needs
// to (re)start it after a TracerLost exit.
func New(cfg config.MonitorConfig, newSource func() (*source.Source, error), aggregator *telemetry.Aggregator, det *detector.Detector, rcaOrch *rca.Orchestrator, st *store.Store) *Monitor {
	interval := cfg.Telemetry.TickInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{
		cfg:          cfg,
		newSource:    newSource,
		aggregator:   aggregator,
		detector:     det,
		rcaOrch:      rcaOrch,
		store:        st,
		tickInterval: interval,
	}
}

// Run starts every component's loop and blocks until ctx is cancelled
// or the tracer source exhausts its restart budget.
func (m *Monitor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	events := make(chan models.Event)
	sv := &sourceSupervisor{newSource: m.newSource, out: events}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(events)
		if err := sv.run(ctx); err != nil && ctx.Err() == nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		m.ingestLoop(ctx, events)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.aggregator.Run(ctx); err != nil && ctx.Err() == nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.rcaOrch.Run(ctx); err != nil && ctx.Err() == nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		m.detectLoop(ctx)
	}()

	select {
	case <-ctx.Done():
		wg.Wait()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ingestLoop drains the supervised tracer's normalized event stream
// into the telemetry aggregator until events closes.
func (m *Monitor) ingestLoop(ctx context.Context, events <-chan models.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.aggregator.Ingest(ev)
		}
	}
}

// detectLoop evaluates the spike detector once per telemetry tick and,
// on a Confirmed edge, ranks suspects and submits an RCA job.
func (m *Monitor) detectLoop(ctx context.Context) {
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.detectOnce()
		}
	}
}

func (m *Monitor) detectOnce() {
	current, ok := m.aggregator.LatestHostSample()
	if !ok {
		return
	}

	baselineSeconds := m.cfg.Detector.BaselineSeconds
	if baselineSeconds <= 0 {
		baselineSeconds = 120
	}
	baseline := m.aggregator.HostWindow(baselineSeconds)
	if len(baseline) > 0 && baseline[len(baseline)-1].Wall.Equal(current.Wall) {
		baseline = baseline[:len(baseline)-1]
	}

	incident := m.detector.Observe(baseline, current)
	if incident == nil {
		return
	}
	m.handleIncident(incident)
}

func (m *Monitor) handleIncident(incident *models.SpikeIncident) {
	attributionSeconds := m.cfg.Ranker.AttributionWindowSeconds
	if attributionSeconds <= 0 {
		attributionSeconds = 60
	}

	hostBaseline := m.aggregator.HostWindow(m.cfg.Detector.BaselineSeconds)
	hostWindow := m.aggregator.HostWindow(attributionSeconds)

	snapshots := make(map[int32][]models.ProcessSnapshot)
	for _, pid := range m.aggregator.ActivePIDs(attributionSeconds) {
		snapshots[pid] = m.aggregator.ProcessSnapshots(pid, attributionSeconds)
	}

	result := ranker.Rank(m.cfg.Ranker, hostBaseline, hostWindow, snapshots)
	incident.SeverityScore = models.Severity(incident.CPUAtConfirm, incident.RAMAtConfirm, m.cfg.Detector.CPUFloor, m.cfg.Detector.RAMFloor)
	incident.ETWEvents = m.aggregator.RecentEvents(attributionSeconds, m.cfg.RCA.EventSampleMax)

	m.store.Insert(incident)

	logger.Infof("monitor: incident %d queued for rca, %d suspects ranked", incident.ID, len(result.Ranked))
	m.rcaOrch.Submit(rca.Job{
		Incident:   incident,
		Ranked:     result.Ranked,
		Culprit:    result.Culprit,
		Impact:     result.Impact,
		HostWindow: hostWindow,
		Events:     incident.ETWEvents,
	})
}
