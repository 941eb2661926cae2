package rca

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/config"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/pkg/models"
)

type fakeUpdater struct {
	mu      sync.Mutex
	reports map[int64]*models.RcaReport
}

func newFakeUpdater() *fakeUpdater { return &fakeUpdater{reports: map[int64]*models.RcaReport{}} }

func (f *fakeUpdater) UpdateRCA(id int64, report *models.RcaReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[id] = report
}

func (f *fakeUpdater) get(id int64) *models.RcaReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reports[id]
}

func TestFallbackReportIsStructurallyComplete(t *testing.T) {
	report := fallbackReport("no api key", Job{Incident: &models.SpikeIncident{ID: 1}})
	assert.Equal(t, "<unavailable: no api key>", report.CauseSummary)
	assert.Equal(t, 0.0, report.Confidence)
	assert.NotEmpty(t, report.Recs)
}

func TestBuildEvidenceTruncatesEventsToMostRecent(t *testing.T) {
	base := time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC)
	var events []models.Event
	for i := 0; i < 10; i++ {
		events = append(events, models.Event{Wall: base.Add(time.Duration(i) * time.Second)})
	}

	j := Job{Incident: &models.SpikeIncident{ID: 1}, Events: events}
	payload := buildEvidence(j, 3)
	require.Len(t, payload.Events, 3)
	assert.Equal(t, base.Add(9*time.Second), payload.Events[2].Wall)
}

func TestParseAndValidateClampsConfidenceAndRequiresRecs(t *testing.T) {
	raw := `{"cause_summary":"cpu hog","confidence":1.8,"ranked_suspects":[],"recs":[]}`
	report, err := parseAndValidate(raw)
	require.NoError(t, err)
	assert.Equal(t, 1.0, report.Confidence)
	assert.NotEmpty(t, report.Recs)
}

func TestParseAndValidateRejectsMissingCauseSummary(t *testing.T) {
	raw := `{"confidence":0.5,"recs":["check it"]}`
	_, err := parseAndValidate(raw)
	assert.Error(t, err)
}

func TestSubmitEvictsOldestOnOverflowWithBackpressureReason(t *testing.T) {
	updater := newFakeUpdater()
	o := NewOrchestrator(config.RCAConfig{QueueDepth: 1}, nil, updater)

	o.Submit(Job{Incident: &models.SpikeIncident{ID: 1}})
	o.Submit(Job{Incident: &models.SpikeIncident{ID: 2}})

	report := updater.get(1)
	require.NotNil(t, report)
	assert.Equal(t, "<unavailable: backpressure>", report.CauseSummary)
}

func TestProcessFallsBackWhenRCADisabled(t *testing.T) {
	updater := newFakeUpdater()
	o := NewOrchestrator(config.RCAConfig{Enabled: false}, nil, updater)

	j := Job{Incident: &models.SpikeIncident{ID: 5}, Culprit: &models.CulpritProcess{PID: 9, Name: "x.exe"}}
	report := o.process(nil, j)
	assert.Equal(t, "<unavailable: rca disabled>", report.CauseSummary)
	assert.Equal(t, int32(9), report.CulpritProcess.PID)
}
