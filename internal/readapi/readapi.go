// Package readapi implements C7: the pure data shapes and mapping
// functions behind the dashboard's read-only HTTP contract. It never
// opens a listener; an HTTP server is an outer-layer concern this
// module doesn't own.
package readapi

import (
	"time"

	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/pkg/models"
)

// maxEventsLimit caps /api/events?limit=N.
const maxEventsLimit = 500

// SpikeSummary is one entry of the /api/spikes listing: enough to
// populate a dashboard table without shipping every raw ETW event.
type SpikeSummary struct {
	ID            int64           `json:"id"`
	DetectedAt    time.Time       `json:"detected_at"`
	CPUAtConfirm  float64         `json:"cpu_at_confirm"`
	RAMAtConfirm  float64         `json:"ram_at_confirm"`
	WindowStart   time.Time       `json:"window_start"`
	WindowEnd     time.Time       `json:"window_end"`
	SpikeType     models.SpikeType `json:"spike_type"`
	SeverityScore float64         `json:"severity_score"`
	HasRCA        bool            `json:"has_rca"`
}

// SpikesResponse is the /api/spikes envelope.
type SpikesResponse struct {
	Spikes []SpikeSummary `json:"spikes"`
}

// BuildSpikesResponse maps a store listing (oldest first) into the
// newest-first summary envelope the dashboard expects.
func BuildSpikesResponse(incidents []*models.SpikeIncident) SpikesResponse {
	out := make([]SpikeSummary, len(incidents))
	for i, incident := range incidents {
		out[len(incidents)-1-i] = summarize(incident)
	}
	return SpikesResponse{Spikes: out}
}

func summarize(incident *models.SpikeIncident) SpikeSummary {
	return SpikeSummary{
		ID:            incident.ID,
		DetectedAt:    incident.DetectedAt,
		CPUAtConfirm:  incident.CPUAtConfirm,
		RAMAtConfirm:  incident.RAMAtConfirm,
		WindowStart:   incident.WindowStart,
		WindowEnd:     incident.WindowEnd,
		SpikeType:     incident.SpikeType,
		SeverityScore: incident.SeverityScore,
		HasRCA:        incident.RCA() != nil,
	}
}

// BuildSpikeDetail returns the full incident for /api/spikes/{id},
// including its ETW event sample and RCA report.
func BuildSpikeDetail(incident *models.SpikeIncident) *models.SpikeIncident {
	return incident
}

// LatestRCAResponse is the /api/latest-rca envelope.
type LatestRCAResponse struct {
	LatestRCA *models.RcaReport `json:"latest_rca"`
}

// BuildLatestRCAResponse reports the most recent incident's RCA, or
// null if there is no incident yet or its RCA hasn't landed.
func BuildLatestRCAResponse(incident *models.SpikeIncident, ok bool) LatestRCAResponse {
	if !ok || incident == nil {
		return LatestRCAResponse{}
	}
	return LatestRCAResponse{LatestRCA: incident.RCA()}
}

// EventsResponse is the /api/events envelope.
type EventsResponse struct {
	Events []models.Event `json:"events"`
}

// BuildEventsResponse returns the most recent min(limit, 500) events,
// oldest first within the returned slice.
func BuildEventsResponse(events []models.Event, limit int) EventsResponse {
	if limit <= 0 || limit > maxEventsLimit {
		limit = maxEventsLimit
	}
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	out := make([]models.Event, len(events))
	copy(out, events)
	return EventsResponse{Events: out}
}

// TelemetrySample is one point of the /api/telemetry/window response.
type TelemetrySample struct {
	TS  time.Time `json:"ts"`
	CPU float64   `json:"cpu"`
	RAM float64   `json:"ram"`
}

// TelemetryWindowResponse is the /api/telemetry/window envelope.
type TelemetryWindowResponse struct {
	Samples []TelemetrySample `json:"samples"`
}

// BuildTelemetryWindowResponse maps a host sample window to its wire
// shape.
func BuildTelemetryWindowResponse(samples []models.HostSample) TelemetryWindowResponse {
	out := make([]TelemetrySample, len(samples))
	for i, s := range samples {
		out[i] = TelemetrySample{TS: s.Wall, CPU: s.CPUPct, RAM: s.RAMPct}
	}
	return TelemetryWindowResponse{Samples: out}
}
