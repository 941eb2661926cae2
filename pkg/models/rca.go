package models

import "time"

// RankedSuspect is one entry in an RcaReport's ranked_suspects list.
type RankedSuspect struct {
	PID   int32   `json:"pid"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// CulpritProcess is the top-ranked suspect, expanded with the evidence
// fields an operator needs without a second lookup.
type CulpritProcess struct {
	PID       int32   `json:"pid"`
	Name      string  `json:"name"`
	Cmdline   string  `json:"cmdline,omitempty"`
	CPUPct    float64 `json:"cpu_pct"`
	RAMPct    float64 `json:"ram_pct"`
	DiskBytes float64 `json:"disk_bytes"`
}

// ResourceImpact summarizes the host-level spike the incident was built
// from.
type ResourceImpact struct {
	CPUSpikePercent float64 `json:"cpu_spike_percent"`
	RAMSpikePercent float64 `json:"ram_spike_percent"`
}

// TimelineEntry is one evidence event surfaced in the RCA narrative.
type TimelineEntry struct {
	TS        time.Time `json:"ts"`
	EventType string    `json:"event_type"`
	Details   string    `json:"details,omitempty"`
}

// RcaReport is the structured Root Cause Analysis record, either
// produced by the LLM collaborator and validated, or synthesized
// locally on failure.
type RcaReport struct {
	CauseSummary    string          `json:"cause_summary" validate:"required"`
	Confidence      float64         `json:"confidence" validate:"gte=0,lte=1"`
	CulpritProcess  CulpritProcess  `json:"culprit_process"`
	ResourceImpact  ResourceImpact  `json:"resource_impact"`
	RankedSuspects  []RankedSuspect `json:"ranked_suspects"`
	Timeline        []TimelineEntry `json:"timeline,omitempty"`
	Recs            []string        `json:"recs" validate:"min=1"`
	GeneratedAt     time.Time       `json:"generated_at"`
}
