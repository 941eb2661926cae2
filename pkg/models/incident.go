package models

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// SpikeState enumerates the C3 state machine's states.
type SpikeState int

const (
	StateNormal SpikeState = iota
	StateCandidate
	StateConfirmed
	StateCooling
)

func (s SpikeState) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateCandidate:
		return "candidate"
	case StateConfirmed:
		return "confirmed"
	case StateCooling:
		return "cooling"
	default:
		return "unknown"
	}
}

// SpikeType classifies a confirmed spike by which floor(s) it crossed.
// Purely descriptive; it does not feed back into detection.
type SpikeType string

const (
	SpikeTypeCPU   SpikeType = "cpu"
	SpikeTypeRAM   SpikeType = "ram"
	SpikeTypeMixed SpikeType = "mixed"
)

// SpikeIncident is the immutable (save for a one-time rca assignment)
// record created at a Normal to Confirmed edge. The RCA report is
// written once, asynchronously, well after the incident is first
// published to readers, so it is guarded by its own atomic pointer
// rather than the store's mutex: readers outside the store package
// (the read API) never take that lock at all.
type SpikeIncident struct {
	ID            int64     `json:"id"`
	DetectedAt    time.Time `json:"detected_at"`
	CPUAtConfirm  float64   `json:"cpu_at_confirm"`
	RAMAtConfirm  float64   `json:"ram_at_confirm"`
	WindowStart   time.Time `json:"window_start"`
	WindowEnd     time.Time `json:"window_end"`
	SpikeType     SpikeType `json:"spike_type"`
	SeverityScore float64   `json:"severity_score"`
	ETWEvents     []Event   `json:"etw_events,omitempty"`

	rca atomic.Pointer[RcaReport]
}

// RCA returns the incident's RCA report, or nil if it hasn't landed
// yet. Safe to call concurrently with SetRCA.
func (i *SpikeIncident) RCA() *RcaReport {
	return i.rca.Load()
}

// SetRCA attaches (or replaces) the incident's RCA report. Safe to
// call concurrently with RCA.
func (i *SpikeIncident) SetRCA(report *RcaReport) {
	i.rca.Store(report)
}

// spikeIncidentWire mirrors SpikeIncident's JSON shape with the RCA
// report snapshotted through RCA() instead of racing the atomic field.
type spikeIncidentWire struct {
	ID            int64     `json:"id"`
	DetectedAt    time.Time `json:"detected_at"`
	CPUAtConfirm  float64   `json:"cpu_at_confirm"`
	RAMAtConfirm  float64   `json:"ram_at_confirm"`
	WindowStart   time.Time `json:"window_start"`
	WindowEnd     time.Time `json:"window_end"`
	SpikeType     SpikeType `json:"spike_type"`
	SeverityScore float64   `json:"severity_score"`
	ETWEvents     []Event   `json:"etw_events,omitempty"`
	RCA           *RcaReport `json:"rca,omitempty"`
}

func (i *SpikeIncident) MarshalJSON() ([]byte, error) {
	return json.Marshal(spikeIncidentWire{
		ID:            i.ID,
		DetectedAt:    i.DetectedAt,
		CPUAtConfirm:  i.CPUAtConfirm,
		RAMAtConfirm:  i.RAMAtConfirm,
		WindowStart:   i.WindowStart,
		WindowEnd:     i.WindowEnd,
		SpikeType:     i.SpikeType,
		SeverityScore: i.SeverityScore,
		ETWEvents:     i.ETWEvents,
		RCA:           i.RCA(),
	})
}

func (i *SpikeIncident) UnmarshalJSON(data []byte) error {
	var w spikeIncidentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	i.ID = w.ID
	i.DetectedAt = w.DetectedAt
	i.CPUAtConfirm = w.CPUAtConfirm
	i.RAMAtConfirm = w.RAMAtConfirm
	i.WindowStart = w.WindowStart
	i.WindowEnd = w.WindowEnd
	i.SpikeType = w.SpikeType
	i.SeverityScore = w.SeverityScore
	i.ETWEvents = w.ETWEvents
	i.SetRCA(w.RCA)
	return nil
}

// Severity computes a descriptive severity score:
// max(0, (cpu - cpuFloor) + (ram - ramFloor)) at confirmation.
func Severity(cpuAtConfirm, ramAtConfirm, cpuFloor, ramFloor float64) float64 {
	v := (cpuAtConfirm - cpuFloor) + (ramAtConfirm - ramFloor)
	if v < 0 {
		return 0
	}
	return v
}

// ClassifySpikeType tags a confirmed spike by which floor(s) were
// crossed at confirmation.
func ClassifySpikeType(cpuAtConfirm, ramAtConfirm, cpuFloor, ramFloor float64) SpikeType {
	crossesCPU := cpuAtConfirm >= cpuFloor
	crossesRAM := ramAtConfirm >= ramFloor
	switch {
	case crossesCPU && crossesRAM:
		return SpikeTypeMixed
	case crossesCPU:
		return SpikeTypeCPU
	default:
		return SpikeTypeRAM
	}
}
