package models

import "time"

// HostSample is a single 1 Hz host-wide observation.
type HostSample struct {
	Wall   time.Time `json:"ts"`
	CPUPct float64   `json:"cpu"`
	RAMPct float64   `json:"ram"`
}

// ProcessSnapshot is one pid's rolled-up activity for a 1-second bucket.
type ProcessSnapshot struct {
	Wall       time.Time `json:"ts"`
	PID        int32     `json:"pid"`
	Name       string    `json:"name,omitempty"`
	Cmdline    *string   `json:"cmdline,omitempty"`
	CPUPct     float64   `json:"cpu_pct"`
	RAMPct     float64   `json:"ram_pct"`
	DiskBytes  float64   `json:"disk_bytes"`
	NetBytes   float64   `json:"net_bytes"`
	EventCount int       `json:"event_count"`
}
