package model

import "time"

// AlertKind identifies a class of monitored condition
type AlertKind string

const (
	AlertKindCPUTemp AlertKind = "cpu_temp"
	AlertKindRAM     AlertKind = "ram"
	AlertKindDisk    AlertKind = "disk"
	AlertKindCrash   AlertKind = "container_crash"
)

// AlertStatus represents the debounce state of a metric kind
type AlertStatus string

const (
	AlertStatusClear AlertStatus = "clear"
	AlertStatusFired AlertStatus = "fired"
)

// AlertState tracks the hysteresis state for one metric kind.
// It transitions CLEAR -> FIRED when the threshold is breached and
// FIRED -> CLEAR when the value drops back below it; a sustained
// breach never fires twice.
type AlertState struct {
	Status      AlertStatus `json:"status"`
	LastFiredAt *time.Time  `json:"last_fired_at,omitempty"`
}

// MetricSample is one instantaneous reading of host state. Samples are
// immutable and discarded after evaluation; only the derived alert
// state persists between polls.
type MetricSample struct {
	CPUTemp    float64            `json:"cpu_temp,omitempty"`
	HasCPUTemp bool               `json:"has_cpu_temp"`
	RAMPct     float64            `json:"ram_pct"`
	HasRAM     bool               `json:"has_ram"`
	LoadAvg    float64            `json:"load_avg"`
	Disks      map[string]float64 `json:"disks"`
	Timestamp  time.Time          `json:"timestamp"`
}

// DiskMax returns the most-used monitored mountpoint. ok is false when
// no disk could be read this sample.
func (s MetricSample) DiskMax() (mount string, pct float64, ok bool) {
	for m, p := range s.Disks {
		if !ok || p > pct {
			mount, pct, ok = m, p, true
		}
	}
	return mount, pct, ok
}

// Limits holds the configured alert thresholds
type Limits struct {
	CPUTemp float64 `json:"cpu_temp"`
	RAM     float64 `json:"ram"`
	Disk    float64 `json:"disk"`
}

// AlertDecision is the evaluator's verdict that a threshold breach
// should notify. Mounts carries the per-mountpoint breakdown for disk
// decisions and is nil otherwise.
type AlertDecision struct {
	Kind      AlertKind          `json:"kind"`
	Value     float64            `json:"value"`
	Threshold float64            `json:"threshold"`
	Mounts    map[string]float64 `json:"mounts,omitempty"`
	FiredAt   time.Time          `json:"fired_at"`
}
