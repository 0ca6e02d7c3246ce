package monitor

import (
	"time"

	"github.com/nomadops/nomadmon/internal/model"
)

// AlertStates holds the hysteresis state for every monitored metric
// kind. It is owned by the Core and mutated only inside the polling
// step, which is what makes Evaluate safe without locks.
type AlertStates map[model.AlertKind]*model.AlertState

// NewAlertStates returns the initial all-clear state. Starting clear
// means a metric already breached at startup fires exactly once on the
// first sample.
func NewAlertStates() AlertStates {
	return AlertStates{
		model.AlertKindCPUTemp: {Status: model.AlertStatusClear},
		model.AlertKindRAM:     {Status: model.AlertStatusClear},
		model.AlertKindDisk:    {Status: model.AlertStatusClear},
	}
}

// Evaluate compares one sample against the limits and advances the
// per-kind state machine. A kind fires only on the CLEAR -> FIRED
// transition; dropping back below the limit clears silently. Absent
// values leave their kind untouched.
func Evaluate(sample model.MetricSample, limits model.Limits, states AlertStates) []model.AlertDecision {
	var decisions []model.AlertDecision

	if sample.HasCPUTemp {
		if d := transition(states[model.AlertKindCPUTemp], model.AlertKindCPUTemp,
			sample.CPUTemp, limits.CPUTemp, sample.Timestamp); d != nil {
			decisions = append(decisions, *d)
		}
	}

	if sample.HasRAM {
		if d := transition(states[model.AlertKindRAM], model.AlertKindRAM,
			sample.RAMPct, limits.RAM, sample.Timestamp); d != nil {
			decisions = append(decisions, *d)
		}
	}

	if _, diskMax, ok := sample.DiskMax(); ok {
		if d := transition(states[model.AlertKindDisk], model.AlertKindDisk,
			diskMax, limits.Disk, sample.Timestamp); d != nil {
			d.Mounts = breachedMounts(sample.Disks, limits.Disk)
			decisions = append(decisions, *d)
		}
	}

	return decisions
}

func transition(state *model.AlertState, kind model.AlertKind, value, limit float64, now time.Time) *model.AlertDecision {
	breached := value >= limit

	switch {
	case breached && state.Status == model.AlertStatusClear:
		state.Status = model.AlertStatusFired
		firedAt := now
		state.LastFiredAt = &firedAt
		return &model.AlertDecision{
			Kind:      kind,
			Value:     value,
			Threshold: limit,
			FiredAt:   now,
		}
	case !breached && state.Status == model.AlertStatusFired:
		state.Status = model.AlertStatusClear
	}
	return nil
}

func breachedMounts(disks map[string]float64, limit float64) map[string]float64 {
	breached := make(map[string]float64)
	for mount, pct := range disks {
		if pct >= limit {
			breached[mount] = pct
		}
	}
	return breached
}
