package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nomadops/nomadmon/internal/model"
)

func tempSample(temp float64) model.MetricSample {
	return model.MetricSample{
		CPUTemp:    temp,
		HasCPUTemp: true,
		Timestamp:  time.Now(),
	}
}

func TestEvaluate_FiresOncePerBreachInterval(t *testing.T) {
	limits := model.Limits{CPUTemp: 82, RAM: 92, Disk: 90}
	states := NewAlertStates()

	// [70, 85, 90, 80, 86]: fire at 85, silent at 90 (still breached),
	// silent clear at 80, fire again at 86
	decisions := Evaluate(tempSample(70), limits, states)
	require.Empty(t, decisions)

	decisions = Evaluate(tempSample(85), limits, states)
	require.Len(t, decisions, 1)
	require.Equal(t, model.AlertKindCPUTemp, decisions[0].Kind)
	require.Equal(t, 85.0, decisions[0].Value)
	require.Equal(t, 82.0, decisions[0].Threshold)

	decisions = Evaluate(tempSample(90), limits, states)
	require.Empty(t, decisions)

	decisions = Evaluate(tempSample(80), limits, states)
	require.Empty(t, decisions)
	require.Equal(t, model.AlertStatusClear, states[model.AlertKindCPUTemp].Status)

	decisions = Evaluate(tempSample(86), limits, states)
	require.Len(t, decisions, 1)
}

func TestEvaluate_FirstSampleAlreadyBreached(t *testing.T) {
	limits := model.Limits{CPUTemp: 82, RAM: 92, Disk: 90}
	states := NewAlertStates()

	decisions := Evaluate(tempSample(95), limits, states)
	require.Len(t, decisions, 1)
	require.Equal(t, model.AlertStatusFired, states[model.AlertKindCPUTemp].Status)
	require.NotNil(t, states[model.AlertKindCPUTemp].LastFiredAt)
}

func TestEvaluate_AbsentValuesLeaveStateUntouched(t *testing.T) {
	limits := model.Limits{CPUTemp: 82, RAM: 92, Disk: 90}
	states := NewAlertStates()

	// breach, then a sample with no sensor reading at all
	Evaluate(tempSample(95), limits, states)
	require.Equal(t, model.AlertStatusFired, states[model.AlertKindCPUTemp].Status)

	decisions := Evaluate(model.MetricSample{Timestamp: time.Now()}, limits, states)
	require.Empty(t, decisions)
	require.Equal(t, model.AlertStatusFired, states[model.AlertKindCPUTemp].Status)
}

func TestEvaluate_RAMThreshold(t *testing.T) {
	limits := model.Limits{CPUTemp: 82, RAM: 92, Disk: 90}
	states := NewAlertStates()

	sample := model.MetricSample{RAMPct: 93.5, HasRAM: true, Timestamp: time.Now()}
	decisions := Evaluate(sample, limits, states)
	require.Len(t, decisions, 1)
	require.Equal(t, model.AlertKindRAM, decisions[0].Kind)
	require.Equal(t, 93.5, decisions[0].Value)

	// exact limit counts as breached, so 92.0 after clearing fires
	sample = model.MetricSample{RAMPct: 50, HasRAM: true, Timestamp: time.Now()}
	require.Empty(t, Evaluate(sample, limits, states))

	sample = model.MetricSample{RAMPct: 92.0, HasRAM: true, Timestamp: time.Now()}
	require.Len(t, Evaluate(sample, limits, states), 1)
}

func TestEvaluate_DiskCarriesBreachedMounts(t *testing.T) {
	limits := model.Limits{CPUTemp: 82, RAM: 92, Disk: 90}
	states := NewAlertStates()

	sample := model.MetricSample{
		Disks: map[string]float64{
			"/":         95.2,
			"/mnt/data": 91.0,
			"/home":     40.0,
		},
		Timestamp: time.Now(),
	}

	decisions := Evaluate(sample, limits, states)
	require.Len(t, decisions, 1)
	require.Equal(t, model.AlertKindDisk, decisions[0].Kind)
	require.Equal(t, 95.2, decisions[0].Value)
	require.Equal(t, map[string]float64{"/": 95.2, "/mnt/data": 91.0}, decisions[0].Mounts)

	// still breached: single disk state, no second firing
	require.Empty(t, Evaluate(sample, limits, states))
}

func TestEvaluate_IndependentKinds(t *testing.T) {
	limits := model.Limits{CPUTemp: 82, RAM: 92, Disk: 90}
	states := NewAlertStates()

	sample := model.MetricSample{
		CPUTemp:    88,
		HasCPUTemp: true,
		RAMPct:     95,
		HasRAM:     true,
		Disks:      map[string]float64{"/": 99},
		Timestamp:  time.Now(),
	}

	decisions := Evaluate(sample, limits, states)
	require.Len(t, decisions, 3)

	kinds := map[model.AlertKind]bool{}
	for _, d := range decisions {
		kinds[d.Kind] = true
	}
	require.True(t, kinds[model.AlertKindCPUTemp])
	require.True(t, kinds[model.AlertKindRAM])
	require.True(t, kinds[model.AlertKindDisk])
}
