package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/nomadops/nomadmon/internal/model"
)

// ErrNoMetrics is returned when no metric source could be read at all
var ErrNoMetrics = errors.New("no metric source available")

// Provider reads instantaneous host resource metrics
type Provider interface {
	Sample(ctx context.Context) (model.MetricSample, error)
}

// HostProvider implements Provider using gopsutil. It is stateless;
// every call reflects the host at the moment of the read.
type HostProvider struct {
	logger *zap.Logger
}

// NewHostProvider creates a new host metric provider
func NewHostProvider(logger *zap.Logger) *HostProvider {
	return &HostProvider{logger: logger.Named("metrics")}
}

// Sample reads CPU temperature, RAM, per-mount disk usage and load
// average. Individual sources failing produce absent values; an error
// is returned only when nothing at all could be read.
func (p *HostProvider) Sample(ctx context.Context) (model.MetricSample, error) {
	sample := model.MetricSample{
		Disks:     make(map[string]float64),
		Timestamp: time.Now(),
	}

	if temp, ok := p.cpuTemperature(ctx); ok {
		sample.CPUTemp = temp
		sample.HasCPUTemp = true
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		p.logger.Warn("Failed to read memory stats", zap.Error(err))
	} else {
		sample.RAMPct = vm.UsedPercent
		sample.HasRAM = true
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		sample.LoadAvg = avg.Load1
	}

	p.collectDisks(ctx, &sample)

	if !sample.HasRAM && !sample.HasCPUTemp && len(sample.Disks) == 0 {
		return sample, ErrNoMetrics
	}
	return sample, nil
}

// cpuTemperature picks a CPU package sensor when one exists, falling
// back to the hottest reported sensor. Hosts without sensors (VMs,
// most containers) report absence, not zero.
func (p *HostProvider) cpuTemperature(ctx context.Context) (float64, bool) {
	stats, err := host.SensorsTemperaturesWithContext(ctx)
	if len(stats) == 0 {
		if err != nil {
			p.logger.Debug("Could not read temperature sensors", zap.Error(err))
		}
		return 0, false
	}

	var hottest float64
	found := false
	for _, stat := range stats {
		if stat.Temperature <= 0 {
			continue
		}
		if isCPUSensor(stat.SensorKey) {
			return stat.Temperature, true
		}
		if !found || stat.Temperature > hottest {
			hottest = stat.Temperature
			found = true
		}
	}
	return hottest, found
}

func (p *HostProvider) collectDisks(ctx context.Context, sample *model.MetricSample) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		p.logger.Warn("Failed to list disk partitions", zap.Error(err))
		return
	}

	for _, part := range partitions {
		if !MonitoredMount(part.Device, part.Mountpoint) {
			continue
		}
		if _, seen := sample.Disks[part.Mountpoint]; seen {
			continue
		}
		usage, err := disk.UsageWithContext(ctx, part.Mountpoint)
		if err != nil {
			p.logger.Debug("Failed to read disk usage",
				zap.String("mount", part.Mountpoint),
				zap.Error(err))
			continue
		}
		if usage.Total == 0 {
			continue
		}
		sample.Disks[part.Mountpoint] = usage.UsedPercent
	}
}

var cpuSensorKeys = []string{"coretemp", "k10temp", "cpu_thermal", "soc_thermal", "acpitz"}

func isCPUSensor(key string) bool {
	lower := strings.ToLower(key)
	for _, name := range cpuSensorKeys {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

var devicePrefixes = []string{"/dev/sd", "/dev/nvme", "/dev/mapper"}

var excludedMountParts = []string{"docker", "overlay", "kubelet", "containers"}

// MonitoredMount reports whether a partition belongs to a physical or
// mapped drive worth alerting on. Container-runtime mounts are skipped
// so overlay filesystems never trip the storage alert.
func MonitoredMount(device, mount string) bool {
	physical := false
	for _, prefix := range devicePrefixes {
		if strings.HasPrefix(device, prefix) {
			physical = true
			break
		}
	}
	if !physical {
		return false
	}
	for _, part := range excludedMountParts {
		if strings.Contains(mount, part) {
			return false
		}
	}
	return true
}
