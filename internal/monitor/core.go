package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nomadops/nomadmon/internal/metrics"
	"github.com/nomadops/nomadmon/internal/model"
	"github.com/nomadops/nomadmon/internal/notify"
	"github.com/nomadops/nomadmon/internal/storage"
)

const (
	sampleTimeout = 10 * time.Second
	sendGrace     = 15 * time.Second
	retention     = 90 * 24 * time.Hour
	pruneInterval = 24 * time.Hour
)

// CoreConfig holds the orchestrator settings
type CoreConfig struct {
	CheckInterval time.Duration
	Limits        model.Limits
}

// Core runs the monitor: the fixed-interval polling loop with
// threshold evaluation and scheduled reports, plus a second goroutine
// consuming container events. AlertStates and the last-known sample
// are written only by the polling task; the event task talks straight
// to the notifier and the ledger, so the two need no lock.
type Core struct {
	logger   *zap.Logger
	cfg      CoreConfig
	provider metrics.Provider
	notifier notify.Notifier
	history  storage.AlertHistory
	reports  *ReportScheduler
	events   <-chan model.ContainerEvent

	states     AlertStates
	lastSample model.MetricSample
	hasSample  bool
	lastPrune  time.Time
	wg         sync.WaitGroup
}

// NewCore creates the orchestrator
func NewCore(
	cfg CoreConfig,
	provider metrics.Provider,
	notifier notify.Notifier,
	history storage.AlertHistory,
	reports *ReportScheduler,
	events <-chan model.ContainerEvent,
	logger *zap.Logger,
) *Core {
	return &Core{
		logger:   logger.Named("monitor"),
		cfg:      cfg,
		provider: provider,
		notifier: notifier,
		history:  history,
		reports:  reports,
		events:   events,
		states:   NewAlertStates(),
	}
}

// Run executes the monitor until ctx is cancelled. The current tick
// always completes; a new one is never started after cancellation.
func (c *Core) Run(ctx context.Context) error {
	if err := c.seedReportState(ctx); err != nil {
		return fmt.Errorf("failed to seed report state: %w", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeEvents(ctx)
	}()

	c.logger.Info("Monitor loop started",
		zap.Duration("interval", c.cfg.CheckInterval))

	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	c.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			// The event task may be mid-send; its sends are bounded by
			// sendGrace, so this wait is too.
			c.wg.Wait()
			c.logger.Info("Monitor loop stopped")
			return nil
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// seedReportState initializes last-fired instants on first run so the
// first report goes out at the next scheduled occurrence, not at boot.
func (c *Core) seedReportState(ctx context.Context) error {
	now := time.Now()
	for _, kind := range []model.ReportKind{model.ReportDaily, model.ReportWeekly} {
		_, ok, err := c.history.LastReport(ctx, kind)
		if err != nil {
			return err
		}
		if !ok {
			if err := c.history.MarkReport(ctx, kind, now); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Core) tick(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, sampleTimeout)
	sample, err := c.provider.Sample(sctx)
	cancel()

	if err != nil {
		c.logger.Warn("Metric read failed, skipping resource checks this tick",
			zap.Error(err))
	} else {
		c.lastSample = sample
		c.hasSample = true

		decisions := Evaluate(sample, c.cfg.Limits, c.states)
		for _, decision := range decisions {
			c.handleDecision(ctx, decision)
		}
		if len(decisions) == 0 {
			c.logHealth(sample)
		}
	}

	c.runReports(ctx)
	c.maybePrune(ctx)
}

func (c *Core) logHealth(sample model.MetricSample) {
	fields := []zap.Field{
		zap.Float64("ram_pct", sample.RAMPct),
		zap.Float64("load", sample.LoadAvg),
	}
	if sample.HasCPUTemp {
		fields = append(fields, zap.Float64("cpu_temp", sample.CPUTemp))
	}
	if mount, pct, ok := sample.DiskMax(); ok {
		fields = append(fields, zap.String("fullest_mount", mount), zap.Float64("disk_pct", pct))
	}
	c.logger.Info("Health OK", fields...)
}

func (c *Core) handleDecision(ctx context.Context, decision model.AlertDecision) {
	notif := notificationFor(decision)

	record := &storage.AlertRecord{
		ID:        uuid.New().String(),
		Kind:      decision.Kind,
		Value:     decision.Value,
		Threshold: decision.Threshold,
		Message:   notif.Message,
		CreatedAt: decision.FiredAt,
	}
	if decision.Kind == model.AlertKindDisk {
		for mount := range decision.Mounts {
			if record.Mount == "" || decision.Mounts[mount] > decision.Mounts[record.Mount] {
				record.Mount = mount
			}
		}
	}
	if err := c.history.Record(ctx, record); err != nil {
		c.logger.Error("Failed to record alert", zap.Error(err))
	}

	c.logger.Warn("Threshold breached",
		zap.String("kind", string(decision.Kind)),
		zap.Float64("value", decision.Value),
		zap.Float64("threshold", decision.Threshold))

	c.send(ctx, notif)
}

// consumeEvents is the event-handling task. Crashes notify immediately
// with no debounce; every crash is a distinct incident.
func (c *Core) consumeEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-c.events:
			if !ok {
				return
			}
			if !event.Crashed() {
				continue
			}
			c.handleCrash(ctx, event)
		}
	}
}

func (c *Core) handleCrash(ctx context.Context, event model.ContainerEvent) {
	c.logger.Warn("Container crashed",
		zap.String("container", event.Name),
		zap.Int("exit_code", event.ExitCode))

	notif := crashNotification(event)

	record := &storage.AlertRecord{
		ID:        uuid.New().String(),
		Kind:      model.AlertKindCrash,
		Value:     float64(event.ExitCode),
		Message:   notif.Message,
		CreatedAt: event.Timestamp,
	}
	if err := c.history.Record(ctx, record); err != nil {
		c.logger.Error("Failed to record crash", zap.Error(err))
	}

	c.send(ctx, notif)
}

func (c *Core) runReports(ctx context.Context) {
	now := time.Now()

	lastDaily, err := c.lastReport(ctx, model.ReportDaily, now)
	if err != nil {
		c.logger.Error("Failed to load daily report state", zap.Error(err))
		return
	}
	lastWeekly, err := c.lastReport(ctx, model.ReportWeekly, now)
	if err != nil {
		c.logger.Error("Failed to load weekly report state", zap.Error(err))
		return
	}

	for _, kind := range c.reports.DueKinds(now, lastDaily, lastWeekly) {
		since := lastDaily
		if kind == model.ReportWeekly {
			since = lastWeekly
		}
		c.sendReport(ctx, kind, since, now)
	}
}

// lastReport loads when a report kind last fired. A missing row is
// reseeded to now and treated as just-fired: a zero lastFired would
// otherwise make the kind due immediately.
func (c *Core) lastReport(ctx context.Context, kind model.ReportKind, now time.Time) (time.Time, error) {
	at, ok, err := c.history.LastReport(ctx, kind)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		if err := c.history.MarkReport(ctx, kind, now); err != nil {
			return time.Time{}, err
		}
		return now, nil
	}
	return at, nil
}

func (c *Core) sendReport(ctx context.Context, kind model.ReportKind, since, now time.Time) {
	alerts, crashes, err := c.history.CountSince(ctx, since)
	if err != nil {
		c.logger.Error("Failed to count history for report", zap.Error(err))
	}

	title := "Daily Status"
	if kind == model.ReportWeekly {
		title = "Weekly Status"
	}

	c.send(ctx, model.Notification{
		Title:    title,
		Message:  c.summaryBody(alerts, crashes),
		Priority: model.PriorityNormal,
		Tags:     "calendar",
	})

	// Advancing the mark is what makes DueKinds idempotent; it happens
	// even when delivery failed so a flaky push never duplicates reports.
	if err := c.history.MarkReport(ctx, kind, now); err != nil {
		c.logger.Error("Failed to mark report as fired", zap.Error(err))
	}

	c.logger.Info("Report sent", zap.String("kind", string(kind)))
}

func (c *Core) summaryBody(alerts, crashes int) string {
	var b strings.Builder
	b.WriteString("Status: Operational\n")

	if !c.hasSample {
		b.WriteString("No sample collected yet\n")
	} else {
		sample := c.lastSample
		if sample.HasCPUTemp {
			fmt.Fprintf(&b, "Temp: %.1fC\n", sample.CPUTemp)
		} else {
			b.WriteString("Temp: N/A\n")
		}
		fmt.Fprintf(&b, "RAM: %.1f%%\n", sample.RAMPct)
		fmt.Fprintf(&b, "Load: %.2f\n", sample.LoadAvg)

		b.WriteString("\nDisks:\n")
		if len(sample.Disks) == 0 {
			b.WriteString("None detected\n")
		} else {
			mounts := make([]string, 0, len(sample.Disks))
			for mount := range sample.Disks {
				mounts = append(mounts, mount)
			}
			sort.Strings(mounts)
			for _, mount := range mounts {
				fmt.Fprintf(&b, "- %s: %.1f%%\n", mount, sample.Disks[mount])
			}
		}
	}

	fmt.Fprintf(&b, "\nAlerts since last report: %d\n", alerts)
	fmt.Fprintf(&b, "Container crashes: %d", crashes)
	return b.String()
}

// send delivers one notification with a bounded deadline that survives
// shutdown cancellation, so an in-flight push finishes or times out
// instead of being dropped mid-request.
func (c *Core) send(ctx context.Context, notif model.Notification) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendGrace)
	defer cancel()

	if err := c.notifier.Send(sctx, notif); err != nil {
		c.logger.Error("Failed to send notification",
			zap.String("title", notif.Title),
			zap.Error(err))
	}
}

func (c *Core) maybePrune(ctx context.Context) {
	now := time.Now()
	if now.Sub(c.lastPrune) < pruneInterval {
		return
	}
	c.lastPrune = now
	if err := c.history.DeleteBefore(ctx, now.Add(-retention)); err != nil {
		c.logger.Error("Failed to prune alert history", zap.Error(err))
	}
}

func notificationFor(decision model.AlertDecision) model.Notification {
	switch decision.Kind {
	case model.AlertKindCPUTemp:
		return model.Notification{
			Title:    "CRITICAL ALERT",
			Message:  fmt.Sprintf("CPU Overheat: %.1fC", decision.Value),
			Priority: model.PriorityUrgent,
			Tags:     "fire,warning",
		}
	case model.AlertKindRAM:
		return model.Notification{
			Title:    "CRITICAL ALERT",
			Message:  fmt.Sprintf("High RAM Usage: %.1f%%", decision.Value),
			Priority: model.PriorityUrgent,
			Tags:     "fire,warning",
		}
	case model.AlertKindDisk:
		mounts := make([]string, 0, len(decision.Mounts))
		for mount := range decision.Mounts {
			mounts = append(mounts, mount)
		}
		sort.Strings(mounts)
		lines := make([]string, 0, len(mounts))
		for _, mount := range mounts {
			lines = append(lines, fmt.Sprintf("Low Space on %s: %.1f%%", mount, decision.Mounts[mount]))
		}
		return model.Notification{
			Title:    "STORAGE ALERT",
			Message:  strings.Join(lines, "\n"),
			Priority: model.PriorityHigh,
			Tags:     "floppy_disk",
		}
	}
	return model.Notification{
		Title:    "ALERT",
		Message:  fmt.Sprintf("%s: %.1f (limit %.1f)", decision.Kind, decision.Value, decision.Threshold),
		Priority: model.PriorityHigh,
	}
}

func crashNotification(event model.ContainerEvent) model.Notification {
	return model.Notification{
		Title:    "CONTAINER CRASHED",
		Message:  fmt.Sprintf("Container '%s' crashed (Exit Code: %d)", event.Name, event.ExitCode),
		Priority: model.PriorityUrgent,
		Tags:     "skull,warning",
	}
}
