package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nomadops/nomadmon/internal/config"
	"github.com/nomadops/nomadmon/internal/docker"
	"github.com/nomadops/nomadmon/internal/metrics"
	"github.com/nomadops/nomadmon/internal/model"
	"github.com/nomadops/nomadmon/internal/monitor"
	"github.com/nomadops/nomadmon/internal/notify"
	"github.com/nomadops/nomadmon/internal/storage"
)

// Version info set via ldflags at build time:
//
//	go build -ldflags "-X main.version=1.0.0"
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "nomadmon",
		Short:         "Lightweight host and container monitor with ntfy alerting",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon()
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Take one metric sample and print it (no notifications)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(os.Stdout, metrics.NewHostProvider(zap.NewNop()))
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runDaemon() error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return err
	}

	logger.Info("Server monitor starting",
		zap.String("hostname", cfg.Hostname),
		zap.String("version", version),
		zap.Duration("interval", cfg.CheckInterval))

	history, err := storage.NewSQLiteAlertHistory(logger, cfg.HistoryDB)
	if err != nil {
		logger.Error("Failed to open alert history", zap.Error(err))
		return err
	}
	defer history.Close()

	reports, err := monitor.NewReportScheduler(cfg.DailyTime, cfg.Location)
	if err != nil {
		logger.Error("Failed to build report schedules", zap.Error(err))
		return err
	}

	notifier := notify.NewNtfyNotifier(cfg.NtfyURL, cfg.NtfyToken, cfg.Hostname, logger)
	provider := metrics.NewHostProvider(logger)
	watcher := docker.NewEventWatcher(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	go watcher.Run(ctx)

	core := monitor.NewCore(
		monitor.CoreConfig{
			CheckInterval: cfg.CheckInterval,
			Limits: model.Limits{
				CPUTemp: cfg.TempLimit,
				RAM:     cfg.RAMLimit,
				Disk:    cfg.DiskLimit,
			},
		},
		provider,
		notifier,
		history,
		reports,
		watcher.Events(),
		logger,
	)

	if err := core.Run(ctx); err != nil {
		logger.Error("Monitor failed", zap.Error(err))
		return err
	}

	logger.Info("Shut down gracefully")
	return nil
}

// runCheck prints one sample for operator smoke tests. It touches the
// metric provider only; nothing is ever posted to ntfy.
func runCheck(w io.Writer, provider metrics.Provider) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sample, err := provider.Sample(ctx)
	if err != nil {
		return fmt.Errorf("failed to sample metrics: %w", err)
	}

	if sample.HasCPUTemp {
		fmt.Fprintf(w, "CPU temp: %.1fC\n", sample.CPUTemp)
	} else {
		fmt.Fprintln(w, "CPU temp: N/A")
	}
	if sample.HasRAM {
		fmt.Fprintf(w, "RAM:      %.1f%%\n", sample.RAMPct)
	} else {
		fmt.Fprintln(w, "RAM:      N/A")
	}
	fmt.Fprintf(w, "Load:     %.2f\n", sample.LoadAvg)

	mounts := make([]string, 0, len(sample.Disks))
	for mount := range sample.Disks {
		mounts = append(mounts, mount)
	}
	sort.Strings(mounts)
	for _, mount := range mounts {
		fmt.Fprintf(w, "Disk %s: %.1f%%\n", mount, sample.Disks[mount])
	}
	if len(mounts) == 0 {
		fmt.Fprintln(w, "Disks:    none detected")
	}
	return nil
}
