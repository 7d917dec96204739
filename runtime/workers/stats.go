package workers

import (
	"chat-notify/contract"
	"chat-notify/observability"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// StatsWorker periodically reports the registry size together with the
// process footprint. Sampling is read-only and never touches a session.
type StatsWorker struct {
	log      *slog.Logger
	registry contract.IRegistry
	metrics  *observability.Metrics
	interval time.Duration
}

func NewStatsWorker(log *slog.Logger, registry contract.IRegistry,
	metrics *observability.Metrics, interval time.Duration) *StatsWorker {
	return &StatsWorker{log: log, registry: registry, metrics: metrics, interval: interval}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping stats")
			return nil
		case <-ticker.C:
			w.report(p)
		}
	}
}

func (w *StatsWorker) report(p *process.Process) {
	stats := w.registry.Stats()
	w.metrics.Sessions(stats.Users, stats.Sessions)

	attrs := []any{"users", stats.Users, "sessions", stats.Sessions}
	if rss, cpu, err := selfStats(p); err != nil {
		w.log.Debug("Failed to collect self stats", "error", err)
	} else {
		attrs = append(attrs, "rss_bytes", rss, "cpu_percent", cpu)
	}
	w.log.Info("Notify stats", attrs...)
}

// selfStats retrieves memory and CPU usage for the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
