package leads

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultMonitorInterval = 15 * time.Minute

// Monitor periodically reports the staging backlog. Staged leads persist
// only while delivery is unconfirmed, so a nonzero backlog means failed
// deliveries awaiting operator retry.
type Monitor struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
	cron     *cron.Cron
}

// NewMonitor creates a backlog monitor.
func NewMonitor(log *slog.Logger, store *Store, interval time.Duration) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = defaultMonitorInterval
	}
	return &Monitor{
		store:    store,
		interval: interval,
		logger:   log.With(slog.String("service", "lead_monitor")),
	}
}

// Start schedules the periodic report and runs one immediately.
func (m *Monitor) Start() {
	if m.cron != nil {
		return
	}
	m.cron = cron.New()
	m.cron.Schedule(cron.Every(m.interval), cron.FuncJob(m.report))
	m.cron.Start()
	go m.report()
}

// Stop halts the schedule and waits for a running report to finish.
func (m *Monitor) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
	m.cron = nil
}

func (m *Monitor) report() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := m.store.CountPending(ctx)
	if err != nil {
		m.logger.Warn("count staging backlog failed", slog.Any("error", err))
		return
	}
	if count == 0 {
		m.logger.Debug("staging backlog empty")
		return
	}
	oldest, err := m.store.OldestPending(ctx)
	if err != nil {
		m.logger.Warn("oldest staged lead lookup failed", slog.Any("error", err))
		return
	}
	m.logger.Warn("staged leads awaiting delivery",
		slog.Int64("count", count),
		slog.Duration("oldest_age", time.Since(oldest).Round(time.Second)),
	)
}
