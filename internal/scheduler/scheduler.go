package scheduler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/pm25-data-api/internal/metrics"
	"github.com/i474232898/pm25-data-api/internal/pm25"
)

// Scheduler periodically publishes dataset gauges from the current table.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *pm25.Service
	interval  time.Duration
}

// New creates a new Scheduler.
func New(interval time.Duration, service *pm25.Service) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		interval:  interval,
	}
}

// Start schedules the stats job and starts the underlying scheduler. The
// job also runs once immediately.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		slog.Info("scheduler: stats interval disabled; publishing once")
		s.refresh()
		return nil
	}

	_, err := s.scheduler.Every(s.interval).StartImmediately().Do(s.refresh)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) refresh() {
	st, err := s.service.Stats()
	if errors.Is(err, pm25.ErrEmptyTable) {
		metrics.SetDataset(0, 0, 0, 0)
		slog.Warn("scheduler: table is empty")
		return
	}
	if err != nil {
		slog.Error("scheduler: stats failed", "err", err)
		return
	}
	metrics.SetDataset(st.Count, st.Min, st.Max, st.Average)
	slog.Debug("scheduler: dataset gauges refreshed", "records", st.Count, "min", st.Min, "max", st.Max)
}
