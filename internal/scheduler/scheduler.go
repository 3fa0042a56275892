package scheduler

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/climate-sources/internal/license"
	"github.com/i474232898/climate-sources/internal/metrics"
)

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = time.Hour

// ReportSource produces license status reports.
type ReportSource interface {
	Report() license.StatusReport
}

// Scheduler periodically logs the license status report. It only observes; requests are
// never gated on it.
type Scheduler struct {
	scheduler *gocron.Scheduler
	source    ReportSource
	interval  time.Duration
	log       *slog.Logger
	metrics   *metrics.Metrics
}

// New creates a new Scheduler.
func New(source ReportSource, interval time.Duration, log *slog.Logger, m *metrics.Metrics) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		source:    source,
		interval:  interval,
		log:       log.With("component", "license_monitor"),
		metrics:   m,
	}
}

// Start schedules the monitor job, which also runs once immediately.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.interval).Do(func() { s.Check() }); err != nil {
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

// Check builds one report, publishes it as metrics and logs anything needing attention.
func (s *Scheduler) Check() license.StatusReport {
	rep := s.source.Report()

	counts := make(map[string]int, len(rep.ByStatus))
	for status, ids := range rep.ByStatus {
		counts[string(status)] = len(ids)
	}
	s.metrics.SetLicenses(counts)

	s.log.Info("license status report",
		"total", rep.Total,
		"active", len(rep.ByStatus[license.StatusActive]),
		"expiring_soon", len(rep.ExpiringSoon))

	for _, l := range rep.ExpiringSoon {
		s.log.Warn("license expiring soon",
			"license", l.ID, "provider", l.ProviderID, "expiry", l.Expiry)
	}
	for _, status := range []license.Status{license.StatusExpired, license.StatusRevoked} {
		if ids := rep.ByStatus[status]; len(ids) > 0 {
			s.log.Warn("licenses not usable", "status", status, "licenses", ids)
		}
	}
	return rep
}
