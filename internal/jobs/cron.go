package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// overdueSweeper marks stale pending sessions as postponed.
type overdueSweeper interface {
	SweepOverdue(ctx context.Context, before time.Time) (int64, error)
}

// Config controls the scheduled maintenance jobs.
type Config struct {
	OverdueSweepSpec string
	Timeout          time.Duration
}

// Manager runs cron-driven maintenance jobs.
type Manager struct {
	cron     *cron.Cron
	sessions overdueSweeper
	logger   *zap.Logger
	location *time.Location
	timeout  time.Duration

	clock func() time.Time
}

// NewManager constructs the job manager. The location decides when a session
// counts as overdue.
func NewManager(sessions overdueSweeper, location *time.Location, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &Manager{
		cron:     cron.New(cron.WithLocation(location)),
		sessions: sessions,
		logger:   logger,
		location: location,
		timeout:  time.Minute,
		clock:    time.Now,
	}
}

// Start registers the jobs and launches the scheduler.
func (m *Manager) Start(cfg Config) error {
	if cfg.Timeout > 0 {
		m.timeout = cfg.Timeout
	}
	spec := cfg.OverdueSweepSpec
	if spec == "" {
		spec = "0 3 * * *"
	}

	if _, err := m.cron.AddFunc(spec, m.sweepOverdue); err != nil {
		return err
	}

	m.cron.Start()
	m.logger.Info("maintenance jobs started", zap.String("overdue_sweep", spec))
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (m *Manager) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.logger.Info("maintenance jobs stopped")
}

func (m *Manager) sweepOverdue() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	now := m.clock().In(m.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, m.location)

	affected, err := m.sessions.SweepOverdue(ctx, today)
	if err != nil {
		m.logger.Error("overdue sweep failed", zap.Error(err))
		return
	}
	m.logger.Info("overdue sweep completed", zap.Int64("sessions_postponed", affected))
}
