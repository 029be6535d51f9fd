package jobs

import (
	"context"
	"time"

	"github.com/jinkaiteo/edms/internal/service"
	"github.com/sirupsen/logrus"
)

// SweepTask runs one of the scheduled-date sweeps.
type SweepTask struct {
	name    string
	cron    string
	timeout time.Duration
	sweep   func(ctx context.Context) (service.SweepResult, error)
}

// NewEffectiveSweepTask promotes pending-effective documents on schedule.
func NewEffectiveSweepTask(schedule string, timeout time.Duration, sweeper *service.Sweeper) *SweepTask {
	return &SweepTask{
		name:    "sweep_" + service.SweepEffective,
		cron:    schedule,
		timeout: timeout,
		sweep:   sweeper.PromoteEffective,
	}
}

// NewObsolescenceSweepTask completes due scheduled obsolescence on schedule.
func NewObsolescenceSweepTask(schedule string, timeout time.Duration, sweeper *service.Sweeper) *SweepTask {
	return &SweepTask{
		name:    "sweep_" + service.SweepObsolescence,
		cron:    schedule,
		timeout: timeout,
		sweep:   sweeper.PromoteObsolete,
	}
}

func (s *SweepTask) Name() string {
	return s.name
}

func (s *SweepTask) Schedule() string {
	return s.cron
}

func (s *SweepTask) Run() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if _, err := s.sweep(ctx); err != nil {
		logrus.WithField("task", s.name).WithError(err).Error("sweep failed")
	}
}
