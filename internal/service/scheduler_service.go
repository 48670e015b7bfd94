package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sendloop/wa-platform/internal/config"
	"github.com/sendloop/wa-platform/internal/scheduler"
)

type schedulerService struct {
	scheduler *scheduler.Scheduler
}

// NewSchedulerService wires the interval scheduler to the campaign
// dispatch sweep, so due scheduled campaigns start without operator
// action.
func NewSchedulerService(
	cfg *config.Config,
	campaigns CampaignService,
	logger *zap.Logger,
) SchedulerService {
	interval := time.Duration(cfg.Scheduler.IntervalMinutes) * time.Minute
	return &schedulerService{
		scheduler: scheduler.NewScheduler(logger, "campaign-dispatch", interval, campaigns.DispatchDue),
	}
}

func (s *schedulerService) Start() error {
	return s.scheduler.Start(context.Background())
}

func (s *schedulerService) Stop() error {
	return s.scheduler.Stop()
}

func (s *schedulerService) IsRunning() bool {
	return s.scheduler.IsRunning()
}
