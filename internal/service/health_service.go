package service

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/sendloop/wa-platform/internal/repository"
	"github.com/sendloop/wa-platform/internal/webhook"
)

type healthService struct {
	repo           repository.Repository
	redisClient    *redis.Client
	scheduler      SchedulerService
	messageService MessageService
	monitor        *webhook.Monitor
}

// NewHealthService aggregates subsystem health for the health endpoint.
func NewHealthService(
	repo repository.Repository,
	redisClient *redis.Client,
	scheduler SchedulerService,
	messageService MessageService,
	monitor *webhook.Monitor,
) HealthService {
	return &healthService{
		repo:           repo,
		redisClient:    redisClient,
		scheduler:      scheduler,
		messageService: messageService,
		monitor:        monitor,
	}
}

// GetHealth checks the database, Redis, the dispatch scheduler, the
// provider circuit breaker and the webhook monitor. Overall status is
// unhealthy when any hard dependency is down.
func (s *healthService) GetHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:          StatusHealthy,
		DatabaseStatus:  StatusUp,
		RedisStatus:     StatusUp,
		SchedulerStatus: StatusStopped,
	}

	if err := s.repo.Ping(); err != nil {
		status.DatabaseStatus = StatusDown
		status.Status = StatusUnhealthy
	}

	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		status.RedisStatus = StatusDown
		status.Status = StatusUnhealthy
	}

	if s.scheduler != nil && s.scheduler.IsRunning() {
		status.SchedulerStatus = StatusRunning
	}

	state, _, _ := s.messageService.GetCircuitBreakerStatus()
	status.CircuitBreakerState = string(state)

	status.Webhook = s.monitor.Snapshot()

	return status
}
