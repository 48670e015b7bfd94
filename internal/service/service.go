package service

import (
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/sendloop/wa-platform/internal/config"
	"github.com/sendloop/wa-platform/internal/queue"
	"github.com/sendloop/wa-platform/internal/repository"
	"github.com/sendloop/wa-platform/internal/webhook"
	"github.com/sendloop/wa-platform/internal/whatsapp"
)

// Service bundles the application services behind their interfaces.
type Service struct {
	Campaign  CampaignService
	Message   MessageService
	Scheduler SchedulerService
	Health    HealthService
}

func NewService(
	cfg *config.Config,
	repo repository.Repository,
	publisher queue.Publisher,
	client whatsapp.Client,
	redisClient *redis.Client,
	monitor *webhook.Monitor,
	logger *zap.Logger,
) *Service {
	campaignService := NewCampaignService(cfg, repo, publisher, logger)
	messageService := NewMessageService(cfg, repo, publisher, client, logger)
	schedulerService := NewSchedulerService(cfg, campaignService, logger)
	healthService := NewHealthService(repo, redisClient, schedulerService, messageService, monitor)

	return &Service{
		Campaign:  campaignService,
		Message:   messageService,
		Scheduler: schedulerService,
		Health:    healthService,
	}
}
