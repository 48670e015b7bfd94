package service

import (
	"context"

	"github.com/sendloop/wa-platform/internal/models"
)

// CampaignService drives the campaign lifecycle: draft → scheduled /
// sending → paused / completed / failed, plus fan-out on start.
type CampaignService interface {
	Create(ctx context.Context, input CreateCampaignInput) (*models.Campaign, error)
	Get(ctx context.Context, id int64) (*models.Campaign, error)
	Update(ctx context.Context, id int64, input UpdateCampaignInput) (*models.Campaign, error)
	Delete(ctx context.Context, id int64) error
	Start(ctx context.Context, id int64) (*StartResult, error)
	Pause(ctx context.Context, id int64) error
	Resume(ctx context.Context, id int64) error
	Analytics(ctx context.Context, id int64) (*models.CampaignAnalytics, error)
	Stats(ctx context.Context) (*models.CampaignStats, error)
	// DispatchDue starts every scheduled campaign whose time has come.
	DispatchDue(ctx context.Context) error
}

// MessageService handles single-recipient sends.
type MessageService interface {
	// Enqueue validates addressing and queues one template send.
	Enqueue(ctx context.Context, input SendMessageInput) (*models.JobPayload, error)
	// Reply sends a free-form text into an existing conversation.
	Reply(ctx context.Context, conversationID int64, text string) (*models.Message, error)
	GetCircuitBreakerStatus() (state CircuitBreakerState, requests uint32, failures uint32)
}

// SchedulerService wraps the scheduled-campaign dispatch loop.
type SchedulerService interface {
	Start() error
	Stop() error
	IsRunning() bool
}

// HealthService aggregates subsystem health.
type HealthService interface {
	GetHealth(ctx context.Context) *HealthStatus
}
