package service

import (
	"time"

	"github.com/sendloop/wa-platform/internal/webhook"
)

// CreateCampaignInput carries the fields accepted on campaign creation.
type CreateCampaignInput struct {
	Name        string     `json:"name"`
	TemplateID  int64      `json:"template_id"`
	SegmentIDs  []int64    `json:"segment_ids"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// UpdateCampaignInput carries the mutable campaign fields. Nil pointers
// leave the stored value untouched.
type UpdateCampaignInput struct {
	Name        *string    `json:"name,omitempty"`
	TemplateID  *int64     `json:"template_id,omitempty"`
	SegmentIDs  []int64    `json:"segment_ids,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// StartResult reports the outcome of a campaign start.
type StartResult struct {
	CampaignID int64 `json:"campaign_id"`
	Recipients int   `json:"recipients"`
	Enqueued   int   `json:"enqueued"`
}

// SendMessageInput is the body of a single-recipient template send.
// Exactly one of ContactID and PhoneNumber addresses the recipient.
type SendMessageInput struct {
	ContactID    *int64   `json:"contact_id,omitempty"`
	PhoneNumber  string   `json:"phone_number,omitempty"`
	TemplateName string   `json:"template_name"`
	Params       []string `json:"params,omitempty"`
	ButtonParams []string `json:"button_params,omitempty"`
	ImageURL     string   `json:"image_url,omitempty"`
	DocumentURL  string   `json:"document_url,omitempty"`
	Filename     string   `json:"filename,omitempty"`
}

// HealthStatus is the aggregate health document served on /health.
type HealthStatus struct {
	Status              string         `json:"status"`
	DatabaseStatus      string         `json:"database_status"`
	RedisStatus         string         `json:"redis_status"`
	SchedulerStatus     string         `json:"scheduler_status"`
	CircuitBreakerState string         `json:"circuit_breaker_state"`
	Webhook             webhook.Status `json:"webhook"`
}

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusUp        = "up"
	StatusDown      = "down"
	StatusRunning   = "running"
	StatusStopped   = "stopped"
)
