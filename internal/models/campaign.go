package models

import "time"

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// Campaign drives a bulk template send to the contacts of its target
// segments. The five counters are monotonically non-decreasing and are
// bumped only by the webhook status path.
type Campaign struct {
	ID             int64          `db:"id" json:"id"`
	Name           string         `db:"name" json:"name"`
	Status         CampaignStatus `db:"status" json:"status"`
	TemplateID     int64          `db:"template_id" json:"template_id"`
	RecipientCount int            `db:"recipient_count" json:"recipient_count"`
	SentCount      int            `db:"sent_count" json:"sent_count"`
	DeliveredCount int            `db:"delivered_count" json:"delivered_count"`
	FailedCount    int            `db:"failed_count" json:"failed_count"`
	ReadCount      int            `db:"read_count" json:"read_count"`
	ClickedCount   int            `db:"clicked_count" json:"clicked_count"`
	ScheduledAt    *time.Time     `db:"scheduled_at" json:"scheduled_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// CampaignAnalytics is derived on read, never stored.
type CampaignAnalytics struct {
	CampaignID     int64   `json:"campaign_id"`
	Status         string  `json:"status"`
	RecipientCount int     `json:"recipient_count"`
	SentCount      int     `json:"sent_count"`
	DeliveredCount int     `json:"delivered_count"`
	FailedCount    int     `json:"failed_count"`
	ReadCount      int     `json:"read_count"`
	ClickedCount   int     `json:"clicked_count"`
	DeliveryRate   float64 `json:"delivery_rate"`
	ReadRate       float64 `json:"read_rate"`
	ClickRate      float64 `json:"click_rate"`
}

// CampaignStats aggregates campaign counts by status.
type CampaignStats struct {
	Total     int `json:"total"`
	Draft     int `json:"draft"`
	Scheduled int `json:"scheduled"`
	Sending   int `json:"sending"`
	Paused    int `json:"paused"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
