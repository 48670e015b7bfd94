package models

import "time"

// JobPayload is the wire format carried by the job queue. It is transient:
// it lives only in flight between producer and worker. Exactly one of
// ContactID / PhoneNumber must be set.
type JobPayload struct {
	ContactID    *int64     `json:"contactId,omitempty"`
	PhoneNumber  string     `json:"phoneNumber,omitempty"`
	CampaignID   *int64     `json:"campaignId,omitempty"`
	TemplateName string     `json:"templateName"`
	Params       []string   `json:"params,omitempty"`
	ButtonParams []string   `json:"buttonParams,omitempty"`
	ImageURL     string     `json:"imageUrl,omitempty"`
	DocumentURL  string     `json:"documentUrl,omitempty"`
	Filename     string     `json:"filename,omitempty"`
	Priority     int        `json:"priority,omitempty"`
	RetryCount   int        `json:"retryCount,omitempty"`
	MaxRetries   int        `json:"maxRetries,omitempty"`
	ScheduledAt  *time.Time `json:"scheduledAt,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the payload outlived its expiry deadline.
func (p *JobPayload) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

// JobResult is the structured outcome emitted by the worker for one job.
type JobResult struct {
	Success     bool          `json:"success"`
	WhatsAppID  string        `json:"whatsapp_id,omitempty"`
	PhoneNumber string        `json:"phone_number,omitempty"`
	Error       string        `json:"error,omitempty"`
	Retryable   bool          `json:"retryable"`
	FieldErrors []string      `json:"field_errors,omitempty"`
	Duration    time.Duration `json:"duration"`
}
