package repository

import (
	"context"
	"time"

	"github.com/sendloop/wa-platform/internal/models"
)

// Repository interface defines all repository operations.
type Repository interface {
	// Ping checks database connectivity
	Ping() error

	Contact() ContactRepository
	Conversation() ConversationRepository
	Message() MessageRepository
	Campaign() CampaignRepository
	Template() TemplateRepository
	Segment() SegmentRepository
}

// ContactRepository interface defines contact operations.
type ContactRepository interface {
	// UpsertByPhone finds or creates a contact keyed by its canonical
	// phone number. Safe under concurrent calls for the same number.
	UpsertByPhone(ctx context.Context, phoneNumber, name string) (*models.Contact, error)
	GetByID(ctx context.Context, id int64) (*models.Contact, error)
}

// ConversationRepository interface defines conversation operations.
type ConversationRepository interface {
	// FindOrCreate returns the single conversation for a contact,
	// creating it if none exists yet.
	FindOrCreate(ctx context.Context, contactID int64) (*models.Conversation, error)
	GetByID(ctx context.Context, id int64) (*models.Conversation, error)
	MarkRead(ctx context.Context, id int64) error
}

// MessageRepository interface defines message operations.
type MessageRepository interface {
	ExistsByWhatsAppID(ctx context.Context, whatsappID string) (bool, error)
	// CreateInbound atomically inserts the message and bumps the owning
	// conversation's last-message timestamp and unread counter. Returns
	// false without side effects when the provider id was already recorded.
	CreateInbound(ctx context.Context, msg *models.Message) (bool, error)
	// CreateOutbound inserts a sent message and refreshes the
	// conversation's last-message timestamp.
	CreateOutbound(ctx context.Context, msg *models.Message) error
	// UpdateStatusByWhatsAppID updates status and timestamp in place.
	// Returns the message and whether the status actually changed, or a
	// nil message when no row matches the provider id.
	UpdateStatusByWhatsAppID(ctx context.Context, whatsappID string, status models.MessageStatus, timestamp time.Time) (*models.Message, bool, error)
	GetByWhatsAppID(ctx context.Context, whatsappID string) (*models.Message, error)
}

// CampaignRepository interface defines campaign operations.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign, segmentIDs []int64) error
	GetByID(ctx context.Context, id int64) (*models.Campaign, error)
	Update(ctx context.Context, campaign *models.Campaign) error
	Delete(ctx context.Context, id int64) error
	// TransitionStatus flips status only when the current status is one
	// of the allowed source states. Returns false when the guard fails.
	TransitionStatus(ctx context.Context, id int64, from []models.CampaignStatus, to models.CampaignStatus) (bool, error)
	SetRecipientCount(ctx context.Context, id int64, count int) error
	// IncrementCounter atomically bumps one of the monotonic counters.
	IncrementCounter(ctx context.Context, id int64, counter CampaignCounter) error
	// CompleteIfDone flips a sending campaign to completed once every
	// fanned-out job reached a terminal status. Returns true if flipped.
	CompleteIfDone(ctx context.Context, id int64) (bool, error)
	SegmentIDs(ctx context.Context, id int64) ([]int64, error)
	// ReplaceSegments swaps the campaign's target segment set.
	ReplaceSegments(ctx context.Context, id int64, segmentIDs []int64) error
	// DueScheduled lists scheduled campaigns whose scheduled time passed.
	DueScheduled(ctx context.Context, now time.Time) ([]int64, error)
	Stats(ctx context.Context) (*models.CampaignStats, error)
}

// TemplateRepository interface defines template lookups.
type TemplateRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Template, error)
	GetByName(ctx context.Context, name string) (*models.Template, error)
}

// SegmentRepository interface defines segment lookups.
type SegmentRepository interface {
	// ContactsBySegments returns the deduplicated union of contacts
	// across the given segments.
	ContactsBySegments(ctx context.Context, segmentIDs []int64) ([]*models.Contact, error)
	CountContactsBySegments(ctx context.Context, segmentIDs []int64) (int, error)
}

// CampaignCounter names one of the monotonic campaign counters.
type CampaignCounter string

const (
	CounterSent      CampaignCounter = "sent_count"
	CounterDelivered CampaignCounter = "delivered_count"
	CounterFailed    CampaignCounter = "failed_count"
	CounterRead      CampaignCounter = "read_count"
	CounterClicked   CampaignCounter = "clicked_count"
)
