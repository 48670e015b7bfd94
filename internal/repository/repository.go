package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// repositoryImpl is the concrete implementation of Repository interface.
type repositoryImpl struct {
	db           *sqlx.DB
	contact      ContactRepository
	conversation ConversationRepository
	message      MessageRepository
	campaign     CampaignRepository
	template     TemplateRepository
	segment      SegmentRepository
}

// NewRepository creates a new repository instance.
func NewRepository(db *sqlx.DB) Repository {
	return &repositoryImpl{
		db:           db,
		contact:      NewContactRepository(db),
		conversation: NewConversationRepository(db),
		message:      NewMessageRepository(db),
		campaign:     NewCampaignRepository(db),
		template:     NewTemplateRepository(db),
		segment:      NewSegmentRepository(db),
	}
}

func (r *repositoryImpl) Contact() ContactRepository           { return r.contact }
func (r *repositoryImpl) Conversation() ConversationRepository { return r.conversation }
func (r *repositoryImpl) Message() MessageRepository           { return r.message }
func (r *repositoryImpl) Campaign() CampaignRepository         { return r.campaign }
func (r *repositoryImpl) Template() TemplateRepository         { return r.template }
func (r *repositoryImpl) Segment() SegmentRepository           { return r.segment }

// Ping checks if the database connection is healthy.
func (r *repositoryImpl) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return r.db.PingContext(ctx)
}
