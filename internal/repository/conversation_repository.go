package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sendloop/wa-platform/internal/models"
)

type conversationRepository struct {
	db *sqlx.DB
}

func NewConversationRepository(db *sqlx.DB) ConversationRepository {
	return &conversationRepository{
		db: db,
	}
}

// FindOrCreate returns the contact's single conversation, creating it on
// first use. The conflict clause keeps concurrent creation races benign.
func (r *conversationRepository) FindOrCreate(ctx context.Context, contactID int64) (*models.Conversation, error) {
	query := `
		INSERT INTO conversations (contact_id)
		VALUES ($1)
		ON CONFLICT (contact_id) DO UPDATE
		SET updated_at = now()
		RETURNING id, contact_id, last_message_at, unread_count, created_at, updated_at
	`

	var conversation models.Conversation
	err := r.db.GetContext(ctx, &conversation, query, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create conversation: %w", err)
	}

	return &conversation, nil
}

// GetByID retrieves a conversation. Returns nil when not found.
func (r *conversationRepository) GetByID(ctx context.Context, id int64) (*models.Conversation, error) {
	query := `
		SELECT id, contact_id, last_message_at, unread_count, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`

	var conversation models.Conversation
	err := r.db.GetContext(ctx, &conversation, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return &conversation, nil
}

// MarkRead resets the unread counter.
func (r *conversationRepository) MarkRead(ctx context.Context, id int64) error {
	query := `UPDATE conversations SET unread_count = 0, updated_at = now() WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark conversation read: %w", err)
	}

	return nil
}
