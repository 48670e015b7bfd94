package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sendloop/wa-platform/internal/models"
)

type messageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepository{
		db: db,
	}
}

// ExistsByWhatsAppID reports whether a provider message id is already recorded.
func (r *messageRepository) ExistsByWhatsAppID(ctx context.Context, whatsappID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM messages WHERE whatsapp_id = $1)`

	err := r.db.GetContext(ctx, &exists, query, whatsappID)
	if err != nil {
		return false, fmt.Errorf("failed to check message existence: %w", err)
	}

	return exists, nil
}

// CreateInbound inserts an inbound message and bumps the conversation's
// last-message timestamp and unread counter in one transaction. The partial
// unique index on whatsapp_id is the dedup authority: a replayed delivery
// inserts nothing and the conversation is left untouched.
func (r *messageRepository) CreateInbound(ctx context.Context, msg *models.Message) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	insert := `
		INSERT INTO messages (conversation_id, whatsapp_id, direction, type, body, status, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (whatsapp_id) WHERE whatsapp_id IS NOT NULL DO NOTHING
		RETURNING id
	`

	var id int64
	err = tx.GetContext(ctx, &id, insert,
		msg.ConversationID, msg.WhatsAppID, models.MessageDirectionInbound,
		msg.Type, msg.Body, msg.Status, msg.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		// Replayed delivery; nothing inserted.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert inbound message: %w", err)
	}
	msg.ID = id

	bump := `
		UPDATE conversations
		SET last_message_at = $2,
		    unread_count    = unread_count + 1,
		    updated_at      = now()
		WHERE id = $1
	`

	if _, err := tx.ExecContext(ctx, bump, msg.ConversationID, msg.Timestamp); err != nil {
		return false, fmt.Errorf("failed to bump conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit inbound message: %w", err)
	}

	return true, nil
}

// CreateOutbound inserts a sent message and refreshes the conversation's
// last-message timestamp. The unread counter is inbound-only.
func (r *messageRepository) CreateOutbound(ctx context.Context, msg *models.Message) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	insert := `
		INSERT INTO messages (conversation_id, campaign_id, whatsapp_id, direction, type, body, status, error, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err = tx.GetContext(ctx, &msg.ID, insert,
		msg.ConversationID, msg.CampaignID, msg.WhatsAppID, models.MessageDirectionOutbound,
		msg.Type, msg.Body, msg.Status, msg.Error, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert outbound message: %w", err)
	}

	touch := `UPDATE conversations SET last_message_at = $2, updated_at = now() WHERE id = $1`

	if _, err := tx.ExecContext(ctx, touch, msg.ConversationID, msg.Timestamp); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit outbound message: %w", err)
	}

	return nil
}

// statusRankSQL orders delivery statuses so a late or replayed event can
// never move a message backwards: queued < sent < delivered < read, with
// failed terminal.
const statusRankSQL = `
	CASE %s
		WHEN 'queued'    THEN 1
		WHEN 'sent'      THEN 2
		WHEN 'delivered' THEN 3
		WHEN 'read'      THEN 4
		WHEN 'failed'    THEN 5
		ELSE 0
	END`

// UpdateStatusByWhatsAppID advances status and timestamp in place, matched
// on the provider message id. Only forward transitions apply: a replayed or
// out-of-order event leaves the row alone and comes back with the advanced
// flag false, so callers keep counter bumps at-most-once.
func (r *messageRepository) UpdateStatusByWhatsAppID(ctx context.Context, whatsappID string, status models.MessageStatus, timestamp time.Time) (*models.Message, bool, error) {
	query := fmt.Sprintf(`
		UPDATE messages
		SET status     = $2,
		    timestamp  = $3,
		    updated_at = now()
		WHERE whatsapp_id = $1
		  AND %s < %s
		RETURNING id, conversation_id, campaign_id, whatsapp_id, direction, type, body, status, error, timestamp, created_at, updated_at
	`, fmt.Sprintf(statusRankSQL, "status"), fmt.Sprintf(statusRankSQL, "$2::text"))

	var msg models.Message
	err := r.db.GetContext(ctx, &msg, query, whatsappID, status, timestamp)
	if err == nil {
		return &msg, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to update message status: %w", err)
	}

	// No row advanced: either the id is unknown or the stored status is
	// already at or past this one.
	msgAtRest, err := r.GetByWhatsAppID(ctx, whatsappID)
	if err != nil {
		return nil, false, err
	}
	return msgAtRest, false, nil
}

// GetByWhatsAppID retrieves a message by provider id. Returns nil when not found.
func (r *messageRepository) GetByWhatsAppID(ctx context.Context, whatsappID string) (*models.Message, error) {
	query := `
		SELECT id, conversation_id, campaign_id, whatsapp_id, direction, type, body, status, error, timestamp, created_at, updated_at
		FROM messages
		WHERE whatsapp_id = $1
	`

	var msg models.Message
	err := r.db.GetContext(ctx, &msg, query, whatsappID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &msg, nil
}
