package models

import (
	"database/sql"
	"time"
)

type MessageDirection string

const (
	MessageDirectionInbound  MessageDirection = "inbound"
	MessageDirectionOutbound MessageDirection = "outbound"
)

type MessageStatus string

const (
	MessageStatusQueued    MessageStatus = "queued"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// Message represents a single inbound or outbound WhatsApp message.
// WhatsAppID is the provider-assigned id and the deduplication key:
// no two rows may share the same non-null WhatsAppID.
type Message struct {
	ID             int64            `db:"id" json:"id"`
	ConversationID int64            `db:"conversation_id" json:"conversation_id"`
	CampaignID     sql.NullInt64    `db:"campaign_id" json:"campaign_id,omitempty"`
	WhatsAppID     sql.NullString   `db:"whatsapp_id" json:"whatsapp_id,omitempty"`
	Direction      MessageDirection `db:"direction" json:"direction"`
	Type           string           `db:"type" json:"type"`
	Body           string           `db:"body" json:"body"`
	Status         MessageStatus    `db:"status" json:"status"`
	Error          sql.NullString   `db:"error" json:"error,omitempty"`
	Timestamp      time.Time        `db:"timestamp" json:"timestamp"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}
