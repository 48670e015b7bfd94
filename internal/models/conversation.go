package models

import "time"

// Conversation is the single open thread for a contact. It is created
// lazily on the first inbound or outbound message.
type Conversation struct {
	ID            int64     `db:"id" json:"id"`
	ContactID     int64     `db:"contact_id" json:"contact_id"`
	LastMessageAt time.Time `db:"last_message_at" json:"last_message_at"`
	UnreadCount   int       `db:"unread_count" json:"unread_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
