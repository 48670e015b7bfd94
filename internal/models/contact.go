package models

import (
	"database/sql"
	"time"
)

type ContactStatus string

const (
	ContactStatusActive   ContactStatus = "active"
	ContactStatusInactive ContactStatus = "inactive"
	ContactStatusPending  ContactStatus = "pending"
)

// Contact is identified externally by its canonical +-prefixed phone number.
type Contact struct {
	ID          int64          `db:"id" json:"id"`
	PhoneNumber string         `db:"phone_number" json:"phone_number"`
	Name        sql.NullString `db:"name" json:"name,omitempty"`
	Email       sql.NullString `db:"email" json:"email,omitempty"`
	Status      ContactStatus  `db:"status" json:"status"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}
