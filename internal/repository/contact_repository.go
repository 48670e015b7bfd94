package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sendloop/wa-platform/internal/models"
)

type contactRepository struct {
	db *sqlx.DB
}

func NewContactRepository(db *sqlx.DB) ContactRepository {
	return &contactRepository{
		db: db,
	}
}

// UpsertByPhone finds or creates a contact by canonical phone number.
// The upsert avoids the read-then-insert race under concurrent webhook
// deliveries for the same new sender.
func (r *contactRepository) UpsertByPhone(ctx context.Context, phoneNumber, name string) (*models.Contact, error) {
	query := `
		INSERT INTO contacts (phone_number, name, status)
		VALUES ($1, NULLIF($2, ''), $3)
		ON CONFLICT (phone_number) DO UPDATE
		SET phone_number = EXCLUDED.phone_number,
		    name         = COALESCE(contacts.name, EXCLUDED.name),
		    updated_at   = now()
		RETURNING id, phone_number, name, email, status, created_at, updated_at
	`

	var contact models.Contact
	err := r.db.GetContext(ctx, &contact, query, phoneNumber, name, models.ContactStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert contact: %w", err)
	}

	return &contact, nil
}

// GetByID retrieves a contact by internal id. Returns nil when not found.
func (r *contactRepository) GetByID(ctx context.Context, id int64) (*models.Contact, error) {
	query := `
		SELECT id, phone_number, name, email, status, created_at, updated_at
		FROM contacts
		WHERE id = $1
	`

	var contact models.Contact
	err := r.db.GetContext(ctx, &contact, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return &contact, nil
}
