package repository_test

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

func insertTestContact(db *sqlx.DB, phoneNumber, name string) (int64, error) {
	var id int64
	err := db.QueryRow(`
		INSERT INTO contacts (phone_number, name, status)
		VALUES ($1, $2, 'active')
		RETURNING id
	`, phoneNumber, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert test contact: %w", err)
	}

	return id, nil
}

func insertTestTemplate(db *sqlx.DB, name, status string) (int64, error) {
	var id int64
	err := db.QueryRow(`
		INSERT INTO templates (name, language, status)
		VALUES ($1, 'en', $2)
		RETURNING id
	`, name, status).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert test template: %w", err)
	}

	return id, nil
}

func insertTestSegment(db *sqlx.DB, name string, contactIDs ...int64) (int64, error) {
	var id int64
	err := db.QueryRow(`
		INSERT INTO segments (name)
		VALUES ($1)
		RETURNING id
	`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert test segment: %w", err)
	}

	for _, contactID := range contactIDs {
		if _, err := db.Exec(`
			INSERT INTO segment_contacts (segment_id, contact_id)
			VALUES ($1, $2)
		`, id, contactID); err != nil {
			return 0, fmt.Errorf("failed to attach test contact: %w", err)
		}
	}

	return id, nil
}

func insertTestCampaign(db *sqlx.DB, name, status string, templateID int64, scheduledAt *time.Time) (int64, error) {
	var id int64
	err := db.QueryRow(`
		INSERT INTO campaigns (name, status, template_id, scheduled_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, name, status, templateID, scheduledAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert test campaign: %w", err)
	}

	return id, nil
}
