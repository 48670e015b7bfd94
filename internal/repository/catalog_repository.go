package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sendloop/wa-platform/internal/models"
)

type templateRepository struct {
	db *sqlx.DB
}

func NewTemplateRepository(db *sqlx.DB) TemplateRepository {
	return &templateRepository{
		db: db,
	}
}

func (r *templateRepository) GetByID(ctx context.Context, id int64) (*models.Template, error) {
	query := `SELECT id, name, language, status, created_at, updated_at FROM templates WHERE id = $1`

	var template models.Template
	err := r.db.GetContext(ctx, &template, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return &template, nil
}

func (r *templateRepository) GetByName(ctx context.Context, name string) (*models.Template, error) {
	query := `SELECT id, name, language, status, created_at, updated_at FROM templates WHERE name = $1`

	var template models.Template
	err := r.db.GetContext(ctx, &template, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return &template, nil
}

type segmentRepository struct {
	db *sqlx.DB
}

func NewSegmentRepository(db *sqlx.DB) SegmentRepository {
	return &segmentRepository{
		db: db,
	}
}

// ContactsBySegments returns the deduplicated union of contacts across
// segments. DISTINCT ON contact id collapses overlapping segments.
func (r *segmentRepository) ContactsBySegments(ctx context.Context, segmentIDs []int64) ([]*models.Contact, error) {
	query := `
		SELECT DISTINCT c.id, c.phone_number, c.name, c.email, c.status, c.created_at, c.updated_at
		FROM contacts c
		JOIN segment_contacts sc ON sc.contact_id = c.id
		WHERE sc.segment_id = ANY($1)
		ORDER BY c.id
	`

	var contacts []*models.Contact
	err := r.db.SelectContext(ctx, &contacts, query, pq.Array(segmentIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get segment contacts: %w", err)
	}

	return contacts, nil
}

func (r *segmentRepository) CountContactsBySegments(ctx context.Context, segmentIDs []int64) (int, error) {
	var count int
	query := `SELECT COUNT(DISTINCT contact_id) FROM segment_contacts WHERE segment_id = ANY($1)`

	err := r.db.GetContext(ctx, &count, query, pq.Array(segmentIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to count segment contacts: %w", err)
	}

	return count, nil
}
