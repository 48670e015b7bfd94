package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sendloop/wa-platform/internal/models"
)

var (
	// ErrNotFound signals a missing row where the caller needs to
	// distinguish absence from a guard failure.
	ErrNotFound        = errors.New("not found")
	ErrCampaignSending = errors.New("campaign is currently sending")
)

type campaignRepository struct {
	db *sqlx.DB
}

func NewCampaignRepository(db *sqlx.DB) CampaignRepository {
	return &campaignRepository{
		db: db,
	}
}

// Create inserts a campaign in draft status together with its target segments.
func (r *campaignRepository) Create(ctx context.Context, campaign *models.Campaign, segmentIDs []int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	insert := `
		INSERT INTO campaigns (name, status, template_id, scheduled_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	row := tx.QueryRowxContext(ctx, insert, campaign.Name, campaign.Status, campaign.TemplateID, campaign.ScheduledAt)
	if err := row.Scan(&campaign.ID, &campaign.CreatedAt, &campaign.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert campaign: %w", err)
	}

	for _, segmentID := range segmentIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO campaign_segments (campaign_id, segment_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			campaign.ID, segmentID); err != nil {
			return fmt.Errorf("failed to attach segment %d: %w", segmentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit campaign: %w", err)
	}

	return nil
}

// GetByID retrieves a campaign. Returns nil when not found.
func (r *campaignRepository) GetByID(ctx context.Context, id int64) (*models.Campaign, error) {
	query := `
		SELECT id, name, status, template_id, recipient_count,
		       sent_count, delivered_count, failed_count, read_count, clicked_count,
		       scheduled_at, created_at, updated_at
		FROM campaigns
		WHERE id = $1
	`

	var campaign models.Campaign
	err := r.db.GetContext(ctx, &campaign, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return &campaign, nil
}

// Update rewrites the mutable fields. Status is not touched here; use
// TransitionStatus for lifecycle changes.
func (r *campaignRepository) Update(ctx context.Context, campaign *models.Campaign) error {
	query := `
		UPDATE campaigns
		SET name = $2, template_id = $3, scheduled_at = $4, updated_at = now()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, campaign.ID, campaign.Name, campaign.TemplateID, campaign.ScheduledAt)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}

	return nil
}

// Delete removes a campaign unless it is sending.
func (r *campaignRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM campaigns WHERE id = $1 AND status <> $2`, id, models.CampaignStatusSending)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		// Either missing or sending; disambiguate for the caller.
		campaign, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		if campaign != nil {
			return ErrCampaignSending
		}
		return ErrNotFound
	}

	return nil
}

// TransitionStatus performs a guarded conditional flip. The guard runs
// inside the UPDATE so concurrent transitions cannot interleave.
func (r *campaignRepository) TransitionStatus(ctx context.Context, id int64, from []models.CampaignStatus, to models.CampaignStatus) (bool, error) {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}

	query := `
		UPDATE campaigns
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
	`

	result, err := r.db.ExecContext(ctx, query, id, to, pq.Array(states))
	if err != nil {
		return false, fmt.Errorf("failed to transition campaign status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read transition result: %w", err)
	}

	return affected == 1, nil
}

func (r *campaignRepository) SetRecipientCount(ctx context.Context, id int64, count int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE campaigns SET recipient_count = $2, updated_at = now() WHERE id = $1`, id, count)
	if err != nil {
		return fmt.Errorf("failed to set recipient count: %w", err)
	}

	return nil
}

// IncrementCounter bumps one monotonic counter atomically in the database,
// so concurrent status webhooks never lose increments.
func (r *campaignRepository) IncrementCounter(ctx context.Context, id int64, counter CampaignCounter) error {
	column, ok := counterColumns[counter]
	if !ok {
		return fmt.Errorf("unknown campaign counter %q", counter)
	}

	query := fmt.Sprintf(`UPDATE campaigns SET %s = %s + 1, updated_at = now() WHERE id = $1`, column, column)

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", column, err)
	}

	return nil
}

// counterColumns whitelists counter names used in dynamic SQL.
var counterColumns = map[CampaignCounter]string{
	CounterSent:      "sent_count",
	CounterDelivered: "delivered_count",
	CounterFailed:    "failed_count",
	CounterRead:      "read_count",
	CounterClicked:   "clicked_count",
}

// CompleteIfDone flips sending → completed once every fanned-out send has
// reached a terminal outcome.
func (r *campaignRepository) CompleteIfDone(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE campaigns
		SET status = $2, updated_at = now()
		WHERE id = $1
		  AND status = $3
		  AND recipient_count > 0
		  AND sent_count + failed_count >= recipient_count
	`

	result, err := r.db.ExecContext(ctx, query, id, models.CampaignStatusCompleted, models.CampaignStatusSending)
	if err != nil {
		return false, fmt.Errorf("failed to complete campaign: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read completion result: %w", err)
	}

	return affected == 1, nil
}

// ReplaceSegments swaps the campaign's target segment set in one transaction.
func (r *campaignRepository) ReplaceSegments(ctx context.Context, id int64, segmentIDs []int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, `DELETE FROM campaign_segments WHERE campaign_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear campaign segments: %w", err)
	}
	for _, segmentID := range segmentIDs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO campaign_segments (campaign_id, segment_id) VALUES ($1, $2)`, id, segmentID); err != nil {
			return fmt.Errorf("failed to attach segment %d: %w", segmentID, err)
		}
	}

	return tx.Commit()
}

// DueScheduled lists scheduled campaigns whose scheduled time has passed.
func (r *campaignRepository) DueScheduled(ctx context.Context, now time.Time) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids,
		`SELECT id FROM campaigns WHERE status = $1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2 ORDER BY scheduled_at`,
		models.CampaignStatusScheduled, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due campaigns: %w", err)
	}

	return ids, nil
}

func (r *campaignRepository) SegmentIDs(ctx context.Context, id int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids,
		`SELECT segment_id FROM campaign_segments WHERE campaign_id = $1 ORDER BY segment_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign segments: %w", err)
	}

	return ids, nil
}

// Stats aggregates campaign counts by status.
func (r *campaignRepository) Stats(ctx context.Context) (*models.CampaignStats, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT status, COUNT(*) FROM campaigns GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaign stats: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	stats := &models.CampaignStats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan campaign stats: %w", err)
		}

		stats.Total += count
		switch models.CampaignStatus(status) {
		case models.CampaignStatusDraft:
			stats.Draft = count
		case models.CampaignStatusScheduled:
			stats.Scheduled = count
		case models.CampaignStatusSending:
			stats.Sending = count
		case models.CampaignStatusPaused:
			stats.Paused = count
		case models.CampaignStatusCompleted:
			stats.Completed = count
		case models.CampaignStatusFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read campaign stats: %w", err)
	}

	return stats, nil
}
