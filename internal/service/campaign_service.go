package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sendloop/wa-platform/internal/config"
	"github.com/sendloop/wa-platform/internal/models"
	"github.com/sendloop/wa-platform/internal/queue"
	"github.com/sendloop/wa-platform/internal/repository"
)

type campaignService struct {
	cfg       *config.Config
	repo      repository.Repository
	publisher queue.Publisher
	logger    *zap.Logger
}

// NewCampaignService creates the campaign orchestrator.
func NewCampaignService(
	cfg *config.Config,
	repo repository.Repository,
	publisher queue.Publisher,
	logger *zap.Logger,
) CampaignService {
	return &campaignService{
		cfg:       cfg,
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// Create registers a new campaign in draft (or scheduled, when a
// schedule time is given). The referenced template must be approved.
func (s *campaignService) Create(ctx context.Context, input CreateCampaignInput) (*models.Campaign, error) {
	if input.Name == "" {
		return nil, ErrNameRequired
	}
	if err := s.requireApprovedTemplate(ctx, input.TemplateID); err != nil {
		return nil, err
	}

	status := models.CampaignStatusDraft
	if input.ScheduledAt != nil {
		status = models.CampaignStatusScheduled
	}

	campaign := &models.Campaign{
		Name:        input.Name,
		Status:      status,
		TemplateID:  input.TemplateID,
		ScheduledAt: input.ScheduledAt,
	}
	if err := s.repo.Campaign().Create(ctx, campaign, input.SegmentIDs); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	s.logger.Info("Campaign created",
		zap.Int64("campaign_id", campaign.ID),
		zap.String("status", string(campaign.Status)))
	return campaign, nil
}

func (s *campaignService) Get(ctx context.Context, id int64) (*models.Campaign, error) {
	campaign, err := s.repo.Campaign().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	return campaign, nil
}

// Update mutates a campaign that is neither sending nor completed.
func (s *campaignService) Update(ctx context.Context, id int64, input UpdateCampaignInput) (*models.Campaign, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status == models.CampaignStatusSending || campaign.Status == models.CampaignStatusCompleted {
		return nil, ErrCampaignLocked
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, ErrNameRequired
		}
		campaign.Name = *input.Name
	}
	if input.TemplateID != nil {
		if err := s.requireApprovedTemplate(ctx, *input.TemplateID); err != nil {
			return nil, err
		}
		campaign.TemplateID = *input.TemplateID
	}
	if input.ScheduledAt != nil {
		campaign.ScheduledAt = input.ScheduledAt
		if campaign.Status == models.CampaignStatusDraft {
			campaign.Status = models.CampaignStatusScheduled
		}
	}

	if err := s.repo.Campaign().Update(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to update campaign: %w", err)
	}
	if input.SegmentIDs != nil {
		if err := s.repo.Campaign().ReplaceSegments(ctx, id, input.SegmentIDs); err != nil {
			return nil, fmt.Errorf("failed to update campaign segments: %w", err)
		}
	}

	return s.Get(ctx, id)
}

// Delete removes a campaign in any status except sending.
func (s *campaignService) Delete(ctx context.Context, id int64) error {
	err := s.repo.Campaign().Delete(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrCampaignNotFound
	case errors.Is(err, repository.ErrCampaignSending):
		return ErrCampaignLocked
	default:
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
}

// Start fans a campaign out to the deduplicated contacts of its target
// segments. The status flips to sending before the batch is published,
// so a crash between the two is recoverable by starting again after a
// manual status reset rather than leaving queued jobs against a draft.
func (s *campaignService) Start(ctx context.Context, id int64) (*StartResult, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignStatusDraft && campaign.Status != models.CampaignStatusScheduled {
		return nil, ErrInvalidTransition
	}
	if err := s.requireApprovedTemplate(ctx, campaign.TemplateID); err != nil {
		return nil, err
	}
	template, err := s.repo.Template().GetByID(ctx, campaign.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	segmentIDs, err := s.repo.Campaign().SegmentIDs(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign segments: %w", err)
	}
	if len(segmentIDs) == 0 {
		return nil, ErrNoSegments
	}

	contacts, err := s.repo.Segment().ContactsBySegments(ctx, segmentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve campaign contacts: %w", err)
	}
	if len(contacts) == 0 {
		return nil, ErrNoRecipients
	}

	if err := s.repo.Campaign().SetRecipientCount(ctx, id, len(contacts)); err != nil {
		return nil, fmt.Errorf("failed to snapshot recipient count: %w", err)
	}

	flipped, err := s.repo.Campaign().TransitionStatus(ctx, id,
		[]models.CampaignStatus{models.CampaignStatusDraft, models.CampaignStatusScheduled},
		models.CampaignStatusSending)
	if err != nil {
		return nil, fmt.Errorf("failed to transition campaign: %w", err)
	}
	if !flipped {
		// Lost a race against a concurrent start.
		return nil, ErrInvalidTransition
	}

	payloads := make([]*models.JobPayload, 0, len(contacts))
	for _, contact := range contacts {
		contactID := contact.ID
		campaignID := id
		payloads = append(payloads, &models.JobPayload{
			ContactID:    &contactID,
			CampaignID:   &campaignID,
			TemplateName: template.Name,
			MaxRetries:   s.cfg.Queue.MaxRetries,
		})
	}

	if err := s.publisher.PublishBatch(ctx, payloads); err != nil {
		return nil, fmt.Errorf("failed to publish campaign batch: %w", err)
	}

	s.logger.Info("Campaign started",
		zap.Int64("campaign_id", id),
		zap.Int("recipients", len(contacts)))

	return &StartResult{
		CampaignID: id,
		Recipients: len(contacts),
		Enqueued:   len(payloads),
	}, nil
}

// Pause flips sending → paused. In-flight jobs are not recalled; the
// queue has no mechanism for that.
func (s *campaignService) Pause(ctx context.Context, id int64) error {
	return s.flip(ctx, id,
		[]models.CampaignStatus{models.CampaignStatusSending},
		models.CampaignStatusPaused)
}

// Resume flips paused → sending.
func (s *campaignService) Resume(ctx context.Context, id int64) error {
	return s.flip(ctx, id,
		[]models.CampaignStatus{models.CampaignStatusPaused},
		models.CampaignStatusSending)
}

func (s *campaignService) flip(ctx context.Context, id int64, from []models.CampaignStatus, to models.CampaignStatus) error {
	flipped, err := s.repo.Campaign().TransitionStatus(ctx, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to transition campaign: %w", err)
	}
	if flipped {
		s.logger.Info("Campaign status changed",
			zap.Int64("campaign_id", id), zap.String("status", string(to)))
		return nil
	}

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

// Analytics derives delivery, read and click rates from the stored
// counters. Rates are 0 while no recipients are snapshotted.
func (s *campaignService) Analytics(ctx context.Context, id int64) (*models.CampaignAnalytics, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	analytics := &models.CampaignAnalytics{
		CampaignID:     campaign.ID,
		Status:         string(campaign.Status),
		RecipientCount: campaign.RecipientCount,
		SentCount:      campaign.SentCount,
		DeliveredCount: campaign.DeliveredCount,
		FailedCount:    campaign.FailedCount,
		ReadCount:      campaign.ReadCount,
		ClickedCount:   campaign.ClickedCount,
	}
	if campaign.RecipientCount > 0 {
		total := float64(campaign.RecipientCount)
		analytics.DeliveryRate = float64(campaign.DeliveredCount) / total * 100
		analytics.ReadRate = float64(campaign.ReadCount) / total * 100
		analytics.ClickRate = float64(campaign.ClickedCount) / total * 100
	}

	return analytics, nil
}

func (s *campaignService) Stats(ctx context.Context) (*models.CampaignStats, error) {
	stats, err := s.repo.Campaign().Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign stats: %w", err)
	}
	return stats, nil
}

// DispatchDue starts every scheduled campaign whose scheduled time has
// passed. Per-campaign failures are logged and do not stop the sweep.
func (s *campaignService) DispatchDue(ctx context.Context) error {
	ids, err := s.repo.Campaign().DueScheduled(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to list due campaigns: %w", err)
	}

	for _, id := range ids {
		if _, err := s.Start(ctx, id); err != nil {
			s.logger.Error("Failed to start scheduled campaign",
				zap.Int64("campaign_id", id), zap.Error(err))
		}
	}

	return nil
}

func (s *campaignService) requireApprovedTemplate(ctx context.Context, templateID int64) error {
	template, err := s.repo.Template().GetByID(ctx, templateID)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}
	if template == nil {
		return ErrTemplateNotFound
	}
	if template.Status != models.TemplateStatusApproved {
		return ErrTemplateNotApproved
	}
	return nil
}
