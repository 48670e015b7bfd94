// Package webhook ingests inbound provider callbacks and reconciles them
// against conversation state exactly once per logically distinct event.
package webhook

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/sendloop/wa-platform/internal/config"
	"github.com/sendloop/wa-platform/internal/models"
	"github.com/sendloop/wa-platform/internal/phone"
	"github.com/sendloop/wa-platform/internal/repository"
)

// task is one message or status sub-event extracted from a delivery.
type task struct {
	message *models.InboundMessage
	status  *models.MessageStatusEv
	// senderName maps wa_id → profile name for contact auto-creation.
	senderName string
}

// Processor fans webhook deliveries out to a bounded worker pool. The HTTP
// handler never blocks on processing: it acknowledges, enqueues and returns.
type Processor struct {
	cfg     *config.WebhookConfig
	repo    repository.Repository
	redis   *redis.Client
	logger  *zap.Logger
	monitor *Monitor

	tasks  chan task
	doneCh chan struct{}
	once   sync.Once
}

func NewProcessor(
	cfg *config.WebhookConfig,
	repo repository.Repository,
	redisClient *redis.Client,
	monitor *Monitor,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		cfg:     cfg,
		repo:    repo,
		redis:   redisClient,
		logger:  logger,
		monitor: monitor,
		tasks:   make(chan task, cfg.ProcessorQueueSize),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the pool workers. It returns immediately.
func (p *Processor) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.ProcessorPoolSize; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range p.tasks {
				p.handle(ctx, t)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(p.doneCh)
	}()

	p.logger.Info("Webhook processor started",
		zap.Int("pool_size", p.cfg.ProcessorPoolSize),
		zap.Int("queue_size", p.cfg.ProcessorQueueSize))
}

// Stop drains the task queue and waits for in-flight events.
func (p *Processor) Stop() {
	p.once.Do(func() {
		close(p.tasks)
	})
	<-p.doneCh
	p.logger.Info("Webhook processor stopped")
}

// Enqueue fans a delivery out into per-event tasks. Each entry batches
// multiple changes; only the messages and statuses fields mutate state,
// everything else is logged and ignored by design.
func (p *Processor) Enqueue(payload *models.WebhookPayload) {
	p.monitor.RecordDelivery()

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			switch change.Field {
			case "messages":
				names := make(map[string]string, len(change.Value.Contacts))
				for _, c := range change.Value.Contacts {
					names[c.WaID] = c.Profile.Name
				}

				for i := range change.Value.Messages {
					msg := change.Value.Messages[i]
					p.submit(task{message: &msg, senderName: names[msg.From]})
				}
				for i := range change.Value.Statuses {
					status := change.Value.Statuses[i]
					p.submit(task{status: &status})
				}
			case "statuses":
				for i := range change.Value.Statuses {
					status := change.Value.Statuses[i]
					p.submit(task{status: &status})
				}
			default:
				p.logger.Debug("Ignoring webhook field", zap.String("field", change.Field))
				p.monitor.RecordEvent("ignored", "ok")
			}
		}
	}
}

// submit enqueues without blocking; when the pool is saturated the event is
// dropped and counted, the provider will retransmit the delivery.
func (p *Processor) submit(t task) {
	select {
	case p.tasks <- t:
	default:
		p.logger.Warn("Webhook processor queue full, dropping event")
		p.monitor.RecordEvent(t.kind(), "dropped")
	}
}

func (t task) kind() string {
	if t.message != nil {
		return "message"
	}
	return "status"
}

func (p *Processor) handle(ctx context.Context, t task) {
	eventCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.EventTimeout)*time.Second)
	defer cancel()

	var err error
	if t.message != nil {
		err = p.handleMessage(eventCtx, t.message, t.senderName)
	} else {
		err = p.handleStatus(eventCtx, t.status)
	}

	if err != nil {
		p.logger.Error("Webhook event processing failed",
			zap.String("kind", t.kind()),
			zap.Error(err))
		p.monitor.RecordEvent(t.kind(), "error")
		p.monitor.RecordError(err)
	}
}

// handleMessage runs the inbound ingestion algorithm: canonicalize sender,
// upsert contact, find-or-create conversation, dedup on provider id, derive
// body, then insert message and bump the conversation in one transaction.
func (p *Processor) handleMessage(ctx context.Context, msg *models.InboundMessage, senderName string) error {
	canonical, err := phone.Canonicalize(msg.From, p.cfg.DefaultCountryCode)
	if err != nil {
		return fmt.Errorf("failed to canonicalize sender %q: %w", msg.From, err)
	}

	// Fast-path dedup: a replayed delivery usually trips the Redis marker
	// before touching the store. The partial unique index remains the
	// authority; losing the marker only costs a cheap insert attempt.
	marker := "webhook:seen:" + msg.ID
	seen, err := p.redis.Exists(ctx, marker).Result()
	if err == nil && seen > 0 {
		p.logger.Debug("Skipping replayed webhook message", zap.String("whatsapp_id", msg.ID))
		p.monitor.RecordEvent("message", "duplicate")
		return nil
	}

	contact, err := p.repo.Contact().UpsertByPhone(ctx, canonical, senderName)
	if err != nil {
		return err
	}

	conversation, err := p.repo.Conversation().FindOrCreate(ctx, contact.ID)
	if err != nil {
		return err
	}

	inserted, err := p.repo.Message().CreateInbound(ctx, &models.Message{
		ConversationID: conversation.ID,
		WhatsAppID:     sql.NullString{String: msg.ID, Valid: true},
		Type:           msg.Type,
		Body:           displayBody(msg),
		Status:         models.MessageStatusDelivered,
		Timestamp:      eventTime(msg.Timestamp),
	})
	if err != nil {
		return err
	}

	// Mark only once the row is in the store. Marking earlier would make a
	// redelivery of a failed attempt look like a duplicate and drop it.
	if err := p.redis.Set(ctx, marker, 1, 24*time.Hour).Err(); err != nil {
		p.logger.Debug("Failed to set dedup marker", zap.String("whatsapp_id", msg.ID), zap.Error(err))
	}

	if !inserted {
		p.monitor.RecordEvent("message", "duplicate")
		return nil
	}

	p.logger.Info("Inbound message recorded",
		zap.String("whatsapp_id", msg.ID),
		zap.String("from", canonical),
		zap.String("type", msg.Type))
	p.monitor.RecordEvent("message", "ok")
	return nil
}

// handleStatus updates a previously recorded message in place. An unknown
// provider id is dropped with a warning: the status belongs to a message
// this system never recorded.
func (p *Processor) handleStatus(ctx context.Context, ev *models.MessageStatusEv) error {
	status, counter, ok := mapStatus(ev.Status)
	if !ok {
		p.logger.Debug("Ignoring unknown status value", zap.String("status", ev.Status))
		p.monitor.RecordEvent("status", "ok")
		return nil
	}

	msg, changed, err := p.repo.Message().UpdateStatusByWhatsAppID(ctx, ev.ID, status, eventTime(ev.Timestamp))
	if err != nil {
		return err
	}
	if msg == nil {
		p.logger.Warn("Status event for unknown message", zap.String("whatsapp_id", ev.ID))
		p.monitor.RecordEvent("status", "dropped")
		return nil
	}
	if !changed {
		p.monitor.RecordEvent("status", "duplicate")
		return nil
	}

	if msg.CampaignID.Valid {
		campaignID := msg.CampaignID.Int64
		if err := p.repo.Campaign().IncrementCounter(ctx, campaignID, counter); err != nil {
			return err
		}
		if counter == repository.CounterSent || counter == repository.CounterFailed {
			if _, err := p.repo.Campaign().CompleteIfDone(ctx, campaignID); err != nil {
				return err
			}
		}
	}

	p.logger.Info("Message status updated",
		zap.String("whatsapp_id", ev.ID),
		zap.String("status", string(status)))
	p.monitor.RecordEvent("status", "ok")
	return nil
}

// mapStatus translates a provider status value to the stored status and
// the campaign counter it feeds.
func mapStatus(value string) (models.MessageStatus, repository.CampaignCounter, bool) {
	switch value {
	case "sent":
		return models.MessageStatusSent, repository.CounterSent, true
	case "delivered":
		return models.MessageStatusDelivered, repository.CounterDelivered, true
	case "read":
		return models.MessageStatusRead, repository.CounterRead, true
	case "failed":
		return models.MessageStatusFailed, repository.CounterFailed, true
	case "clicked":
		return models.MessageStatusRead, repository.CounterClicked, true
	default:
		return "", "", false
	}
}

// displayBody derives the stored body from the type-specific payload.
func displayBody(msg *models.InboundMessage) string {
	switch msg.Type {
	case "text":
		if msg.Text != nil {
			return msg.Text.Body
		}
	case "image":
		if msg.Image != nil && msg.Image.Caption != "" {
			return msg.Image.Caption
		}
		return "[image]"
	case "document":
		if msg.Document != nil {
			if msg.Document.Caption != "" {
				return msg.Document.Caption
			}
			if msg.Document.Filename != "" {
				return msg.Document.Filename
			}
		}
		return "[document]"
	}
	return "[" + msg.Type + "]"
}

// eventTime parses the provider's unix-seconds string timestamp.
func eventTime(raw string) time.Time {
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(seconds, 0)
}
