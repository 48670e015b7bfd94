// Package worker consumes outbound send jobs from the queue and drives each
// one to a terminal outcome.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sendloop/wa-platform/internal/config"
	"github.com/sendloop/wa-platform/internal/metrics"
	"github.com/sendloop/wa-platform/internal/models"
	"github.com/sendloop/wa-platform/internal/phone"
	"github.com/sendloop/wa-platform/internal/queue"
	"github.com/sendloop/wa-platform/internal/repository"
	"github.com/sendloop/wa-platform/internal/service"
	"github.com/sendloop/wa-platform/internal/whatsapp"
)

type Worker struct {
	cfg       *config.Config
	repo      repository.Repository
	queue     queue.Consumer
	client    whatsapp.Client
	breaker   *service.CircuitBreaker
	limiter   *rate.Limiter
	validator *Validator
	logger    *zap.Logger

	mu           sync.RWMutex
	healthy      bool
	failStreak   int
	lastCheckErr error
}

func NewWorker(
	cfg *config.Config,
	repo repository.Repository,
	q queue.Consumer,
	client whatsapp.Client,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		cfg:     cfg,
		repo:    repo,
		queue:   q,
		client:  client,
		breaker: service.NewCircuitBreaker("whatsapp-send", &cfg.WhatsApp.CircuitBreaker, logger),
		limiter: rate.NewLimiter(rate.Limit(cfg.Worker.SendRate), cfg.Worker.SendBurst),
		validator: &Validator{
			MaxBodyParams:      cfg.Worker.MaxBodyParams,
			MaxButtonParams:    cfg.Worker.MaxButtonParams,
			DefaultCountryCode: cfg.Webhook.DefaultCountryCode,
		},
		logger:  logger,
		healthy: true,
	}
}

// Run blocks consuming jobs until the context is canceled. It starts the
// configured number of consumer goroutines plus the health check loop.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Starting worker",
		zap.Int("concurrency", w.cfg.Worker.Concurrency),
		zap.Float64("send_rate", w.cfg.Worker.SendRate))

	if recovered, err := w.queue.Recover(ctx); err != nil {
		w.logger.Error("Failed to requeue claimed jobs", zap.Error(err))
	} else if recovered > 0 {
		w.logger.Info("Requeued jobs claimed by a previous run", zap.Int("count", recovered))
	}

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Worker.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consumeLoop(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.healthLoop(ctx)
	}()

	wg.Wait()
	w.logger.Info("Worker stopped")
	return ctx.Err()
}

func (w *Worker) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		delivery, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("Failed to dequeue job", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if delivery == nil {
			continue
		}

		w.Process(ctx, delivery)
	}
}

// Process drives one claimed job to a terminal outcome.
func (w *Worker) Process(ctx context.Context, delivery *queue.Delivery) models.JobResult {
	start := time.Now()
	metrics.JobsInFlight.Inc()
	defer func() {
		metrics.JobsInFlight.Dec()
		metrics.JobDuration.Observe(time.Since(start).Seconds())
	}()

	// Parse. A frame that is not valid JSON can never succeed; park it
	// on the dead-letter list for inspection.
	if delivery.ParseErr != nil {
		parseErr := &ParseError{Err: delivery.ParseErr}
		w.logger.Error("Dropping malformed job", zap.Error(parseErr))
		if err := w.queue.DeadLetter(ctx, delivery); err != nil {
			w.logger.Error("Failed to dead-letter job", zap.Error(err))
		}
		metrics.JobsProcessed.WithLabelValues("parse_error").Inc()
		return models.JobResult{Error: parseErr.Error(), Duration: time.Since(start)}
	}

	payload := delivery.Payload

	if payload.Expired(time.Now()) {
		w.logger.Warn("Dropping expired job", zap.Timep("expires_at", payload.ExpiresAt))
		w.ack(ctx, delivery)
		metrics.JobsProcessed.WithLabelValues("expired").Inc()
		return models.JobResult{Error: "job expired", Duration: time.Since(start)}
	}

	result := w.execute(ctx, payload)
	result.Duration = time.Since(start)

	if result.Success {
		w.ack(ctx, delivery)
		metrics.JobsProcessed.WithLabelValues("success").Inc()
		w.logger.Info("Job succeeded",
			zap.String("whatsapp_id", result.WhatsAppID),
			zap.String("phone_number", result.PhoneNumber),
			zap.Duration("duration", result.Duration))
		return result
	}

	if result.Retryable {
		requeued, err := w.queue.Retry(ctx, delivery)
		if err != nil {
			// The frame is still claimed on the processing list; the
			// next startup sweep redelivers it. Do not count it as a
			// terminal failure here.
			w.logger.Error("Failed to requeue job", zap.Error(err))
			metrics.JobsProcessed.WithLabelValues("retry_error").Inc()
			return result
		}
		if requeued {
			metrics.JobsProcessed.WithLabelValues("retried").Inc()
			w.logger.Warn("Job requeued for retry",
				zap.String("error", result.Error),
				zap.Int("attempt", payload.RetryCount+1))
			return result
		}
		// Retry budget exhausted; the queue dead-lettered the frame.
		w.logger.Error("Job dead-lettered after exhausting retries", zap.String("error", result.Error))
	} else {
		w.ack(ctx, delivery)
	}

	metrics.JobsProcessed.WithLabelValues("failed").Inc()
	w.recordTerminalFailure(ctx, payload, result)
	w.logger.Error("Job failed",
		zap.String("error", result.Error),
		zap.Bool("retryable", result.Retryable),
		zap.Strings("field_errors", result.FieldErrors))
	return result
}

// execute runs validate → resolve → dispatch → record and maps every
// failure through the error taxonomy.
func (w *Worker) execute(ctx context.Context, payload *models.JobPayload) models.JobResult {
	w.validator.Sanitize(payload)

	if err := w.validator.Validate(payload); err != nil {
		var vErr *ValidationError
		errors.As(err, &vErr)
		return models.JobResult{Error: err.Error(), Retryable: false, FieldErrors: vErr.FieldMessages()}
	}

	contact, to, err := w.resolveRecipient(ctx, payload)
	if err != nil {
		return models.JobResult{Error: err.Error(), Retryable: IsRetryable(err)}
	}

	jobCtx, cancel := context.WithTimeout(ctx, time.Duration(w.cfg.Worker.JobTimeout)*time.Second)
	defer cancel()

	whatsappID, err := w.dispatch(jobCtx, to, payload)
	if err != nil {
		return models.JobResult{PhoneNumber: to, Error: err.Error(), Retryable: IsRetryable(err)}
	}
	metrics.DispatchTotal.WithLabelValues("sent").Inc()

	if err := w.recordSuccess(ctx, contact, to, payload, whatsappID); err != nil {
		// The provider accepted the send; losing the row now must not
		// trigger a duplicate send, so the job still counts as success.
		w.logger.Error("Failed to persist sent message",
			zap.String("whatsapp_id", whatsappID),
			zap.Error(err))
	}

	return models.JobResult{Success: true, WhatsAppID: whatsappID, PhoneNumber: to}
}

// resolveRecipient maps the addressing mode to a canonical phone number.
func (w *Worker) resolveRecipient(ctx context.Context, payload *models.JobPayload) (*models.Contact, string, error) {
	if payload.ContactID != nil {
		contact, err := w.repo.Contact().GetByID(ctx, *payload.ContactID)
		if err != nil {
			return nil, "", &TransportError{Op: "contact lookup", Err: err}
		}
		if contact == nil {
			return nil, "", &ContactNotFoundError{ContactID: *payload.ContactID}
		}
		if contact.PhoneNumber == "" {
			return nil, "", &PhoneNumberNotFoundError{ContactID: contact.ID}
		}
		return contact, contact.PhoneNumber, nil
	}

	canonical, err := phone.Canonicalize(payload.PhoneNumber, w.cfg.Webhook.DefaultCountryCode)
	if err != nil {
		return nil, "", &ValidationError{Fields: []FieldError{{Field: "phoneNumber", Reason: "must contain at least 7 digits"}}}
	}

	return nil, canonical, nil
}

// dispatch calls the delivery client through the rate limiter and circuit
// breaker, translating timeouts into the taxonomy.
func (w *Worker) dispatch(ctx context.Context, to string, payload *models.JobPayload) (string, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &TimeoutError{Timeout: time.Duration(w.cfg.Worker.JobTimeout) * time.Second}
		}
		return "", err
	}

	var whatsappID string
	err := w.breaker.Execute(ctx, func() error {
		id, sendErr := w.client.SendTemplateMessage(ctx, &whatsapp.TemplateMessage{
			To:           to,
			TemplateName: payload.TemplateName,
			BodyParams:   payload.Params,
			ButtonParams: payload.ButtonParams,
			ImageURL:     payload.ImageURL,
			DocumentURL:  payload.DocumentURL,
			Filename:     payload.Filename,
		})
		whatsappID = id
		return sendErr
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.DispatchTotal.WithLabelValues("retryable_error").Inc()
			return "", &TimeoutError{Timeout: time.Duration(w.cfg.Worker.JobTimeout) * time.Second}
		}
		if errors.Is(err, service.ErrCircuitOpen) {
			metrics.DispatchTotal.WithLabelValues("retryable_error").Inc()
			return "", &TransportError{Op: "send", Err: err}
		}
		if IsRetryable(err) {
			metrics.DispatchTotal.WithLabelValues("retryable_error").Inc()
		} else {
			metrics.DispatchTotal.WithLabelValues("permanent_error").Inc()
		}
		return "", err
	}

	return whatsappID, nil
}

// recordSuccess persists the outbound message against the recipient's
// conversation, creating contact and conversation as needed.
func (w *Worker) recordSuccess(ctx context.Context, contact *models.Contact, to string, payload *models.JobPayload, whatsappID string) error {
	if contact == nil {
		upserted, err := w.repo.Contact().UpsertByPhone(ctx, to, "")
		if err != nil {
			return err
		}
		contact = upserted
	}

	conversation, err := w.repo.Conversation().FindOrCreate(ctx, contact.ID)
	if err != nil {
		return err
	}

	msg := &models.Message{
		ConversationID: conversation.ID,
		WhatsAppID:     sql.NullString{String: whatsappID, Valid: true},
		Type:           "template",
		Body:           payload.TemplateName,
		Status:         models.MessageStatusSent,
		Timestamp:      time.Now(),
	}
	if payload.CampaignID != nil {
		msg.CampaignID = sql.NullInt64{Int64: *payload.CampaignID, Valid: true}
	}

	return w.repo.Message().CreateOutbound(ctx, msg)
}

// recordTerminalFailure keeps campaign accounting converging: a job that
// will never produce status webhooks still has to count toward the
// campaign's terminal tally or the campaign would never complete.
func (w *Worker) recordTerminalFailure(ctx context.Context, payload *models.JobPayload, result models.JobResult) {
	if payload == nil || payload.CampaignID == nil {
		return
	}
	campaignID := *payload.CampaignID

	if err := w.repo.Campaign().IncrementCounter(ctx, campaignID, repository.CounterFailed); err != nil {
		w.logger.Error("Failed to record campaign failure", zap.Int64("campaign_id", campaignID), zap.Error(err))
		return
	}
	if _, err := w.repo.Campaign().CompleteIfDone(ctx, campaignID); err != nil {
		w.logger.Error("Failed to check campaign completion", zap.Int64("campaign_id", campaignID), zap.Error(err))
	}
}

func (w *Worker) ack(ctx context.Context, delivery *queue.Delivery) {
	if err := w.queue.Ack(ctx, delivery); err != nil {
		w.logger.Error("Failed to ack job", zap.Error(err))
	}
}

// healthLoop periodically verifies connectivity to the queue transport and
// the store; a streak of consecutive failures flips the worker unhealthy.
func (w *Worker) healthLoop(ctx context.Context) {
	interval := time.Duration(w.cfg.Worker.HealthCheckInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.checkHealth(ctx)
		}
	}
}

func (w *Worker) checkHealth(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var err error
	if pingErr := w.queue.Ping(checkCtx); pingErr != nil {
		err = &TransportError{Op: "queue ping", Err: pingErr}
	} else if pingErr := w.repo.Ping(); pingErr != nil {
		err = &TransportError{Op: "store ping", Err: pingErr}
	}

	if depth, depthErr := w.queue.Depth(checkCtx); depthErr == nil {
		metrics.QueueDepth.Set(float64(depth))
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err == nil {
		w.failStreak = 0
		w.lastCheckErr = nil
		if !w.healthy {
			w.healthy = true
			w.logger.Info("Worker back to healthy")
		}
		return
	}

	w.failStreak++
	w.lastCheckErr = err
	w.logger.Warn("Worker health check failed", zap.Int("streak", w.failStreak), zap.Error(err))
	if w.failStreak >= w.cfg.Worker.UnhealthyThreshold && w.healthy {
		w.healthy = false
		w.logger.Error("Worker marked unhealthy", zap.Error(err))
	}
}

// Healthy reports the current health state and the last check error.
func (w *Worker) Healthy() (bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.healthy, w.lastCheckErr
}
