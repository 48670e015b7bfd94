// Package queue implements the outbound job transport on Redis lists.
//
// Jobs are LPUSHed onto the job list and claimed with BRPOPLPUSH into a
// processing list, so a claimed job survives until the worker explicitly
// acks it; Recover sweeps claims left behind by a crashed worker back onto
// the job list. Retryable failures are re-published with an incremented
// retry counter after an exponential, jittered delay; jobs that exhaust
// their retry budget land on the dead-letter list. Every hand-off publishes
// the new frame before removing the old one, trading a possible duplicate
// delivery for never losing a job.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/sendloop/wa-platform/internal/config"
	"github.com/sendloop/wa-platform/internal/models"
)

// Publisher is the producer side of the job queue.
type Publisher interface {
	Publish(ctx context.Context, payload *models.JobPayload) error
	// PublishBatch enqueues a campaign fan-out as one logical publish.
	PublishBatch(ctx context.Context, payloads []*models.JobPayload) error
}

// Consumer is the worker side of the job queue.
type Consumer interface {
	// Dequeue blocks until a job is available or the context is done.
	Dequeue(ctx context.Context) (*Delivery, error)
	// Retry re-publishes a job with an incremented retry counter after a
	// backoff delay, or dead-letters it once the budget is exhausted.
	// Returns true when the job was re-queued.
	Retry(ctx context.Context, delivery *Delivery) (bool, error)
	// Ack removes a claimed frame from the processing list.
	Ack(ctx context.Context, delivery *Delivery) error
	DeadLetter(ctx context.Context, delivery *Delivery) error
	// Recover moves frames parked on the processing list back onto the
	// job list and reports how many were moved.
	Recover(ctx context.Context) (int, error)
	Depth(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// Delivery is one claimed job plus the raw frame needed for acking.
type Delivery struct {
	Payload *models.JobPayload
	Raw     string
	// ParseErr is set when the frame was not valid JSON; Payload is nil.
	ParseErr error
}

type Queue struct {
	client *redis.Client
	cfg    *config.QueueConfig
	logger *zap.Logger
}

func NewQueue(client *redis.Client, cfg *config.QueueConfig, logger *zap.Logger) *Queue {
	return &Queue{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Publish enqueues a single job.
func (q *Queue) Publish(ctx context.Context, payload *models.JobPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}

	if err := q.client.LPush(ctx, q.cfg.JobList, data).Err(); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	return nil
}

// PublishBatch enqueues a fan-out batch with a single pipelined round trip.
func (q *Queue) PublishBatch(ctx context.Context, payloads []*models.JobPayload) error {
	if len(payloads) == 0 {
		return nil
	}

	frames := make([]interface{}, 0, len(payloads))
	for _, payload := range payloads {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal job payload: %w", err)
		}
		frames = append(frames, data)
	}

	if err := q.client.LPush(ctx, q.cfg.JobList, frames...).Err(); err != nil {
		return fmt.Errorf("failed to publish job batch: %w", err)
	}

	q.logger.Info("Published job batch", zap.Int("count", len(payloads)))
	return nil
}

// Dequeue claims the next job, moving it to the processing list so it is
// not lost if this worker dies mid-flight.
func (q *Queue) Dequeue(ctx context.Context) (*Delivery, error) {
	raw, err := q.client.BRPopLPush(ctx, q.cfg.JobList, q.cfg.ProcessingList, 5*time.Second).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}

	delivery := &Delivery{Raw: raw}

	var payload models.JobPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		delivery.ParseErr = err
		return delivery, nil
	}
	delivery.Payload = &payload

	return delivery, nil
}

// Ack removes the claimed frame from the processing list.
func (q *Queue) Ack(ctx context.Context, delivery *Delivery) error {
	if err := q.client.LRem(ctx, q.cfg.ProcessingList, 1, delivery.Raw).Err(); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}

	return nil
}

// Retry re-publishes after a backoff delay, or dead-letters once the retry
// budget is spent. The retried copy is published before the claimed frame
// is acked: a failure anywhere leaves the job on some list, and a crash
// during the backoff sleep leaves the claim for Recover to requeue.
func (q *Queue) Retry(ctx context.Context, delivery *Delivery) (bool, error) {
	payload := delivery.Payload
	if payload == nil {
		return false, q.DeadLetter(ctx, delivery)
	}

	maxRetries := payload.MaxRetries
	if maxRetries <= 0 {
		maxRetries = q.cfg.MaxRetries
	}

	if payload.RetryCount >= maxRetries {
		return false, q.DeadLetter(ctx, delivery)
	}

	retried := *payload
	retried.RetryCount++
	delay := q.backoff(retried.RetryCount)

	q.logger.Info("Scheduling job retry",
		zap.Int("attempt", retried.RetryCount),
		zap.Int("max_retries", maxRetries),
		zap.Duration("delay", delay))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		// Re-publish immediately on shutdown rather than losing the job.
	case <-timer.C:
	}

	if err := q.Publish(context.WithoutCancel(ctx), &retried); err != nil {
		// The frame is still claimed; Recover redelivers it.
		return false, err
	}

	if err := q.Ack(context.WithoutCancel(ctx), delivery); err != nil {
		// The retried copy is live. Worst case the stale claim is
		// redelivered as a duplicate, which processing tolerates.
		q.logger.Warn("Failed to ack retried job", zap.Error(err))
	}

	return true, nil
}

// DeadLetter parks the frame on the dead-letter list and acks it.
func (q *Queue) DeadLetter(ctx context.Context, delivery *Delivery) error {
	if err := q.client.LPush(ctx, q.cfg.DeadLetterList, delivery.Raw).Err(); err != nil {
		return fmt.Errorf("failed to dead-letter job: %w", err)
	}

	return q.Ack(ctx, delivery)
}

// Recover drains frames parked on the processing list back onto the job
// list. Run at worker startup: claims left by a crashed worker would
// otherwise sit unprocessed forever. A claim another worker still holds may
// get requeued too; the resulting duplicate delivery is tolerated.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		_, err := q.client.RPopLPush(ctx, q.cfg.ProcessingList, q.cfg.JobList).Result()
		if err == redis.Nil {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("failed to recover claimed jobs: %w", err)
		}
		moved++
	}
}

// Depth reports the number of jobs waiting on the job list.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	depth, err := q.client.LLen(ctx, q.cfg.JobList).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue depth: %w", err)
	}

	return depth, nil
}

func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// backoff computes base * 2^(attempt-1), capped and jittered.
func (q *Queue) backoff(attempt int) time.Duration {
	base := time.Duration(q.cfg.RetryBaseDelay) * time.Second
	maxDelay := time.Duration(q.cfg.RetryMaxDelay) * time.Second

	delay := base << uint(attempt-1)
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}

	if q.cfg.RetryJitter > 0 {
		span := int64(float64(delay) * q.cfg.RetryJitter)
		if span > 0 {
			delay += time.Duration(rand.Int63n(2*span+1) - span)
		}
	}

	return delay
}
