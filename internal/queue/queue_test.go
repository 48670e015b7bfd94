package queue_test

import (
	"context"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/sendloop/wa-platform/internal/config"
	"github.com/sendloop/wa-platform/internal/models"
	"github.com/sendloop/wa-platform/internal/queue"
)

func queueConfig() *config.QueueConfig {
	return &config.QueueConfig{
		JobList:        "test:jobs",
		ProcessingList: "test:jobs:processing",
		DeadLetterList: "test:jobs:dead",
		MaxRetries:     2,
		RetryBaseDelay: 0,
		RetryMaxDelay:  0,
		RetryJitter:    0,
	}
}

func setupQueue(t *testing.T) (*queue.Queue, *goredis.Client) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := goredis.NewClient(&goredis.Options{Addr: host + ":" + port.Port()})
	require.NoError(t, client.Ping(ctx).Err())

	t.Cleanup(func() {
		_ = client.Close()
		_ = container.Terminate(ctx)
	})

	return queue.NewQueue(client, queueConfig(), zap.NewNop()), client
}

func TestQueue_PublishDequeueAck(t *testing.T) {
	q, client := setupQueue(t)
	ctx := context.Background()
	cfg := queueConfig()

	contactID := int64(7)
	require.NoError(t, q.Publish(ctx, &models.JobPayload{
		ContactID:    &contactID,
		TemplateName: "welcome_offer",
		Params:       []string{"Alice"},
	}))

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	delivery, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, delivery)
	require.NoError(t, delivery.ParseErr)
	require.NotNil(t, delivery.Payload)
	assert.Equal(t, contactID, *delivery.Payload.ContactID)
	assert.Equal(t, "welcome_offer", delivery.Payload.TemplateName)

	// The claimed frame sits on the processing list until acked.
	processing, err := client.LLen(ctx, cfg.ProcessingList).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), processing)

	require.NoError(t, q.Ack(ctx, delivery))

	processing, err = client.LLen(ctx, cfg.ProcessingList).Result()
	require.NoError(t, err)
	assert.Zero(t, processing)
}

func TestQueue_PublishBatchPreservesOrder(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	batch := []*models.JobPayload{
		{PhoneNumber: "+919876543210", TemplateName: "first"},
		{PhoneNumber: "+919876543211", TemplateName: "second"},
		{PhoneNumber: "+919876543212", TemplateName: "third"},
	}
	require.NoError(t, q.PublishBatch(ctx, batch))

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), depth)

	for _, want := range []string{"first", "second", "third"} {
		delivery, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, delivery.Payload)
		assert.Equal(t, want, delivery.Payload.TemplateName)
		require.NoError(t, q.Ack(ctx, delivery))
	}
}

func TestQueue_MalformedFrameIsDeliveredWithParseErr(t *testing.T) {
	q, client := setupQueue(t)
	ctx := context.Background()
	cfg := queueConfig()

	require.NoError(t, client.LPush(ctx, cfg.JobList, `{"templateName":`).Err())

	delivery, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, delivery)
	assert.Error(t, delivery.ParseErr)
	assert.Nil(t, delivery.Payload)
	assert.Equal(t, `{"templateName":`, delivery.Raw)

	require.NoError(t, q.DeadLetter(ctx, delivery))

	dead, err := client.LLen(ctx, cfg.DeadLetterList).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)

	processing, err := client.LLen(ctx, cfg.ProcessingList).Result()
	require.NoError(t, err)
	assert.Zero(t, processing)
}

func TestQueue_RetryBudget(t *testing.T) {
	q, client := setupQueue(t)
	ctx := context.Background()
	cfg := queueConfig()

	require.NoError(t, q.Publish(ctx, &models.JobPayload{
		PhoneNumber:  "+919876543210",
		TemplateName: "welcome_offer",
		MaxRetries:   2,
	}))

	// Two retries re-queue with an incremented counter, the third attempt
	// exhausts the budget and dead-letters.
	for attempt := 1; attempt <= 2; attempt++ {
		delivery, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, delivery.Payload)

		requeued, err := q.Retry(ctx, delivery)
		require.NoError(t, err)
		assert.True(t, requeued)

		next, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, next.Payload)
		assert.Equal(t, attempt, next.Payload.RetryCount)

		// Push the claimed frame back for the next iteration.
		if attempt < 2 {
			require.NoError(t, q.Ack(ctx, next))
			require.NoError(t, client.LPush(ctx, cfg.JobList, next.Raw).Err())
		} else {
			requeued, err = q.Retry(ctx, next)
			require.NoError(t, err)
			assert.False(t, requeued)
		}
	}

	dead, err := client.LLen(ctx, cfg.DeadLetterList).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)

	processing, err := client.LLen(ctx, cfg.ProcessingList).Result()
	require.NoError(t, err)
	assert.Zero(t, processing)
}

func TestQueue_RetryKeepsClaimWhenPublishFails(t *testing.T) {
	q, client := setupQueue(t)
	ctx := context.Background()
	cfg := queueConfig()

	require.NoError(t, q.Publish(ctx, &models.JobPayload{
		PhoneNumber:  "+919876543210",
		TemplateName: "welcome_offer",
		MaxRetries:   2,
	}))

	delivery, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, delivery.Payload)

	// Wedge the job list so the re-publish LPUSH fails with WRONGTYPE.
	require.NoError(t, client.Set(ctx, cfg.JobList, "wedge", 0).Err())

	requeued, err := q.Retry(ctx, delivery)
	assert.Error(t, err)
	assert.False(t, requeued)

	// The claimed frame must survive a failed re-publish.
	processing, err := client.LLen(ctx, cfg.ProcessingList).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), processing)

	require.NoError(t, client.Del(ctx, cfg.JobList).Err())

	moved, err := q.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	redelivered, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, redelivered.Payload)
	assert.Equal(t, "welcome_offer", redelivered.Payload.TemplateName)
	assert.Zero(t, redelivered.Payload.RetryCount)
}

func TestQueue_RecoverRequeuesClaimedJobs(t *testing.T) {
	q, client := setupQueue(t)
	ctx := context.Background()
	cfg := queueConfig()

	require.NoError(t, q.PublishBatch(ctx, []*models.JobPayload{
		{PhoneNumber: "+919876543210", TemplateName: "first"},
		{PhoneNumber: "+919876543211", TemplateName: "second"},
	}))

	// Claim both without acking, as a crashed worker would leave them.
	for i := 0; i < 2; i++ {
		delivery, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, delivery.Payload)
	}

	moved, err := q.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	processing, err := client.LLen(ctx, cfg.ProcessingList).Result()
	require.NoError(t, err)
	assert.Zero(t, processing)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)

	delivery, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, delivery.Payload)
	assert.Equal(t, "first", delivery.Payload.TemplateName)
}

func TestQueue_Ping(t *testing.T) {
	q, _ := setupQueue(t)
	assert.NoError(t, q.Ping(context.Background()))
}
