package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sendloop/wa-platform/internal/models"
	"github.com/sendloop/wa-platform/internal/repository"
)

func newInboundMessage(conversationID int64, whatsappID, body string) *models.Message {
	msg := &models.Message{
		ConversationID: conversationID,
		Direction:      models.MessageDirectionInbound,
		Type:           "text",
		Body:           body,
		Status:         models.MessageStatusDelivered,
		Timestamp:      time.Now(),
	}
	msg.WhatsAppID.String = whatsappID
	msg.WhatsAppID.Valid = whatsappID != ""
	return msg
}

func TestMessageRepository_CreateInbound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	ctx := context.Background()

	contactID, err := insertTestContact(db, "+15551230000", "Alice")
	require.NoError(t, err)
	conv, err := repo.Conversation().FindOrCreate(ctx, contactID)
	require.NoError(t, err)

	inserted, err := repo.Message().CreateInbound(ctx, newInboundMessage(conv.ID, "wamid.A1", "hi"))
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := repo.Conversation().GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UnreadCount)

	// Replaying the same provider id changes nothing.
	inserted, err = repo.Message().CreateInbound(ctx, newInboundMessage(conv.ID, "wamid.A1", "hi"))
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err = repo.Conversation().GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UnreadCount, "duplicate delivery must not bump the unread counter")

	var count int
	require.NoError(t, db.Get(&count, `SELECT count(*) FROM messages`))
	assert.Equal(t, 1, count)
}

func TestMessageRepository_CreateInbound_ConcurrentDuplicates(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	ctx := context.Background()

	contactID, err := insertTestContact(db, "+15551230001", "Bob")
	require.NoError(t, err)
	conv, err := repo.Conversation().FindOrCreate(ctx, contactID)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	insertedCount := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := repo.Message().CreateInbound(ctx, newInboundMessage(conv.ID, "wamid.RACE", "hello"))
			assert.NoError(t, err)
			if inserted {
				mu.Lock()
				insertedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, insertedCount, "exactly one delivery wins the insert")

	got, err := repo.Conversation().GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UnreadCount)
}

func TestMessageRepository_UpdateStatusByWhatsAppID(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	ctx := context.Background()

	contactID, err := insertTestContact(db, "+15551230002", "Carol")
	require.NoError(t, err)
	conv, err := repo.Conversation().FindOrCreate(ctx, contactID)
	require.NoError(t, err)

	msg := newInboundMessage(conv.ID, "wamid.S1", "status target")
	msg.Direction = models.MessageDirectionOutbound
	msg.Status = models.MessageStatusSent
	require.NoError(t, repo.Message().CreateOutbound(ctx, msg))

	updated, changed, err := repo.Message().UpdateStatusByWhatsAppID(ctx, "wamid.S1", models.MessageStatusRead, time.Now())
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.True(t, changed)
	assert.Equal(t, models.MessageStatusRead, updated.Status)

	// The same status again reports no change: the duplicate webhook
	// must not double-increment campaign counters upstream.
	updated, changed, err = repo.Message().UpdateStatusByWhatsAppID(ctx, "wamid.S1", models.MessageStatusRead, time.Now())
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.False(t, changed)

	// Unknown provider ids yield a nil message, not an error.
	updated, changed, err = repo.Message().UpdateStatusByWhatsAppID(ctx, "wamid.UNKNOWN", models.MessageStatusRead, time.Now())
	require.NoError(t, err)
	assert.Nil(t, updated)
	assert.False(t, changed)
}

func TestMessageRepository_UpdateStatus_OutOfOrderNeverRegresses(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	ctx := context.Background()

	contactID, err := insertTestContact(db, "+15551230003", "Dave")
	require.NoError(t, err)
	conv, err := repo.Conversation().FindOrCreate(ctx, contactID)
	require.NoError(t, err)

	msg := newInboundMessage(conv.ID, "wamid.S2", "ordering target")
	msg.Direction = models.MessageDirectionOutbound
	msg.Status = models.MessageStatusSent
	require.NoError(t, repo.Message().CreateOutbound(ctx, msg))

	updated, changed, err := repo.Message().UpdateStatusByWhatsAppID(ctx, "wamid.S2", models.MessageStatusRead, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.MessageStatusRead, updated.Status)

	// A delivered event arriving after read is stale: the row keeps read
	// and no change is reported.
	updated, changed, err = repo.Message().UpdateStatusByWhatsAppID(ctx, "wamid.S2", models.MessageStatusDelivered, time.Now())
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.False(t, changed)
	assert.Equal(t, models.MessageStatusRead, updated.Status)

	// A replayed read after the stale delivered must not count again
	// either; without ranking it would re-advance and double-bump.
	updated, changed, err = repo.Message().UpdateStatusByWhatsAppID(ctx, "wamid.S2", models.MessageStatusRead, time.Now())
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.False(t, changed)
	assert.Equal(t, models.MessageStatusRead, updated.Status)
}

func TestMessageRepository_ExistsByWhatsAppID(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	ctx := context.Background()

	contactID, err := insertTestContact(db, "+15551230003", "Dave")
	require.NoError(t, err)
	conv, err := repo.Conversation().FindOrCreate(ctx, contactID)
	require.NoError(t, err)

	exists, err := repo.Message().ExistsByWhatsAppID(ctx, "wamid.E1")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.Message().CreateInbound(ctx, newInboundMessage(conv.ID, "wamid.E1", "hello"))
	require.NoError(t, err)

	exists, err = repo.Message().ExistsByWhatsAppID(ctx, "wamid.E1")
	require.NoError(t, err)
	assert.True(t, exists)
}
