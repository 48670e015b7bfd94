package repository_test

import (
	"context"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sendloop/wa-platform/internal/repository"
)

func TestRepository_Wiring(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)

	assert.NotNil(t, repo.Contact())
	assert.NotNil(t, repo.Conversation())
	assert.NotNil(t, repo.Message())
	assert.NotNil(t, repo.Campaign())
	assert.NotNil(t, repo.Template())
	assert.NotNil(t, repo.Segment())
	assert.NoError(t, repo.Ping())
}

func TestContactRepository_UpsertByPhone(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	ctx := context.Background()

	contact, err := repo.Contact().UpsertByPhone(ctx, "+15551230000", "Alice")
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, "+15551230000", contact.PhoneNumber)
	assert.Equal(t, "Alice", contact.Name.String)

	// Same phone resolves to the same row; the first recorded name wins.
	again, err := repo.Contact().UpsertByPhone(ctx, "+15551230000", "Someone Else")
	require.NoError(t, err)
	assert.Equal(t, contact.ID, again.ID)
	assert.Equal(t, "Alice", again.Name.String)

	// An empty sender name never clobbers a known one.
	blank, err := repo.Contact().UpsertByPhone(ctx, "+15551230000", "")
	require.NoError(t, err)
	assert.Equal(t, contact.ID, blank.ID)
	assert.Equal(t, "Alice", blank.Name.String)
}

func TestContactRepository_UpsertByPhone_Concurrent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	ctx := context.Background()

	const workers = 8
	ids := make(chan int64, workers)
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		go func() {
			contact, err := repo.Contact().UpsertByPhone(ctx, "+15559990000", "Racer")
			if err != nil {
				errs <- err
				return
			}
			ids <- contact.ID
		}()
	}

	var first int64
	for i := 0; i < workers; i++ {
		select {
		case err := <-errs:
			t.Fatalf("concurrent upsert failed: %v", err)
		case id := <-ids:
			if first == 0 {
				first = id
			}
			assert.Equal(t, first, id, "all upserts must resolve to one contact")
		}
	}
}

func TestConversationRepository_FindOrCreate(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	ctx := context.Background()

	contactID, err := insertTestContact(db, "+15551110000", "Bob")
	require.NoError(t, err)

	conv, err := repo.Conversation().FindOrCreate(ctx, contactID)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, contactID, conv.ContactID)

	again, err := repo.Conversation().FindOrCreate(ctx, contactID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID, "one conversation per contact")
}

func TestConversationRepository_MarkRead(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	ctx := context.Background()

	contactID, err := insertTestContact(db, "+15551110001", "Carol")
	require.NoError(t, err)
	conv, err := repo.Conversation().FindOrCreate(ctx, contactID)
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE conversations SET unread_count = 5 WHERE id = $1`, conv.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Conversation().MarkRead(ctx, conv.ID))

	got, err := repo.Conversation().GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UnreadCount)
}
