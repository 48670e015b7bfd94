package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/sendloop/wa-platform/internal/config"
	"github.com/sendloop/wa-platform/internal/models"
	queuemocks "github.com/sendloop/wa-platform/internal/queue/mocks"
	repomocks "github.com/sendloop/wa-platform/internal/repository/mocks"
	"github.com/sendloop/wa-platform/internal/service"
	whatsappmocks "github.com/sendloop/wa-platform/internal/whatsapp/mocks"
)

type messageFixture struct {
	repo          *repomocks.MockRepository
	contacts      *repomocks.MockContactRepository
	conversations *repomocks.MockConversationRepository
	messages      *repomocks.MockMessageRepository
	publisher     *queuemocks.MockPublisher
	client        *whatsappmocks.MockClient
	service       service.MessageService
}

func newMessageFixture(t *testing.T) *messageFixture {
	ctrl := gomock.NewController(t)

	f := &messageFixture{
		repo:          repomocks.NewMockRepository(ctrl),
		contacts:      repomocks.NewMockContactRepository(ctrl),
		conversations: repomocks.NewMockConversationRepository(ctrl),
		messages:      repomocks.NewMockMessageRepository(ctrl),
		publisher:     queuemocks.NewMockPublisher(ctrl),
		client:        whatsappmocks.NewMockClient(ctrl),
	}
	f.repo.EXPECT().Contact().Return(f.contacts).AnyTimes()
	f.repo.EXPECT().Conversation().Return(f.conversations).AnyTimes()
	f.repo.EXPECT().Message().Return(f.messages).AnyTimes()

	cfg := &config.Config{
		Queue: config.QueueConfig{MaxRetries: 3},
		WhatsApp: config.WhatsAppConfig{
			CircuitBreaker: config.CircuitBreakerConfig{
				MaxRequests:      3,
				Interval:         10,
				Timeout:          60,
				FailureRatio:     0.6,
				ConsecutiveFails: 100,
			},
		},
	}
	f.service = service.NewMessageService(cfg, f.repo, f.publisher, f.client, zap.NewNop())
	return f
}

func TestMessageService_Enqueue(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	f.publisher.EXPECT().Publish(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, p *models.JobPayload) error {
			assert.Equal(t, "+919876543210", p.PhoneNumber)
			assert.Equal(t, "welcome_offer", p.TemplateName)
			assert.Equal(t, 3, p.MaxRetries)
			return nil
		})

	payload, err := f.service.Enqueue(ctx, service.SendMessageInput{
		PhoneNumber:  "+919876543210",
		TemplateName: "welcome_offer",
		Params:       []string{"Alice"},
	})

	require.NoError(t, err)
	assert.Equal(t, "welcome_offer", payload.TemplateName)
}

func TestMessageService_Enqueue_Preconditions(t *testing.T) {
	ctx := context.Background()
	contactID := int64(7)

	tests := []struct {
		name  string
		input service.SendMessageInput
		want  error
	}{
		{
			name:  "neither contact nor phone",
			input: service.SendMessageInput{TemplateName: "welcome_offer"},
			want:  service.ErrInvalidRecipient,
		},
		{
			name: "both contact and phone",
			input: service.SendMessageInput{
				ContactID:    &contactID,
				PhoneNumber:  "+919876543210",
				TemplateName: "welcome_offer",
			},
			want: service.ErrInvalidRecipient,
		},
		{
			name:  "missing template name",
			input: service.SendMessageInput{ContactID: &contactID},
			want:  service.ErrTemplateNameRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMessageFixture(t)
			_, err := f.service.Enqueue(ctx, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMessageService_Reply(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	f.conversations.EXPECT().GetByID(ctx, int64(21)).
		Return(&models.Conversation{ID: 21, ContactID: 5}, nil)
	f.contacts.EXPECT().GetByID(ctx, int64(5)).
		Return(&models.Contact{ID: 5, PhoneNumber: "+919876543210"}, nil)
	// The provider wants the bare digit form, not the canonical key.
	f.client.EXPECT().SendTextMessage(gomock.Any(), "919876543210", "thanks, noted").
		Return("wamid.R1", nil)
	f.messages.EXPECT().CreateOutbound(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, msg *models.Message) error {
			assert.Equal(t, int64(21), msg.ConversationID)
			assert.Equal(t, models.MessageDirectionOutbound, msg.Direction)
			assert.Equal(t, "thanks, noted", msg.Body)
			assert.Equal(t, "wamid.R1", msg.WhatsAppID.String)
			assert.Equal(t, models.MessageStatusSent, msg.Status)
			return nil
		})
	f.conversations.EXPECT().MarkRead(ctx, int64(21)).Return(nil)

	msg, err := f.service.Reply(ctx, 21, "thanks, noted")

	require.NoError(t, err)
	assert.Equal(t, "wamid.R1", msg.WhatsAppID.String)
}

func TestMessageService_Reply_Preconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("empty text", func(t *testing.T) {
		f := newMessageFixture(t)
		_, err := f.service.Reply(ctx, 21, "")
		assert.ErrorIs(t, err, service.ErrEmptyMessage)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		f := newMessageFixture(t)
		f.conversations.EXPECT().GetByID(ctx, int64(404)).Return(nil, nil)
		_, err := f.service.Reply(ctx, 404, "hello")
		assert.ErrorIs(t, err, service.ErrConversationNotFound)
	})
}

func TestMessageService_Reply_SendFailure(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	f.conversations.EXPECT().GetByID(ctx, int64(21)).
		Return(&models.Conversation{ID: 21, ContactID: 5}, nil)
	f.contacts.EXPECT().GetByID(ctx, int64(5)).
		Return(&models.Contact{ID: 5, PhoneNumber: "+919876543210"}, nil)
	f.client.EXPECT().SendTextMessage(gomock.Any(), "919876543210", "hello").
		Return("", errors.New("provider unavailable"))

	_, err := f.service.Reply(ctx, 21, "hello")
	assert.Error(t, err)
}

func TestMessageService_Reply_PersistFailureStillReturnsMessage(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	// The provider accepted the send; the local record is best-effort.
	f.conversations.EXPECT().GetByID(ctx, int64(21)).
		Return(&models.Conversation{ID: 21, ContactID: 5}, nil)
	f.contacts.EXPECT().GetByID(ctx, int64(5)).
		Return(&models.Contact{ID: 5, PhoneNumber: "+919876543210"}, nil)
	f.client.EXPECT().SendTextMessage(gomock.Any(), "919876543210", "hello").
		Return("wamid.R2", nil)
	f.messages.EXPECT().CreateOutbound(ctx, gomock.Any()).
		Return(errors.New("connection refused"))
	f.conversations.EXPECT().MarkRead(ctx, int64(21)).Return(nil)

	msg, err := f.service.Reply(ctx, 21, "hello")

	require.NoError(t, err)
	assert.Equal(t, "wamid.R2", msg.WhatsAppID.String)
}

func TestMessageService_GetCircuitBreakerStatus(t *testing.T) {
	f := newMessageFixture(t)

	state, requests, failures := f.service.GetCircuitBreakerStatus()

	assert.Equal(t, service.CircuitClosed, state)
	assert.Zero(t, requests)
	assert.Zero(t, failures)
}
