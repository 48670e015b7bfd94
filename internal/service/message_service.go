package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sendloop/wa-platform/internal/config"
	"github.com/sendloop/wa-platform/internal/models"
	"github.com/sendloop/wa-platform/internal/phone"
	"github.com/sendloop/wa-platform/internal/queue"
	"github.com/sendloop/wa-platform/internal/repository"
	"github.com/sendloop/wa-platform/internal/whatsapp"
)

type messageService struct {
	cfg       *config.Config
	repo      repository.Repository
	publisher queue.Publisher
	client    whatsapp.Client
	breaker   *CircuitBreaker
	logger    *zap.Logger
}

// NewMessageService creates the outbound message service. Queue-bound
// sends go through the publisher; conversational replies call the
// provider synchronously behind a circuit breaker.
func NewMessageService(
	cfg *config.Config,
	repo repository.Repository,
	publisher queue.Publisher,
	client whatsapp.Client,
	logger *zap.Logger,
) MessageService {
	return &messageService{
		cfg:       cfg,
		repo:      repo,
		publisher: publisher,
		client:    client,
		breaker:   NewCircuitBreaker("whatsapp-reply", &cfg.WhatsApp.CircuitBreaker, logger),
		logger:    logger,
	}
}

// Enqueue validates addressing and queues one template send. Full
// payload validation happens in the worker; only the preconditions a
// caller can fix immediately are checked here.
func (s *messageService) Enqueue(ctx context.Context, input SendMessageInput) (*models.JobPayload, error) {
	hasContact := input.ContactID != nil
	hasPhone := input.PhoneNumber != ""
	if hasContact == hasPhone {
		return nil, ErrInvalidRecipient
	}
	if input.TemplateName == "" {
		return nil, ErrTemplateNameRequired
	}

	payload := &models.JobPayload{
		ContactID:    input.ContactID,
		PhoneNumber:  input.PhoneNumber,
		TemplateName: input.TemplateName,
		Params:       input.Params,
		ButtonParams: input.ButtonParams,
		ImageURL:     input.ImageURL,
		DocumentURL:  input.DocumentURL,
		Filename:     input.Filename,
		MaxRetries:   s.cfg.Queue.MaxRetries,
	}
	if err := s.publisher.Publish(ctx, payload); err != nil {
		return nil, fmt.Errorf("failed to enqueue message: %w", err)
	}

	s.logger.Info("Message enqueued", zap.String("template", input.TemplateName))
	return payload, nil
}

// Reply sends a free-form text into an existing conversation and
// records the outbound message.
func (s *messageService) Reply(ctx context.Context, conversationID int64, text string) (*models.Message, error) {
	if text == "" {
		return nil, ErrEmptyMessage
	}

	conversation, err := s.repo.Conversation().GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}

	contact, err := s.repo.Contact().GetByID(ctx, conversation.ContactID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact: %w", err)
	}
	if contact == nil {
		return nil, fmt.Errorf("conversation %d references missing contact %d", conversationID, conversation.ContactID)
	}

	to := phone.Digits(contact.PhoneNumber)
	var whatsappID string
	err = s.breaker.Execute(ctx, func() error {
		var sendErr error
		whatsappID, sendErr = s.client.SendTextMessage(ctx, to, text)
		return sendErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send reply: %w", err)
	}

	msg := &models.Message{
		ConversationID: conversation.ID,
		Direction:      models.MessageDirectionOutbound,
		Type:           "text",
		Body:           text,
		Status:         models.MessageStatusSent,
		Timestamp:      time.Now(),
	}
	msg.WhatsAppID.String = whatsappID
	msg.WhatsAppID.Valid = whatsappID != ""
	if err := s.repo.Message().CreateOutbound(ctx, msg); err != nil {
		// Provider accepted the send; the local record is best-effort.
		s.logger.Error("Failed to persist outbound reply",
			zap.String("whatsapp_id", whatsappID), zap.Error(err))
	}

	if err := s.repo.Conversation().MarkRead(ctx, conversation.ID); err != nil {
		s.logger.Warn("Failed to mark conversation read",
			zap.Int64("conversation_id", conversation.ID), zap.Error(err))
	}

	return msg, nil
}

// GetCircuitBreakerStatus exposes breaker state for the health endpoint.
func (s *messageService) GetCircuitBreakerStatus() (CircuitBreakerState, uint32, uint32) {
	requests, failures := s.breaker.GetCounts()
	return s.breaker.GetState(), requests, failures
}
