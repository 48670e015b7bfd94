// Package handler provides HTTP request handlers for the application.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/sendloop/wa-platform/internal/config"
	"github.com/sendloop/wa-platform/internal/middleware"
	"github.com/sendloop/wa-platform/internal/service"
	"github.com/sendloop/wa-platform/internal/webhook"
)

const (
	errorCodeNotFound          = "NOT_FOUND"
	errorCodeValidation        = "VALIDATION_ERROR"
	errorCodeInvalidTransition = "INVALID_TRANSITION"
)

type Handler struct {
	service   *service.Service
	processor *webhook.Processor
	cfg       *config.WebhookConfig
	logger    *zap.Logger
}

// NewHandler creates a new handler instance.
func NewHandler(
	service *service.Service,
	processor *webhook.Processor,
	cfg *config.WebhookConfig,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		service:   service,
		processor: processor,
		cfg:       cfg,
		logger:    logger,
	}
}

// HealthCheck reports aggregate subsystem health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := h.service.Health.GetHealth(r.Context())

	if health.Status == service.StatusUnhealthy {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, health)
}

type errorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) {
	render.Status(r, statusCode)
	render.JSON(w, r, errorResponse{
		Error:     errorCode,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// serviceError maps service-layer sentinels onto HTTP responses.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case service.IsNotFound(err):
		h.sendError(w, r, http.StatusNotFound, errorCodeNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrCampaignLocked):
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidTransition, err.Error())
	case isPreconditionError(err):
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, err.Error())
	default:
		requestID := middleware.GetRequestID(r.Context())
		h.logger.Error("Request failed",
			zap.String("request_id", requestID),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, middleware.ErrorMessageInternal)
	}
}
