// Package whatsapp wraps the WhatsApp Business Cloud API send surface.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sendloop/wa-platform/internal/config"
)

// Client is the delivery adapter consumed by the job worker. Both methods
// return the provider-assigned message id, or a *SendError carrying the
// retryability classification.
type Client interface {
	SendTextMessage(ctx context.Context, to, text string) (string, error)
	SendTemplateMessage(ctx context.Context, msg *TemplateMessage) (string, error)
}

type client struct {
	cfg        *config.WhatsAppConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg *config.WhatsAppConfig, logger *zap.Logger) Client {
	return &client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		logger: logger,
	}
}

// SendTextMessage sends a plain text message.
func (c *client) SendTextMessage(ctx context.Context, to, text string) (string, error) {
	req := &sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &textBody{Body: text},
	}

	return c.send(ctx, req)
}

// SendTemplateMessage sends a template message with body and button
// parameters and an optional media header.
func (c *client) SendTemplateMessage(ctx context.Context, msg *TemplateMessage) (string, error) {
	language := msg.Language
	if language == "" {
		language = "en"
	}

	template := &templateBody{
		Name:     msg.TemplateName,
		Language: languageBody{Code: language},
	}

	switch {
	case msg.ImageURL != "":
		template.Components = append(template.Components, componentRow{
			Type:       "header",
			Parameters: []parameterRow{{Type: "image", Image: &mediaLink{Link: msg.ImageURL}}},
		})
	case msg.DocumentURL != "":
		template.Components = append(template.Components, componentRow{
			Type: "header",
			Parameters: []parameterRow{{
				Type:     "document",
				Document: &documentLink{Link: msg.DocumentURL, Filename: msg.Filename},
			}},
		})
	}

	if len(msg.BodyParams) > 0 {
		params := make([]parameterRow, 0, len(msg.BodyParams))
		for _, p := range msg.BodyParams {
			params = append(params, parameterRow{Type: "text", Text: p})
		}
		template.Components = append(template.Components, componentRow{Type: "body", Parameters: params})
	}

	for i, p := range msg.ButtonParams {
		template.Components = append(template.Components, componentRow{
			Type:       "button",
			SubType:    "url",
			Index:      strconv.Itoa(i),
			Parameters: []parameterRow{{Type: "text", Text: p}},
		})
	}

	req := &sendRequest{
		MessagingProduct: "whatsapp",
		To:               msg.To,
		Type:             "template",
		Template:         template,
	}

	return c.send(ctx, req)
}

func (c *client) send(ctx context.Context, payload *sendRequest) (string, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.cfg.BaseURL, c.cfg.PhoneNumberID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransport(err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var apiErr errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)

		c.logger.Warn("Cloud API rejected send",
			zap.Int("status", resp.StatusCode),
			zap.Int("code", apiErr.Error.Code),
			zap.String("message", apiErr.Error.Message))

		return "", classifyStatus(resp.StatusCode, apiErr.Error.Code, apiErr.Error.Message)
	}

	var sendResp sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sendResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(sendResp.Messages) == 0 {
		return "", &SendError{StatusCode: resp.StatusCode, Message: "response carried no message id"}
	}

	return sendResp.Messages[0].ID, nil
}
