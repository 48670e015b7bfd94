package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sendloop/wa-platform/internal/models"
)

// VerifyWebhook answers the provider's subscription handshake: echo the
// challenge when the verify token matches, 403 otherwise.
func (h *Handler) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == h.cfg.VerifyToken {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
		return
	}

	h.logger.Warn("Webhook verification rejected", zap.String("mode", mode))
	w.WriteHeader(http.StatusForbidden)
}

// ReceiveWebhook acknowledges the provider immediately and hands the
// payload to the processor pool. Once the signature checks out, the
// response never depends on downstream processing.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Warn("Failed to read webhook body", zap.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	if !h.verifySignature(r, body) {
		h.logger.Warn("Webhook signature mismatch")
		w.WriteHeader(http.StatusForbidden)
		return
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		// Malformed bodies still get a 200: the provider retries on
		// anything else and a retry cannot fix a bad payload.
		h.logger.Warn("Failed to decode webhook payload", zap.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	h.processor.Enqueue(&payload)
	w.WriteHeader(http.StatusOK)
}

// verifySignature checks the X-Hub-Signature-256 header, an HMAC-SHA256 of
// the raw body keyed with the app secret. An empty secret disables the
// check for local setups.
func (h *Handler) verifySignature(r *http.Request, body []byte) bool {
	if h.cfg.AppSecret == "" {
		return true
	}

	header := r.Header.Get("X-Hub-Signature-256")
	signature, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.cfg.AppSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}
