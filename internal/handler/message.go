package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/sendloop/wa-platform/internal/service"
)

// SendMessage accepts a single-recipient template send and queues it.
// The 202 means accepted, not delivered; the worker reports the final
// outcome through the message record and metrics.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var input service.SendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, "invalid request body")
		return
	}

	payload, err := h.service.Message.Enqueue(r.Context(), input)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, payload)
}

type replyRequest struct {
	Text string `json:"text"`
}

// ReplyToConversation sends a free-form text into an existing
// conversation synchronously.
func (h *Handler) ReplyToConversation(w http.ResponseWriter, r *http.Request) {
	conversationID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || conversationID <= 0 {
		h.sendError(w, r, http.StatusNotFound, errorCodeNotFound, "conversation not found")
		return
	}

	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, "invalid request body")
		return
	}

	msg, err := h.service.Message.Reply(r.Context(), conversationID, req.Text)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	render.JSON(w, r, msg)
}
