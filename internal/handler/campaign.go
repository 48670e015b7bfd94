package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/sendloop/wa-platform/internal/service"
)

// CreateCampaign registers a new draft campaign.
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var input service.CreateCampaignInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, "invalid request body")
		return
	}

	campaign, err := h.service.Campaign.Create(r.Context(), input)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, campaign)
}

// GetCampaign returns one campaign.
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	campaign, err := h.service.Campaign.Get(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	render.JSON(w, r, campaign)
}

// UpdateCampaign mutates a campaign that is not sending or completed.
func (h *Handler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	var input service.UpdateCampaignInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, "invalid request body")
		return
	}

	campaign, err := h.service.Campaign.Update(r.Context(), id, input)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	render.JSON(w, r, campaign)
}

// DeleteCampaign removes a campaign unless it is sending.
func (h *Handler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	if err := h.service.Campaign.Delete(r.Context(), id); err != nil {
		h.serviceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StartCampaign fans the campaign out to its resolved contacts.
func (h *Handler) StartCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	result, err := h.service.Campaign.Start(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	render.JSON(w, r, result)
}

// PauseCampaign flips sending → paused.
func (h *Handler) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Campaign.Pause)
}

// ResumeCampaign flips paused → sending.
func (h *Handler) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Campaign.Resume)
}

// CampaignAnalytics returns the derived rates for one campaign.
func (h *Handler) CampaignAnalytics(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	analytics, err := h.service.Campaign.Analytics(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	render.JSON(w, r, analytics)
}

// CampaignStats returns aggregate campaign counts by status.
func (h *Handler) CampaignStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Campaign.Stats(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	render.JSON(w, r, stats)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, flip func(ctx context.Context, id int64) error) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	if err := flip(r.Context(), id); err != nil {
		h.serviceError(w, r, err)
		return
	}

	campaign, err := h.service.Campaign.Get(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	render.JSON(w, r, campaign)
}

func (h *Handler) campaignID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.sendError(w, r, http.StatusNotFound, errorCodeNotFound, "campaign not found")
		return 0, false
	}
	return id, true
}
