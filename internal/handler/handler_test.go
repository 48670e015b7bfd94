package handler_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/sendloop/wa-platform/internal/config"
	"github.com/sendloop/wa-platform/internal/handler"
	"github.com/sendloop/wa-platform/internal/models"
	repomocks "github.com/sendloop/wa-platform/internal/repository/mocks"
	"github.com/sendloop/wa-platform/internal/service"
	servicemocks "github.com/sendloop/wa-platform/internal/service/mocks"
	"github.com/sendloop/wa-platform/internal/webhook"
)

type handlerFixture struct {
	campaigns *servicemocks.MockCampaignService
	messages  *servicemocks.MockMessageService
	health    *servicemocks.MockHealthService
	router    chi.Router
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	ctrl := gomock.NewController(t)

	f := &handlerFixture{
		campaigns: servicemocks.NewMockCampaignService(ctrl),
		messages:  servicemocks.NewMockMessageService(ctrl),
		health:    servicemocks.NewMockHealthService(ctrl),
	}

	svc := &service.Service{
		Campaign: f.campaigns,
		Message:  f.messages,
		Health:   f.health,
	}

	cfg := &config.WebhookConfig{
		VerifyToken:        "secret",
		DefaultCountryCode: "91",
		ProcessorPoolSize:  1,
		ProcessorQueueSize: 16,
		EventTimeout:       5,
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	processor := webhook.NewProcessor(cfg, repomocks.NewMockRepository(ctrl), redisClient,
		webhook.NewMonitor(time.Hour), zap.NewNop())

	h := handler.NewHandler(svc, processor, cfg, zap.NewNop())

	r := chi.NewRouter()
	r.Get("/health", h.HealthCheck)
	r.Get("/webhook", h.VerifyWebhook)
	r.Post("/webhook", h.ReceiveWebhook)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", h.CreateCampaign)
			r.Get("/stats", h.CampaignStats)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetCampaign)
				r.Put("/", h.UpdateCampaign)
				r.Delete("/", h.DeleteCampaign)
				r.Post("/start", h.StartCampaign)
				r.Post("/pause", h.PauseCampaign)
				r.Post("/resume", h.ResumeCampaign)
				r.Get("/analytics", h.CampaignAnalytics)
			})
		})
		r.Post("/messages/send", h.SendMessage)
		r.Post("/conversations/{id}/reply", h.ReplyToConversation)
	})
	f.router = r

	return f
}

func (f *handlerFixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestVerifyWebhook(t *testing.T) {
	f := newHandlerFixture(t)

	t.Run("valid handshake echoes challenge", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=12345", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "12345", rec.Body.String())
	})

	t.Run("wrong token rejected", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("wrong mode rejected", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/webhook?hub.mode=unsubscribe&hub.verify_token=secret", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestReceiveWebhook_AlwaysAcknowledges(t *testing.T) {
	f := newHandlerFixture(t)

	t.Run("valid payload", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/webhook", `{"object":"whatsapp_business_account","entry":[]}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("malformed payload still gets 200", func(t *testing.T) {
		// A retry cannot fix a bad payload; refusing it only makes the
		// provider retransmit forever.
		rec := f.do(http.MethodPost, "/webhook", `{"entry": [`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestReceiveWebhook_SignatureCheck(t *testing.T) {
	ctrl := gomock.NewController(t)

	cfg := &config.WebhookConfig{
		VerifyToken:        "secret",
		AppSecret:          "app-secret",
		DefaultCountryCode: "91",
		ProcessorPoolSize:  1,
		ProcessorQueueSize: 16,
		EventTimeout:       5,
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	processor := webhook.NewProcessor(cfg, repomocks.NewMockRepository(ctrl), redisClient,
		webhook.NewMonitor(time.Hour), zap.NewNop())
	h := handler.NewHandler(&service.Service{}, processor, cfg, zap.NewNop())

	body := `{"object":"whatsapp_business_account","entry":[]}`
	mac := hmac.New(sha256.New, []byte("app-secret"))
	mac.Write([]byte(body))
	signature := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	post := func(sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if sig != "" {
			req.Header.Set("X-Hub-Signature-256", sig)
		}
		rec := httptest.NewRecorder()
		h.ReceiveWebhook(rec, req)
		return rec
	}

	t.Run("valid signature accepted", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, post(signature).Code)
	})

	t.Run("forged signature rejected", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, post("sha256="+strings.Repeat("ab", 32)).Code)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, post("").Code)
	})
}

func TestCreateCampaign(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.campaigns.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(&models.Campaign{ID: 11, Name: "spring sale", Status: models.CampaignStatusDraft}, nil)

		rec := f.do(http.MethodPost, "/api/v1/campaigns", `{"name":"spring sale","template_id":2,"segment_ids":[4]}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var campaign models.Campaign
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &campaign))
		assert.Equal(t, int64(11), campaign.ID)
	})

	t.Run("invalid body", func(t *testing.T) {
		f := newHandlerFixture(t)
		rec := f.do(http.MethodPost, "/api/v1/campaigns", `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
	})

	t.Run("missing name", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.campaigns.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(nil, service.ErrNameRequired)

		rec := f.do(http.MethodPost, "/api/v1/campaigns", `{"template_id":2}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
	})
}

func TestGetCampaign(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.campaigns.EXPECT().Get(gomock.Any(), int64(11)).
			Return(&models.Campaign{ID: 11, Name: "spring sale"}, nil)

		rec := f.do(http.MethodGet, "/api/v1/campaigns/11", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.campaigns.EXPECT().Get(gomock.Any(), int64(404)).
			Return(nil, service.ErrCampaignNotFound)

		rec := f.do(http.MethodGet, "/api/v1/campaigns/404", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
	})

	t.Run("non-numeric id", func(t *testing.T) {
		f := newHandlerFixture(t)
		rec := f.do(http.MethodGet, "/api/v1/campaigns/abc", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDeleteCampaign(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.campaigns.EXPECT().Delete(gomock.Any(), int64(11)).Return(nil)

		rec := f.do(http.MethodDelete, "/api/v1/campaigns/11", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("sending campaign locked", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.campaigns.EXPECT().Delete(gomock.Any(), int64(11)).Return(service.ErrCampaignLocked)

		rec := f.do(http.MethodDelete, "/api/v1/campaigns/11", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_TRANSITION", errorCode(t, rec))
	})
}

func TestStartCampaign(t *testing.T) {
	t.Run("started", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.campaigns.EXPECT().Start(gomock.Any(), int64(11)).
			Return(&service.StartResult{CampaignID: 11, Recipients: 120, Enqueued: 120}, nil)

		rec := f.do(http.MethodPost, "/api/v1/campaigns/11/start", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		var result service.StartResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, 120, result.Enqueued)
	})

	t.Run("already sending", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.campaigns.EXPECT().Start(gomock.Any(), int64(11)).
			Return(nil, service.ErrInvalidTransition)

		rec := f.do(http.MethodPost, "/api/v1/campaigns/11/start", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_TRANSITION", errorCode(t, rec))
	})

	t.Run("no recipients", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.campaigns.EXPECT().Start(gomock.Any(), int64(11)).
			Return(nil, service.ErrNoRecipients)

		rec := f.do(http.MethodPost, "/api/v1/campaigns/11/start", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
	})
}

func TestPauseCampaign(t *testing.T) {
	f := newHandlerFixture(t)

	f.campaigns.EXPECT().Pause(gomock.Any(), int64(11)).Return(nil)
	f.campaigns.EXPECT().Get(gomock.Any(), int64(11)).
		Return(&models.Campaign{ID: 11, Status: models.CampaignStatusPaused}, nil)

	rec := f.do(http.MethodPost, "/api/v1/campaigns/11/pause", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var campaign models.Campaign
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &campaign))
	assert.Equal(t, models.CampaignStatusPaused, campaign.Status)
}

func TestCampaignAnalytics(t *testing.T) {
	f := newHandlerFixture(t)

	f.campaigns.EXPECT().Analytics(gomock.Any(), int64(11)).
		Return(&models.CampaignAnalytics{CampaignID: 11, DeliveryRate: 75}, nil)

	rec := f.do(http.MethodGet, "/api/v1/campaigns/11/analytics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var analytics models.CampaignAnalytics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analytics))
	assert.InDelta(t, 75.0, analytics.DeliveryRate, 0.001)
}

func TestCampaignStats(t *testing.T) {
	f := newHandlerFixture(t)

	f.campaigns.EXPECT().Stats(gomock.Any()).
		Return(&models.CampaignStats{Total: 5, Sending: 2}, nil)

	rec := f.do(http.MethodGet, "/api/v1/campaigns/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSendMessage(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.messages.EXPECT().Enqueue(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, input service.SendMessageInput) (*models.JobPayload, error) {
				assert.Equal(t, "+919876543210", input.PhoneNumber)
				return &models.JobPayload{PhoneNumber: input.PhoneNumber, TemplateName: input.TemplateName}, nil
			})

		rec := f.do(http.MethodPost, "/api/v1/messages/send",
			`{"phone_number":"+919876543210","template_name":"welcome_offer"}`)

		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("ambiguous recipient", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.messages.EXPECT().Enqueue(gomock.Any(), gomock.Any()).
			Return(nil, service.ErrInvalidRecipient)

		rec := f.do(http.MethodPost, "/api/v1/messages/send",
			`{"contact_id":7,"phone_number":"+919876543210","template_name":"welcome_offer"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
	})
}

func TestReplyToConversation(t *testing.T) {
	t.Run("replied", func(t *testing.T) {
		f := newHandlerFixture(t)
		msg := &models.Message{ID: 3, ConversationID: 21, Body: "thanks"}
		f.messages.EXPECT().Reply(gomock.Any(), int64(21), "thanks").Return(msg, nil)

		rec := f.do(http.MethodPost, "/api/v1/conversations/21/reply", `{"text":"thanks"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.messages.EXPECT().Reply(gomock.Any(), int64(404), "hello").
			Return(nil, service.ErrConversationNotFound)

		rec := f.do(http.MethodPost, "/api/v1/conversations/404/reply", `{"text":"hello"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
	})
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.health.EXPECT().GetHealth(gomock.Any()).
			Return(&service.HealthStatus{Status: service.StatusHealthy})

		rec := f.do(http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unhealthy", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.health.EXPECT().GetHealth(gomock.Any()).
			Return(&service.HealthStatus{Status: service.StatusUnhealthy, RedisStatus: service.StatusDown})

		rec := f.do(http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
