package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"preorder-svc/config"
	"preorder-svc/models"
	"preorder-svc/workflow"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func setupWebhookTest(t *testing.T, provider *stubProvider, cfg *config.Config) (*gin.Engine, *stubRecorder, *stubNotifier) {
	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	recorder := &stubRecorder{}
	notifier := &stubNotifier{}
	confirmer := workflow.NewConfirmer(provider, recorder, notifier, &stubLedger{}, nil, nil, "order_events", cfg.FlutterwaveWebhookSecret, logger)
	handler := NewWebhookHandler(confirmer, cfg, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/webhooks/payment", handler.HandleWebhook)

	return router, recorder, notifier
}

func webhookBody() map[string]any {
	return map[string]any{
		"event": "charge.completed",
		"data": map[string]any{
			"id":     12345,
			"tx_ref": "NEUROLAB-1-abc",
			"status": "successful",
			"amount": 500,
		},
	}
}

func postWebhook(router *gin.Engine, signature string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("verif-hash", signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhook_Success(t *testing.T) {
	provider := &stubProvider{verifyTx: successfulStubTx()}
	router, recorder, notifier := setupWebhookTest(t, provider, testConfig())

	w := postWebhook(router, "whsec", webhookBody())

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if len(recorder.orders) != 1 {
		t.Errorf("Expected 1 order record, got %d", len(recorder.orders))
	}
	if recorder.orders[0].OrderID != "NEUROLAB-1-abc" {
		t.Errorf("Expected order keyed by tx_ref, got %s", recorder.orders[0].OrderID)
	}
	if notifier.sent != 1 {
		t.Errorf("Expected 1 email, got %d", notifier.sent)
	}
}

func TestWebhook_MissingSignature(t *testing.T) {
	router, recorder, _ := setupWebhookTest(t, &stubProvider{verifyTx: successfulStubTx()}, testConfig())

	w := postWebhook(router, "", webhookBody())

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if len(recorder.orders) != 0 {
		t.Errorf("Expected no records, got %d", len(recorder.orders))
	}
}

func TestWebhook_InvalidSignature(t *testing.T) {
	router, recorder, notifier := setupWebhookTest(t, &stubProvider{verifyTx: successfulStubTx()}, testConfig())

	w := postWebhook(router, "wrong", webhookBody())

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
	if len(recorder.orders) != 0 || notifier.sent != 0 {
		t.Error("Expected zero downstream calls on signature mismatch")
	}
}

func TestWebhook_SecretNotConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.FlutterwaveWebhookSecret = ""
	router, _, _ := setupWebhookTest(t, &stubProvider{verifyTx: successfulStubTx()}, cfg)

	w := postWebhook(router, "anything", webhookBody())

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestWebhook_UnsupportedProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Provider = config.ProviderStripe
	router, _, _ := setupWebhookTest(t, &stubProvider{}, cfg)

	w := postWebhook(router, "whsec", webhookBody())

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d for provider without webhook support, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestWebhook_NotionNotConfigured(t *testing.T) {
	provider := &stubProvider{verifyTx: successfulStubTx()}
	cfg := testConfig()
	cfg.NotionDatabaseID = ""
	router, recorder, _ := setupWebhookTest(t, provider, cfg)

	w := postWebhook(router, "whsec", webhookBody())

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
	if provider.verifyCalls != 0 {
		t.Errorf("Expected no gateway calls before the configuration check, got %d", provider.verifyCalls)
	}
	if len(recorder.orders) != 0 {
		t.Errorf("Expected no records, got %d", len(recorder.orders))
	}
}

func TestWebhook_MissingMetadata(t *testing.T) {
	tx := successfulStubTx()
	tx.Meta = models.TransactionMeta{}
	tx.CustomerName = ""
	tx.CustomerEmail = ""
	router, recorder, _ := setupWebhookTest(t, &stubProvider{verifyTx: tx}, testConfig())

	w := postWebhook(router, "whsec", webhookBody())

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d for missing metadata, got %d", http.StatusBadRequest, w.Code)
	}
	if len(recorder.orders) != 0 {
		t.Errorf("Expected no partial records, got %d", len(recorder.orders))
	}
}

func TestWebhook_IgnoredEvent(t *testing.T) {
	router, recorder, _ := setupWebhookTest(t, &stubProvider{verifyTx: successfulStubTx()}, testConfig())

	body := webhookBody()
	body["event"] = "charge.dispute.create"

	w := postWebhook(router, "whsec", body)

	if w.Code != http.StatusOK {
		t.Errorf("Expected ignored events to be acknowledged with %d, got %d", http.StatusOK, w.Code)
	}
	if len(recorder.orders) != 0 {
		t.Errorf("Expected no records for ignored event, got %d", len(recorder.orders))
	}
}

func TestWebhook_Replay_SingleRecord(t *testing.T) {
	provider := &stubProvider{verifyTx: successfulStubTx()}
	router, recorder, notifier := setupWebhookTest(t, provider, testConfig())

	for i := 0; i < 2; i++ {
		w := postWebhook(router, "whsec", webhookBody())
		if w.Code != http.StatusOK {
			t.Fatalf("Delivery %d: expected status %d, got %d", i, http.StatusOK, w.Code)
		}
	}

	if len(recorder.orders) != 1 {
		t.Errorf("Expected exactly 1 record after replayed delivery, got %d", len(recorder.orders))
	}
	if notifier.sent != 1 {
		t.Errorf("Expected exactly 1 email after replayed delivery, got %d", notifier.sent)
	}
}
