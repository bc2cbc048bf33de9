package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/pkg/models"
)

type stubBatchHandler struct {
	got     []models.InboundMessage
	trigger string
	outcome models.BatchOutcome
}

func (s *stubBatchHandler) HandleBatch(ctx context.Context, trigger string, batch []models.InboundMessage) models.BatchOutcome {
	s.trigger = trigger
	s.got = batch
	return s.outcome
}

func setupRouter(h BatchHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	log, _ := newTestLogger()
	NewHandler(h, log).RegisterRoutes(router)
	return router
}

func TestHandler_HandleBatch(t *testing.T) {
	stub := &stubBatchHandler{outcome: models.BatchOutcome{Retry: []models.RetryItem{{MessageID: "m2"}}}}
	router := setupRouter(stub)

	body := `{"messages":[{"message_id":"m1","body":"{\"device_id\":\"d\"}"},{"message_id":"m2","body":"eyJ9","encoding":"base64"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"retry":[{"message_id":"m2"}]}`, rec.Body.String())
	assert.Equal(t, TriggerHTTP, stub.trigger)
	require.Len(t, stub.got, 2)
	assert.Equal(t, `{"device_id":"d"}`, string(stub.got[0].Body))
	assert.Equal(t, "base64", stub.got[1].Encoding)
}

func TestHandler_EmptyRetryListIsArray(t *testing.T) {
	stub := &stubBatchHandler{outcome: models.NewBatchOutcome()}
	router := setupRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", strings.NewReader(`{"messages":[]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"retry":[]}`, rec.Body.String())
}

func TestHandler_RejectsMalformedRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not JSON", body: `nope`},
		{name: "missing messages", body: `{}`},
		{name: "missing message id", body: `{"messages":[{"body":"{}"}]}`},
		{name: "duplicate message id", body: `{"messages":[{"message_id":"a","body":"{}"},{"message_id":"a","body":"{}"}]}`},
		{name: "body is not a string", body: `{"messages":[{"message_id":"a","body":{}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubBatchHandler{}
			router := setupRouter(stub)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "VALIDATION_ERROR", resp["error_code"])
			assert.Nil(t, stub.got)
		})
	}
}

func TestHandler_EndToEndWithService(t *testing.T) {
	w := &fakeWriter{}
	router := setupRouter(newTestService(t, w))

	doc := documentJSON("dev-1", []map[string]interface{}{process("ls -la", "root")}, nil)
	payload, err := json.Marshal(models.BatchRequest{Messages: []models.InboundMessage{jsonMessage("m1", doc)}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", strings.NewReader(string(payload)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"retry":[]}`, rec.Body.String())
	assert.Len(t, w.Events(t), 1)
}
