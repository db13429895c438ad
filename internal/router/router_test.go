package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"product-relay/internal/handlers"
	"product-relay/internal/models"
	"product-relay/internal/services"
)

type echoProvider struct{}

func (echoProvider) Name() string { return "echo" }

func (echoProvider) CreateChatCompletion(ctx context.Context, req models.ChatCompletionRequest) (json.RawMessage, error) {
	return json.RawMessage(`{"id":"x","choices":[{"message":{"content":"hello"}}]}`), nil
}

func testRouter() http.Handler {
	logger := zap.NewNop()
	chat := services.NewChatService(echoProvider{}, "gpt-4", 300, logger)
	h := handlers.NewRelayHandler(chat, services.NopCatalogWriter{}, logger)
	return New(h, logger, "*")
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(testRouter())
	t.Cleanup(srv.Close)
	return srv
}

func TestRouter_Health(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_Routes(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"chat", "/openai", `{"messages":[{"role":"user","content":"hi"}]}`, http.StatusOK, `{"id":"x","choices":[{"message":{"content":"hello"}}]}`},
		{"chat malformed", "/openai", `{`, http.StatusBadRequest, `{"error":"Invalid request body"}`},
		{"insert", "/insert", `{"productData":{"name":"x"},"amazonData":{"price":1}}`, http.StatusOK, `{"message":"Data inserted successfully"}`},
		{"insert malformed", "/insert", `[}`, http.StatusBadRequest, `{"error":"Invalid request body"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+tc.path, "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			var got json.RawMessage
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
			assert.JSONEq(t, tc.wantBody, string(got))
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
}

func TestRouter_OversizedBody(t *testing.T) {
	big := `{"productData":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/insert", strings.NewReader(big))
	rr := httptest.NewRecorder()
	testRouter().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_GetOnPostRoute(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/openai")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
