package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/siga-research/siga/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Anthropic {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := New(providers.Config{APIKey: "test-key", BaseURL: srv.URL, MaxOutputTokens: 1500}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return p
}

func messageResponse(text string) map[string]any {
	return map[string]any{
		"id":            "msg_1",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-sonnet-4-5-20250929",
		"content":       []map[string]any{{"type": "text", "text": text}},
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"usage":         map[string]any{"input_tokens": 10, "output_tokens": 20},
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(providers.Config{}, zaptest.NewLogger(t))
	var cfgErr *providers.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "ANTHROPIC_API_KEY", cfgErr.Setting)
}

func TestExtract(t *testing.T) {
	var got map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messageResponse("```json\n{\"company_name\":\"Initech\",\"financial_info\":[{\"metric\":\"employees\",\"value\":\"500\"}]}\n```"))
	})

	data, err := p.Extract(context.Background(), "Initech", "claude-sonnet-4-5-20250929", "About [COMPANY_PLACEHOLDER]", "Reply with JSON")
	require.NoError(t, err)
	assert.Equal(t, "Initech", data.CompanyName)
	require.Len(t, data.FinancialInfo, 1)
	assert.Equal(t, "500", data.FinancialInfo[0].Value)

	assert.EqualValues(t, 1500, got["max_tokens"])
	assert.InDelta(t, 0.1, got["temperature"], 0.0001)
	system := got["system"].([]any)
	require.Len(t, system, 1)
	assert.Equal(t, "Reply with JSON", system[0].(map[string]any)["text"])
}

func TestExtractAuthFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	})

	_, err := p.Extract(context.Background(), "Initech", "claude-sonnet-4-5-20250929", "[COMPANY_PLACEHOLDER]", "")
	var perr *providers.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, providers.ErrorKindAuth, perr.Kind)
	assert.EqualValues(t, 1, calls.Load())
}

func TestListAvailableModels(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"id":"claude-sonnet-4-5-20250929","type":"model","display_name":"Claude Sonnet 4.5","created_at":"2025-09-29T00:00:00Z"},
			{"id":"claude-haiku-4-5-20251001","type":"model","display_name":"Claude Haiku 4.5","created_at":"2025-10-01T00:00:00Z"}
		],"has_more":false,"first_id":"claude-sonnet-4-5-20250929","last_id":"claude-haiku-4-5-20251001"}`))
	})

	assert.Equal(t, []string{"claude-haiku-4-5-20251001", "claude-sonnet-4-5-20250929"}, p.ListAvailableModels(context.Background()))
}

func TestListAvailableModelsBadCredentials(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	})

	models := p.ListAvailableModels(context.Background())
	assert.NotNil(t, models)
	assert.Empty(t, models)
}
