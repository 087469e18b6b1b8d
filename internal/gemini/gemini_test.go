package gemini

import (
	"errors"
	"net"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"github.com/siga-research/siga/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(providers.Config{}, zap.NewNop())
	var cfgErr *providers.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "GOOGLE_API_KEY", cfgErr.Setting)
	assert.Equal(t, ID, cfgErr.Provider)
}

func TestNewDefaults(t *testing.T) {
	g, err := New(providers.Config{APIKey: "k"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, g.PreferredModel())
	assert.Equal(t, "google_ai", g.ID())
}

func TestKeepModel(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		methods  []string
		expected bool
	}{
		{name: "gemini with generateContent", model: "models/gemini-1.5-pro", methods: []string{"generateContent", "countTokens"}, expected: true},
		{name: "text-bison", model: "models/text-bison-001", methods: []string{"generateContent"}, expected: true},
		{name: "embedding model", model: "models/embedding-001", methods: []string{"embedContent"}, expected: false},
		{name: "gemini without generateContent", model: "models/gemini-embedding", methods: []string{"embedContent"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, keepModel(tt.model, tt.methods))
		})
	}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"company_name":`), genai.Text(`"Acme"}`)}},
		}},
	}
	text, err := responseText(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"company_name":"Acme"}`, text)

	_, err = responseText(&genai.GenerateContentResponse{})
	assert.Error(t, err)

	_, err = responseText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}})
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	invalidKey, err := status.New(codes.InvalidArgument, "API key not valid. Please pass a valid API key.").
		WithDetails(&errdetails.ErrorInfo{Reason: "API_KEY_INVALID", Domain: "googleapis.com"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		err      error
		expected providers.ErrorKind
	}{
		{name: "invalid key", err: invalidKey.Err(), expected: providers.ErrorKindAuth},
		{name: "unauthenticated", err: status.Error(codes.Unauthenticated, "request had invalid credentials"), expected: providers.ErrorKindAuth},
		{name: "permission denied", err: status.Error(codes.PermissionDenied, "caller lacks access"), expected: providers.ErrorKindAuth},
		{name: "http 401", err: &googleapi.Error{Code: 401, Message: "unauthorized"}, expected: providers.ErrorKindAuth},
		{name: "http 403 wrapped", err: eris.Wrap(&googleapi.Error{Code: 403, Message: "forbidden"}, "generate"), expected: providers.ErrorKindAuth},
		{name: "unavailable", err: status.Error(codes.Unavailable, "connection reset"), expected: providers.ErrorKindNetwork},
		{name: "dial failure", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, expected: providers.ErrorKindNetwork},
		{name: "internal", err: status.Error(codes.Internal, "internal"), expected: providers.ErrorKindBackend},
		{name: "http 500", err: &googleapi.Error{Code: 500, Message: "internal"}, expected: providers.ErrorKindBackend},
		{name: "message mentions permission denied", err: errors.New("model said: permission denied"), expected: providers.ErrorKindBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classify(tt.err))
		})
	}
}
