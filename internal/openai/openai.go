package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"
	"github.com/siga-research/siga/internal/providers"
	"go.uber.org/zap"
)

// ID is the provider identifier for OpenAI
const ID = "openai"

// DefaultModel is used when no preferred model is configured
const DefaultModel = "gpt-4o"

var modelFamilies = []string{"gpt", "davinci", "babbage", "curie", "ada"}

// OpenAI is a provider for OpenAI and OpenAI-compatible endpoints
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// New returns a new OpenAI provider
func New(cfg providers.Config, logger *zap.Logger) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &providers.ConfigurationError{Provider: ID, Setting: "OPENAI_API_KEY"}
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.RequestTimeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	model := cfg.PreferredModel
	if model == "" {
		model = DefaultModel
	}

	return &OpenAI{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		maxTokens: cfg.MaxOutputTokens,
		logger:    logger.With(zap.String("provider", ID)),
	}, nil
}

func (o *OpenAI) ID() string { return ID }

func (o *OpenAI) PreferredModel() string { return o.model }

// ListAvailableModels returns the chat-capable model ids visible to the API key
func (o *OpenAI) ListAvailableModels(ctx context.Context) []string {
	list, err := o.client.ListModels(ctx)
	if err != nil {
		o.logger.Error("failed to list models", zap.Error(err))
		return []string{}
	}

	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		if isChatModel(m.ID) {
			ids = append(ids, m.ID)
		}
	}
	return providers.NormalizeModels(ids)
}

// Extract asks the chat completions endpoint for a JSON company profile
func (o *OpenAI) Extract(ctx context.Context, companyName, modelName, userTemplate, systemText string) (*providers.StructuredData, error) {
	req := openai.ChatCompletionRequest{
		Model: modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemText},
			{Role: openai.ChatMessageRoleUser, Content: providers.FillTemplate(userTemplate, companyName)},
		},
		Temperature: providers.Temperature,
		N:           providers.CandidateCount,
		MaxTokens:   o.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		perr := providers.AsProviderError(ID, classify(err), eris.Wrap(err, "chat completion"))
		o.logger.Error("extraction failed", zap.String("company", companyName), zap.Error(perr))
		return nil, perr
	}
	if len(resp.Choices) == 0 {
		return nil, o.malformed(companyName, eris.New("no choices returned from OpenAI"))
	}

	content := resp.Choices[0].Message.Content
	o.logger.Debug("raw response",
		zap.String("company", companyName),
		zap.String("model", modelName),
		zap.String("content", providers.Truncate(content, 500)))

	data, err := providers.ParseStructuredData(content)
	if err != nil {
		return nil, o.malformed(companyName, err)
	}
	return data, nil
}

func (o *OpenAI) malformed(companyName string, err error) error {
	perr := providers.NewProviderError(ID, providers.ErrorKindMalformed, err)
	o.logger.Error("extraction failed", zap.String("company", companyName), zap.Error(perr))
	return perr
}

func isChatModel(id string) bool {
	for _, family := range modelFamilies {
		if strings.Contains(id, family) {
			return true
		}
	}
	return false
}

func classify(err error) providers.ErrorKind {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return providers.ErrorKindNetwork
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return providers.ErrorKindAuth
	}
	return providers.ErrorKindBackend
}
