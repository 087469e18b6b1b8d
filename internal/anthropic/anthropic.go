package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"github.com/siga-research/siga/internal/providers"
	"go.uber.org/zap"
)

// ID is the provider identifier for Anthropic
const ID = "anthropic"

// DefaultModel is used when no preferred model is configured
const DefaultModel = "claude-sonnet-4-5-20250929"

const defaultMaxTokens = 1500

// Anthropic is a provider for the Anthropic Messages API
type Anthropic struct {
	client    sdk.Client
	model     string
	maxTokens int64
	logger    *zap.Logger
}

// New returns a new Anthropic provider. SDK retries are disabled so each
// company gets exactly one attempt.
func New(cfg providers.Config, logger *zap.Logger) (*Anthropic, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &providers.ConfigurationError{Provider: ID, Setting: "ANTHROPIC_API_KEY"}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}))
	}

	model := cfg.PreferredModel
	if model == "" {
		model = DefaultModel
	}
	maxTokens := int64(cfg.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Anthropic{
		client:    sdk.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		logger:    logger.With(zap.String("provider", ID)),
	}, nil
}

func (a *Anthropic) ID() string { return ID }

func (a *Anthropic) PreferredModel() string { return a.model }

// ListAvailableModels pages through every model visible to the API key
func (a *Anthropic) ListAvailableModels(ctx context.Context) []string {
	var ids []string
	iter := a.client.Models.ListAutoPaging(ctx, sdk.ModelListParams{})
	for iter.Next() {
		ids = append(ids, iter.Current().ID)
	}
	if err := iter.Err(); err != nil {
		a.logger.Error("failed to list models", zap.Error(err))
		return []string{}
	}
	return providers.NormalizeModels(ids)
}

// Extract asks Claude for a JSON company profile
func (a *Anthropic) Extract(ctx context.Context, companyName, modelName, userTemplate, systemText string) (*providers.StructuredData, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelName),
		MaxTokens: a.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(providers.FillTemplate(userTemplate, companyName))),
		},
		Temperature: sdk.Float(providers.Temperature),
	}
	if systemText != "" {
		params.System = []sdk.TextBlockParam{{Text: systemText}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, a.fail(companyName, providers.AsProviderError(ID, classify(err), eris.Wrap(err, "create message")))
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	content := sb.String()
	a.logger.Debug("raw response",
		zap.String("company", companyName),
		zap.String("model", modelName),
		zap.String("stop_reason", string(msg.StopReason)),
		zap.String("content", providers.Truncate(content, 500)))

	data, err := providers.ParseStructuredData(content)
	if err != nil {
		return nil, a.fail(companyName, providers.NewProviderError(ID, providers.ErrorKindMalformed, err))
	}
	return data, nil
}

func (a *Anthropic) fail(companyName string, perr *providers.ProviderError) error {
	a.logger.Error("extraction failed", zap.String("company", companyName), zap.Error(perr))
	return perr
}

func classify(err error) providers.ErrorKind {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return providers.ErrorKindNetwork
	}
	if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
		return providers.ErrorKindAuth
	}
	return providers.ErrorKindBackend
}
