package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/siga-research/siga/internal/providers"
	"go.uber.org/zap"
)

// ID is the provider identifier for Ollama
const ID = "ollama"

// DefaultModel is used when no preferred model is configured
const DefaultModel = "llama2"

// DefaultBaseURL is the address of a local Ollama server
const DefaultBaseURL = "http://localhost:11434"

// Ollama is a provider for a self-hosted Ollama server
type Ollama struct {
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
	logger    *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format"`
	Options  map[string]any `json:"options"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// New returns a new Ollama provider
func New(cfg providers.Config, logger *zap.Logger) (*Ollama, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, &providers.ConfigurationError{Provider: ID, Setting: "OLLAMA_BASE_URL"}
	}

	model := cfg.PreferredModel
	if model == "" {
		model = DefaultModel
	}

	return &Ollama{
		baseURL:   baseURL,
		model:     model,
		maxTokens: cfg.MaxOutputTokens,
		client:    &http.Client{Timeout: cfg.RequestTimeout},
		logger:    logger.With(zap.String("provider", ID)),
	}, nil
}

func (o *Ollama) ID() string { return ID }

func (o *Ollama) PreferredModel() string { return o.model }

// ListAvailableModels returns the locally pulled models without their tag suffix
func (o *Ollama) ListAvailableModels(ctx context.Context) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		o.logger.Error("failed to create request", zap.Error(err))
		return []string{}
	}

	resp, err := o.client.Do(req)
	if err != nil {
		o.logger.Error("failed to list models", zap.Error(err))
		return []string{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		o.logger.Error("failed to list models",
			zap.Int("status", resp.StatusCode),
			zap.String("body", providers.Truncate(string(body), 200)))
		return []string{}
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		o.logger.Error("failed to decode model list", zap.Error(err))
		return []string{}
	}

	ids := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		name, _, _ := strings.Cut(m.Name, ":")
		ids = append(ids, name)
	}
	return providers.NormalizeModels(ids)
}

// Extract asks the Ollama chat endpoint for a JSON company profile
func (o *Ollama) Extract(ctx context.Context, companyName, modelName, userTemplate, systemText string) (*providers.StructuredData, error) {
	options := map[string]any{"temperature": providers.Temperature}
	if o.maxTokens > 0 {
		options["num_predict"] = o.maxTokens
	}

	var messages []chatMessage
	if systemText != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemText})
	}
	messages = append(messages, chatMessage{Role: "user", Content: providers.FillTemplate(userTemplate, companyName)})

	requestBody, err := json.Marshal(chatRequest{
		Model:    modelName,
		Messages: messages,
		Stream:   false,
		Format:   "json",
		Options:  options,
	})
	if err != nil {
		return nil, o.fail(companyName, providers.NewProviderError(ID, providers.ErrorKindBackend, eris.Wrap(err, "failed to marshal request body")))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, o.fail(companyName, providers.NewProviderError(ID, providers.ErrorKindBackend, eris.Wrap(err, "failed to create new request")))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, o.fail(companyName, providers.AsProviderError(ID, providers.ErrorKindNetwork, eris.Wrap(err, "failed to send request")))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		kind := providers.ErrorKindBackend
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = providers.ErrorKindAuth
		}
		err := eris.Errorf("received non-200 status code: %d - %s", resp.StatusCode, providers.Truncate(string(body), 200))
		return nil, o.fail(companyName, providers.NewProviderError(ID, kind, err))
	}

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, o.fail(companyName, providers.AsProviderError(ID, providers.ErrorKindNetwork, err))
		}
		return nil, o.fail(companyName, providers.NewProviderError(ID, providers.ErrorKindMalformed, eris.Wrap(err, "failed to decode response body")))
	}
	if response.Error != "" {
		return nil, o.fail(companyName, providers.NewProviderError(ID, providers.ErrorKindBackend, eris.New(response.Error)))
	}

	content := response.Message.Content
	o.logger.Debug("raw response",
		zap.String("company", companyName),
		zap.String("model", modelName),
		zap.String("content", providers.Truncate(content, 500)))

	data, err := providers.ParseStructuredData(content)
	if err != nil {
		return nil, o.fail(companyName, providers.NewProviderError(ID, providers.ErrorKindMalformed, err))
	}
	return data, nil
}

func (o *Ollama) fail(companyName string, perr *providers.ProviderError) error {
	o.logger.Error("extraction failed", zap.String("company", companyName), zap.Error(perr))
	return perr
}
