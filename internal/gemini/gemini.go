package gemini

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/rotisserie/eris"
	"github.com/siga-research/siga/internal/providers"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
)

// ID is the provider identifier for Google AI
const ID = "google_ai"

// DefaultModel is used when no preferred model is configured
const DefaultModel = "gemini-pro"

const generateContent = "generateContent"

// Gemini is a provider for Google Gemini
type Gemini struct {
	apiKey    string
	endpoint  string
	model     string
	maxTokens int
	logger    *zap.Logger
}

// New returns a new Gemini provider
func New(cfg providers.Config, logger *zap.Logger) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &providers.ConfigurationError{Provider: ID, Setting: "GOOGLE_API_KEY"}
	}

	model := cfg.PreferredModel
	if model == "" {
		model = DefaultModel
	}

	return &Gemini{
		apiKey:    cfg.APIKey,
		endpoint:  cfg.BaseURL,
		model:     model,
		maxTokens: cfg.MaxOutputTokens,
		logger:    logger.With(zap.String("provider", ID)),
	}, nil
}

func (g *Gemini) ID() string { return ID }

func (g *Gemini) PreferredModel() string { return g.model }

func (g *Gemini) newClient(ctx context.Context) (*genai.Client, error) {
	opts := []option.ClientOption{option.WithAPIKey(g.apiKey)}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	return genai.NewClient(ctx, opts...)
}

// ListAvailableModels returns the Gemini models that support content generation
func (g *Gemini) ListAvailableModels(ctx context.Context) []string {
	client, err := g.newClient(ctx)
	if err != nil {
		g.logger.Error("failed to create client", zap.Error(err))
		return []string{}
	}
	defer client.Close()

	var ids []string
	it := client.ListModels(ctx)
	for {
		m, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			g.logger.Error("failed to list models", zap.Error(err))
			return []string{}
		}
		if keepModel(m.Name, m.SupportedGenerationMethods) {
			ids = append(ids, strings.TrimPrefix(m.Name, "models/"))
		}
	}
	return providers.NormalizeModels(ids)
}

// Extract asks Gemini for a JSON company profile
func (g *Gemini) Extract(ctx context.Context, companyName, modelName, userTemplate, systemText string) (*providers.StructuredData, error) {
	client, err := g.newClient(ctx)
	if err != nil {
		return nil, g.fail(companyName, providers.AsProviderError(ID, providers.ErrorKindNetwork, eris.Wrap(err, "create client")))
	}
	defer client.Close()

	model := client.GenerativeModel(modelName)
	model.SetTemperature(providers.Temperature)
	model.SetCandidateCount(providers.CandidateCount)
	if g.maxTokens > 0 {
		model.SetMaxOutputTokens(int32(g.maxTokens))
	}
	model.ResponseMIMEType = "application/json"
	if systemText != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemText)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(providers.FillTemplate(userTemplate, companyName)))
	if err != nil {
		return nil, g.fail(companyName, providers.AsProviderError(ID, classify(err), eris.Wrap(err, "generate content")))
	}

	content, err := responseText(resp)
	if err != nil {
		return nil, g.fail(companyName, providers.NewProviderError(ID, providers.ErrorKindMalformed, err))
	}
	g.logger.Debug("raw response",
		zap.String("company", companyName),
		zap.String("model", modelName),
		zap.String("content", providers.Truncate(content, 500)))

	data, err := providers.ParseStructuredData(content)
	if err != nil {
		return nil, g.fail(companyName, providers.NewProviderError(ID, providers.ErrorKindMalformed, err))
	}
	return data, nil
}

func (g *Gemini) fail(companyName string, perr *providers.ProviderError) error {
	g.logger.Error("extraction failed", zap.String("company", companyName), zap.Error(perr))
	return perr
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", eris.New("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", eris.New("empty content returned from Gemini")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", eris.New("unexpected response format from Gemini")
	}
	return sb.String(), nil
}

func keepModel(name string, methods []string) bool {
	if !strings.Contains(name, "gemini") && !strings.Contains(name, "text-bison") {
		return false
	}
	for _, m := range methods {
		if m == generateContent {
			return true
		}
	}
	return false
}

// classify maps Google API status codes onto error kinds.
// An invalid key arrives as InvalidArgument and is recognised by its ErrorInfo reason.
func classify(err error) providers.ErrorKind {
	if ae, ok := apierror.FromError(err); ok {
		switch ae.HTTPCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return providers.ErrorKindAuth
		}
		if ae.Reason() == "API_KEY_INVALID" {
			return providers.ErrorKindAuth
		}
		switch ae.GRPCStatus().Code() {
		case codes.Unauthenticated, codes.PermissionDenied:
			return providers.ErrorKindAuth
		case codes.Unavailable, codes.DeadlineExceeded:
			return providers.ErrorKindNetwork
		}
		return providers.ErrorKindBackend
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return providers.ErrorKindNetwork
	}
	return providers.ErrorKindBackend
}
