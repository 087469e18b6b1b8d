package registry

import (
	"strings"

	"github.com/siga-research/siga/internal/anthropic"
	"github.com/siga-research/siga/internal/config"
	"github.com/siga-research/siga/internal/gemini"
	"github.com/siga-research/siga/internal/ollama"
	"github.com/siga-research/siga/internal/openai"
	"github.com/siga-research/siga/internal/providers"
	"go.uber.org/zap"
)

var aliases = map[string]string{
	"gemini": gemini.ID,
	"google": gemini.ID,
}

// IDs returns the canonical provider identifiers
func IDs() []string {
	return []string{openai.ID, gemini.ID, ollama.ID, anthropic.ID}
}

// Canonical resolves aliases and case differences to a provider id
func Canonical(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if canonical, ok := aliases[id]; ok {
		return canonical
	}
	return id
}

// New builds the adapter for id. A missing required setting or an unknown id
// is reported as a *providers.ConfigurationError before any network call.
func New(id string, cfg *config.Config, logger *zap.Logger) (providers.Provider, error) {
	id = Canonical(id)
	pcfg, ok := cfg.ProviderConfig(id)
	if !ok {
		return nil, &providers.ConfigurationError{
			Provider: id,
			Setting:  "provider",
			Reason:   "unknown provider, expected one of " + strings.Join(IDs(), ", "),
		}
	}

	var (
		p   providers.Provider
		err error
	)
	switch id {
	case openai.ID:
		p, err = asProvider(openai.New(pcfg, logger))
	case gemini.ID:
		p, err = asProvider(gemini.New(pcfg, logger))
	case ollama.ID:
		p, err = asProvider(ollama.New(pcfg, logger))
	case anthropic.ID:
		p, err = asProvider(anthropic.New(pcfg, logger))
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("provider created", zap.String("provider", id), zap.String("preferred_model", p.PreferredModel()))
	return providers.Throttle(p, cfg.Research.RequestsPerMinute), nil
}

func asProvider[P providers.Provider](p P, err error) (providers.Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
