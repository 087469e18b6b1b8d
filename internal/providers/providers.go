package providers

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Placeholder is the token in a user template that is replaced by the company name
const Placeholder = "[COMPANY_PLACEHOLDER]"

// Sampling parameters shared by every backend
const (
	Temperature    = 0.1
	CandidateCount = 1
)

// Config represents the configuration for an LLM provider
type Config struct {
	APIKey          string
	BaseURL         string
	PreferredModel  string
	MaxOutputTokens int
	RequestTimeout  time.Duration
}

// Provider defines the interface for an LLM provider
type Provider interface {
	// ID returns the provider identifier used in configuration and reports
	ID() string

	// ListAvailableModels returns a sorted, deduplicated list of model names.
	// Transport or auth failures are logged and yield an empty list.
	ListAvailableModels(ctx context.Context) []string

	// PreferredModel returns the configured default model
	PreferredModel() string

	// Extract asks the backend for the structured company profile.
	// Every failure is returned as a *ProviderError.
	Extract(ctx context.Context, companyName, modelName, userTemplate, systemText string) (*StructuredData, error)
}

// FillTemplate substitutes the company name into every placeholder of the template
func FillTemplate(userTemplate, companyName string) string {
	return strings.ReplaceAll(userTemplate, Placeholder, companyName)
}

// NormalizeModels drops blanks and duplicates and sorts the result
func NormalizeModels(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	models := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		models = append(models, id)
	}
	sort.Strings(models)
	return models
}

// Truncate shortens raw model output for log lines.
// The cut never splits a multi-byte character.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := max(maxLen, 0)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
