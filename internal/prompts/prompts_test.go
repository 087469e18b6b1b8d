package prompts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	set, err := Default()
	require.NoError(t, err)

	tpl, err := set.Resolve("subsidiary_research_v1")
	require.NoError(t, err)
	assert.Equal(t, "subsidiary_research_v1", tpl.Version)
	assert.Contains(t, tpl.UserTemplate, "[COMPANY_PLACEHOLDER]")
	assert.NotEmpty(t, tpl.SystemText)
	assert.NotEmpty(t, tpl.Description)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	set, err := Load(filepath.Join(t.TempDir(), "prompts.json"))
	require.NoError(t, err)
	assert.Contains(t, set.Versions(), "subsidiary_research_v1")
	assert.Equal(t, "built-in templates", set.Source())
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "prompts.json", `{
	"v1": {
		"system_message": "You are precise.",
		"user_template": "Research [COMPANY_PLACEHOLDER]",
		"description": "first"
	},
	"v2": {
		"system_message": "You are brief.",
		"user_template": "Summarize [COMPANY_PLACEHOLDER]"
	}
}`)

	set, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2"}, set.Versions())

	tpl, err := set.Resolve("v1")
	require.NoError(t, err)
	assert.Equal(t, Template{Version: "v1", SystemText: "You are precise.", UserTemplate: "Research [COMPANY_PLACEHOLDER]", Description: "first"}, tpl)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "prompts.yaml", `
brief:
  system_message: Answer with JSON.
  user_template: Subsidiaries of [COMPANY_PLACEHOLDER]
`)

	set, err := Load(path)
	require.NoError(t, err)
	tpl, err := set.Resolve("brief")
	require.NoError(t, err)
	assert.Equal(t, "Answer with JSON.", tpl.SystemText)
}

func TestLoadInvalidFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "broken json", file: "p.json", content: `{"v1": {`},
		{name: "no templates", file: "p.json", content: `{}`},
		{name: "missing user template", file: "p.json", content: `{"v1": {"system_message": "x"}}`},
		{name: "missing placeholder", file: "p.yaml", content: "v1:\n  user_template: Research the company\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	set, err := Default()
	require.NoError(t, err)

	first, err := set.Resolve("subsidiary_research_v1")
	require.NoError(t, err)
	second, err := set.Resolve("subsidiary_research_v1")
	require.NoError(t, err)

	assert.Equal(t, first.UserTemplate, second.UserTemplate)
	assert.Equal(t, first.SystemText, second.SystemText)
}

func TestResolveNotFound(t *testing.T) {
	set, err := NewSet(map[string]Template{
		"a": {UserTemplate: "[COMPANY_PLACEHOLDER]"},
		"b": {UserTemplate: "[COMPANY_PLACEHOLDER]"},
	}, "test")
	require.NoError(t, err)

	_, err = set.Resolve("missing")
	var notFound *PromptNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "missing", notFound.Version)
	assert.Equal(t, []string{"a", "b"}, notFound.Available)
}
