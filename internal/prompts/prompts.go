package prompts

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/siga-research/siga/internal/providers"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultTemplates []byte

// Template is one named prompt version
type Template struct {
	Version      string `yaml:"-" json:"version"`
	SystemText   string `yaml:"system_message" json:"system_message"`
	UserTemplate string `yaml:"user_template" json:"user_template"`
	Description  string `yaml:"description" json:"description"`
}

// PromptNotFoundError is returned when a version is not in the set
type PromptNotFoundError struct {
	Version   string
	Available []string
}

func (e *PromptNotFoundError) Error() string {
	return fmt.Sprintf("prompt version %q not found (available: %s)", e.Version, strings.Join(e.Available, ", "))
}

// Set is an immutable collection of prompt templates keyed by version
type Set struct {
	templates map[string]Template
	source    string
}

// NewSet validates templates and returns a Set
func NewSet(templates map[string]Template, source string) (*Set, error) {
	copied := make(map[string]Template, len(templates))
	for version, tpl := range templates {
		tpl.Version = version
		if err := tpl.validate(); err != nil {
			return nil, eris.Wrapf(err, "prompts: %s", source)
		}
		copied[version] = tpl
	}
	if len(copied) == 0 {
		return nil, eris.Errorf("prompts: %s contains no templates", source)
	}
	return &Set{templates: copied, source: source}, nil
}

// Load reads templates from a JSON (.json) or YAML file. A missing file falls back to
// the built-in templates; an unreadable or invalid file is an error.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default()
	}
	if err != nil {
		return nil, eris.Wrapf(err, "prompts: read %s", path)
	}
	return parse(data, path)
}

// Default returns the built-in templates
func Default() (*Set, error) {
	return parse(defaultTemplates, "built-in templates")
}

func parse(data []byte, source string) (*Set, error) {
	var templates map[string]Template
	if strings.EqualFold(filepath.Ext(source), ".json") {
		if err := json.Unmarshal(data, &templates); err != nil {
			return nil, eris.Wrapf(err, "prompts: parse %s", source)
		}
	} else if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, eris.Wrapf(err, "prompts: parse %s", source)
	}
	return NewSet(templates, source)
}

// Resolve returns the template for version. Resolving the same version twice
// returns identical text.
func (s *Set) Resolve(version string) (Template, error) {
	tpl, ok := s.templates[version]
	if !ok {
		return Template{}, &PromptNotFoundError{Version: version, Available: s.Versions()}
	}
	return tpl, nil
}

// Versions returns the sorted version identifiers
func (s *Set) Versions() []string {
	versions := make([]string, 0, len(s.templates))
	for v := range s.templates {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

// Source describes where the templates were loaded from
func (s *Set) Source() string {
	return s.source
}

func (t Template) validate() error {
	if strings.TrimSpace(t.Version) == "" {
		return eris.New("template with empty version")
	}
	if strings.TrimSpace(t.UserTemplate) == "" {
		return eris.Errorf("template %q has no user_template", t.Version)
	}
	if !strings.Contains(t.UserTemplate, providers.Placeholder) {
		return eris.Errorf("template %q user_template does not contain %s", t.Version, providers.Placeholder)
	}
	return nil
}
